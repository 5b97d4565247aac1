package api

import (
	"net/http"
)

// handleEvents streams page events (notification displays, navigation
// requests, claims) to a connected page over SSE. The stream stays open
// until the page disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers — from here on we can only send events, not JSON errors
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendSSEEvent(w, nil, "error", map[string]string{"error": "streaming not supported"})
		return
	}

	events, cancel := s.hub.Subscribe()
	defer cancel()

	sendSSEEvent(w, flusher, "connected", map[string]any{
		"state":  string(s.lifecycle.State()),
		"online": s.watcher.Online(),
	})

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, ev.Type, ev.Data)
		}
	}
}
