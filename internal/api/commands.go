package api

import (
	"encoding/json"
	"net/http"
)

// Commands the page can post to /agent/message.
const (
	CommandSkipWaiting      = "SKIP_WAITING"
	CommandCacheURLs        = "CACHE_URLS"
	CommandPrecacheCritical = "PRECACHE_CRITICAL"
	CommandFlushQueues      = "FLUSH_QUEUES"
)

type commandRequest struct {
	Type string   `json:"type"`
	URLs []string `json:"urls,omitempty"`
}

// handleMessage dispatches a typed command from the page. Unknown command
// types are rejected with 400 rather than silently dropped.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var cmd commandRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	switch cmd.Type {
	case CommandSkipWaiting:
		if err := s.lifecycle.SkipWaiting(r.Context()); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})

	case CommandCacheURLs:
		if len(cmd.URLs) == 0 {
			writeError(w, http.StatusBadRequest, "urls is required")
			return
		}
		cached := s.lifecycle.PrecacheURLs(r.Context(), cmd.URLs)
		writeJSON(w, http.StatusOK, map[string]int{"cached": cached})

	case CommandPrecacheCritical:
		cached := s.lifecycle.PrecacheCritical(r.Context(), s.critical)
		writeJSON(w, http.StatusOK, map[string]int{"cached": cached})

	case CommandFlushQueues:
		s.replayer.ReplayAll(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})

	default:
		writeError(w, http.StatusBadRequest, "unknown command type: "+cmd.Type)
	}
}
