package api

import (
	"net/http"

	"github.com/truckfixgo/offline-agent/internal/build"
)

type statusResponse struct {
	Version    string         `json:"version"`
	State      string         `json:"state"`
	Online     bool           `json:"online"`
	Queues     map[string]int `json:"queues"`
	PageCount  int            `json:"pageCount"`
	InstallErr string         `json:"installError,omitempty"`
}

// handleStatus reports the agent's lifecycle state, connectivity, and the
// depth of each retry queue.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:   build.Version,
		State:     string(s.lifecycle.State()),
		Online:    s.watcher.Online(),
		Queues:    make(map[string]int, len(s.queues)),
		PageCount: s.hub.ClientCount(),
	}
	if err := s.lifecycle.InstallError(); err != nil {
		resp.InstallErr = err.Error()
	}
	for _, q := range s.queues {
		depth, err := q.Depth(r.Context())
		if err != nil {
			s.logger.Warn("failed to read queue depth", "queue", q.Name, "error", err)
			continue
		}
		resp.Queues[q.Name] = depth
	}
	writeJSON(w, http.StatusOK, resp)
}
