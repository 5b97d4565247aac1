package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handlePush accepts a raw push payload and runs the full delivery pipeline:
// display, persist, and delivered telemetry. A malformed body is not an
// error, the payload is degraded to a default notification instead.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read push body")
		return
	}

	rec, err := s.notifs.HandlePush(r.Context(), raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type clickRequest struct {
	Action string `json:"action"`
}

type clickResponse struct {
	Decision    string `json:"decision"`
	Destination string `json:"destination,omitempty"`
}

// handleClick routes a notification click. The empty action means the
// notification body itself was clicked.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "id")
	if correlationID == "" {
		writeError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	var req clickRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errInvalidJSONBody)
			return
		}
	}

	decision, err := s.notifs.HandleClick(r.Context(), correlationID, req.Action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, clickResponse{
		Decision:    string(decision.Kind),
		Destination: decision.Destination,
	})
}

// handleListNotifications returns recently received notifications, newest
// first. Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.notifs.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
