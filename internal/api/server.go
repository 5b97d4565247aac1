// Package api exposes the agent's control surface to the application page:
// the typed command channel, inbound push delivery, notification click
// routing, offline notification viewing, status, and the page event stream.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/truckfixgo/offline-agent/internal/connectivity"
	"github.com/truckfixgo/offline-agent/internal/lifecycle"
	"github.com/truckfixgo/offline-agent/internal/notification"
	"github.com/truckfixgo/offline-agent/internal/retryqueue"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the control-surface handlers.
type Server struct {
	lifecycle *lifecycle.Controller
	notifs    *notification.Controller
	hub       *notification.Hub
	replayer  *retryqueue.Replayer
	queues    []*retryqueue.Queue
	watcher   *connectivity.Watcher
	critical  []string
	logger    *slog.Logger
}

// New creates a new API Server backed by the provided controllers.
func New(
	lc *lifecycle.Controller,
	notifs *notification.Controller,
	hub *notification.Hub,
	replayer *retryqueue.Replayer,
	queues []*retryqueue.Queue,
	watcher *connectivity.Watcher,
	criticalPages []string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		lifecycle: lc,
		notifs:    notifs,
		hub:       hub,
		replayer:  replayer,
		queues:    queues,
		watcher:   watcher,
		critical:  criticalPages,
		logger:    logger,
	}
}

// Mount registers all control routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/message", s.handleMessage)
	r.Post("/push", s.handlePush)
	r.Post("/notifications/{id}/click", s.handleClick)
	r.Get("/notifications", s.handleListNotifications)
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	b, _ := json.Marshal(data)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(b))
	if flusher != nil {
		flusher.Flush()
	}
}
