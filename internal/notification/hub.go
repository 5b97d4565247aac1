package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/truckfixgo/offline-agent/internal/storage"
)

// PageEvent is one message pushed to connected application pages over the
// event stream: displayed notifications, navigation instructions, and
// lifecycle claims.
type PageEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Page event types.
const (
	PageEventDisplay  = "notification.display"
	PageEventNavigate = "page.navigate"
	PageEventClaim    = "page.claim"
)

// Hub fans events out to connected pages. It is the agent's side of the
// asynchronous message channel to the application; there are no direct
// calls between the two.
type Hub struct {
	mu      sync.Mutex
	clients map[chan PageEvent]struct{}
	logger  *slog.Logger
}

// NewHub returns an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[chan PageEvent]struct{}), logger: logger}
}

// Subscribe registers a page connection. The returned cancel function must
// be called when the connection closes.
func (h *Hub) Subscribe() (<-chan PageEvent, func()) {
	ch := make(chan PageEvent, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast sends an event to every connected page. A page too slow to
// drain its buffer misses the event rather than blocking the rest.
func (h *Hub) Broadcast(eventType string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- PageEvent{Type: eventType, Data: data}:
		default:
			h.logger.Warn("page event dropped, client too slow", "event", eventType)
		}
	}
}

// ClientCount returns the number of connected pages.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HubNotifier displays notifications by pushing them to connected pages,
// which render them through the platform notification API. With no page
// connected the display is a no-op; the persisted copy still makes the
// notification visible later.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier returns a Notifier backed by hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Display broadcasts the notification to connected pages.
func (n *HubNotifier) Display(_ context.Context, rec storage.NotificationRecord) error {
	n.hub.Broadcast(PageEventDisplay, rec)
	return nil
}
