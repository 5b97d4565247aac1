package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truckfixgo/offline-agent/internal/observability"
	"github.com/truckfixgo/offline-agent/internal/storage"
)

// Defaults applied when a push payload omits display fields.
const (
	DefaultTitle = "TruckFixGo Update"
	DefaultBody  = "You have a new update from TruckFixGo."
	DefaultIcon  = "/icons/icon-192.png"
)

// Notifier requests the platform display a notification.
type Notifier interface {
	Display(ctx context.Context, rec storage.NotificationRecord) error
}

// Controller owns the push-notification lifecycle: receipt, display,
// persistence, telemetry, and click routing.
type Controller struct {
	notifier  Notifier
	store     storage.NotificationStore
	telemetry *Telemetry
	routes    Routes
	hub       *Hub
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewController wires the notification controller.
func NewController(notifier Notifier, store storage.NotificationStore, telemetry *Telemetry, routes Routes, hub *Hub, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		notifier:  notifier,
		store:     store,
		telemetry: telemetry,
		routes:    routes,
		hub:       hub,
		logger:    logger,
		metrics:   metrics,
	}
}

// HandlePush processes one inbound push payload: parse (degrading, never
// dropping), apply defaults, then concurrently display it, persist a copy
// for offline viewing, and fire the delivered ping. The three proceed
// independently; only a display failure is reported, and the handler joins
// all three before returning so none is torn down mid-flight.
func (c *Controller) HandlePush(ctx context.Context, raw []byte) (storage.NotificationRecord, error) {
	payload, parsed := ParsePush(raw)
	if !parsed {
		c.logger.Warn("malformed push payload, degrading to plaintext", "bytes", len(raw))
	}
	rec := c.buildRecord(payload)

	var wg sync.WaitGroup
	var displayErr error

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := c.notifier.Display(ctx, rec); err != nil {
			displayErr = fmt.Errorf("displaying notification %q: %w", rec.CorrelationID, err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.store.Save(ctx, rec); err != nil {
			c.logger.Error("persisting notification failed", "id", rec.CorrelationID, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		c.telemetry.Delivered(ctx, rec.CorrelationID)
	}()
	wg.Wait()

	c.metrics.RecordNotification(ctx, "displayed")
	c.logger.Info("push handled", "id", rec.CorrelationID, "title", rec.Title, "category", rec.Category)
	return rec, displayErr
}

// buildRecord applies display defaults and picks the correlation id: the
// payload's notificationId, then its tag, then a generated id.
func (c *Controller) buildRecord(payload PushPayload) storage.NotificationRecord {
	if payload.Title == "" {
		payload.Title = DefaultTitle
	}
	if payload.Body == "" {
		payload.Body = DefaultBody
	}
	if payload.Icon == "" {
		payload.Icon = DefaultIcon
	}
	if payload.Data.Type == "" {
		payload.Data.Type = string(CategoryGeneral)
	}

	correlationID := payload.Data.NotificationID
	if correlationID == "" {
		correlationID = payload.Tag
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		// Payload came from json.Unmarshal or is a plain string; this
		// cannot realistically fail, but never drop the notification.
		c.logger.Error("encoding notification payload failed", "id", correlationID, "error", err)
		encoded = []byte(`{}`)
	}

	return storage.NotificationRecord{
		CorrelationID: correlationID,
		Title:         payload.Title,
		Body:          payload.Body,
		Icon:          payload.Icon,
		Badge:         payload.Badge,
		Category:      string(ParseCategory(payload.Data.Type)),
		Payload:       encoded,
		ReceivedAt:    time.Now().UTC(),
	}
}

// HandleClick routes a click on a displayed notification. The clicked ping
// fires regardless of the navigation outcome. The decision prefers focusing
// an already-open page over opening a duplicate window; tel: destinations
// bypass window matching entirely.
func (c *Controller) HandleClick(ctx context.Context, correlationID, action string) (Decision, error) {
	c.telemetry.Clicked(ctx, correlationID)
	c.metrics.RecordNotification(ctx, "clicked")

	var data DataBag
	rec, err := c.store.Get(ctx, correlationID)
	if err != nil {
		return Decision{}, fmt.Errorf("loading notification %q: %w", correlationID, err)
	}
	if rec != nil {
		var payload PushPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			c.logger.Warn("stored notification payload unreadable", "id", correlationID, "error", err)
		}
		data = payload.Data
	} else {
		c.logger.Warn("click on unknown notification", "id", correlationID, "action", action)
	}

	decision := c.routes.Resolve(action, data)

	if decision.Kind == DecisionOpen && c.hub.ClientCount() > 0 {
		// An application page is already open: focus it and navigate in
		// place instead of opening a duplicate window.
		c.hub.Broadcast(PageEventNavigate, map[string]string{"destination": decision.Destination})
		decision.Kind = DecisionFocus
	}

	c.logger.Info("click routed", "id", correlationID, "action", action,
		"kind", string(decision.Kind), "destination", decision.Destination)
	return decision, nil
}

// List returns the most recently persisted notifications for offline viewing.
func (c *Controller) List(ctx context.Context, limit int) ([]storage.NotificationRecord, error) {
	return c.store.List(ctx, limit)
}
