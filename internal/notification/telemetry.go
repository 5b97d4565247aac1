package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/truckfixgo/offline-agent/internal/observability"
	"github.com/truckfixgo/offline-agent/internal/retryqueue"
	"github.com/truckfixgo/offline-agent/internal/strategy"
)

// Telemetry fires delivery and click pings for notifications. Pings are
// fire-and-forget: a failed ping is demoted into the telemetry retry queue
// and never blocks the user-facing action it annotates.
type Telemetry struct {
	base    string
	fetch   *strategy.Fetcher
	queue   *retryqueue.Queue
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTelemetry returns a Telemetry posting to the given upstream base URL.
func NewTelemetry(base string, fetch *strategy.Fetcher, queue *retryqueue.Queue, logger *slog.Logger, metrics *observability.Metrics) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telemetry{base: base, fetch: fetch, queue: queue, logger: logger, metrics: metrics}
}

// Delivered records that the notification with the given correlation id was
// displayed.
func (t *Telemetry) Delivered(ctx context.Context, correlationID string) {
	t.send(ctx, "delivered", correlationID)
}

// Clicked records that the notification with the given correlation id was
// clicked.
func (t *Telemetry) Clicked(ctx context.Context, correlationID string) {
	t.send(ctx, "clicked", correlationID)
}

func (t *Telemetry) send(ctx context.Context, kind, correlationID string) {
	url := fmt.Sprintf("%s/api/push/%s/%s", t.base, kind, correlationID)

	resp, err := t.fetch.Do(ctx, http.MethodPost, url, http.Header{}, nil)
	if err == nil && strategy.Delivered(resp.Status) {
		t.metrics.RecordNotification(ctx, "telemetry_"+kind)
		return
	}
	if err != nil {
		t.logger.Warn("telemetry ping failed, queueing", "kind", kind, "id", correlationID, "error", err)
	} else {
		t.logger.Warn("telemetry ping rejected, queueing", "kind", kind, "id", correlationID, "status", resp.Status)
	}

	if qErr := t.queue.Enqueue(ctx, http.MethodPost, url, nil, nil); qErr != nil {
		t.logger.Error("queueing telemetry ping failed", "kind", kind, "id", correlationID, "error", qErr)
	}
}
