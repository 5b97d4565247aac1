// Package retryqueue provides durable per-concern queues of unconfirmed
// mutating requests and the replay routine that drains them once
// connectivity returns. One generic Queue type is instantiated per concern;
// the enqueue/replay algorithm is identical for all of them.
package retryqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/truckfixgo/offline-agent/internal/observability"
	"github.com/truckfixgo/offline-agent/internal/storage"
)

// Standard queue and trigger names. Each queue is replayed by its own
// trigger; all three share the same algorithm.
const (
	QueueJobUpdates   = "job-updates"
	QueueChatMessages = "chat-messages"
	QueueTelemetry    = "notification-telemetry"

	TriggerJobUpdates   = "sync.job-updates"
	TriggerChatMessages = "sync.chat-messages"
	TriggerTelemetry    = "sync.notification-telemetry"
)

// Queue is a durable queue of failed mutating requests awaiting replay,
// bound to the bus trigger that drains it.
type Queue struct {
	Name    string
	Trigger string

	store   storage.QueueStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewQueue binds a named queue to its trigger and backing store.
func NewQueue(name, trigger string, store storage.QueueStore, logger *slog.Logger, metrics *observability.Metrics) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{Name: name, Trigger: trigger, store: store, logger: logger, metrics: metrics}
}

// Enqueue persists a failed request for later replay. Presence in the queue
// means "not yet confirmed delivered".
func (q *Queue) Enqueue(ctx context.Context, method, url string, headers map[string]string, body []byte) error {
	_, err := q.store.Enqueue(ctx, storage.QueuedRequest{
		Queue:      q.Name,
		URL:        url,
		Method:     method,
		Headers:    headers,
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("enqueueing %s %s on %q: %w", method, url, q.Name, err)
	}
	q.metrics.QueueDepthDelta(ctx, q.Name, 1)
	q.logger.Info("request queued for replay", "queue", q.Name, "method", method, "url", url)
	return nil
}

// Depth returns the number of entries awaiting replay.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	return q.store.Count(ctx, q.Name)
}
