package retryqueue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/truckfixgo/offline-agent/internal/eventbus"
	"github.com/truckfixgo/offline-agent/internal/observability"
	"github.com/truckfixgo/offline-agent/internal/storage"
	"github.com/truckfixgo/offline-agent/internal/strategy"
)

// Replayer drains retry queues when their triggers fire. Entries are
// replayed independently: one failing entry never blocks the rest, there is
// no defined order, and a failed entry simply waits for the next trigger.
type Replayer struct {
	queues  map[string]*Queue // trigger name → queue
	store   storage.QueueStore
	fetch   *strategy.Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics
	sched   gocron.Scheduler
}

// NewReplayer returns a Replayer for the given queues.
func NewReplayer(queues []*Queue, store storage.QueueStore, fetch *strategy.Fetcher, logger *slog.Logger, metrics *observability.Metrics) *Replayer {
	if logger == nil {
		logger = slog.Default()
	}
	byTrigger := make(map[string]*Queue, len(queues))
	for _, q := range queues {
		byTrigger[q.Trigger] = q
	}
	return &Replayer{queues: byTrigger, store: store, fetch: fetch, logger: logger, metrics: metrics}
}

// Subscribe registers the replayer on the bus: every event whose type names
// a known trigger drains that trigger's queue.
func (r *Replayer) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(func(e eventbus.Event) {
		q, ok := r.queues[e.Type]
		if !ok {
			return
		}
		r.Replay(context.Background(), q)
	})
}

// ReplayAll drains every registered queue. Used by the explicit flush
// command and the periodic sweep.
func (r *Replayer) ReplayAll(ctx context.Context) {
	for _, q := range r.queues {
		r.Replay(ctx, q)
	}
}

// StartSweep schedules a periodic drain of every queue. The sweep is a
// safety net for entries that outlive their trigger, for example when the
// agent was killed between the trigger firing and the queue draining.
func (r *Replayer) StartSweep(interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating sweep scheduler: %w", err)
	}
	r.sched = sched

	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { r.ReplayAll(context.Background()) }),
	); err != nil {
		return fmt.Errorf("scheduling replay sweep: %w", err)
	}

	sched.Start()
	r.logger.Info("replay sweep started", "interval", interval)
	return nil
}

// StopSweep shuts the sweep scheduler down.
func (r *Replayer) StopSweep() error {
	if r.sched == nil {
		return nil
	}
	if err := r.sched.Shutdown(); err != nil {
		return fmt.Errorf("stopping sweep scheduler: %w", err)
	}
	return nil
}

// Replay re-issues every entry currently in the queue. An entry is removed
// only on a confirmed (2xx/3xx) response; anything else leaves it in place
// for the next trigger. An entry already removed by a concurrent pass is a
// no-op.
func (r *Replayer) Replay(ctx context.Context, q *Queue) {
	entries, err := r.store.List(ctx, q.Name)
	if err != nil {
		r.logger.Error("listing queue for replay failed", "queue", q.Name, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	r.logger.Info("replaying queue", "queue", q.Name, "entries", len(entries))

	for _, entry := range entries {
		r.replayEntry(ctx, q, entry)
	}
}

func (r *Replayer) replayEntry(ctx context.Context, q *Queue, entry storage.QueuedRequest) {
	header := make(http.Header, len(entry.Headers))
	for k, v := range entry.Headers {
		header.Set(k, v)
	}

	resp, err := r.fetch.Do(ctx, entry.Method, entry.URL, header, entry.Body)
	if err != nil {
		r.metrics.RecordReplay(ctx, q.Name, "network_error")
		r.logger.Warn("replay failed, entry retained", "queue", q.Name, "id", entry.ID, "error", err)
		return
	}
	if !strategy.Delivered(resp.Status) {
		r.metrics.RecordReplay(ctx, q.Name, "rejected")
		r.logger.Warn("replay rejected, entry retained", "queue", q.Name, "id", entry.ID, "status", resp.Status)
		return
	}

	if err := r.store.Remove(ctx, entry.ID); err != nil {
		r.logger.Error("removing replayed entry failed", "queue", q.Name, "id", entry.ID, "error", err)
		return
	}
	r.metrics.RecordReplay(ctx, q.Name, "delivered")
	r.metrics.QueueDepthDelta(ctx, q.Name, -1)
	r.logger.Info("replayed queued request", "queue", q.Name, "id", entry.ID, "url", entry.URL)
}
