// Package connectivity watches the upstream origin and emits the
// connectivity-restored signal the replay subsystem waits on. The device has
// no reliable "online" bit, so the watcher probes the upstream health path on
// a fixed schedule and treats the first success after a failure as restored
// connectivity.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Event types published on the bus.
const (
	// EventOnline fires once per offline→online transition, immediately
	// before the per-queue triggers.
	EventOnline = "connectivity.online"
	// EventOffline fires once per online→offline transition.
	EventOffline = "connectivity.offline"
)

// EventPublisher decouples the watcher from the concrete bus.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// Config holds the watcher's probe parameters and the triggers it fires on
// restoration.
type Config struct {
	// ProbeURL is the upstream URL probed on each tick.
	ProbeURL string
	// Interval is the probe cadence.
	Interval time.Duration
	// Triggers are the replay trigger names published when connectivity
	// comes back; one event per trigger.
	Triggers []string
}

// Watcher probes upstream on a schedule and publishes transitions.
type Watcher struct {
	cfg    Config
	client *http.Client
	bus    EventPublisher
	logger *slog.Logger
	sched  gocron.Scheduler

	// online starts false so the first successful probe after startup
	// publishes the triggers: anything queued while the agent was down is
	// replayed as soon as upstream is reachable.
	online atomic.Bool
}

// New returns an unstarted Watcher.
func New(cfg Config, client *http.Client, bus EventPublisher, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Watcher{cfg: cfg, client: client, bus: bus, logger: logger}
}

// Start schedules the probe loop.
func (w *Watcher) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating probe scheduler: %w", err)
	}
	w.sched = sched

	if _, err := sched.NewJob(
		gocron.DurationJob(w.cfg.Interval),
		gocron.NewTask(w.Probe),
	); err != nil {
		return fmt.Errorf("scheduling connectivity probe: %w", err)
	}

	sched.Start()
	w.logger.Info("connectivity watcher started", "probe", w.cfg.ProbeURL, "interval", w.cfg.Interval)
	return nil
}

// Stop shuts the probe scheduler down.
func (w *Watcher) Stop() error {
	if w.sched == nil {
		return nil
	}
	if err := w.sched.Shutdown(); err != nil {
		return fmt.Errorf("stopping probe scheduler: %w", err)
	}
	return nil
}

// Online reports the last observed connectivity state.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// Probe performs one probe and publishes any state transition. Exported so
// the serve loop can force an immediate check at startup.
func (w *Watcher) Probe() {
	ctx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.cfg.ProbeURL, nil)
	if err != nil {
		w.logger.Error("building probe request failed", "error", err)
		return
	}

	resp, err := w.client.Do(req)
	reachable := err == nil && resp.StatusCode < 500
	if resp != nil {
		_ = resp.Body.Close()
	}

	was := w.online.Swap(reachable)
	switch {
	case reachable && !was:
		w.logger.Info("connectivity restored", "probe", w.cfg.ProbeURL)
		w.bus.Publish(EventOnline, map[string]string{"probe": w.cfg.ProbeURL})
		for _, trigger := range w.cfg.Triggers {
			w.bus.Publish(trigger, nil)
		}
	case !reachable && was:
		w.logger.Warn("connectivity lost", "probe", w.cfg.ProbeURL, "error", errString(err))
		w.bus.Publish(EventOffline, map[string]string{"probe": w.cfg.ProbeURL})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
