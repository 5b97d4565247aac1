// Package lifecycle drives the agent instance through its states:
// installing → waiting → activating → active. Install precaches the critical
// static set all-or-nothing; activation sheds cache areas left behind by
// previous versions and claims connected pages.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/truckfixgo/offline-agent/internal/storage"
	"github.com/truckfixgo/offline-agent/internal/strategy"
)

// State is the lifecycle state of this agent instance.
type State string

const (
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActivating State = "activating"
	StateActive     State = "active"
)

// Event types published on the bus during lifecycle transitions.
const (
	// EventActivated is broadcast once activation completes; connected pages
	// re-attach to this instance without a reload.
	EventActivated = "lifecycle.activated"
)

// EventPublisher lets the controller announce transitions without depending
// on a concrete bus implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// Config holds the controller's published names and the install manifest.
type Config struct {
	// UpstreamBase is the origin precache paths are resolved against.
	UpstreamBase string
	// PrecachePaths is the fixed critical static set. Install fails unless
	// every one of them is cached.
	PrecachePaths []string
	// StaticArea and DynamicArea are the published cache area names; every
	// other area is evicted during activation.
	StaticArea  string
	DynamicArea string
}

// Controller owns the instance state machine.
type Controller struct {
	cfg    Config
	cache  storage.CacheStore
	fetch  *strategy.Fetcher
	bus    EventPublisher
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	installErr error
}

// New returns a Controller in the installing state.
func New(cfg Config, cache storage.CacheStore, fetch *strategy.Fetcher, bus EventPublisher, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		cache:  cache,
		fetch:  fetch,
		bus:    bus,
		logger: logger,
		state:  StateInstalling,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InstallError returns the error that kept the last install from completing,
// or nil.
func (c *Controller) InstallError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installErr
}

// Install precaches every critical static path. Any failure aborts the whole
// operation and the instance stays in waiting with the error recorded: a
// partially cached static set is worse than falling back to network.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)

	for _, p := range c.cfg.PrecachePaths {
		if err := c.precache(ctx, c.cfg.StaticArea, p); err != nil {
			c.mu.Lock()
			c.state = StateWaiting
			c.installErr = err
			c.mu.Unlock()
			c.logger.Error("install failed", "path", p, "error", err)
			return fmt.Errorf("installing %q: %w", p, err)
		}
	}

	c.mu.Lock()
	c.state = StateWaiting
	c.installErr = nil
	c.mu.Unlock()
	c.logger.Info("install complete", "precached", len(c.cfg.PrecachePaths), "area", c.cfg.StaticArea)
	return nil
}

// Activate evicts every cache area not in the published set, then claims
// connected pages by broadcasting the activation event. Eviction is
// best-effort: a failed deletion is logged and the rest proceed.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.installErr != nil {
		err := c.installErr
		c.mu.Unlock()
		return fmt.Errorf("install incomplete, refusing to activate: %w", err)
	}
	c.state = StateActivating
	c.mu.Unlock()

	published := map[string]bool{
		c.cfg.StaticArea:  true,
		c.cfg.DynamicArea: true,
	}

	areas, err := c.cache.ListAreas(ctx)
	if err != nil {
		return fmt.Errorf("listing cache areas: %w", err)
	}

	for _, area := range areas {
		if published[area] {
			continue
		}
		if err := c.cache.DeleteArea(ctx, area); err != nil {
			c.logger.Warn("evicting stale cache area failed", "area", area, "error", err)
			continue
		}
		c.logger.Info("evicted stale cache area", "area", area)
	}

	c.setState(StateActive)
	if c.bus != nil {
		c.bus.Publish(EventActivated, map[string]string{
			"static":  c.cfg.StaticArea,
			"dynamic": c.cfg.DynamicArea,
		})
	}
	c.logger.Info("instance active", "static", c.cfg.StaticArea, "dynamic", c.cfg.DynamicArea)
	return nil
}

// SkipWaiting forces a waiting instance to activate immediately.
func (c *Controller) SkipWaiting(ctx context.Context) error {
	if s := c.State(); s != StateWaiting {
		return fmt.Errorf("skip-waiting in state %q", s)
	}
	return c.Activate(ctx)
}

// PrecacheURLs writes the given URLs into the dynamic area on behalf of the
// page. Entries may be absolute or relative to the upstream origin.
// Best-effort: failures are logged and skipped, and the number of
// successfully cached URLs is returned.
func (c *Controller) PrecacheURLs(ctx context.Context, urls []string) int {
	cached := 0
	for _, u := range urls {
		if err := c.precacheURL(ctx, c.cfg.DynamicArea, u); err != nil {
			c.logger.Warn("precache url skipped", "url", u, "error", err)
			continue
		}
		cached++
	}
	return cached
}

// PrecacheCritical writes the given upstream paths into the dynamic area.
// Unlike install-time precaching a failed page is skipped, not fatal.
func (c *Controller) PrecacheCritical(ctx context.Context, paths []string) int {
	cached := 0
	for _, p := range paths {
		if err := c.precache(ctx, c.cfg.DynamicArea, p); err != nil {
			c.logger.Warn("critical page skipped", "path", p, "error", err)
			continue
		}
		cached++
	}
	return cached
}

// precache fetches one upstream path and stores it in the given area. An
// error status is never cached: an error page stored as a critical asset
// would be served offline forever.
func (c *Controller) precache(ctx context.Context, area, path string) error {
	target := strings.TrimRight(c.cfg.UpstreamBase, "/") + path
	return c.store(ctx, area, target)
}

// precacheURL accepts what the page sent: an absolute URL is stored as-is,
// a page-relative path is resolved against the upstream origin first.
func (c *Controller) precacheURL(ctx context.Context, area, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parsing precache url %q: %w", target, err)
	}
	if !u.IsAbs() {
		target = strings.TrimRight(c.cfg.UpstreamBase, "/") + "/" + strings.TrimLeft(target, "/")
	}
	return c.store(ctx, area, target)
}

func (c *Controller) store(ctx context.Context, area, target string) error {
	resp, err := c.fetch.Do(ctx, http.MethodGet, target, http.Header{}, nil)
	if err != nil {
		return err
	}
	if resp.Status >= 400 {
		return fmt.Errorf("unexpected status %d", resp.Status)
	}
	key := storage.RequestKey{Method: http.MethodGet, URL: target}
	if err := c.cache.Put(ctx, area, key, *resp); err != nil {
		return fmt.Errorf("storing %q: %w", target, err)
	}
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
