// Package strategy implements the agent's request path: every intercepted
// fetch is classified by URL pattern and resource type, then served by one of
// three cache strategies (cache-first, network-first, stale-while-revalidate)
// over the durable cache areas. Classification is exhaustive: every request
// reaches exactly one strategy, and a strategy never lets a network failure
// escape to the page.
package strategy

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/truckfixgo/offline-agent/internal/observability"
	"github.com/truckfixgo/offline-agent/internal/storage"
)

// Class identifies which handling a request receives.
type Class int

const (
	// ClassPassthrough is non-http(s) traffic fetched without caching.
	ClassPassthrough Class = iota
	// ClassAPI is an API data request, served network-first.
	ClassAPI
	// ClassImage is an image, served stale-while-revalidate.
	ClassImage
	// ClassStatic is a static asset, served cache-first.
	ClassStatic
	// ClassNavigation is a top-level document load with offline fallback.
	ClassNavigation
	// ClassDefault is everything else, served network-first.
	ClassDefault
)

// String returns the class name used in logs and metrics.
func (c Class) String() string {
	switch c {
	case ClassPassthrough:
		return "passthrough"
	case ClassAPI:
		return "api"
	case ClassImage:
		return "image"
	case ClassStatic:
		return "static"
	case ClassNavigation:
		return "navigation"
	default:
		return "default"
	}
}

// Request is an intercepted page request rebuilt against the upstream origin.
type Request struct {
	Method string
	URL    string // absolute target URL
	Header http.Header
	Body   []byte
}

// Key returns the cache identity of the request.
func (r Request) Key() storage.RequestKey {
	return storage.RequestKey{Method: r.Method, URL: r.URL}
}

// WriteQueue persists a failed mutating request for later replay.
type WriteQueue interface {
	Enqueue(ctx context.Context, method, url string, headers map[string]string, body []byte) error
}

// QueueBinding routes failed writes whose path matches a prefix into a queue.
// Bindings are checked in order and the first match wins.
type QueueBinding struct {
	PathPrefix string
	Queue      WriteQueue
}

// Config enumerates the router's recognized options. Everything that was a
// worker-global constant in earlier designs lives here instead.
type Config struct {
	// APIPatterns are URL path prefixes served network-first.
	APIPatterns []string
	// StaticExtensions are file extensions served cache-first.
	StaticExtensions []string
	// StaticArea and DynamicArea are the published cache area names.
	StaticArea  string
	DynamicArea string
	// OfflineURL is the absolute URL of the offline fallback document. It
	// must be part of the install precache set.
	OfflineURL string
	// WriteQueues capture mutating requests that fail on the network so
	// they survive for replay instead of being dropped with the 408.
	WriteQueues []QueueBinding
}

// Router classifies intercepted requests and dispatches them to a strategy.
type Router struct {
	cfg     Config
	cache   storage.CacheStore
	fetch   *Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics

	revalidations sync.WaitGroup
}

// NewRouter returns a Router serving requests from cache and fetch.
func NewRouter(cfg Config, cache storage.CacheStore, fetch *Fetcher, logger *slog.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{cfg: cfg, cache: cache, fetch: fetch, logger: logger, metrics: metrics}
}

// Classify determines the handling for a request, in priority order:
// non-http(s) passthrough, API patterns, images, static assets, navigations,
// then the network-first default.
func (rt *Router) Classify(req Request) Class {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ClassPassthrough
	}

	for _, p := range rt.cfg.APIPatterns {
		if strings.HasPrefix(u.Path, p) {
			return ClassAPI
		}
	}

	if isImage(req.Header, u.Path) {
		return ClassImage
	}

	ext := strings.ToLower(path.Ext(u.Path))
	for _, e := range rt.cfg.StaticExtensions {
		if ext == e {
			return ClassStatic
		}
	}

	if isNavigation(req.Method, req.Header) {
		return ClassNavigation
	}

	return ClassDefault
}

// isImage reports whether the request declares an image resource type.
func isImage(h http.Header, urlPath string) bool {
	if h.Get("Sec-Fetch-Dest") == "image" {
		return true
	}
	accept := h.Get("Accept")
	if strings.HasPrefix(accept, "image/") {
		return true
	}
	switch strings.ToLower(path.Ext(urlPath)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif":
		return accept == "" || strings.Contains(accept, "image/")
	}
	return false
}

// isNavigation reports whether the request is a top-level document load.
func isNavigation(method string, h http.Header) bool {
	if method != http.MethodGet {
		return false
	}
	if h.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(h.Get("Accept"), "text/html")
}

// Handle serves an intercepted request. It always returns a response: a live
// one, a cached one, the offline document, or the synthetic 408.
func (rt *Router) Handle(ctx context.Context, req Request) *storage.StoredResponse {
	class := rt.Classify(req)

	var resp *storage.StoredResponse
	switch class {
	case ClassPassthrough:
		resp = rt.passthrough(ctx, req)
	case ClassStatic:
		resp = rt.cacheFirst(ctx, req)
	case ClassImage:
		resp = rt.staleWhileRevalidate(ctx, req)
	case ClassNavigation:
		resp = rt.networkFirst(ctx, req, true)
	default:
		resp = rt.networkFirst(ctx, req, false)
	}

	rt.metrics.RecordFetch(ctx, class.String(), outcome(resp))
	return resp
}

// Wait blocks until all in-flight background revalidations settle. The
// server joins on this during shutdown so tracked work is never torn down
// mid-write.
func (rt *Router) Wait() {
	rt.revalidations.Wait()
}

// queueFailedWrite stores a failed mutating request in the first bound
// queue whose path prefix matches. It reports whether the request was
// captured; an unmatched path or a storage failure leaves only the 408.
func (rt *Router) queueFailedWrite(ctx context.Context, req Request) bool {
	u, err := url.Parse(req.URL)
	if err != nil {
		return false
	}
	for _, b := range rt.cfg.WriteQueues {
		if !strings.HasPrefix(u.Path, b.PathPrefix) {
			continue
		}
		headers := make(map[string]string, len(req.Header))
		for k := range req.Header {
			headers[k] = req.Header.Get(k)
		}
		if qErr := b.Queue.Enqueue(ctx, req.Method, req.URL, headers, req.Body); qErr != nil {
			rt.logger.Error("queueing failed write failed", "url", req.URL, "error", qErr)
			return false
		}
		return true
	}
	return false
}

// isMutating reports whether a method changes upstream state.
func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// passthrough fetches without touching any cache area.
func (rt *Router) passthrough(ctx context.Context, req Request) *storage.StoredResponse {
	resp, err := rt.fetch.Do(ctx, req.Method, req.URL, req.Header, req.Body)
	if err != nil {
		rt.logger.Debug("passthrough fetch failed", "url", req.URL, "error", err)
		return networkErrorResponse()
	}
	return resp
}

// networkErrorResponse is the synthetic 408 returned when nothing else can
// serve the request. It is the only failure the page ever sees.
func networkErrorResponse() *storage.StoredResponse {
	return &storage.StoredResponse{
		Status:   http.StatusRequestTimeout,
		Headers:  map[string][]string{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:     []byte("Network error"),
		StoredAt: time.Now().UTC(),
	}
}

// outcome labels a response for metrics.
func outcome(resp *storage.StoredResponse) string {
	if resp == nil {
		return "none"
	}
	if resp.Status == http.StatusRequestTimeout {
		return "network_error"
	}
	return "served"
}
