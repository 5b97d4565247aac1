package lifecycle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckfixgo/offline-agent/internal/lifecycle"
	"github.com/truckfixgo/offline-agent/internal/storage"
	"github.com/truckfixgo/offline-agent/internal/strategy"
)

type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) Publish(eventType string, _ map[string]string) {
	b.mu.Lock()
	b.events = append(b.events, eventType)
	b.mu.Unlock()
}

func (b *recordingBus) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func newCacheStore(t *testing.T) storage.CacheStore {
	t.Helper()
	db, _, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewSQLiteCacheStore(db)
}

func TestInstallPrecachesAllCriticalPaths(t *testing.T) {
	cache := newCacheStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content of " + r.URL.Path))
	}))
	defer srv.Close()

	ctrl := lifecycle.New(lifecycle.Config{
		UpstreamBase:  srv.URL,
		PrecachePaths: []string{"/", "/offline.html", "/manifest.json"},
		StaticArea:    "static-v1.0.0",
		DynamicArea:   "dynamic-v1.0.0",
	}, cache, strategy.NewFetcher(2*time.Second), nil, nil)

	ctx := context.Background()
	require.NoError(t, ctrl.Install(ctx))
	assert.Equal(t, lifecycle.StateWaiting, ctrl.State())
	assert.NoError(t, ctrl.InstallError())

	n, err := cache.CountArea(ctx, "static-v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := cache.Get(ctx, "static-v1.0.0", storage.RequestKey{Method: "GET", URL: srv.URL + "/offline.html"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "content of /offline.html", string(got.Body))
}

func TestInstallFailureKeepsInstanceWaiting(t *testing.T) {
	cache := newCacheStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctrl := lifecycle.New(lifecycle.Config{
		UpstreamBase:  srv.URL,
		PrecachePaths: []string{"/", "/manifest.json", "/offline.html"},
		StaticArea:    "static-v1.0.0",
		DynamicArea:   "dynamic-v1.0.0",
	}, cache, strategy.NewFetcher(2*time.Second), nil, nil)

	ctx := context.Background()
	require.Error(t, ctrl.Install(ctx))
	assert.Equal(t, lifecycle.StateWaiting, ctrl.State())
	assert.Error(t, ctrl.InstallError())

	// A broken static set can never be promoted to active.
	require.Error(t, ctrl.SkipWaiting(ctx))
	assert.Equal(t, lifecycle.StateWaiting, ctrl.State())
}

func TestActivateEvictsOnlyUnpublishedAreas(t *testing.T) {
	cache := newCacheStore(t)
	ctx := context.Background()

	seed := func(area string) {
		require.NoError(t, cache.Put(ctx, area, storage.RequestKey{Method: "GET", URL: "https://x/" + area}, storage.StoredResponse{
			Status: 200, Body: []byte("x"), StoredAt: time.Now().UTC(),
		}))
	}
	seed("static-v1")
	seed("dynamic-v1")

	bus := &recordingBus{}
	ctrl := lifecycle.New(lifecycle.Config{
		StaticArea:  "static-v2",
		DynamicArea: "dynamic-v1",
	}, cache, strategy.NewFetcher(time.Second), bus, nil)

	require.NoError(t, ctrl.Activate(ctx))
	assert.Equal(t, lifecycle.StateActive, ctrl.State())

	areas, err := cache.ListAreas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dynamic-v1"}, areas)

	assert.Contains(t, bus.all(), lifecycle.EventActivated)
}

func TestSkipWaitingOnlyFromWaiting(t *testing.T) {
	cache := newCacheStore(t)
	ctrl := lifecycle.New(lifecycle.Config{
		StaticArea:  "static-v1",
		DynamicArea: "dynamic-v1",
	}, cache, strategy.NewFetcher(time.Second), nil, nil)

	// Still installing: skip-waiting is rejected.
	require.Error(t, ctrl.SkipWaiting(context.Background()))
}

func TestPrecacheCriticalIsBestEffort(t *testing.T) {
	cache := newCacheStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jobs" {
			w.WriteHeader(http.StatusInternalServerError)
		}
		_, _ = w.Write([]byte("page"))
	}))
	defer srv.Close()

	ctrl := lifecycle.New(lifecycle.Config{
		UpstreamBase: srv.URL,
		StaticArea:   "static-v1",
		DynamicArea:  "dynamic-v1",
	}, cache, strategy.NewFetcher(2*time.Second), nil, nil)

	ctx := context.Background()
	cached := ctrl.PrecacheCritical(ctx, []string{"/dashboard", "/jobs", "/messages"})

	// The 500 page is skipped, not stored; the rest still land.
	assert.Equal(t, 2, cached)

	n, err := cache.CountArea(ctx, "dynamic-v1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A dead upstream skips everything without failing the operation.
	srv.Close()
	cached = ctrl.PrecacheCritical(ctx, []string{"/later"})
	assert.Equal(t, 0, cached)
}

func TestPrecacheURLsWritesDynamicArea(t *testing.T) {
	cache := newCacheStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bulk"))
	}))
	defer srv.Close()

	ctrl := lifecycle.New(lifecycle.Config{
		UpstreamBase: srv.URL,
		StaticArea:   "static-v1",
		DynamicArea:  "dynamic-v1",
	}, cache, strategy.NewFetcher(2*time.Second), nil, nil)

	ctx := context.Background()
	cached := ctrl.PrecacheURLs(ctx, []string{srv.URL + "/a", srv.URL + "/b"})
	assert.Equal(t, 2, cached)

	n, err := cache.CountArea(ctx, "dynamic-v1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrecacheURLsResolvesRelativePaths(t *testing.T) {
	cache := newCacheStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bulk"))
	}))
	defer srv.Close()

	ctrl := lifecycle.New(lifecycle.Config{
		UpstreamBase: srv.URL,
		StaticArea:   "static-v1",
		DynamicArea:  "dynamic-v1",
	}, cache, strategy.NewFetcher(2*time.Second), nil, nil)

	// Pages send what they pass to cache-urls verbatim, usually a path
	// relative to their own origin.
	ctx := context.Background()
	cached := ctrl.PrecacheURLs(ctx, []string{"/jobs/J1", "contractors/C7"})
	assert.Equal(t, 2, cached)

	// The entry is stored under the resolved upstream URL so the request
	// path finds it later.
	got, err := cache.Get(ctx, "dynamic-v1", storage.RequestKey{Method: "GET", URL: srv.URL + "/jobs/J1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bulk", string(got.Body))
}
