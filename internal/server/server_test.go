package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckfixgo/offline-agent/internal/api"
	"github.com/truckfixgo/offline-agent/internal/connectivity"
	"github.com/truckfixgo/offline-agent/internal/eventbus"
	"github.com/truckfixgo/offline-agent/internal/lifecycle"
	"github.com/truckfixgo/offline-agent/internal/notification"
	"github.com/truckfixgo/offline-agent/internal/retryqueue"
	"github.com/truckfixgo/offline-agent/internal/server"
	"github.com/truckfixgo/offline-agent/internal/storage"
	"github.com/truckfixgo/offline-agent/internal/strategy"
)

// newTestServer wires a full agent front against the given upstream and
// returns its handler plus the chat write queue. The upstream can be torn
// down mid-test to simulate going offline.
func newTestServer(t *testing.T, upstream *httptest.Server) (http.Handler, *retryqueue.Queue) {
	t.Helper()

	db, _, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.Default()
	cache := storage.NewSQLiteCacheStore(db)
	queueStore := storage.NewSQLiteQueueStore(db)
	notifStore := storage.NewSQLiteNotificationStore(db)

	bus := eventbus.New(1, logger)
	t.Cleanup(bus.Close)

	jobQueue := retryqueue.NewQueue(retryqueue.QueueJobUpdates, retryqueue.TriggerJobUpdates, queueStore, logger, nil)
	chatQueue := retryqueue.NewQueue(retryqueue.QueueChatMessages, retryqueue.TriggerChatMessages, queueStore, logger, nil)
	queues := []*retryqueue.Queue{jobQueue, chatQueue}

	fetch := strategy.NewFetcher(2 * time.Second)
	router := strategy.NewRouter(strategy.Config{
		APIPatterns:      []string{"/api/jobs", "/api/messages"},
		StaticExtensions: []string{".js", ".css", ".png"},
		StaticArea:       "static-v2.0.0",
		DynamicArea:      "dynamic-v1.0.0",
		OfflineURL:       upstream.URL + "/offline.html",
		WriteQueues: []strategy.QueueBinding{
			{PathPrefix: "/api/messages", Queue: chatQueue},
			{PathPrefix: "/api/", Queue: jobQueue},
		},
	}, cache, fetch, logger, nil)

	lc := lifecycle.New(lifecycle.Config{
		UpstreamBase:  upstream.URL,
		PrecachePaths: []string{"/offline.html"},
		StaticArea:    "static-v2.0.0",
		DynamicArea:   "dynamic-v1.0.0",
	}, cache, fetch, bus, logger)
	require.NoError(t, lc.Install(context.Background()))

	replayer := retryqueue.NewReplayer(queues, queueStore, fetch, logger, nil)
	watcher := connectivity.New(connectivity.Config{ProbeURL: upstream.URL, Interval: time.Hour}, nil, bus, logger)

	hub := notification.NewHub(logger)
	telemetry := notification.NewTelemetry(upstream.URL, fetch, jobQueue, logger, nil)
	notifs := notification.NewController(notification.NewHubNotifier(hub), notifStore, telemetry, notification.Routes{}, hub, logger, nil)

	apiSrv := api.New(lc, notifs, hub, replayer, queues, watcher, nil, logger)
	srv, err := server.New(apiSrv, router, upstream.URL, 0, []string{"*"}, nil, logger)
	require.NoError(t, err)
	return srv.Handler(), chatQueue
}

func TestHealthz(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("up"))
	}))
	defer upstream.Close()

	h, _ := newTestServer(t, upstream)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestInterceptProxiesLiveTraffic(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-Upstream", "yes")
		_, _ = w.Write([]byte("live " + r.URL.Path + "?" + r.URL.RawQuery))
	}))
	defer upstream.Close()

	h, _ := newTestServer(t, upstream)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs?status=open", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.Equal(t, "live /api/jobs?status=open", w.Body.String())
	assert.Positive(t, calls.Load())
}

func TestInterceptServesCacheWhenUpstreamDies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("snapshot " + r.URL.Path))
	}))
	h, _ := newTestServer(t, upstream)

	// Warm the dynamic area while upstream is up.
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	upstream.Close()

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "snapshot /api/jobs", w.Body.String())
}

func TestInterceptSynthesizesNetworkError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("up"))
	}))
	h, _ := newTestServer(t, upstream)
	upstream.Close()

	// Never cached, upstream gone: the page gets the synthetic response,
	// not a transport failure.
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/never-seen", nil))
	require.Equal(t, http.StatusRequestTimeout, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "Network error", string(body))
}

func TestInterceptQueuesFailedWrite(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("up"))
	}))
	h, chatQueue := newTestServer(t, upstream)
	upstream.Close()

	// The page still sees the synthetic response, but the write must
	// survive in the chat queue instead of being dropped.
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{"jobId":"J1","text":"eta?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestTimeout, w.Code)

	depth, err := chatQueue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestControlSurfaceMounted(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("up"))
	}))
	defer upstream.Close()

	h, _ := newTestServer(t, upstream)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agent/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"waiting"`)
}
