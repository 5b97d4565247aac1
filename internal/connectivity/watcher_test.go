package connectivity_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/truckfixgo/offline-agent/internal/connectivity"
	"github.com/truckfixgo/offline-agent/internal/retryqueue"
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

func TestProbePublishesTriggersOnRestore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := &recordingBus{}
	w := connectivity.New(connectivity.Config{
		ProbeURL: srv.URL + "/health",
		Interval: time.Hour, // ticks driven manually via Probe
		Triggers: []string{retryqueue.TriggerJobUpdates, retryqueue.TriggerChatMessages},
	}, &http.Client{Timeout: time.Second}, bus, nil)

	assert.False(t, w.Online())

	// First successful probe after startup counts as a restore.
	w.Probe()
	assert.True(t, w.Online())
	assert.Equal(t, []string{
		connectivity.EventOnline,
		retryqueue.TriggerJobUpdates,
		retryqueue.TriggerChatMessages,
	}, bus.all())

	// A steady online state publishes nothing further.
	w.Probe()
	assert.Len(t, bus.all(), 3)
}

func TestProbePublishesOfflineOnLoss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	bus := &recordingBus{}
	w := connectivity.New(connectivity.Config{
		ProbeURL: srv.URL + "/health",
		Interval: time.Hour,
		Triggers: []string{retryqueue.TriggerJobUpdates},
	}, &http.Client{Timeout: time.Second}, bus, nil)

	w.Probe()
	assert.True(t, w.Online())

	srv.Close()
	w.Probe()
	assert.False(t, w.Online())
	assert.Contains(t, bus.all(), connectivity.EventOffline)

	// Still offline: no duplicate events.
	w.Probe()
	events := bus.all()
	count := 0
	for _, e := range events {
		if e == connectivity.EventOffline {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestServerErrorCountsAsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	bus := &recordingBus{}
	w := connectivity.New(connectivity.Config{
		ProbeURL: srv.URL + "/health",
		Interval: time.Hour,
	}, &http.Client{Timeout: time.Second}, bus, nil)

	w.Probe()
	assert.False(t, w.Online())
	assert.Empty(t, bus.all())
}
