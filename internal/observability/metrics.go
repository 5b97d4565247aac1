// Package observability wires the agent's metrics: instruments are created
// through the OpenTelemetry metric API and exported on /metrics via the
// Prometheus bridge, so a fleet dashboard can scrape device agents directly.
package observability

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the agent's instruments. A nil *Metrics is valid and records
// nothing, which keeps tests free of metric plumbing.
type Metrics struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	fetches       metric.Int64Counter
	replays       metric.Int64Counter
	notifications metric.Int64Counter
	queueDepth    metric.Int64UpDownCounter
}

// New creates a Metrics backed by a fresh Prometheus registry.
func New() (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/truckfixgo/offline-agent")

	m := &Metrics{registry: registry, provider: provider}

	if m.fetches, err = meter.Int64Counter("agent_fetches_total",
		metric.WithDescription("Intercepted fetches by strategy and outcome")); err != nil {
		return nil, fmt.Errorf("creating fetch counter: %w", err)
	}
	if m.replays, err = meter.Int64Counter("agent_queue_replays_total",
		metric.WithDescription("Retry-queue replay attempts by queue and outcome")); err != nil {
		return nil, fmt.Errorf("creating replay counter: %w", err)
	}
	if m.notifications, err = meter.Int64Counter("agent_notifications_total",
		metric.WithDescription("Push notification events by kind")); err != nil {
		return nil, fmt.Errorf("creating notification counter: %w", err)
	}
	if m.queueDepth, err = meter.Int64UpDownCounter("agent_queue_depth",
		metric.WithDescription("Entries currently waiting in each retry queue")); err != nil {
		return nil, fmt.Errorf("creating queue depth counter: %w", err)
	}

	return m, nil
}

// Handler returns the HTTP handler serving the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordFetch counts one intercepted fetch handled by the named strategy.
func (m *Metrics) RecordFetch(ctx context.Context, strategy, outcome string) {
	if m == nil {
		return
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	))
}

// RecordReplay counts one replay attempt for the named queue.
func (m *Metrics) RecordReplay(ctx context.Context, queue, outcome string) {
	if m == nil {
		return
	}
	m.replays.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("outcome", outcome),
	))
}

// RecordNotification counts one notification event (displayed, clicked, ...).
func (m *Metrics) RecordNotification(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// QueueDepthDelta adjusts the waiting-entry gauge for the named queue.
func (m *Metrics) QueueDepthDelta(ctx context.Context, queue string, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta, metric.WithAttributes(attribute.String("queue", queue)))
}
