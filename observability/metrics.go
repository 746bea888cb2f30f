// Package observability provides OpenTelemetry metrics and tracing for the
// delivery engine.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hookline/hookline"

// Metrics holds the engine's metric instruments.
type Metrics struct {
	EventsPublished   metric.Int64Counter
	Deliveries        metric.Int64Counter
	DeliveryLatency   metric.Float64Histogram
	PendingDeliveries metric.Int64UpDownCounter
}

// NewMetrics creates the metric instruments on the given provider. Pass nil
// to use the globally registered provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	eventsPublished, err := meter.Int64Counter("hookline_events_published_total",
		metric.WithDescription("Events accepted for fan-out."))
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("hookline_deliveries_total",
		metric.WithDescription("Delivery attempts by outcome."))
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("hookline_delivery_latency_seconds",
		metric.WithDescription("Round-trip latency of delivery attempts."))
	if err != nil {
		return nil, err
	}

	pending, err := meter.Int64UpDownCounter("hookline_pending_deliveries",
		metric.WithDescription("Deliveries awaiting a terminal outcome."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		EventsPublished:   eventsPublished,
		Deliveries:        deliveries,
		DeliveryLatency:   latency,
		PendingDeliveries: pending,
	}, nil
}

// RecordPublish counts an accepted event and its fan-out size.
func (m *Metrics) RecordPublish(ctx context.Context, deliveries int) {
	m.EventsPublished.Add(ctx, 1)
	m.PendingDeliveries.Add(ctx, int64(deliveries))
}

// RecordDelivery records a delivery attempt with the given outcome
// ("success", "retried", "failed") and latency.
func (m *Metrics) RecordDelivery(ctx context.Context, outcome string, latencySeconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Deliveries.Add(ctx, 1, attrs)
	m.DeliveryLatency.Record(ctx, latencySeconds, attrs)
	if outcome != "retried" {
		m.PendingDeliveries.Add(ctx, -1)
	}
}
