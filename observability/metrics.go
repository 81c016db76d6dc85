package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricInboundRequests  = "mesh.inbound.requests"
	MetricInboundDuration  = "mesh.inbound.duration"
	MetricInboundActive    = "mesh.inbound.active"
	MetricDispatchCalls    = "mesh.dispatch.calls"
	MetricDispatchDuration = "mesh.dispatch.duration"
	MetricDispatchFailures = "mesh.dispatch.failures"
)

// Meter returns a named meter from the global provider. Instruments created
// before Install keep working: the global provider delegates once set.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments for inbound requests and outbound calls.
// A nil *Metrics records nothing.
type Metrics struct {
	inboundRequests  metric.Int64Counter
	inboundDuration  metric.Float64Histogram
	inboundActive    metric.Int64UpDownCounter
	dispatchCalls    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	dispatchFailures metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.inboundRequests, err = meter.Int64Counter(MetricInboundRequests,
		metric.WithDescription("Inbound requests by route and status")); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricInboundRequests, err)
	}
	if m.inboundDuration, err = meter.Float64Histogram(MetricInboundDuration,
		metric.WithDescription("Inbound request latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricInboundDuration, err)
	}
	if m.inboundActive, err = meter.Int64UpDownCounter(MetricInboundActive,
		metric.WithDescription("Inbound requests in flight")); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricInboundActive, err)
	}
	if m.dispatchCalls, err = meter.Int64Counter(MetricDispatchCalls,
		metric.WithDescription("Outbound calls by target service and outcome")); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricDispatchCalls, err)
	}
	if m.dispatchDuration, err = meter.Float64Histogram(MetricDispatchDuration,
		metric.WithDescription("Outbound call latency including resolution"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricDispatchDuration, err)
	}
	if m.dispatchFailures, err = meter.Int64Counter(MetricDispatchFailures,
		metric.WithDescription("Failed outbound calls by target service and failure kind")); err != nil {
		return nil, fmt.Errorf("%s: %w", MetricDispatchFailures, err)
	}
	return &m, nil
}

// InboundStarted marks a request in flight.
func (m *Metrics) InboundStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.inboundActive.Add(ctx, 1)
}

// InboundFinished records a completed inbound request.
func (m *Metrics) InboundFinished(ctx context.Context, service, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	base := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("route", route),
	}
	m.inboundActive.Add(ctx, -1)
	m.inboundRequests.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String("status", strconv.Itoa(status)))...))
	m.inboundDuration.Record(ctx, d.Seconds(), metric.WithAttributes(base...))
}

// CallFinished records one dispatch attempt. outcome is the downstream status
// code, or "error" when no response arrived.
func (m *Metrics) CallFinished(ctx context.Context, target, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("outcome", outcome),
	))
	m.dispatchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("target", target)))
}

// CallFailed counts a failed dispatch attempt under its failure kind.
func (m *Metrics) CallFailed(ctx context.Context, target, kind string) {
	if m == nil {
		return
	}
	m.dispatchFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("kind", kind),
	))
}
