package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/meshnode/component"
)

// installRecorder swaps in an SDK tracer provider backed by an in-memory exporter.
func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func newManualMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// sumOf adds up every data point of an int64 sum instrument, optionally
// filtered by one attribute.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string, filter ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				match := true
				for _, kv := range filter {
					if v, ok := dp.Attributes.Value(kv.Key); !ok || v != kv.Value {
						match = false
					}
				}
				if match {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func attrs(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample rate > 1")
	}

	cfg = Config{Enabled: true, SampleRate: 1}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for enabled export without endpoint")
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Identity{Service: "service1", Version: "1.0.0", Environment: "staging"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	got := attrs(res.Attributes())
	if got["service.name"].AsString() != "service1" || got["service.version"].AsString() != "1.0.0" {
		t.Errorf("resource = %v", res.Attributes())
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "ParentBased{root:AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "ParentBased{root:TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); !strings.HasPrefix(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.InboundStarted(ctx)
	m.InboundFinished(ctx, "service1", "/", 200, time.Millisecond)
	m.CallFinished(ctx, "service2", "200", time.Millisecond)
	m.CallFailed(ctx, "service2", "timeout")
}

func TestNewMetricsNoopMeter(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.InboundStarted(context.Background())
}

func TestInboundMetrics(t *testing.T) {
	m, reader := newManualMetrics(t)
	ctx := context.Background()

	m.InboundStarted(ctx)
	m.InboundFinished(ctx, "service1", "/service1/call-service2", 200, 10*time.Millisecond)
	m.InboundStarted(ctx)
	m.InboundFinished(ctx, "service1", "/service1/call-service2", 504, time.Second)
	m.InboundStarted(ctx)

	if got := sumOf(t, reader, MetricInboundRequests); got != 2 {
		t.Errorf("requests = %d", got)
	}
	if got := sumOf(t, reader, MetricInboundRequests, attribute.String("status", "504")); got != 1 {
		t.Errorf("504 requests = %d", got)
	}
	if got := sumOf(t, reader, MetricInboundActive); got != 1 {
		t.Errorf("active = %d", got)
	}
}

func TestCallSucceeded(t *testing.T) {
	exporter := installRecorder(t)
	m, reader := newManualMetrics(t)

	ctx, call := StartCall(context.Background(), "service2", "GET", "/service2/api/data", "req-1", m)
	if CallFromContext(ctx) != call {
		t.Error("call not stored in context")
	}
	call.Routed("10.0.0.7:8081")
	call.Succeeded(ctx, 200)
	call.Succeeded(ctx, 200)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans", len(spans))
	}
	s := spans[0]
	if s.Name != SpanDispatchCall || s.Status.Code == codes.Error {
		t.Errorf("span = %s %v", s.Name, s.Status)
	}
	got := attrs(s.Attributes)
	if got[AttrTarget].AsString() != "service2" || got[AttrInstance].AsString() != "10.0.0.7:8081" ||
		got[AttrRequestID].AsString() != "req-1" || got[AttrHTTPStatus].AsInt64() != 200 {
		t.Errorf("attributes = %v", s.Attributes)
	}

	if n := sumOf(t, reader, MetricDispatchCalls, attribute.String("outcome", "200")); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if n := sumOf(t, reader, MetricDispatchFailures); n != 0 {
		t.Errorf("failures = %d", n)
	}
}

func TestCallFailed(t *testing.T) {
	exporter := installRecorder(t)
	m, reader := newManualMetrics(t)

	ctx, call := StartCall(context.Background(), "service2", "GET", "/service2/api/data", "", m)
	call.Failed(ctx, "timeout", 0, errors.New("deadline exceeded"))

	s := exporter.GetSpans()[0]
	if s.Status.Code != codes.Error || len(s.Events) != 1 {
		t.Errorf("error not recorded: %v %v", s.Status, s.Events)
	}
	got := attrs(s.Attributes)
	if got[AttrErrorKind].AsString() != "timeout" {
		t.Errorf("attributes = %v", s.Attributes)
	}
	if _, ok := got[AttrRequestID]; ok {
		t.Error("empty request ID should not be set")
	}

	if n := sumOf(t, reader, MetricDispatchCalls, attribute.String("outcome", "error")); n != 1 {
		t.Errorf("calls = %d", n)
	}
	if n := sumOf(t, reader, MetricDispatchFailures, attribute.String("kind", "timeout")); n != 1 {
		t.Errorf("failures = %d", n)
	}
}

func TestCallFailedWithStatus(t *testing.T) {
	m, reader := newManualMetrics(t)
	ctx, call := StartCall(context.Background(), "service2", "GET", "/", "", m)
	call.Failed(ctx, "downstream_status", 503, errors.New("status 503"))

	if n := sumOf(t, reader, MetricDispatchCalls, attribute.String("outcome", "503")); n != 1 {
		t.Errorf("calls = %d", n)
	}
}

func TestCallElapsed(t *testing.T) {
	_, call := StartCall(context.Background(), "service2", "GET", "/", "", nil)
	call.Started = time.Now().Add(-50 * time.Millisecond)
	if d := call.Elapsed(); d < 45*time.Millisecond || d > 200*time.Millisecond {
		t.Errorf("Elapsed = %v", d)
	}
}

func TestCallFromContextNotSet(t *testing.T) {
	if CallFromContext(context.Background()) != nil {
		t.Error("expected nil")
	}
}

func TestSetSpanAttributeAndError(t *testing.T) {
	exporter := installRecorder(t)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	SetSpanAttribute(ctx, "string-key", "value")
	SetSpanAttribute(ctx, "int-key", 42)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, "bool-key", true)
	SetSpanAttribute(ctx, "string-slice-key", []string{"a", "b"})
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	SetSpanError(ctx, errors.New("boom"))
	SetSpanError(ctx, nil)
	if TraceIDFromContext(ctx) == "" {
		t.Error("expected a trace ID")
	}
	span.End()

	s := exporter.GetSpans()[0]
	if len(s.Attributes) != 6 {
		t.Errorf("got %d attributes, want 6", len(s.Attributes))
	}
	if s.Status.Code != codes.Error || len(s.Events) != 1 {
		t.Errorf("error not recorded: %v %v", s.Status, s.Events)
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, errors.New("no span"))
	if TraceIDFromContext(ctx) != "" {
		t.Error("expected empty trace ID")
	}
}

func TestComponentDisabled(t *testing.T) {
	c := NewComponent(Config{}, "service1", "dev", "development")
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("Health before Start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h := c.Health(ctx)
	if h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Errorf("Health = %+v", h)
	}
	if d := c.Describe(); d.Details != "disabled" {
		t.Errorf("Describe = %+v", d)
	}
	if err := c.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestComponentRejectsInvalidConfig(t *testing.T) {
	c := NewComponent(Config{SampleRate: -1}, "service1", "dev", "development")
	if err := c.Start(context.Background()); err == nil {
		t.Error("expected validation error")
	}
}
