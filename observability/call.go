package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Call tracks one outbound dispatch attempt: a client span plus the call metrics.
type Call struct {
	Target  string
	Started time.Time

	span    trace.Span
	metrics *Metrics
	ended   bool
}

type callKey struct{}

// StartCall opens a dispatch.call span for target and stores the Call in the
// returned context. metrics may be nil.
func StartCall(ctx context.Context, target, method, path, requestID string, metrics *Metrics) (context.Context, *Call) {
	ctx, span := StartSpan(ctx, SpanDispatchCall,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrTarget, target),
			attribute.String(AttrHTTPMethod, method),
			attribute.String(AttrHTTPPath, path),
		),
	)
	if requestID != "" {
		span.SetAttributes(attribute.String(AttrRequestID, requestID))
	}
	c := &Call{Target: target, Started: time.Now(), span: span, metrics: metrics}
	return context.WithValue(ctx, callKey{}, c), c
}

// CallFromContext returns the Call started in ctx, or nil.
func CallFromContext(ctx context.Context) *Call {
	c, _ := ctx.Value(callKey{}).(*Call)
	return c
}

// Routed records the instance the call was sent to.
func (c *Call) Routed(hostPort string) {
	c.span.SetAttributes(attribute.String(AttrInstance, hostPort))
}

// Elapsed returns the time since StartCall.
func (c *Call) Elapsed() time.Duration {
	return time.Since(c.Started)
}

// Succeeded ends the call with the downstream status code.
func (c *Call) Succeeded(ctx context.Context, status int) {
	if c.ended {
		return
	}
	c.ended = true
	c.span.SetAttributes(attribute.Int(AttrHTTPStatus, status))
	c.span.End()
	c.metrics.CallFinished(ctx, c.Target, strconv.Itoa(status), c.Elapsed())
}

// Failed ends the call as failed. status is the downstream status code when
// one was received, otherwise zero.
func (c *Call) Failed(ctx context.Context, kind string, status int, err error) {
	if c.ended {
		return
	}
	c.ended = true
	outcome := "error"
	if status > 0 {
		outcome = strconv.Itoa(status)
		c.span.SetAttributes(attribute.Int(AttrHTTPStatus, status))
	}
	c.span.SetAttributes(attribute.String(AttrErrorKind, kind))
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	c.span.End()
	c.metrics.CallFinished(ctx, c.Target, outcome, c.Elapsed())
	c.metrics.CallFailed(ctx, c.Target, kind)
}
