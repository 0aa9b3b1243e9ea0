package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation pairs a span with request metrics for one backend call.
type Operation struct {
	Name      string
	StartTime time.Time

	span    trace.Span
	ctx     context.Context
	metrics *Metrics
}

// StartOperation opens a span named name. metrics may be nil.
func StartOperation(ctx context.Context, name string, metrics *Metrics, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	attrs = append(attrs, attribute.String(AttrOperation, name))
	ctx, span := StartSpan(ctx, name, attrs...)
	return ctx, &Operation{
		Name:      name,
		StartTime: time.Now(),
		span:      span,
		ctx:       ctx,
		metrics:   metrics,
	}
}

// Span returns the operation's span.
func (o *Operation) Span() trace.Span {
	return o.span
}

// End closes the span and records the outcome. Safe to call with a nil err.
func (o *Operation) End(err error) {
	duration := time.Since(o.StartTime)
	status := "ok"
	if err != nil {
		status = "error"
		SetSpanError(o.ctx, err)
	}
	o.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	o.span.End()
	o.metrics.RecordRequest(o.ctx, o.Name, status, duration)
}

// Duration returns the time elapsed since the operation started.
func (o *Operation) Duration() time.Duration {
	return time.Since(o.StartTime)
}
