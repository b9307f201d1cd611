package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/signals/internal/signal"
)

// tracerName is the instrumentation scope name for signal tracing.
const tracerName = "github.com/dshills/signals"

type tracing[T any] struct {
	signal.NopMiddleware[T]
	tracer trace.Tracer
	name   string
}

// Tracing returns middleware that records one span per receiver execution
// using the global TracerProvider.
func Tracing[T any](name string) signal.Middleware[T] {
	return TracingWithTracer[T](otel.Tracer(tracerName), name)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// Spans are children of the span in the send's context, if any.
//
// The span is recorded after the receiver returns, backdated by its
// duration. Spans a receiver starts from its own ctx are therefore siblings
// of "signal.receive", not children.
func TracingWithTracer[T any](tracer trace.Tracer, name string) signal.Middleware[T] {
	return &tracing[T]{tracer: tracer, name: name}
}

func (m *tracing[T]) AfterReceiver(ctx context.Context, payload T, r signal.ReceiverRef, o signal.Outcome) {
	end := time.Now()
	_, span := m.tracer.Start(ctx, "signal.receive",
		trace.WithTimestamp(end.Add(-o.Duration)),
		trace.WithAttributes(
			attribute.String("signal.name", m.name),
			attribute.String("signal.receiver.id", r.ID),
			attribute.String("signal.receiver.dispatch_key", r.DispatchKey),
			attribute.Int("signal.receiver.priority", r.Priority),
			attribute.String("signal.sender", r.Sender.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	if o.Err != nil {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, o.Err.Error())
		span.SetAttributes(attribute.Bool("signal.receiver.panicked", o.Panicked()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}
