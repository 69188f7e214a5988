package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/gate"
)

// tracerName is the instrumentation scope name for gate tracing.
const tracerName = "github.com/xraph/gate"

// Tracing returns middleware that wraps each attempt in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: gate.dispatch.id, gate.dispatch.name,
// gate.dispatch.key, gate.attempt. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, d *gate.Dispatch, next Handler) error {
		ctx, span := tracer.Start(ctx, "gate.dispatch.attempt",
			trace.WithAttributes(
				attribute.String("gate.dispatch.id", d.ID.String()),
				attribute.String("gate.dispatch.name", d.Name),
				attribute.String("gate.dispatch.key", keyString(d.Key)),
				attribute.Int("gate.attempt", d.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
