// Package trace wraps OpenTelemetry span creation for the runtime. The
// global tracer provider is a no-op unless the host process installs a
// real one, so instrumented code paths cost nothing by default.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/typedai/typedai"

// Start opens a span on the global tracer.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// WithSpan runs fn inside a span, recording any returned error.
func WithSpan(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Start(ctx, name, attrs...)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// String builds a string attribute; re-exported so callers do not need
// the otel attribute import.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Int builds an int attribute.
func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
