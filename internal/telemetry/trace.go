// Package telemetry opens OpenTelemetry spans around shovel operations. Spans
// go to the global tracer provider, which is a no-op unless the embedding
// program installs one.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies shovel spans.
const TracerName = "github.com/conn-castle/shovel"

// Tracer returns the shovel tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Start opens an internal span named "shovel.<name>".
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "shovel."+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// End records err, if any, and ends span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Package returns the attribute naming a package.
func Package(name string) attribute.KeyValue {
	return attribute.String("shovel.package", name)
}

// Hook returns the attribute naming a lifecycle hook.
func Hook(name string) attribute.KeyValue {
	return attribute.String("shovel.hook", name)
}
