package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracer opens spans that are timed into the owning package's latency histogram.
type Tracer interface {
	Start(ctx context.Context, spanName string, options ...trace.SpanStartOption) (context.Context, trace.Span)
	End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption)
}
