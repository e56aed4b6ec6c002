package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//nolint:gochecknoglobals // attribute keys are shared by spans, metrics and views
var (
	AttrMethodKey  = attribute.Key("langpack_method")
	AttrPackageKey = attribute.Key("langpack_package")
	AttrStatusKey  = attribute.Key("langpack_status")
	AttrErrorKey   = attribute.Key("langpack_error")
	AttrKindKey    = attribute.Key("langpack_task_kind")
	AttrOutcomeKey = attribute.Key("langpack_task_outcome")
)

type timingKey struct{}

// timing travels in the span context so End can record latency per method.
type timing struct {
	method string
	start  time.Time
}

type tracer struct {
	name    string
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// NewTracer returns a Tracer whose spans also feed the latency histogram of name.
func NewTracer(name string, options ...trace.TracerOption) Tracer {
	return &tracer{
		name:    name,
		tracer:  otel.Tracer(name, options...),
		latency: LatencyMeasure(name),
	}
}

// Start opens a span. The caller must pass the returned context and span to End.
//
//nolint:spancheck // the span is ended by End
func (t *tracer) Start(
	ctx context.Context,
	spanName string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	options = append(options, trace.WithAttributes(AttrMethodKey.String(spanName)))

	ctx, span := t.tracer.Start(ctx, spanName, options...)
	return context.WithValue(ctx, timingKey{}, timing{method: t.name + "/" + spanName, start: time.Now()}), span
}

// End closes span, marking it failed when err is set, and records its latency.
func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	if err != nil {
		options = append(options, trace.WithStackTrace(true))
		span.SetAttributes(AttrErrorKey.String(err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(options...)

	tm, ok := ctx.Value(timingKey{}).(timing)
	if !ok {
		util.Log(ctx).WithField("tracer", t.name).Error("span context was not created by Start")
		return
	}

	elapsed := float64(time.Since(tm.start)) / float64(time.Millisecond)
	t.latency.Record(ctx, elapsed, metric.WithAttributes(
		AttrStatusKey.String(ErrorCode(err)),
		AttrMethodKey.String(tm.method),
	))
}

// ErrorCode maps err to the status attribute value.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	default:
		return "err"
	}
}
