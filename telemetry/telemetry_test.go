package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.40.0"

	"github.com/pitabwire/langpack/config"
	"github.com/pitabwire/langpack/telemetry"
)

// retainingExporter keeps spans past Shutdown so they can be inspected.
type retainingExporter struct {
	*tracetest.InMemoryExporter
}

func (retainingExporter) Shutdown(context.Context) error { return nil }

type TelemetrySuite struct {
	suite.Suite
}

func TestTelemetrySuite(t *testing.T) {
	suite.Run(t, new(TelemetrySuite))
}

func (s *TelemetrySuite) TestErrorCode() {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "ok"},
		{name: "canceled", err: fmt.Errorf("load: %w", context.Canceled), want: "canceled"},
		{name: "deadline", err: context.DeadlineExceeded, want: "deadline exceeded"},
		{name: "other", err: errors.New("boom"), want: "err"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, telemetry.ErrorCode(tc.err))
		})
	}
}

func (s *TelemetrySuite) TestDisabledManagerIsNoop() {
	ctx := context.Background()

	testCases := []struct {
		name string
		cfg  *config.ConfigurationDefault
		opts []telemetry.Option
	}{
		{name: "disabled by config", cfg: &config.ConfigurationDefault{OpenTelemetryDisable: true}},
		{name: "disabled by option", cfg: &config.ConfigurationDefault{}, opts: []telemetry.Option{telemetry.WithDisableTracing()}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			m := telemetry.NewManager(ctx, tc.cfg, tc.opts...)
			s.True(m.Disabled())
			s.Require().NoError(m.Init(ctx))
			s.Nil(m.LogHandler())
			s.Require().NoError(m.Shutdown(ctx))
		})
	}
}

func (s *TelemetrySuite) TestInitRecordsSpans() {
	ctx := context.Background()
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	s.Require().NoError(err)

	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	m := telemetry.NewManager(ctx, &cfg,
		telemetry.WithServiceVersion("test"),
		telemetry.WithServiceName("langpack-inspect"),
		telemetry.WithServiceEnvironment("staging"),
		telemetry.WithTraceExporter(retainingExporter{exporter}),
		telemetry.WithTraceSampler(sdktrace.AlwaysSample()),
		telemetry.WithMetricsReader(reader),
		telemetry.WithMetricViews("langpack/test"),
	)
	s.Require().NoError(m.Init(ctx))
	s.NotNil(m.LogHandler())

	tracer := telemetry.NewTracer("langpack/test")
	sctx, span := tracer.Start(ctx, "load")
	tracer.End(sctx, span, errors.New("failed"))

	tasks := telemetry.DimensionlessMeasure("langpack/test", telemetry.TaskCountSuffix, "tasks")
	tasks.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrKindKey.String("language"),
		telemetry.AttrOutcomeKey.String("success"),
		telemetry.AttrMethodKey.String("dropped"),
	))

	var rm metricdata.ResourceMetrics
	s.Require().NoError(reader.Collect(ctx, &rm))

	names := map[string]attribute.Set{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Histogram[float64]:
				names[md.Name] = data.DataPoints[0].Attributes
			case metricdata.Sum[float64]:
				names[md.Name] = data.DataPoints[0].Attributes
			case metricdata.Sum[int64]:
				names[md.Name] = data.DataPoints[0].Attributes
			}
		}
	}
	s.Contains(names, "langpack/test/latency")
	s.Contains(names, "langpack/test/completed_calls")
	s.Require().Contains(names, "langpack/test/tasks")
	taskAttrs := names["langpack/test/tasks"]
	_, hasMethod := taskAttrs.Value(telemetry.AttrMethodKey)
	s.False(hasMethod)

	s.Require().NoError(m.Shutdown(ctx))

	spans := exporter.GetSpans()
	s.Require().Len(spans, 1)
	s.Equal("load", spans[0].Name)
	s.Equal("Error", spans[0].Status.Code.String())

	res := spans[0].Resource
	name, ok := res.Set().Value(semconv.ServiceNameKey)
	s.True(ok)
	s.Equal("langpack-inspect", name.AsString())
	env, ok := res.Set().Value(semconv.DeploymentEnvironmentNameKey)
	s.True(ok)
	s.Equal("staging", env.AsString())
}
