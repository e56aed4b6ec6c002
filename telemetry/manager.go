package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.40.0"

	"github.com/pitabwire/langpack/config"
)

type Manager interface {
	Init(ctx context.Context) error
	Disabled() bool
	LogHandler() slog.Handler
	Shutdown(ctx context.Context) error
}

type manager struct {
	serviceName        string
	serviceVersion     string
	serviceEnvironment string

	cfg config.ConfigurationTelemetry

	disableTracing bool

	traceTextMap      propagation.TextMapPropagator
	traceExporter     sdktrace.SpanExporter
	traceSampler      sdktrace.Sampler
	metricsReader     sdkmetrics.Reader
	traceLogsExporter sdklogs.Exporter

	viewPackages []string

	logHandler slog.Handler
	shutdown   []func(context.Context) error
}

func (m *manager) LogHandler() slog.Handler {
	return m.logHandler
}

func (m *manager) Disabled() bool {
	return m.disableTracing
}

// NewManager creates a new telemetry setup manager.
func NewManager(ctx context.Context, cfg config.ConfigurationTelemetry, opts ...Option) Manager {
	m := &manager{
		cfg: cfg,
	}

	if cfg != nil {
		m.serviceName = cfg.Name()
		m.serviceEnvironment = cfg.Environment()
		m.disableTracing = cfg.DisableOpenTelemetry()
	}

	for _, opt := range opts {
		opt(ctx, m)
	}

	return m
}

// Init installs the global tracer, meter and logger providers. Exporters not set by
// options come from the OTEL_*_EXPORTER variables and default to "none".
func (m *manager) Init(ctx context.Context) error {
	if m.Disabled() {
		return nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(m.serviceName),
		semconv.ServiceVersion(m.serviceVersion),
		semconv.ServiceNamespace(m.serviceEnvironment),
		semconv.DeploymentEnvironmentName(m.serviceEnvironment),
		semconv.ProcessPID(os.Getpid()),
		semconv.ProcessRuntimeName("go"),
		semconv.ProcessRuntimeVersion(runtime.Version()),
	))
	if err != nil {
		return err
	}

	if m.traceTextMap == nil {
		m.traceTextMap = autoprop.NewTextMapPropagator()
	}
	if m.traceSampler == nil {
		ratio := 1.0
		if m.cfg != nil {
			ratio = m.cfg.SamplingRatio()
		}
		m.traceSampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}

	if m.traceExporter, err = fromEnv(ctx, m.traceExporter, "OTEL_TRACES_EXPORTER",
		autoexport.NewSpanExporter); err != nil {
		return err
	}
	if m.metricsReader, err = fromEnv(ctx, m.metricsReader, "OTEL_METRICS_EXPORTER",
		autoexport.NewMetricReader); err != nil {
		return err
	}
	if m.traceLogsExporter, err = fromEnv(ctx, m.traceLogsExporter, "OTEL_LOGS_EXPORTER",
		autoexport.NewLogExporter); err != nil {
		return err
	}

	return m.setupProviders(ctx, res)
}

// fromEnv keeps current when an option supplied it, otherwise builds one with
// autoexport after defaulting variable to "none".
func fromEnv[T comparable, O any](
	ctx context.Context,
	current T,
	variable string,
	build func(context.Context, ...O) (T, error),
) (T, error) {
	var zero T
	if current != zero {
		return current, nil
	}
	if os.Getenv(variable) == "" {
		_ = os.Setenv(variable, "none")
	}
	return build(ctx)
}

// setupProviders initializes the OpenTelemetry providers and logger.
func (m *manager) setupProviders(_ context.Context, res *resource.Resource) error {
	otel.SetTextMapPropagator(m.traceTextMap)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(m.traceSampler),
		sdktrace.WithBatcher(m.traceExporter),
		sdktrace.WithResource(res))

	otel.SetTracerProvider(tp)

	meterOpts := []sdkmetrics.Option{
		sdkmetrics.WithReader(m.metricsReader),
		sdkmetrics.WithResource(res),
	}
	for _, pkg := range m.viewPackages {
		meterOpts = append(meterOpts, sdkmetrics.WithView(Views(pkg)...))
	}

	mp := sdkmetrics.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(mp)

	logsProcessor := sdklogs.NewBatchProcessor(m.traceLogsExporter)
	lp := sdklogs.NewLoggerProvider(
		sdklogs.WithResource(res),
		sdklogs.WithProcessor(logsProcessor),
	)
	global.SetLoggerProvider(lp)

	m.shutdown = append(m.shutdown, tp.Shutdown, mp.Shutdown, lp.Shutdown)

	m.logHandler = otelslog.NewHandler("",
		otelslog.WithSource(true),
		otelslog.WithLoggerProvider(lp),
		otelslog.WithAttributes(res.Attributes()...))

	return nil
}

// Shutdown flushes and stops the providers installed by Init.
func (m *manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range m.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.shutdown = nil
	return errors.Join(errs...)
}
