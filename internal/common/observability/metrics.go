package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Options configures New.
type Options struct {
	ServiceName   string
	TraceExporter string // stdout | none
	// Registerer receives the OTel prometheus collector. Nil means the
	// default registry, which serves /metrics.
	Registerer promclient.Registerer
}

// Observability bundles the OTel meter and tracer used by the pipeline.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	stageDuration  otelmetric.Float64Histogram
}

// New wires an OTel meter provider exported through prometheus and a tracer
// provider. Spans are always recorded; they are only written out when
// TraceExporter is "stdout".
func New(opts Options) (*Observability, error) {
	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	promOpts := []prometheus.Option{}
	if opts.Registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
	}
	exporter, err := prometheus.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(meterProvider)
	meter := meterProvider.Meter(opts.ServiceName)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch opts.TraceExporter {
	case ExporterStdout:
		traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(traceExporter))
	case ExporterNone, "":
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", opts.TraceExporter)
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tracerProvider)

	runCounter, _ := meter.Int64Counter(
		"pipeline.runs",
		otelmetric.WithDescription("Number of context pipeline runs"),
	)
	runDuration, _ := meter.Float64Histogram(
		"pipeline.duration",
		otelmetric.WithDescription("Context pipeline duration"),
		otelmetric.WithUnit("ms"),
	)
	stageDuration, _ := meter.Float64Histogram(
		"pipeline.stage.duration",
		otelmetric.WithDescription("Per-stage duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(opts.ServiceName),
		runCounter:     runCounter,
		runDuration:    runDuration,
		stageDuration:  stageDuration,
	}, nil
}

// NewNoop returns an Observability that records nothing. Used by tests and
// when observability setup fails.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("")}
}

// StartSpan starts a span named after a pipeline stage.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordRun(ctx context.Context, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordStage(ctx context.Context, stage string, duration time.Duration) {
	if o.stageDuration != nil {
		o.stageDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("stage", stage),
		))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	var firstErr error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
