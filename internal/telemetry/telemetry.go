// Package telemetry builds the OpenTelemetry tracer, meter and run
// instruments. When disabled it returns a Provider whose tracer, meter
// and instruments are no-ops. The gateway and judge coordinator do not
// record to the Provider; cmd/wark's server only initializes it and
// shuts it down.
package telemetry

import (
	"context"
	"fmt"

	"github.com/wasm-oj/wark/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	TracerName = "wark"
	MeterName  = "wark"
)

// Provider bundles a tracer and meter plus a few run-specific
// instruments.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter

	RunsTotal      metric.Int64Counter
	RunErrorsTotal metric.Int64Counter
	CostConsumed   metric.Int64Histogram

	shutdown func(context.Context) error
}

// Init builds a Provider from cfg. When cfg.Enabled is false, Tracer,
// Meter and the instruments are working no-op implementations, and
// TracerProvider and MeterProvider are nil.
func Init(ctx context.Context, cfg config.OTelConfig) (*Provider, error) {
	if !cfg.Enabled {
		tracer := nooptrace.NewTracerProvider().Tracer(TracerName)
		meter := noop.NewMeterProvider().Meter(MeterName)
		return newProvider(tracer, meter, nil, nil, func(context.Context) error { return nil })
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", "wark"),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

	return newProvider(tp.Tracer(TracerName), mp.Meter(MeterName), tp, mp, func(ctx context.Context) error {
		tErr := tp.Shutdown(ctx)
		mErr := mp.Shutdown(ctx)
		if tErr != nil {
			return tErr
		}
		return mErr
	})
}

func newProvider(tracer trace.Tracer, meter metric.Meter, tp *sdktrace.TracerProvider, mp metric.MeterProvider, shutdown func(context.Context) error) (*Provider, error) {
	runsTotal, err := meter.Int64Counter("wark.runs.total", metric.WithDescription("completed runs, by outcome"))
	if err != nil {
		return nil, err
	}
	runErrorsTotal, err := meter.Int64Counter("wark.run_errors.total", metric.WithDescription("runs ending in a RunError, by kind"))
	if err != nil {
		return nil, err
	}
	costConsumed, err := meter.Int64Histogram("wark.cost.consumed", metric.WithDescription("cost points consumed per successful run"))
	if err != nil {
		return nil, err
	}
	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		Tracer:         tracer,
		Meter:          meter,
		RunsTotal:      runsTotal,
		RunErrorsTotal: runErrorsTotal,
		CostConsumed:   costConsumed,
		shutdown:       shutdown,
	}, nil
}

// Shutdown flushes and closes the underlying exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

func createExporter(ctx context.Context, cfg config.OTelConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp-http", "":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return &noopExporter{}, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q (supported: otlp-http, stdout, none)", cfg.Exporter)
	}
}

type noopExporter struct{}

func (e *noopExporter) ExportSpans(_ context.Context, _ []sdktrace.ReadOnlySpan) error { return nil }
func (e *noopExporter) Shutdown(_ context.Context) error                              { return nil }
