// Package telemetry instruments the daemon: OTel trace/metric providers,
// per-operation latency histograms, health gauges, the bounded event
// ring, and per-window trace sessions.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "i3pm-daemon"

// Config configures the telemetry provider.
type Config struct {
	// OTLPEndpoint, if set, exports traces via OTLP/gRPC to a collector at
	// this address instead of stdout. Metrics are not exported in either
	// case; they are held by a manual reader.
	OTLPEndpoint string
}

// Provider owns the daemon's OTel trace and meter providers and the
// higher-level instruments built on top of them.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	Health       *Health
	Performance  *Performance
	Events       *EventLog
	WindowTracer *WindowTracer
}

// New wires the trace exporter (OTLP when cfg.OTLPEndpoint is set, stdout
// otherwise — the zero-config default for operators who run no collector)
// and a manual metric reader, and constructs the Health/Performance/Events
// instruments on top of them.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	var spanExporter sdktrace.SpanExporter
	var metricReader sdkmetric.Reader
	var err error

	if cfg.OTLPEndpoint != "" {
		spanExporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating otlp trace exporter: %w", err)
		}
		// Metrics are read via the in-process Stats() path for the RPC
		// surface; an OTLP metric exporter is deliberately not wired here
		// since no pack dependency provides an OTLP *metric* exporter —
		// traces are what the pack's otlptracegrpc covers.
		metricReader = sdkmetric.NewManualReader()
	} else {
		stdoutExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating stdout trace exporter: %w", err)
		}
		spanExporter = stdoutExp
		metricReader = sdkmetric.NewManualReader()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spanExporter),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(metricReader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(serviceName)

	health, err := NewHealth(meter)
	if err != nil {
		return nil, fmt.Errorf("telemetry: registering health gauges: %w", err)
	}
	perf := NewPerformance(meter, 100*time.Millisecond)

	events, err := NewEventLog(ctx, 500)
	if err != nil {
		return nil, fmt.Errorf("telemetry: initializing event log: %w", err)
	}

	return &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer(serviceName),
		meter:          meter,
		Health:         health,
		Performance:    perf,
		Events:         events,
		WindowTracer:   NewWindowTracer(events.DB()),
	}, nil
}

// Tracer returns the daemon's configured tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans/metrics and closes the event log's
// database.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.Events != nil {
		_ = p.Events.Close()
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}
