package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/straja-ai/ukredact/internal/redact"
)

const instrumentationName = "ukredact"

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// Provider wires tracer/meter providers and exposes helpers.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	requestsCounter       metric.Int64Counter
	entitiesCounter       metric.Int64Counter
	overlapsCounter       metric.Int64Counter
	requestDuration       metric.Float64Histogram
	detectorDuration      metric.Float64Histogram
	auditDropped          metric.Int64Counter
	auditDeliveries       metric.Int64Counter
	shutdownTraceProvider func(context.Context) error
	shutdownMeterProvider func(context.Context) error
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	p := &Provider{
		tracer: tracenoop.NewTracerProvider().Tracer(""),
		meter:  noop.NewMeterProvider().Meter(""),
	}
	p.initInstruments()
	return p
}

// NewProvider configures OTEL exporters + providers. When disabled, returns no-op providers.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		return Noop(), nil
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if protocol != "" && protocol != "grpc" && protocol != "http" {
		return nil, fmt.Errorf("telemetry: unsupported protocol %q", cfg.Protocol)
	}

	slog.Info("telemetry enabled; without a collector periodic upload warnings are expected",
		"protocol", protocol, "endpoint", redact.String(cfg.Endpoint))

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	var spanExporter sdktrace.SpanExporter
	var metricExporter sdkmetric.Exporter
	switch protocol {
	case "", "grpc":
		spanExporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, err
		}
		metricExporter, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
	case "http":
		spanExporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, err
		}
		metricExporter, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(mp)

	p := &Provider{
		Enabled:               true,
		tracer:                tp.Tracer(instrumentationName),
		meter:                 mp.Meter(instrumentationName),
		shutdownTraceProvider: tp.Shutdown,
		shutdownMeterProvider: mp.Shutdown,
	}
	p.initInstruments()
	return p, nil
}

func (p *Provider) initInstruments() {
	if p == nil {
		return
	}
	// Use meter to create instruments; ignore errors to keep telemetry best-effort.
	p.requestsCounter, _ = p.meter.Int64Counter("ukredact_requests_total")
	p.entitiesCounter, _ = p.meter.Int64Counter("ukredact_entities_total")
	p.overlapsCounter, _ = p.meter.Int64Counter("ukredact_overlaps_removed_total")
	p.requestDuration, _ = p.meter.Float64Histogram("ukredact_request_duration_ms")
	p.detectorDuration, _ = p.meter.Float64Histogram("ukredact_detector_duration_ms")
	p.auditDropped, _ = p.meter.Int64Counter("ukredact_audit_dropped_total")
	p.auditDeliveries, _ = p.meter.Int64Counter("ukredact_audit_deliveries_total")
}

// FromMeterProvider records into an existing meter provider, for embedding
// and tests. Traces are not recorded.
func FromMeterProvider(mp metric.MeterProvider) *Provider {
	p := &Provider{
		Enabled: true,
		tracer:  tracenoop.NewTracerProvider().Tracer(""),
		meter:   mp.Meter(instrumentationName),
	}
	p.initInstruments()
	return p
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return noop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.shutdownTraceProvider != nil {
		_ = p.shutdownTraceProvider(ctx)
	}
	if p.shutdownMeterProvider != nil {
		_ = p.shutdownMeterProvider(ctx)
	}
}

// RequestMetrics is what one pipeline run reports.
type RequestMetrics struct {
	Outcome         string // ok | error | rejected
	Strategy        string
	DurationMs      float64
	EntitiesByType  map[string]int
	OverlapsRemoved int
}

// RecordRequest emits counters/histograms with safe labels. Only entity type
// names are used as labels, never matched text.
func (p *Provider) RecordRequest(ctx context.Context, m RequestMetrics) {
	if p == nil {
		return
	}
	labels := []attribute.KeyValue{
		attribute.String("ukredact.outcome", m.Outcome),
		attribute.String("ukredact.strategy", m.Strategy),
	}
	p.requestsCounter.Add(ctx, 1, metric.WithAttributes(labels...))
	p.requestDuration.Record(ctx, m.DurationMs, metric.WithAttributes(labels...))
	for entityType, n := range m.EntitiesByType {
		if n <= 0 {
			continue
		}
		p.entitiesCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("ukredact.entity_type", entityType)))
	}
	if m.OverlapsRemoved > 0 {
		p.overlapsCounter.Add(ctx, int64(m.OverlapsRemoved), metric.WithAttributes(labels...))
	}
}

// RecordDetector records one detector call.
func (p *Provider) RecordDetector(ctx context.Context, detector string, durMs float64, failed bool) {
	if p == nil {
		return
	}
	p.detectorDuration.Record(ctx, durMs, metric.WithAttributes(
		attribute.String("ukredact.detector", detector),
		attribute.Bool("ukredact.failed", failed),
	))
}

// RecordAuditDrop counts an audit event lost to a full queue or a closed
// emitter.
func (p *Provider) RecordAuditDrop(ctx context.Context) {
	if p == nil {
		return
	}
	p.auditDropped.Add(ctx, 1)
}

// RecordAuditDelivery counts one delivery attempt to a sink.
func (p *Provider) RecordAuditDelivery(ctx context.Context, sink string, failed bool) {
	if p == nil {
		return
	}
	p.auditDeliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ukredact.sink", sink),
		attribute.Bool("ukredact.failed", failed),
	))
}
