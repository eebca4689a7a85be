// Package telemetry provides OpenTelemetry instrumentation for azruntime.
package telemetry

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/yairfalse/azruntime/internal/config"
)

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Set when metrics go to a Prometheus textfile.
	registry *promclient.Registry
	textfile string

	passDuration  metric.Float64Histogram
	vmsInventory  metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig, version string) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res, version); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res, version); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, version string) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg, version)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate))
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("azruntime")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, version string) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg, version)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	if cfg.Metrics.Textfile != "" {
		p.registry = promclient.NewRegistry()
		p.textfile = cfg.Metrics.Textfile
		exp, err := otelprom.New(otelprom.WithRegisterer(p.registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exp))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("azruntime")

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig, version string) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent("azruntime/" + version)),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig, version string) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent("azruntime/" + version)),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.passDuration, err = p.meter.Float64Histogram(
		"azruntime_pass_duration_seconds",
		metric.WithDescription("Duration of a full inventory pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create pass_duration: %w", err)
	}

	p.vmsInventory, err = p.meter.Int64Counter(
		"azruntime_vms_total",
		metric.WithDescription("VMs inventoried, by power state and severity"),
	)
	if err != nil {
		return fmt.Errorf("create vms_total: %w", err)
	}

	p.queryDuration, err = p.meter.Float64Histogram(
		"azruntime_activity_log_query_duration_seconds",
		metric.WithDescription("Duration of per-VM activity log queries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create query_duration: %w", err)
	}

	p.queryErrors, err = p.meter.Int64Counter(
		"azruntime_activity_log_query_errors_total",
		metric.WithDescription("Failed activity log queries"),
	)
	if err != nil {
		return fmt.Errorf("create query_errors: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// RecordPass records the duration of an inventory pass.
func (p *Provider) RecordPass(ctx context.Context, d time.Duration, vms int) {
	p.passDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.Int("vms", vms),
	))
}

// RecordVM counts one inventoried VM.
func (p *Provider) RecordVM(ctx context.Context, subscription, state, lineage string, tier int) {
	p.vmsInventory.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subscription", subscription),
		attribute.String("state", state),
		attribute.String("severity.lineage", lineage),
		attribute.Int("severity.tier", tier),
	))
}

// RecordQuery records one activity log query and whether it failed.
func (p *Provider) RecordQuery(ctx context.Context, subscription string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("subscription", subscription))
	p.queryDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		p.queryErrors.Add(ctx, 1, attrs)
	}
}

// WriteTextfile writes collected metrics to the configured Prometheus
// textfile. It is a no-op when no textfile is configured.
func (p *Provider) WriteTextfile() error {
	if p.registry == nil {
		return nil
	}
	if err := promclient.WriteToTextfile(p.textfile, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
