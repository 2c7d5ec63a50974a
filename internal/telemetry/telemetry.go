// Package telemetry installs an OpenTelemetry tracer provider that exports
// query spans over OTLP/HTTP. Without an endpoint tracing stays a no-op.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName identifies quarry in exported spans.
const ServiceName = "quarry"

// Config selects the trace exporter.
type Config struct {
	OTLPEndpoint string            `yaml:"otlp_endpoint"`
	Headers      map[string]string `yaml:"headers,omitempty"`
}

// Enabled reports whether spans should be exported.
func (c Config) Enabled() bool { return c.OTLPEndpoint != "" }

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(ctx context.Context) error

// Setup installs a global tracer provider exporting to cfg.OTLPEndpoint.
// When tracing is disabled it returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	exportCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	exporter, err := otlptracehttp.New(exportCtx,
		otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	return install(exporter, logger, cfg.OTLPEndpoint)
}

func install(exporter sdktrace.SpanExporter, logger *slog.Logger, endpoint string) (ShutdownFunc, error) {
	// A schemaless resource merges with whatever schema URL the SDK uses.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Debug("trace export initialized", slog.String("endpoint", endpoint))

	return tp.Shutdown, nil
}
