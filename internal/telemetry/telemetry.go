// Package telemetry configures OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "rackhost-ddns"

// Setup installs a global tracer provider based on environment configuration
// and returns its shutdown function.
//
// OTEL_EXPORTER: "none" (default), "console", "otlp", or "both"
// OTEL_ENDPOINT: OTLP gRPC endpoint (default: "localhost:4317")
//
// Console spans go to console rather than stdout, which carries command
// output.
func Setup(ctx context.Context, version string, console io.Writer) (func(context.Context) error, error) {
	exporterType := os.Getenv("OTEL_EXPORTER")
	if exporterType == "" {
		exporterType = "none"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporters []sdktrace.SpanExporter
	switch exporterType {
	case "none":
		// Spans are still created so trace ids propagate, but nothing is exported.
	case "console", "otlp", "both":
		if exporterType != "otlp" {
			consoleExporter, err := stdouttrace.New(stdouttrace.WithWriter(console), stdouttrace.WithPrettyPrint())
			if err != nil {
				return nil, fmt.Errorf("failed to create console exporter: %w", err)
			}
			exporters = append(exporters, consoleExporter)
		}
		if exporterType != "console" {
			endpoint := os.Getenv("OTEL_ENDPOINT")
			if endpoint == "" {
				endpoint = "localhost:4317"
			}
			otlpExporter, err := otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(endpoint),
				otlptracegrpc.WithInsecure(),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
			}
			exporters = append(exporters, otlpExporter)
		}
	default:
		return nil, fmt.Errorf("unknown OTEL_EXPORTER %q (want none, console, otlp or both)", exporterType)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	for _, exporter := range exporters {
		tp.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	}
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
