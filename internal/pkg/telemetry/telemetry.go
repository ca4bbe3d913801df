// Package telemetry wires OpenTelemetry tracing for the geoplotter services.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanPipelineRun = "pipeline.run"
	SpanIngest      = "pipeline.ingest"
	SpanRenderSync  = "pipeline.render_sync"
)

// Attribute keys.
const (
	AttrViewID       = attribute.Key("geoplotter.view_id")
	AttrGeneration   = attribute.Key("geoplotter.generation")
	AttrSources      = attribute.Key("geoplotter.sources")
	AttrDecoded      = attribute.Key("geoplotter.decoded")
	AttrDecodeErrors = attribute.Key("geoplotter.decode_errors")
	AttrSkipped      = attribute.Key("geoplotter.skipped")
)

const instrumentationName = "github.com/sakibstark11/geoplotter"

// Tracer returns the tracer used by pipeline code. Without InitTracer it is a
// no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// InitTracer installs a batching OTLP/gRPC tracer provider as the global
// provider. The returned func flushes and shuts it down.
func InitTracer(ctx context.Context, serviceName, endpoint string) (func(), error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}
