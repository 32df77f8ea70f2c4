package tracer

import (
	"context"
	"log"

	"chatsync-be/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// InitTracer installs a global tracer provider exporting over OTLP/HTTP.
// With tracing disabled, or when the exporter cannot be built, the global
// provider stays the no-op default and otelfiber records nothing.
func InitTracer(cfg config.TracingConfig) ShutdownFunc {
	if !cfg.Enabled {
		log.Println("Tracing disabled (OTEL_ENABLED != true)")
		return noop
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Printf("Warn: OTLP exporter for %s not created: %v", cfg.Endpoint, err)
		return noop
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	))
	if err != nil {
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	log.Printf("Tracing %s to %s (sample ratio %.2f)", cfg.ServiceName, cfg.Endpoint, cfg.SampleRatio)

	return tp.Shutdown
}
