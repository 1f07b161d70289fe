package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// NewResource exposes newResource to the external tests.
func NewResource(cfg Config) (*resource.Resource, error) {
	return newResource(cfg)
}

// ShutdownTimeout exposes shutdownTimeout to the external tests.
func ShutdownTimeout(cfg Config) time.Duration {
	return shutdownTimeout(cfg)
}

// SamplesRoot reports whether a root span started under the sampler chosen
// for cfg is exported.
func SamplesRoot(cfg Config) bool {
	return len(ExportedSpans(cfg, "root")) > 0
}

// ExportedSpans starts and ends one root span per name through the tracer
// provider Init would build for cfg and returns the names that reached the
// exporter.
func ExportedSpans(cfg Config, names ...string) []string {
	exporter := tracetest.NewInMemoryExporter()

	opts := []sdktrace.TracerProviderOption{sdktrace.WithSyncer(exporter)}
	if sampler := newSampler(cfg); sampler != nil {
		opts = append(opts, sdktrace.WithSampler(sampler))
	}

	sdkTP := sdktrace.NewTracerProvider(opts...)
	tracer := tracerProvider(cfg, sdkTP).Tracer(instrumentationName)

	for _, name := range names {
		_, span := tracer.Start(context.Background(), name)
		span.End()
	}

	var exported []string

	for _, span := range exporter.GetSpans() {
		exported = append(exported, span.Name)
	}

	_ = sdkTP.Shutdown(context.Background())

	return exported
}
