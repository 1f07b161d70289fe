package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// lookupSpans are started once per repository or pristine lookup. They are
// dropped unless verbose tracing is on.
var lookupSpans = map[string]bool{
	"merge.location_segments": true,
	"gitlib.lookup_blob":      true,
}

// NewQuietTracerProvider wraps delegate so that per-lookup spans become
// no-op spans. Walk, merge, reintegrate and command spans are kept.
func NewQuietTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return quietProvider{delegate: delegate}
}

type quietProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
}

func (p quietProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return quietTracer{delegate: p.delegate.Tracer(name, opts...)}
}

type quietTracer struct {
	embedded.Tracer

	delegate trace.Tracer
}

// Start hands lookup spans a no-op span and leaves ctx untouched, so
// anything started below a lookup still attaches to the enclosing span.
func (t quietTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if lookupSpans[name] {
		return ctx, nooptrace.Span{}
	}

	return t.delegate.Start(ctx, name, opts...)
}
