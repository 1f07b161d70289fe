package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
)

func quietProvider(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return exporter, tp
}

func TestQuietTracerProvider_DropsLookupSpans(t *testing.T) {
	t.Parallel()

	exporter, tp := quietProvider(t)
	tracer := observability.NewQuietTracerProvider(tp).Tracer("treemerge")

	ctx, reintegrate := tracer.Start(context.Background(), "merge.reintegrate")

	lookupCtx, lookup := tracer.Start(ctx, "merge.location_segments")
	assert.False(t, lookup.IsRecording())
	lookup.End()

	_, blob := tracer.Start(ctx, "gitlib.lookup_blob")
	assert.False(t, blob.IsRecording())
	blob.End()

	// Spans below a dropped lookup attach to the enclosing span.
	_, child := tracer.Start(lookupCtx, "diff.walk")
	child.End()

	reintegrate.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "diff.walk", spans[0].Name)
	assert.Equal(t, reintegrate.SpanContext().SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, "merge.reintegrate", spans[1].Name)
}
