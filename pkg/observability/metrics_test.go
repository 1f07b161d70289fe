package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
)

func newTestReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()

	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data for %s", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestCommandMetrics_RecordCommand(t *testing.T) {
	t.Parallel()

	reader, mp := newTestReader()

	cm, err := observability.NewCommandMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	cm.RecordCommand(ctx, "diff", observability.StatusOK, 100*time.Millisecond)
	cm.RecordCommand(ctx, "reintegrate", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	total := findMetric(rm, "treemerge.commands.total")
	require.NotNil(t, total)
	assert.Equal(t, int64(2), sumValue(t, total))

	require.NotNil(t, findMetric(rm, "treemerge.command.duration.seconds"))

	errs := findMetric(rm, "treemerge.errors.total")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumValue(t, errs))
}

func TestCommandMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var cm *observability.CommandMetrics

	assert.NotPanics(t, func() {
		cm.RecordCommand(context.Background(), "diff", observability.StatusOK, time.Millisecond)
	})
}

func TestCommandMetrics_WithNoopMeter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	cm, err := observability.NewCommandMetrics(providers.Meter)
	require.NoError(t, err)

	cm.RecordCommand(context.Background(), "version", observability.StatusOK, time.Millisecond)
}

func TestDiffMetrics_RecordNode(t *testing.T) {
	t.Parallel()

	reader, mp := newTestReader()

	dm, err := observability.NewDiffMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	dm.RecordNode(ctx, "file", "added")
	dm.RecordNode(ctx, "dir", "changed")
	dm.RecordNode(ctx, "file", "added")

	nodes := findMetric(collectMetrics(t, reader), "treemerge.diff.nodes.total")
	require.NotNil(t, nodes)
	assert.Equal(t, int64(3), sumValue(t, nodes))

	var nilMetrics *observability.DiffMetrics

	assert.NotPanics(t, func() { nilMetrics.RecordNode(ctx, "file", "deleted") })
}

func TestMergeMetrics_Record(t *testing.T) {
	t.Parallel()

	reader, mp := newTestReader()

	mm, err := observability.NewMergeMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	mm.RecordMerge(ctx, "conflicts", 2)
	mm.RecordMerge(ctx, "ok", 0)
	mm.RecordReintegrate(ctx, "ok", 30*time.Millisecond)

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "treemerge.merge.runs.total")
	require.NotNil(t, runs)
	assert.Equal(t, int64(2), sumValue(t, runs))

	conflicts := findMetric(rm, "treemerge.merge.conflicts.total")
	require.NotNil(t, conflicts)
	assert.Equal(t, int64(2), sumValue(t, conflicts))

	hist := findMetric(rm, "treemerge.reintegrate.duration.seconds")
	require.NotNil(t, hist)

	data, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(1), data.DataPoints[0].Count)

	var nilMetrics *observability.MergeMetrics

	assert.NotPanics(t, func() {
		nilMetrics.RecordMerge(ctx, "ok", 0)
		nilMetrics.RecordReintegrate(ctx, "ok", time.Millisecond)
	})
}
