package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricDiffNodesTotal    = "treemerge.diff.nodes.total"
	metricMergeRunsTotal    = "treemerge.merge.runs.total"
	metricMergeConflicts    = "treemerge.merge.conflicts.total"
	metricReintegrateLength = "treemerge.reintegrate.duration.seconds"

	attrAction = "action"
	attrKind   = "kind"
	attrResult = "result"
)

// DiffMetrics holds OTel instruments for the diff walker.
type DiffMetrics struct {
	nodes metric.Int64Counter
}

// NewDiffMetrics creates diff instruments from the given meter.
func NewDiffMetrics(mt metric.Meter) (*DiffMetrics, error) {
	in := &instruments{meter: mt}

	dm := &DiffMetrics{
		nodes: in.counter(metricDiffNodesTotal, "Nodes reported by the diff walker", "{node}"),
	}

	if err := in.err(); err != nil {
		return nil, err
	}

	return dm, nil
}

// RecordNode counts one reported node. Safe to call on a nil receiver.
func (dm *DiffMetrics) RecordNode(ctx context.Context, kind, action string) {
	if dm == nil {
		return
	}

	dm.nodes.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrAction, action),
	))
}

// MergeMetrics holds OTel instruments for the merge driver and the
// reintegrate engine.
type MergeMetrics struct {
	runs        metric.Int64Counter
	conflicts   metric.Int64Counter
	reintegrate metric.Float64Histogram
}

// NewMergeMetrics creates merge instruments from the given meter.
func NewMergeMetrics(mt metric.Meter) (*MergeMetrics, error) {
	in := &instruments{meter: mt}

	mm := &MergeMetrics{
		runs:        in.counter(metricMergeRunsTotal, "Merge runs by result", "{run}"),
		conflicts:   in.counter(metricMergeConflicts, "Conflicts left by merges", "{conflict}"),
		reintegrate: in.seconds(metricReintegrateLength, "Reintegrate source computation time", durationBucketBoundaries),
	}

	if err := in.err(); err != nil {
		return nil, err
	}

	return mm, nil
}

// RecordMerge records a finished merge. Safe to call on a nil receiver.
func (mm *MergeMetrics) RecordMerge(ctx context.Context, result string, conflicts int) {
	if mm == nil {
		return
	}

	mm.runs.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
	mm.conflicts.Add(ctx, int64(conflicts))
}

// RecordReintegrate records how long computing a reintegrate source took.
// Safe to call on a nil receiver.
func (mm *MergeMetrics) RecordReintegrate(ctx context.Context, result string, d time.Duration) {
	if mm == nil {
		return
	}

	mm.reintegrate.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrResult, result)))
}
