package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommandsTotal   = "treemerge.commands.total"
	metricCommandDuration = "treemerge.command.duration.seconds"
	metricErrorsTotal     = "treemerge.errors.total"

	attrCommand = "command"
	attrStatus  = "status"

	// StatusOK marks a command that finished without error.
	StatusOK = "ok"
	// StatusError marks a command that returned an error.
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 600s: fixture-sized diffs finish in
// milliseconds while reintegrates over long histories can take minutes.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// CommandMetrics holds the OTel instruments for rate, error and duration of
// CLI commands.
type CommandMetrics struct {
	commandsTotal   metric.Int64Counter
	commandDuration metric.Float64Histogram
	errorsTotal     metric.Int64Counter
}

// NewCommandMetrics creates command instruments from the given meter.
func NewCommandMetrics(mt metric.Meter) (*CommandMetrics, error) {
	in := &instruments{meter: mt}

	cm := &CommandMetrics{
		commandsTotal:   in.counter(metricCommandsTotal, "Total number of commands run", "{command}"),
		commandDuration: in.seconds(metricCommandDuration, "Command duration in seconds", durationBucketBoundaries),
		errorsTotal:     in.counter(metricErrorsTotal, "Total number of failed commands", "{error}"),
	}

	if err := in.err(); err != nil {
		return nil, err
	}

	return cm, nil
}

// RecordCommand records a finished command with its status and duration.
// Safe to call on a nil receiver.
func (cm *CommandMetrics) RecordCommand(ctx context.Context, command, status string, duration time.Duration) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrCommand, command),
		attribute.String(attrStatus, status),
	)

	cm.commandsTotal.Add(ctx, 1, attrs)
	cm.commandDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		cm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCommand, command)))
	}
}
