// Package observability provides OpenTelemetry tracing, metrics and
// structured logging for the treemerge CLI and the diff and merge engines.
package observability

import "log/slog"

// Mode tells which entry point produced the telemetry. It is attached to
// the resource and to every log record.
type Mode string

const (
	// ModeCLI is a treemerge command run.
	ModeCLI Mode = "cli"
	// ModeTest marks providers built by tests.
	ModeTest Mode = "test"
)

const (
	defaultServiceName = "treemerge"
	defaultShutdown    = 5
)

// Config selects where telemetry goes and how much of it is kept.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           Mode

	// OTLPEndpoint is a gRPC collector address such as "localhost:4317".
	// Empty keeps every provider no-op.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// DebugTrace samples every trace and ignores SampleRatio.
	DebugTrace bool
	// SampleRatio is the share of root traces kept, between 0 and 1.
	SampleRatio float64
	// TraceVerbose keeps the per-lookup spans that are otherwise dropped.
	TraceVerbose bool

	LogLevel slog.Level
	LogJSON  bool

	// ShutdownTimeoutSec bounds the final flush.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the configuration of a run with no settings.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		SampleRatio:        1,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdown,
	}
}
