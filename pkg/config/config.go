// Package config loads treemerge settings from a YAML file and TREEMERGE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/diff/printer"
	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Sentinel validation errors.
var (
	ErrInvalidDepth        = errors.New("invalid diff depth")
	ErrInvalidContextLines = errors.New("context lines must not be negative")
	ErrInvalidCacheSize    = errors.New("history cache size must be positive")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("invalid log format")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be between 0 and 1")
)

// Config holds all treemerge configuration.
type Config struct {
	Diff          DiffConfig          `mapstructure:"diff"`
	Merge         MergeConfig         `mapstructure:"merge"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DiffConfig holds tree-diff and printer settings.
type DiffConfig struct {
	Depth             string `mapstructure:"depth"`
	ContextLines      int    `mapstructure:"context_lines"`
	IgnoreAncestry    bool   `mapstructure:"ignore_ancestry"`
	ShowCopiesAsAdds  bool   `mapstructure:"show_copies_as_adds"`
	LocalBeforeRemote bool   `mapstructure:"local_before_remote"`
	Reverse           bool   `mapstructure:"reverse"`
	Color             bool   `mapstructure:"color"`
}

// MergeConfig holds reintegrate engine settings.
type MergeConfig struct {
	HistoryCacheSize int `mapstructure:"history_cache_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	ShutdownSec  int     `mapstructure:"shutdown_timeout_sec"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches the default locations; a missing file there is
// not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("treemerge")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/treemerge")
	}

	viperCfg.SetEnvPrefix("TREEMERGE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("diff.depth", DefaultDiffDepth)
	viperCfg.SetDefault("diff.context_lines", DefaultDiffContextLines)
	viperCfg.SetDefault("diff.ignore_ancestry", DefaultDiffIgnoreAncestry)
	viperCfg.SetDefault("diff.show_copies_as_adds", DefaultDiffShowCopiesAsAdds)
	viperCfg.SetDefault("diff.local_before_remote", DefaultDiffLocalBeforeRemote)
	viperCfg.SetDefault("diff.reverse", DefaultDiffReverse)
	viperCfg.SetDefault("diff.color", DefaultDiffColor)

	viperCfg.SetDefault("merge.history_cache_size", DefaultMergeHistoryCacheSize)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("observability.service_name", DefaultObservabilityServiceName)
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", DefaultObservabilitySampleRatio)
	viperCfg.SetDefault("observability.debug_trace", false)
	viperCfg.SetDefault("observability.trace_verbose", false)
	viperCfg.SetDefault("observability.shutdown_timeout_sec", DefaultObservabilityShutdownSec)
}

func validateConfig(config *Config) error {
	if _, err := vcs.ParseDepth(config.Diff.Depth); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDepth, config.Diff.Depth)
	}

	if config.Diff.ContextLines < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidContextLines, config.Diff.ContextLines)
	}

	if config.Merge.HistoryCacheSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, config.Merge.HistoryCacheSize)
	}

	if _, err := parseLevel(config.Logging.Level); err != nil {
		return err
	}

	if config.Logging.Format != "text" && config.Logging.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Observability.SampleRatio < 0 || config.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Observability.SampleRatio)
	}

	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}

	return level, nil
}

// DiffOptions maps the diff settings onto engine options.
func (c DiffConfig) DiffOptions() diff.Options {
	depth, err := vcs.ParseDepth(c.Depth)
	if err != nil {
		depth = vcs.DepthInfinity
	}

	return diff.Options{
		Depth:             depth,
		IgnoreAncestry:    c.IgnoreAncestry,
		LocalBeforeRemote: c.LocalBeforeRemote,
		ShowCopiesAsAdds:  c.ShowCopiesAsAdds,
		Reverse:           c.Reverse,
	}
}

// PrinterOptions maps the diff settings onto unified printer options.
func (c DiffConfig) PrinterOptions() printer.Options {
	return printer.Options{ContextLines: c.ContextLines, Color: c.Color}
}

// Telemetry builds the telemetry configuration for a CLI run.
func (c *Config) Telemetry(version string) observability.Config {
	// Validated by LoadConfig.
	level, _ := parseLevel(c.Logging.Level)

	return observability.Config{
		ServiceName:        c.Observability.ServiceName,
		ServiceVersion:     version,
		Environment:        c.Observability.Environment,
		Mode:               observability.ModeCLI,
		OTLPEndpoint:       c.Observability.OTLPEndpoint,
		OTLPHeaders:        observability.ParseOTLPHeaders(c.Observability.OTLPHeaders),
		OTLPInsecure:       c.Observability.OTLPInsecure,
		DebugTrace:         c.Observability.DebugTrace,
		SampleRatio:        c.Observability.SampleRatio,
		LogLevel:           level,
		TraceVerbose:       c.Observability.TraceVerbose,
		LogJSON:            c.Logging.Format == "json",
		ShutdownTimeoutSec: c.Observability.ShutdownSec,
	}
}
