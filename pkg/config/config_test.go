package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/config"
	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

const (
	testContextLines = 5
	testCacheSize    = 64
	testSampleRatio  = 0.25
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "treemerge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.DefaultDiffDepth, cfg.Diff.Depth)
	assert.Equal(t, config.DefaultDiffContextLines, cfg.Diff.ContextLines)
	assert.Equal(t, config.DefaultDiffIgnoreAncestry, cfg.Diff.IgnoreAncestry)
	assert.Equal(t, config.DefaultMergeHistoryCacheSize, cfg.Merge.HistoryCacheSize)
	assert.Equal(t, config.DefaultLoggingLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLoggingFormat, cfg.Logging.Format)
	assert.Equal(t, config.DefaultObservabilityServiceName, cfg.Observability.ServiceName)
	assert.Empty(t, cfg.Observability.OTLPEndpoint)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
diff:
  depth: immediates
  context_lines: 5
  ignore_ancestry: true
  show_copies_as_adds: true
  color: true
merge:
  history_cache_size: 64
logging:
  level: debug
  format: json
observability:
  otlp_endpoint: "localhost:4317"
  otlp_headers: "x-team=vcs, x-env=ci"
  sample_ratio: 0.25
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "immediates", cfg.Diff.Depth)
	assert.Equal(t, testContextLines, cfg.Diff.ContextLines)
	assert.True(t, cfg.Diff.IgnoreAncestry)
	assert.True(t, cfg.Diff.ShowCopiesAsAdds)
	assert.True(t, cfg.Diff.Color)
	assert.Equal(t, testCacheSize, cfg.Merge.HistoryCacheSize)

	opts := cfg.Diff.DiffOptions()
	assert.Equal(t, vcs.DepthImmediates, opts.Depth)
	assert.True(t, opts.IgnoreAncestry)
	assert.True(t, opts.ShowCopiesAsAdds)
	assert.False(t, opts.Reverse)

	popts := cfg.Diff.PrinterOptions()
	assert.Equal(t, testContextLines, popts.ContextLines)
	assert.True(t, popts.Color)

	tel := cfg.Telemetry("1.2.3")
	assert.Equal(t, "1.2.3", tel.ServiceVersion)
	assert.Equal(t, observability.ModeCLI, tel.Mode)
	assert.Equal(t, slog.LevelDebug, tel.LogLevel)
	assert.True(t, tel.LogJSON)
	assert.Equal(t, "localhost:4317", tel.OTLPEndpoint)
	assert.Equal(t, map[string]string{"x-team": "vcs", "x-env": "ci"}, tel.OTLPHeaders)
	assert.InDelta(t, testSampleRatio, tel.SampleRatio, 0.001)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("TREEMERGE_DIFF_DEPTH", "files")
	t.Setenv("TREEMERGE_MERGE_HISTORY_CACHE_SIZE", "8")
	t.Setenv("TREEMERGE_LOGGING_LEVEL", "warn")

	cfg, err := config.LoadConfig(writeConfig(t, "diff:\n  depth: empty\n"))
	require.NoError(t, err)

	assert.Equal(t, "files", cfg.Diff.Depth)
	assert.Equal(t, 8, cfg.Merge.HistoryCacheSize)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"bad depth", "diff:\n  depth: deep\n", config.ErrInvalidDepth},
		{"negative context", "diff:\n  context_lines: -1\n", config.ErrInvalidContextLines},
		{"zero cache", "merge:\n  history_cache_size: 0\n", config.ErrInvalidCacheSize},
		{"bad level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"bad format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"bad ratio", "observability:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "diff:\n  depth: [broken\n"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
