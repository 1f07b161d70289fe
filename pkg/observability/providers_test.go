package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)
	require.NotNil(t, providers.Logger)

	_, span := providers.Tracer.Start(context.Background(), "diff.walk")
	assert.False(t, span.IsRecording())
	span.End()

	counter, err := providers.Meter.Int64Counter("treemerge.test")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_WithEndpoint(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.OTLPEndpoint = "localhost:4317"
	cfg.OTLPInsecure = true
	cfg.ShutdownTimeoutSec = 1

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	_, span := providers.Tracer.Start(context.Background(), "merge.apply")
	assert.True(t, span.IsRecording())
	span.End()

	// Nothing listens on the endpoint; the flush may fail but must return.
	_ = providers.Shutdown(context.Background())
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "ci"

	res, err := observability.NewResource(cfg)
	require.NoError(t, err)

	attrs := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}

	assert.Equal(t, "treemerge", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "ci", attrs["deployment.environment"])
	assert.Equal(t, "cli", attrs["app.mode"])
}

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		debug bool
		ratio float64
		want  bool
	}{
		{"default keeps everything", false, 1, true},
		{"zero ratio drops roots", false, 0, false},
		{"debug overrides ratio", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := observability.DefaultConfig()
			cfg.DebugTrace = tt.debug
			cfg.SampleRatio = tt.ratio

			assert.Equal(t, tt.want, observability.SamplesRoot(cfg))
		})
	}
}

func TestShutdownTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, observability.ShutdownTimeout(observability.Config{}))
	assert.Equal(t, 2*time.Second, observability.ShutdownTimeout(observability.Config{ShutdownTimeoutSec: 2}))
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t,
		map[string]string{"api-key": "secret", "tenant": "ops"},
		observability.ParseOTLPHeaders(" api-key = secret ,tenant=ops,broken"),
	)
}
