package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

var errInstrument = errors.New("instrument refused")

type refusingMeter struct {
	noopmetric.Meter
}

func (refusingMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return noopmetric.Int64Counter{}, errInstrument
}

func TestInstruments_Create(t *testing.T) {
	t.Parallel()

	in := &instruments{meter: noopmetric.NewMeterProvider().Meter("test")}

	assert.NotNil(t, in.counter("treemerge.test.total", "test", "{x}"))
	assert.NotNil(t, in.seconds("treemerge.test.seconds", "test", durationBucketBoundaries))
	require.NoError(t, in.err())
}

func TestInstruments_CollectsEveryError(t *testing.T) {
	t.Parallel()

	in := &instruments{meter: refusingMeter{}}

	in.counter("first", "", "")
	in.counter("second", "", "")

	err := in.err()
	require.ErrorIs(t, err, errInstrument)
	assert.Contains(t, err.Error(), "create first")
	assert.Contains(t, err.Error(), "create second")

	_, err = NewCommandMetrics(refusingMeter{})
	require.ErrorIs(t, err, errInstrument)
}
