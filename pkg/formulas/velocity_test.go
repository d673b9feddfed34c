package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestCalculateEMA_EmptySeries(t *testing.T) {
	assert.Nil(t, CalculateEMA(nil, 5))
}

func TestCalculateEMA_ShortSeriesFallsBackToMean(t *testing.T) {
	result := CalculateEMA([]float64{10, 20}, 5)
	require.NotNil(t, result)
	assert.Equal(t, 15.0, *result)
}

func TestCalculateEMA_ConstantSeries(t *testing.T) {
	series := make([]float64, 20)
	for i := range series {
		series[i] = 100.0
	}

	result := CalculateEMA(series, 5)
	require.NotNil(t, result)
	assert.InDelta(t, 100.0, *result, 1e-9)
}

func TestSmoothedVelocity(t *testing.T) {
	// 10,000 shares accumulated per hour, consistently
	deltas := []float64{10000, 10000, 10000, 10000}
	hours := []float64{1, 1, 1, 1}

	velocity := SmoothedVelocity(deltas, hours, 3)
	assert.InDelta(t, 10000.0, velocity, 1e-6)
}

func TestSmoothedVelocity_SkipsZeroElapsed(t *testing.T) {
	deltas := []float64{5000, 99999, 5000}
	hours := []float64{1, 0, 1}

	velocity := SmoothedVelocity(deltas, hours, 5)
	assert.InDelta(t, 5000.0, velocity, 1e-6)
}

func TestSmoothedVelocity_NoSamples(t *testing.T) {
	assert.Equal(t, 0.0, SmoothedVelocity(nil, nil, 5))
	assert.Equal(t, 0.0, SmoothedVelocity([]float64{100}, []float64{0}, 5))
}
