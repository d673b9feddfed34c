// Package formulas provides numeric helpers shared across modules.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Mean returns the arithmetic mean of the values, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// CalculateEMA calculates the Exponential Moving Average over the series and
// returns the most recent value, or nil if the series is empty.
//
// EMA Formula:
//
//	EMA_today = (X_today × multiplier) + (EMA_yesterday × (1 - multiplier))
//	where multiplier = 2 / (period + 1)
func CalculateEMA(values []float64, length int) *float64 {
	if len(values) == 0 {
		return nil
	}

	// If not enough data for proper EMA, fallback to the plain mean
	if len(values) < length {
		mean := Mean(values)
		return &mean
	}

	ema := talib.Ema(values, length)
	if len(ema) > 0 && !math.IsNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	mean := Mean(values[len(values)-length:])
	return &mean
}

// SmoothedVelocity estimates shares-per-hour accumulation from a series of
// observed (quantityDelta, elapsedHours) samples, EMA-weighted so the most
// recent accumulation dominates. Samples with non-positive elapsed time are
// skipped. Returns 0 when no usable samples exist.
func SmoothedVelocity(quantityDeltas, elapsedHours []float64, emaLength int) float64 {
	n := len(quantityDeltas)
	if len(elapsedHours) < n {
		n = len(elapsedHours)
	}

	rates := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if elapsedHours[i] <= 0 {
			continue
		}
		rates = append(rates, quantityDeltas[i]/elapsedHours[i])
	}

	smoothed := CalculateEMA(rates, emaLength)
	if smoothed == nil {
		return 0
	}
	return *smoothed
}
