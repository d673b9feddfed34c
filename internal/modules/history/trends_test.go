package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func trendPoint(minutesAgo, breaches, warnings int, avgPct, avgVel float64) TrendDataPoint {
	return TrendDataPoint{
		Timestamp:           time.Now().UTC().Add(-time.Duration(minutesAgo) * time.Minute),
		TotalBreaches:       breaches,
		TotalWarnings:       warnings,
		AvgOwnershipPercent: avgPct,
		AvgBuyingVelocity:   avgVel,
	}
}

func TestAnalyzeTrends_TooFewPoints(t *testing.T) {
	analysis := AnalyzeTrends([]TrendDataPoint{trendPoint(10, 5, 2, 3.0, 100)})

	assert.Equal(t, 1, analysis.Points)
	assert.Equal(t, TrendStable, analysis.BreachTrend)
	assert.Equal(t, TrendStable, analysis.WarningTrend)
}

func TestAnalyzeTrends_Increasing(t *testing.T) {
	points := []TrendDataPoint{
		trendPoint(30, 1, 2, 3.0, 100),
		trendPoint(20, 3, 2, 3.2, 150),
		trendPoint(10, 4, 3, 3.4, 200),
	}

	analysis := AnalyzeTrends(points)

	assert.Equal(t, TrendIncreasing, analysis.BreachTrend)
	assert.Equal(t, 3.0, analysis.BreachDelta)
	assert.Equal(t, TrendStable, analysis.WarningTrend, "delta of 1 is within the stable band")
	assert.InDelta(t, 0.2, analysis.MeanOwnershipStep, 1e-9)
	assert.InDelta(t, 50.0, analysis.MeanVelocityStep, 1e-9)
}

func TestAnalyzeTrends_Decreasing(t *testing.T) {
	points := []TrendDataPoint{
		trendPoint(20, 8, 10, 4.0, 500),
		trendPoint(10, 3, 6, 3.5, 400),
	}

	analysis := AnalyzeTrends(points)

	assert.Equal(t, TrendDecreasing, analysis.BreachTrend)
	assert.Equal(t, TrendDecreasing, analysis.WarningTrend)
	assert.Equal(t, -5.0, analysis.BreachDelta)
}

func TestAnalyzeTrends_BoundaryDeltaIsStable(t *testing.T) {
	// A delta of exactly +2 or -2 does not flip the direction
	up := AnalyzeTrends([]TrendDataPoint{
		trendPoint(20, 1, 4, 3.0, 100),
		trendPoint(10, 3, 2, 3.0, 100),
	})

	assert.Equal(t, TrendStable, up.BreachTrend)
	assert.Equal(t, TrendStable, up.WarningTrend)
}
