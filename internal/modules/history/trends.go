package history

import (
	"gonum.org/v1/gonum/stat"
)

// Counts must move by more than this between the first and last point of a
// window before the direction is called
const trendDeltaThreshold = 2.0

// TrendDirection labels how a counted series moved over a window.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendAnalysis summarizes the movement of the trend series over a window.
type TrendAnalysis struct {
	Points            int            `json:"points"`
	BreachTrend       TrendDirection `json:"breach_trend"`
	BreachDelta       float64        `json:"breach_delta"`
	WarningTrend      TrendDirection `json:"warning_trend"`
	WarningDelta      float64        `json:"warning_delta"`
	MeanOwnershipStep float64        `json:"mean_ownership_step"` // mean consecutive delta of avg ownership percent
	MeanVelocityStep  float64        `json:"mean_velocity_step"`  // mean consecutive delta of avg buying velocity
}

// AnalyzeTrends compares the first and last trend point in a chronologically
// ordered window. Breach and warning counts are classified as increasing when
// the delta exceeds +2, decreasing when below -2, and stable otherwise. The
// average-ownership and average-velocity series are summarized as the mean of
// their consecutive deltas.
func AnalyzeTrends(points []TrendDataPoint) TrendAnalysis {
	analysis := TrendAnalysis{
		Points:       len(points),
		BreachTrend:  TrendStable,
		WarningTrend: TrendStable,
	}
	if len(points) < 2 {
		return analysis
	}

	first := points[0]
	last := points[len(points)-1]

	analysis.BreachDelta = float64(last.TotalBreaches - first.TotalBreaches)
	analysis.BreachTrend = classify(analysis.BreachDelta)
	analysis.WarningDelta = float64(last.TotalWarnings - first.TotalWarnings)
	analysis.WarningTrend = classify(analysis.WarningDelta)

	ownershipSteps := make([]float64, 0, len(points)-1)
	velocitySteps := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		ownershipSteps = append(ownershipSteps, points[i].AvgOwnershipPercent-points[i-1].AvgOwnershipPercent)
		velocitySteps = append(velocitySteps, points[i].AvgBuyingVelocity-points[i-1].AvgBuyingVelocity)
	}
	analysis.MeanOwnershipStep = stat.Mean(ownershipSteps, nil)
	analysis.MeanVelocityStep = stat.Mean(velocitySteps, nil)

	return analysis
}

func classify(delta float64) TrendDirection {
	switch {
	case delta > trendDeltaThreshold:
		return TrendIncreasing
	case delta < -trendDeltaThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
