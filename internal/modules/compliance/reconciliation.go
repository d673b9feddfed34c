package compliance

import (
	"math"

	"github.com/aristath/vigil/internal/domain"
)

// Maximum tolerated relative disagreement between any pair of
// shares-outstanding reference sources before the holding is flagged.
const reconciliationTolerance = 0.01

// ReconciliationResult reports denominator confidence across the primary
// shares-outstanding figure and up to two secondary reference sources.
type ReconciliationResult struct {
	Confident       bool    `json:"confident"`
	MaxRelativeDiff float64 `json:"max_relative_diff"`
	SourcesCompared int     `json:"sources_compared"`
}

// CheckDenominatorConfidence compares up to three candidate total-shares
// figures pairwise. Sources reported as 0 are treated as unavailable and
// skipped. If any pair differs by more than 1% relative to the smaller of
// the pair, confidence is lost and the holding must be flagged with a
// data-quality status that gates any auto-filing action.
func CheckDenominatorConfidence(primary, bloomberg, refinitiv float64) ReconciliationResult {
	sources := make([]float64, 0, 3)
	for _, v := range []float64{primary, bloomberg, refinitiv} {
		if v > 0 {
			sources = append(sources, v)
		}
	}

	result := ReconciliationResult{
		Confident:       true,
		SourcesCompared: len(sources),
	}

	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			relDiff := math.Abs(sources[i]-sources[j]) / math.Min(sources[i], sources[j])
			if relDiff > result.MaxRelativeDiff {
				result.MaxRelativeDiff = relDiff
			}
		}
	}

	if result.MaxRelativeDiff > reconciliationTolerance {
		result.Confident = false
	}
	return result
}

// CanAutoFile reports whether a holding is eligible for automated filing.
// The data-quality flag gates auto-filing independently of breach status:
// while reference sources disagree, no filing may be generated from the
// questionable denominator.
func CanAutoFile(h *domain.Holding) bool {
	return h.AssetStatus == domain.AssetStatusOK
}
