package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/vigil/internal/domain"
)

func TestCheckDenominatorConfidence_SourcesAgree(t *testing.T) {
	// Within 1% of each other pairwise
	result := CheckDenominatorConfidence(100_000_000, 100_500_000, 99_800_000)

	assert.True(t, result.Confident)
	assert.Equal(t, 3, result.SourcesCompared)
	assert.LessOrEqual(t, result.MaxRelativeDiff, reconciliationTolerance)
}

func TestCheckDenominatorConfidence_SourcesDisagree(t *testing.T) {
	// Bloomberg 9.51B vs Refinitiv 9.63B is a 1.26% relative difference
	result := CheckDenominatorConfidence(9_510_000_000, 9_510_000_000, 9_630_000_000)

	assert.False(t, result.Confident)
	assert.InDelta(t, 0.0126, result.MaxRelativeDiff, 0.0002)
}

func TestCheckDenominatorConfidence_MissingSourcesSkipped(t *testing.T) {
	result := CheckDenominatorConfidence(100_000_000, 0, 0)

	assert.True(t, result.Confident)
	assert.Equal(t, 1, result.SourcesCompared)
	assert.Zero(t, result.MaxRelativeDiff)
}

func TestCheckDenominatorConfidence_TwoSources(t *testing.T) {
	result := CheckDenominatorConfidence(100_000_000, 0, 103_000_000)

	assert.False(t, result.Confident)
	assert.Equal(t, 2, result.SourcesCompared)
}

func TestCanAutoFile(t *testing.T) {
	h := &domain.Holding{Ticker: "ACME", AssetStatus: domain.AssetStatusOK}
	assert.True(t, CanAutoFile(h))

	h.AssetStatus = domain.AssetStatusDataQuality
	assert.False(t, CanAutoFile(h))
}
