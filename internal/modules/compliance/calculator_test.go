package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/domain"
)

func testRule() *domain.RegulatoryRule {
	return &domain.RegulatoryRule{
		Code:                 "US_13D",
		Name:                 "SEC Schedule 13D",
		Jurisdiction:         "US",
		ThresholdPercent:     5.0,
		DeadlineBusinessDays: 5,
	}
}

func testHolding(sharesOwned, totalShares float64) *domain.Holding {
	return &domain.Holding{
		Ticker:                 "ACME",
		Issuer:                 "Acme Corp",
		Jurisdiction:           "US",
		SharesOwned:            sharesOwned,
		TotalSharesOutstanding: totalShares,
		Rule:                   testRule(),
		AssetStatus:            domain.AssetStatusOK,
	}
}

func TestTotalExposure_SharesOnly(t *testing.T) {
	c := NewCalculator()
	h := testHolding(1_000_000, 100_000_000)

	assert.Equal(t, 1_000_000.0, c.TotalExposure(h))
}

func TestTotalExposure_DeltaAdjusted(t *testing.T) {
	c := NewCalculator()
	h := testHolding(1_000_000, 100_000_000)
	h.Derivatives = []domain.DerivativePosition{
		{Type: domain.OptionCall, Contracts: 500, Delta: 0.6},  // +30,000
		{Type: domain.OptionPut, Contracts: 200, Delta: -0.4},  // -8,000
	}

	assert.InDelta(t, 1_022_000.0, c.TotalExposure(h), 1e-9)
}

func TestTotalExposure_PutDeltaNormalized(t *testing.T) {
	c := NewCalculator()
	h := testHolding(1_000_000, 100_000_000)
	// Put delta recorded unsigned - must still reduce exposure
	h.Derivatives = []domain.DerivativePosition{
		{Type: domain.OptionPut, Contracts: 200, Delta: 0.4},
	}

	assert.InDelta(t, 992_000.0, c.TotalExposure(h), 1e-9)
}

func TestTotalExposure_PutsCanDragBelowDirectShares(t *testing.T) {
	c := NewCalculator()
	h := testHolding(10_000, 100_000_000)
	h.Derivatives = []domain.DerivativePosition{
		{Type: domain.OptionPut, Contracts: 5_000, Delta: -0.9}, // -450,000
	}

	assert.Less(t, c.TotalExposure(h), h.SharesOwned)
}

func TestOwnershipPercent_InvalidDenominator(t *testing.T) {
	c := NewCalculator()

	for _, total := range []float64{0, -100} {
		h := testHolding(1_000_000, total)

		_, err := c.OwnershipPercent(h)
		require.Error(t, err)

		var compErr *ComputationError
		require.ErrorAs(t, err, &compErr)
		assert.Equal(t, "ACME", compErr.Ticker)
		assert.Equal(t, "total_shares_outstanding", compErr.Field)
	}
}

func TestCalculate_ActiveBreach(t *testing.T) {
	c := NewCalculator()
	h := testHolding(5_200_000, 100_000_000)

	calc, err := c.Calculate(h)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusBreach, calc.Status)
	assert.InDelta(t, 5.2, calc.OwnershipPercent, 1e-9)
	assert.Equal(t, "Active Breach", calc.TimeToBreach)
	assert.Nil(t, calc.ProjectedBreachTime)
}

func TestCalculate_WarningWithDayProjection(t *testing.T) {
	c := NewCalculator()
	h := testHolding(4_600_000, 100_000_000)
	h.BuyingVelocity = 10_000 // shares per hour

	calc, err := c.Calculate(h)
	require.NoError(t, err)

	// 400,000 shares to breach at 10,000/hr = 40h, rendered in days
	assert.Equal(t, domain.StatusWarning, calc.Status)
	require.NotNil(t, calc.ProjectedBreachTime)
	assert.InDelta(t, 40.0, *calc.ProjectedBreachTime, 1e-9)
	assert.Equal(t, "Breach in 1.7d", calc.TimeToBreach)
}

func TestCalculate_WarningWithHourProjection(t *testing.T) {
	c := NewCalculator()
	h := testHolding(4_900_000, 100_000_000)
	h.BuyingVelocity = 20_000

	calc, err := c.Calculate(h)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusWarning, calc.Status)
	require.NotNil(t, calc.ProjectedBreachTime)
	assert.InDelta(t, 5.0, *calc.ProjectedBreachTime, 1e-9)
	assert.Equal(t, "Breach in 5.0h", calc.TimeToBreach)
}

func TestCalculate_BoundaryClassification(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		name        string
		sharesOwned float64
		want        domain.BreachStatus
	}{
		{"exactly at threshold is breach", 5_000_000, domain.StatusBreach},
		{"exactly at warning floor is warning", 4_500_000, domain.StatusWarning},
		{"just below warning floor is safe", 4_499_999, domain.StatusSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHolding(tt.sharesOwned, 100_000_000)

			calc, err := c.Calculate(h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, calc.Status)
		})
	}
}

func TestCalculate_NoProjectionWithoutVelocity(t *testing.T) {
	c := NewCalculator()

	for _, velocity := range []float64{0, -500} {
		h := testHolding(4_600_000, 100_000_000)
		h.BuyingVelocity = velocity

		calc, err := c.Calculate(h)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusWarning, calc.Status)
		assert.Nil(t, calc.ProjectedBreachTime)
		assert.Equal(t, "Safe", calc.TimeToBreach)
	}
}

func TestCalculate_SafeHolding(t *testing.T) {
	c := NewCalculator()
	h := testHolding(1_000_000, 100_000_000)
	h.BuyingVelocity = 5_000

	calc, err := c.Calculate(h)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSafe, calc.Status)
	assert.Equal(t, "Safe", calc.TimeToBreach)
}

func TestCalculate_DerivativesPushPastThresholdShares(t *testing.T) {
	c := NewCalculator()
	// Direct shares classify as warning, but the call positions lift total
	// exposure past the threshold share count: breach with zero projection.
	h := testHolding(4_900_000, 100_000_000)
	h.BuyingVelocity = 1_000
	h.Derivatives = []domain.DerivativePosition{
		{Type: domain.OptionCall, Contracts: 2_000, Delta: 1.0}, // +200,000
	}

	calc, err := c.Calculate(h)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusBreach, calc.Status)
	assert.Equal(t, "Active Breach", calc.TimeToBreach)
}

func TestCalculate_MissingRule(t *testing.T) {
	c := NewCalculator()
	h := testHolding(1_000_000, 100_000_000)
	h.Rule = nil

	_, err := c.Calculate(h)
	require.Error(t, err)

	var compErr *ComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "rule", compErr.Field)
}

func TestCalculate_InvalidDenominatorPropagates(t *testing.T) {
	c := NewCalculator()
	h := testHolding(1_000_000, 0)

	_, err := c.Calculate(h)
	require.Error(t, err)
}

func TestLegacySharesToBreach(t *testing.T) {
	// 4.6% held as 4,600,000 shares: 1,000,000 shares per percent,
	// 0.4 percent of headroom.
	shares, err := LegacySharesToBreach(4_600_000, 4.6, 5.0)
	require.NoError(t, err)
	assert.InDelta(t, 400_000, shares, 1e-6)

	_, err = LegacySharesToBreach(1_000_000, 0, 5.0)
	require.Error(t, err)
}
