// Package compliance computes delta-adjusted exposure, ownership percentage,
// breach classification, time-to-breach projection, denominator confidence,
// and regulatory filing deadlines.
//
// All computations are pure functions of their inputs: the same holding
// always yields the same calculation. Invalid inputs (non-positive shares
// outstanding) are rejected with a typed ComputationError rather than
// producing NaN or Infinity.
package compliance

import (
	"fmt"

	"github.com/aristath/vigil/internal/domain"
)

// Warning band floor as a fraction of the threshold
const warningFactor = 0.9

// Standard option contract size (shares per contract)
const contractSize = 100

// ComputationError describes invalid compliance input. It is returned to the
// caller instead of silently producing NaN/Infinity; a single failing holding
// must not prevent other holdings in a batch from being processed.
type ComputationError struct {
	Ticker string
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation error for %s: %s: %s", e.Ticker, e.Field, e.Reason)
}

// Calculator performs exposure and breach computations
type Calculator struct{}

// NewCalculator creates a new compliance calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// TotalExposure returns the delta-adjusted exposure for a holding:
//
//	totalExposure = sharesOwned + Σ(contracts × 100 × delta)
//
// Calls contribute positive delta, puts negative; a put whose delta was
// recorded unsigned is normalized to its negative form. The net effect of
// derivatives may reduce exposure below direct shares.
func (c *Calculator) TotalExposure(h *domain.Holding) float64 {
	exposure := h.SharesOwned
	for _, d := range h.Derivatives {
		delta := d.Delta
		if d.Type == domain.OptionPut && delta > 0 {
			delta = -delta
		}
		exposure += float64(d.Contracts) * contractSize * delta
	}
	return exposure
}

// DirectExposure returns the legacy shares-only exposure, used when
// derivative data is absent or a caller explicitly requests the
// backward-compatible path.
func (c *Calculator) DirectExposure(h *domain.Holding) float64 {
	return h.SharesOwned
}

// OwnershipPercent computes exposure as a percentage of total shares
// outstanding. Returns a ComputationError when shares outstanding is not
// positive - the percentage is undefined in that case.
func (c *Calculator) OwnershipPercent(h *domain.Holding) (float64, error) {
	if h.TotalSharesOutstanding <= 0 {
		return 0, &ComputationError{
			Ticker: h.Ticker,
			Field:  "total_shares_outstanding",
			Reason: fmt.Sprintf("must be positive, got %v", h.TotalSharesOutstanding),
		}
	}
	return c.TotalExposure(h) / h.TotalSharesOutstanding * 100, nil
}

// Calculate computes the full derived compliance state for a holding.
//
// Classification is evaluated in order: breach when ownershipPercent >=
// threshold, warning when >= 0.9 x threshold, safe otherwise. Time to breach
// is projected only when not already in breach and buying velocity is
// positive; when the projected shares-to-breach is not positive the holding
// is classified breach with zero projected time regardless of the velocity
// branch.
func (c *Calculator) Calculate(h *domain.Holding) (*domain.BreachCalculation, error) {
	if h.Rule == nil {
		return nil, &ComputationError{Ticker: h.Ticker, Field: "rule", Reason: "regulatory rule missing"}
	}

	exposure := c.TotalExposure(h)
	percent, err := c.OwnershipPercent(h)
	if err != nil {
		return nil, err
	}

	threshold := h.Rule.ThresholdPercent
	calc := &domain.BreachCalculation{
		OwnershipPercent: percent,
		TotalExposure:    exposure,
	}

	switch {
	case percent >= threshold:
		calc.Status = domain.StatusBreach
	case percent >= threshold*warningFactor:
		calc.Status = domain.StatusWarning
	default:
		calc.Status = domain.StatusSafe
	}

	if calc.Status != domain.StatusBreach && h.BuyingVelocity > 0 {
		thresholdShares := threshold / 100 * h.TotalSharesOutstanding
		sharesToBreach := thresholdShares - exposure

		if sharesToBreach <= 0 {
			// Exposure already at or past the threshold share count
			calc.Status = domain.StatusBreach
			zero := 0.0
			calc.ProjectedBreachTime = &zero
		} else {
			hours := sharesToBreach / h.BuyingVelocity
			calc.ProjectedBreachTime = &hours
		}
	}

	calc.TimeToBreach = formatTimeToBreach(calc)
	return calc, nil
}

// formatTimeToBreach renders the human-readable projection string.
// Breach reads "Active Breach"; a warning with a projection reads
// "Breach in Xh" under 24 hours or "Breach in Xd" at or beyond; everything
// else reads "Safe".
func formatTimeToBreach(calc *domain.BreachCalculation) string {
	if calc.Status == domain.StatusBreach {
		return "Active Breach"
	}
	if calc.Status == domain.StatusWarning && calc.ProjectedBreachTime != nil {
		hours := *calc.ProjectedBreachTime
		if hours < 24 {
			return fmt.Sprintf("Breach in %.1fh", hours)
		}
		return fmt.Sprintf("Breach in %.1fd", hours/24)
	}
	return "Safe"
}

// LegacySharesToBreach estimates the shares remaining until breach without a
// shares-outstanding figure, using the current ownership percentage as a
// fixed shares-per-percent approximation. This is a documented fallback only;
// the shares-outstanding formula in Calculate is canonical.
func LegacySharesToBreach(sharesOwned, ownershipPercent, thresholdPercent float64) (float64, error) {
	if ownershipPercent <= 0 {
		return 0, &ComputationError{
			Field:  "ownership_percent",
			Reason: "legacy approximation requires a positive ownership percentage",
		}
	}
	sharesPerPercent := sharesOwned / ownershipPercent
	return (thresholdPercent - ownershipPercent) * sharesPerPercent, nil
}
