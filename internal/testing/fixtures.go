package testing

import (
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// NewRuleFixtures returns a set of regulatory rules for use in tests
func NewRuleFixtures() []*domain.RegulatoryRule {
	return []*domain.RegulatoryRule{
		{
			Code:                 "SEC-13D",
			Name:                 "SEC Schedule 13D",
			Jurisdiction:         "US",
			ThresholdPercent:     5.0,
			DeadlineBusinessDays: 5,
		},
		{
			Code:                 "FCA-TR1",
			Name:                 "FCA TR-1 Major Shareholding Notification",
			Jurisdiction:         "UK",
			ThresholdPercent:     3.0,
			DeadlineBusinessDays: 2,
		},
	}
}

// NewHoldingFixtures returns a set of test holdings wired to NewRuleFixtures
func NewHoldingFixtures() []*domain.Holding {
	rules := NewRuleFixtures()
	now := time.Now().UTC()
	return []*domain.Holding{
		{
			Ticker:                 "AAPL",
			Issuer:                 "Apple Inc.",
			ISIN:                   "US0378331005",
			Jurisdiction:           "US",
			SharesOwned:            1_000_000,
			TotalSharesOutstanding: 15_000_000_000,
			Price:                  190.0,
			Rule:                   rules[0],
			AssetStatus:            domain.AssetStatusOK,
			LastUpdated:            now,
		},
		{
			Ticker:                 "VOD",
			Issuer:                 "Vodafone Group Plc",
			ISIN:                   "GB00BH4HKS39",
			Jurisdiction:           "UK",
			SharesOwned:            750_000_000,
			TotalSharesOutstanding: 27_000_000_000,
			Price:                  0.72,
			Rule:                   rules[1],
			AssetStatus:            domain.AssetStatusOK,
			LastUpdated:            now,
			Derivatives: []domain.DerivativePosition{
				{Type: domain.OptionCall, Contracts: 10_000, Delta: 0.5},
			},
		},
	}
}
