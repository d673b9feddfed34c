package holdings

import (
	"github.com/aristath/vigil/internal/domain"
)

// DefaultRules is the regulatory rule set seeded at startup. Codes are
// stable identifiers referenced by holdings; seeding never overwrites an
// existing row.
func DefaultRules() []*domain.RegulatoryRule {
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
		{
			Code:                 "BAFIN-WPHG33",
			Name:                 "BaFin WpHG §33 Voting Rights Notification",
			Jurisdiction:         "DE",
			ThresholdPercent:     3.0,
			DeadlineBusinessDays: 4,
		},
		{
			Code:                 "JFSA-5PCT",
			Name:                 "JFSA Large Shareholding Report",
			Jurisdiction:         "JP",
			ThresholdPercent:     5.0,
			DeadlineBusinessDays: 5,
		},
	}
}
