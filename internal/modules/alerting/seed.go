package alerting

import (
	"github.com/aristath/vigil/internal/domain"
)

// SeedDefaultRules inserts the default rule set when the rules table is
// empty. Existing rules are never touched.
func SeedDefaultRules(repo *Repository) error {
	existing, err := repo.ListRules()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, rule := range defaultRules() {
		if err := repo.CreateRule(rule); err != nil {
			return err
		}
	}
	return nil
}

func defaultRules() []*AlertRule {
	return []*AlertRule{
		{
			Name:        "Active breach",
			Description: "Any holding crossing its disclosure threshold",
			Enabled:     true,
			Conditions: []Condition{
				{Type: ConditionBreach, Operator: OpEquals, Value: true},
			},
			Recipients:      []string{AllUsersRecipient},
			Channels:        []domain.NotificationChannel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush},
			Severity:        SeverityCritical,
			CooldownMinutes: 60,
		},
		{
			Name:        "Imminent breach",
			Description: "Warning-band holdings projected to breach within 24 hours",
			Enabled:     true,
			Conditions: []Condition{
				{Type: ConditionWarning, Operator: OpEquals, Value: true},
				{Type: ConditionTimeToBreach, Operator: OpLessThan, Value: 24.0},
			},
			Recipients:      []string{AllUsersRecipient},
			Channels:        []domain.NotificationChannel{domain.ChannelEmail, domain.ChannelPush},
			Severity:        SeverityHigh,
			CooldownMinutes: 120,
		},
		{
			Name:        "UK threshold watch",
			Description: "Warning-band holdings under the tighter UK disclosure regime",
			Enabled:     true,
			Conditions: []Condition{
				{Type: ConditionJurisdiction, Operator: OpEquals, Value: "UK"},
				{Type: ConditionWarning, Operator: OpEquals, Value: true},
			},
			Recipients:      []string{AllUsersRecipient},
			Channels:        []domain.NotificationChannel{domain.ChannelEmail},
			Severity:        SeverityHigh,
			CooldownMinutes: 240,
		},
	}
}
