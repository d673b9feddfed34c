package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/vigil/internal/domain"
)

func warningHolding() (*domain.Holding, *domain.BreachCalculation) {
	hours := 12.0
	h := &domain.Holding{
		Ticker:       "ACME",
		Jurisdiction: "US",
		Rule:         &domain.RegulatoryRule{Code: "SEC-13D", ThresholdPercent: 5.0},
	}
	calc := &domain.BreachCalculation{
		Status:              domain.StatusWarning,
		OwnershipPercent:    4.7,
		ProjectedBreachTime: &hours,
		TimeToBreach:        "Breach in 12.0h",
	}
	return h, calc
}

func enabledRule(conditions ...Condition) *AlertRule {
	return &AlertRule{
		ID:         "rule-1",
		Name:       "test rule",
		Enabled:    true,
		Conditions: conditions,
	}
}

func TestMatches_ConditionTable(t *testing.T) {
	e := NewRuleEvaluator()
	h, calc := warningHolding()

	tests := []struct {
		name      string
		condition Condition
		want      bool
	}{
		{"warning equals true", Condition{ConditionWarning, OpEquals, true}, true},
		{"breach equals true fails", Condition{ConditionBreach, OpEquals, true}, false},
		{"breach equals false", Condition{ConditionBreach, OpEquals, false}, true},
		{"time to breach under 24", Condition{ConditionTimeToBreach, OpLessThan, 24.0}, true},
		{"time to breach over 6", Condition{ConditionTimeToBreach, OpGreaterThan, 6.0}, true},
		{"time to breach under 6 fails", Condition{ConditionTimeToBreach, OpLessThan, 6.0}, false},
		{"threshold equals 5", Condition{ConditionThreshold, OpEquals, 5.0}, true},
		{"jurisdiction equals US", Condition{ConditionJurisdiction, OpEquals, "US"}, true},
		{"jurisdiction case-insensitive", Condition{ConditionJurisdiction, OpEquals, "us"}, true},
		{"jurisdiction mismatch", Condition{ConditionJurisdiction, OpEquals, "UK"}, false},
		{"bool from string form", Condition{ConditionWarning, OpEquals, "true"}, true},
		{"garbage value never matches", Condition{ConditionWarning, OpEquals, 42.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Matches(enabledRule(tt.condition), h, calc))
		})
	}
}

func TestMatches_AllConditionsMustHold(t *testing.T) {
	e := NewRuleEvaluator()
	h, calc := warningHolding()

	rule := enabledRule(
		Condition{ConditionWarning, OpEquals, true},
		Condition{ConditionJurisdiction, OpEquals, "UK"}, // fails
	)
	assert.False(t, e.Matches(rule, h, calc))

	rule = enabledRule(
		Condition{ConditionWarning, OpEquals, true},
		Condition{ConditionTimeToBreach, OpLessThan, 24.0},
	)
	assert.True(t, e.Matches(rule, h, calc))
}

func TestMatches_DisabledOrEmptyRuleNeverMatches(t *testing.T) {
	e := NewRuleEvaluator()
	h, calc := warningHolding()

	disabled := enabledRule(Condition{ConditionWarning, OpEquals, true})
	disabled.Enabled = false
	assert.False(t, e.Matches(disabled, h, calc))

	assert.False(t, e.Matches(enabledRule(), h, calc))
}

func TestMatches_NoProjectionFailsTimeCondition(t *testing.T) {
	e := NewRuleEvaluator()
	h, calc := warningHolding()
	calc.ProjectedBreachTime = nil

	rule := enabledRule(Condition{ConditionTimeToBreach, OpLessThan, 24.0})
	assert.False(t, e.Matches(rule, h, calc))
}

func TestShouldFire_CooldownWindow(t *testing.T) {
	e := NewRuleEvaluator()
	current := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	assert.True(t, e.ShouldFire("rule-1", "ACME", 60))
	assert.False(t, e.ShouldFire("rule-1", "ACME", 60), "second fire inside the window is suppressed")

	// Other pairs are independent
	assert.True(t, e.ShouldFire("rule-1", "BETA", 60))
	assert.True(t, e.ShouldFire("rule-2", "ACME", 60))

	// The window expires
	current = current.Add(61 * time.Minute)
	assert.True(t, e.ShouldFire("rule-1", "ACME", 60))
}

func TestPruneCooldowns(t *testing.T) {
	e := NewRuleEvaluator()
	current := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	e.ShouldFire("rule-1", "ACME", 60)
	current = current.Add(3 * time.Hour)
	e.ShouldFire("rule-1", "BETA", 60)

	pruned := e.PruneCooldowns(2 * time.Hour)
	assert.Equal(t, 1, pruned)
}
