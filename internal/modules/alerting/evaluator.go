package alerting

import (
	"strings"
	"sync"
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// RuleEvaluator matches rules against computed compliance state and tracks
// per (rule, holding) cooldown timestamps. The cooldown map read-check-update
// is atomic: two concurrent fires for the same pair cannot both pass.
type RuleEvaluator struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
	now       func() time.Time
}

// NewRuleEvaluator creates an evaluator with an empty cooldown map
func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Matches reports whether every condition of the rule holds against the
// holding's computed state. Rules with no conditions never match.
func (e *RuleEvaluator) Matches(rule *AlertRule, h *domain.Holding, calc *domain.BreachCalculation) bool {
	if !rule.Enabled || len(rule.Conditions) == 0 {
		return false
	}
	for _, condition := range rule.Conditions {
		if !matchCondition(condition, h, calc) {
			return false
		}
	}
	return true
}

// ShouldFire checks the cooldown window for a (rule, holding) pair and, when
// the pair is clear, stamps it in the same critical section.
func (e *RuleEvaluator) ShouldFire(ruleID, ticker string, cooldownMinutes int) bool {
	key := ruleID + "|" + ticker
	window := time.Duration(cooldownMinutes) * time.Minute

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if fired, ok := e.lastFired[key]; ok && now.Sub(fired) < window {
		return false
	}
	e.lastFired[key] = now
	return true
}

// ResetCooldown clears the stamp for a (rule, holding) pair. Used when a
// fire attempt dispatched nothing, so the next evaluation can retry.
func (e *RuleEvaluator) ResetCooldown(ruleID, ticker string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.lastFired, ruleID+"|"+ticker)
}

// PruneCooldowns drops stamps older than the given horizon. Run periodically
// so the map does not grow with every rule+ticker pair ever fired.
func (e *RuleEvaluator) PruneCooldowns(olderThan time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-olderThan)
	pruned := 0
	for key, fired := range e.lastFired {
		if fired.Before(cutoff) {
			delete(e.lastFired, key)
			pruned++
		}
	}
	return pruned
}

func matchCondition(c Condition, h *domain.Holding, calc *domain.BreachCalculation) bool {
	switch c.Type {
	case ConditionBreach:
		return compareBool(c.Operator, calc.Status == domain.StatusBreach, c.Value)
	case ConditionWarning:
		return compareBool(c.Operator, calc.Status == domain.StatusWarning, c.Value)
	case ConditionTimeToBreach:
		if calc.ProjectedBreachTime == nil {
			return false
		}
		return compareNumber(c.Operator, *calc.ProjectedBreachTime, c.Value)
	case ConditionThreshold:
		if h.Rule == nil {
			return false
		}
		return compareNumber(c.Operator, h.Rule.ThresholdPercent, c.Value)
	case ConditionJurisdiction:
		return compareString(c.Operator, h.Jurisdiction, c.Value)
	}
	return false
}

func compareBool(op Operator, observed bool, value interface{}) bool {
	expected, ok := asBool(value)
	if !ok || op != OpEquals {
		return false
	}
	return observed == expected
}

func compareNumber(op Operator, observed float64, value interface{}) bool {
	expected, ok := asFloat(value)
	if !ok {
		return false
	}
	switch op {
	case OpEquals:
		return observed == expected
	case OpLessThan:
		return observed < expected
	case OpGreaterThan:
		return observed > expected
	}
	return false
}

func compareString(op Operator, observed string, value interface{}) bool {
	expected, ok := value.(string)
	if !ok || op != OpEquals {
		return false
	}
	return strings.EqualFold(observed, expected)
}

// asBool accepts native bools plus the string forms JSON round-trips can
// produce.
func asBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		if strings.EqualFold(v, "true") {
			return true, true
		}
		if strings.EqualFold(v, "false") {
			return false, true
		}
	}
	return false, false
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
