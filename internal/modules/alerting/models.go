// Package alerting evaluates alert rules against computed compliance state
// and dispatches notifications through channel collaborators. Each
// (rule, holding) pair moves idle -> evaluating -> (suppressed-by-cooldown |
// fired) -> idle on every evaluation tick.
package alerting

import (
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// AllUsersRecipient is the sentinel recipient id that expands to every
// registered non-default recipient at fire time.
const AllUsersRecipient = "all-users"

// ConditionType selects which field of the computed state a condition reads.
type ConditionType string

const (
	ConditionBreach       ConditionType = "breach"
	ConditionWarning      ConditionType = "warning"
	ConditionTimeToBreach ConditionType = "time_to_breach"
	ConditionThreshold    ConditionType = "threshold"
	ConditionJurisdiction ConditionType = "jurisdiction"
)

// Operator compares a condition's value against the observed field.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpLessThan    Operator = "less_than"
	OpGreaterThan Operator = "greater_than"
)

// Severity ranks notification urgency.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityLow      Severity = "low"
)

// Condition is one Boolean predicate. A rule fires only when every
// condition holds simultaneously.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Value    interface{}   `json:"value"`
}

// AlertRule is a mutable, persisted alerting rule.
type AlertRule struct {
	ID              string                       `json:"id"`
	Name            string                       `json:"name"`
	Description     string                       `json:"description"`
	Enabled         bool                         `json:"enabled"`
	Conditions      []Condition                  `json:"conditions"`
	Recipients      []string                     `json:"recipients"` // recipient ids, may include AllUsersRecipient
	Channels        []domain.NotificationChannel `json:"channels"`
	Severity        Severity                     `json:"severity"`
	CooldownMinutes int                          `json:"cooldown_minutes"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

// Recipient is a registered notification target with per-channel addresses.
type Recipient struct {
	ID        string                       `json:"id"`
	Name      string                       `json:"name"`
	Email     string                       `json:"email,omitempty"`
	Phone     string                       `json:"phone,omitempty"`
	PushToken string                       `json:"push_token,omitempty"`
	Channels  []domain.NotificationChannel `json:"channels"`
	IsDefault bool                         `json:"is_default"`
}

// Address returns the contact address for a channel, empty when unset.
func (r *Recipient) Address(channel domain.NotificationChannel) string {
	switch channel {
	case domain.ChannelEmail:
		return r.Email
	case domain.ChannelSMS:
		return r.Phone
	case domain.ChannelPush:
		return r.PushToken
	}
	return ""
}

// Accepts reports whether the recipient allows a channel.
func (r *Recipient) Accepts(channel domain.NotificationChannel) bool {
	for _, c := range r.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// Notification is an immutable record of one attempted delivery.
type Notification struct {
	ID                string                     `json:"id"`
	AlertRuleID       string                     `json:"alert_rule_id"`
	RecipientID       string                     `json:"recipient_id"`
	Channel           domain.NotificationChannel `json:"channel"`
	Severity          Severity                   `json:"severity"`
	Status            domain.BreachStatus        `json:"status"`
	Title             string                     `json:"title"`
	Message           string                     `json:"message"`
	Ticker            string                     `json:"ticker"`
	Jurisdiction      string                     `json:"jurisdiction"`
	SentAt            time.Time                  `json:"sent_at"`
	DeliveredAt       *time.Time                 `json:"delivered_at,omitempty"`
	Error             string                     `json:"error,omitempty"`
	OwnershipPercent  float64                    `json:"ownership_percent"`
	ThresholdPercent  float64                    `json:"threshold_percent"`
	TimeToBreachHours *float64                   `json:"time_to_breach_hours,omitempty"`
}

// NotificationFilter narrows notification history queries.
type NotificationFilter struct {
	RecipientID string
	Channel     domain.NotificationChannel
	Severity    Severity
	Status      domain.BreachStatus
	Start       *time.Time
	End         *time.Time
	Limit       int
	Offset      int
}
