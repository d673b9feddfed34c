package history

import (
	"time"

	"github.com/aristath/vigil/internal/domain"
)

// HoldingSnapshot is an immutable point-in-time copy of a holding's computed
// compliance state. Snapshots are recorded on a fixed interval and immediately
// on every breach status transition.
type HoldingSnapshot struct {
	ID                     string               `json:"id"`
	Ticker                 string               `json:"ticker"`
	Jurisdiction           string               `json:"jurisdiction"`
	Timestamp              time.Time            `json:"timestamp"`
	SharesOwned            float64              `json:"shares_owned"`
	TotalSharesOutstanding float64              `json:"total_shares_outstanding"`
	OwnershipPercent       float64              `json:"ownership_percent"`
	BuyingVelocity         float64              `json:"buying_velocity"`
	Price                  float64              `json:"price"`
	RegulatoryStatus       domain.BreachStatus  `json:"regulatory_status"`
	ThresholdPercent       float64              `json:"threshold_percent"`
}

// BreachEvent is an immutable record of a breach lifecycle transition.
type BreachEvent struct {
	ID                   string                 `json:"id"`
	Ticker               string                 `json:"ticker"`
	Jurisdiction         string                 `json:"jurisdiction"`
	EventType            domain.BreachEventType `json:"event_type"`
	Timestamp            time.Time              `json:"timestamp"`
	OwnershipPercent     float64                `json:"ownership_percent"`
	ThresholdPercent     float64                `json:"threshold_percent"`
	BuyingVelocity       float64                `json:"buying_velocity"`
	ProjectedBreachHours *float64               `json:"projected_breach_hours,omitempty"`
	FilingDueDate        *time.Time             `json:"filing_due_date,omitempty"`
}

// AuditEntry is an append-only operational log record (parse rejections,
// delivery failures, mirror errors, feed lifecycle).
type AuditEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	SystemID  string                 `json:"system_id"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	RawLine   string                 `json:"raw_line,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// JurisdictionBreakdown counts holdings by status within one jurisdiction.
type JurisdictionBreakdown struct {
	Breaches int `json:"breaches" msgpack:"breaches"`
	Warnings int `json:"warnings" msgpack:"warnings"`
	Safe     int `json:"safe" msgpack:"safe"`
}

// TrendDataPoint is a periodic rollup over the full holding set.
type TrendDataPoint struct {
	ID                  string                           `json:"id"`
	Timestamp           time.Time                        `json:"timestamp"`
	TotalBreaches       int                              `json:"total_breaches"`
	TotalWarnings       int                              `json:"total_warnings"`
	TotalSafe           int                              `json:"total_safe"`
	Jurisdictions       map[string]JurisdictionBreakdown `json:"jurisdictions"`
	AvgOwnershipPercent float64                          `json:"avg_ownership_percent"`
	AvgBuyingVelocity   float64                          `json:"avg_buying_velocity"`
}

// Filter narrows time-series queries. Zero values mean "no constraint".
type Filter struct {
	Start        *time.Time
	End          *time.Time
	Ticker       string
	Jurisdiction string
	EventType    domain.BreachEventType
	Level        string
	SystemID     string
	Limit        int
}

func (f Filter) inWindow(ts time.Time) bool {
	if f.Start != nil && ts.Before(*f.Start) {
		return false
	}
	if f.End != nil && ts.After(*f.End) {
		return false
	}
	return true
}
