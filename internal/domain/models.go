// Package domain provides core domain models and types.
package domain

import "time"

// BreachStatus classifies a holding against its regulatory threshold
type BreachStatus string

const (
	StatusSafe    BreachStatus = "safe"
	StatusWarning BreachStatus = "warning"
	StatusBreach  BreachStatus = "breach"
)

// AssetStatus represents the data-quality state of a holding
type AssetStatus string

const (
	// AssetStatusOK - all reference sources agree
	AssetStatusOK AssetStatus = "OK"
	// AssetStatusDataQuality - reference sources for shares outstanding disagree
	// by more than the reconciliation tolerance. Holdings in this state must
	// never be auto-filed.
	AssetStatusDataQuality AssetStatus = "DATA_QUALITY"
)

// OptionType represents the type of a derivative position
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// DerivativePosition is a single option position contributing to
// delta-adjusted exposure. Delta is in [-1, 1]; contracts are standard
// 100-share lots.
type DerivativePosition struct {
	Type      OptionType `json:"type"`
	Contracts int        `json:"contracts"`
	Delta     float64    `json:"delta"`
}

// RegulatoryRule is jurisdiction-scoped disclosure reference data.
// Rules are immutable and shared by reference across holdings.
type RegulatoryRule struct {
	Code                 string  `json:"code"`      // e.g. "SEC-13D"
	Name                 string  `json:"name"`      // e.g. "SEC Schedule 13D"
	Jurisdiction         string  `json:"jurisdiction"`
	ThresholdPercent     float64 `json:"threshold_percent"`
	DeadlineBusinessDays int     `json:"deadline_business_days"`
}

// Holding is one position in one security, owned by exactly one logical fund.
// Ownership percentage is never stored - it is always recomputed from the
// fields below.
type Holding struct {
	Ticker                 string               `json:"ticker"`
	Issuer                 string               `json:"issuer"`
	ISIN                   string               `json:"isin"`
	Jurisdiction           string               `json:"jurisdiction"`
	SharesOwned            float64              `json:"shares_owned"`
	TotalSharesOutstanding float64              `json:"total_shares_outstanding"`
	BuyingVelocity         float64              `json:"buying_velocity"` // shares/hour; <=0 means not accumulating
	Price                  float64              `json:"price"`
	Rule                   *RegulatoryRule      `json:"rule"`
	Derivatives            []DerivativePosition `json:"derivatives,omitempty"`

	// Secondary denominators for reconciliation (0 = source unavailable)
	TotalSharesBloomberg float64 `json:"total_shares_bloomberg,omitempty"`
	TotalSharesRefinitiv float64 `json:"total_shares_refinitiv,omitempty"`

	AssetStatus AssetStatus `json:"asset_status"`
	LastUpdated time.Time   `json:"last_updated"`
}

// BreachCalculation is the derived compliance state of a holding.
// It is computed, never persisted as entity state.
type BreachCalculation struct {
	Status              BreachStatus `json:"status"`
	OwnershipPercent    float64      `json:"ownership_percent"`
	TotalExposure       float64      `json:"total_exposure"`
	ProjectedBreachTime *float64     `json:"projected_breach_time,omitempty"` // hours, nil when not projecting
	TimeToBreach        string       `json:"time_to_breach"`                  // human readable
}

// BreachEventType classifies breach lifecycle transitions
type BreachEventType string

const (
	EventBreachDetected     BreachEventType = "BREACH_DETECTED"
	EventWarningDetected    BreachEventType = "WARNING_DETECTED"
	EventBreachAcknowledged BreachEventType = "BREACH_ACKNOWLEDGED"
	EventBreachResolved     BreachEventType = "BREACH_RESOLVED"
	EventWarningCleared     BreachEventType = "WARNING_CLEARED"
)

// Side represents the side of an execution
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExecutionEvent is a normalized market event produced by the wire protocol
// parser and consumed by the holdings service.
type ExecutionEvent struct {
	MsgType       string  `json:"msg_type"`
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	ChecksumValid bool    `json:"checksum_valid"`
}

// FilingDeadline is the computed regulatory filing due date for a breach
type FilingDeadline struct {
	DueDate         time.Time `json:"due_date"`
	BusinessDays    int       `json:"business_days"`
	HolidayAdjusted bool      `json:"holiday_adjusted"`
}
