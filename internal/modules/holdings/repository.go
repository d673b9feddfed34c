// Package holdings owns the monitored position set: SQLite persistence,
// in-memory working state, execution-event application with coalesced
// recomputation, and per-ticker subscription dispatch.
package holdings

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

// ErrHoldingNotFound is returned when a ticker has no holding row.
var ErrHoldingNotFound = errors.New("holding not found")

// Repository handles holding and regulatory rule database operations
type Repository struct {
	holdingsDB *sql.DB
	log        zerolog.Logger
}

// NewRepository creates a new holdings repository
func NewRepository(holdingsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		holdingsDB: holdingsDB,
		log:        log.With().Str("repo", "holdings").Logger(),
	}
}

const holdingColumns = `ticker, issuer, isin, jurisdiction, shares_owned, total_shares_outstanding,
	buying_velocity, price, rule_code, total_shares_bloomberg, total_shares_refinitiv,
	asset_status, last_updated`

// LoadAll returns every holding with its rule and derivative positions
// attached, for portfolio load at startup.
func (r *Repository) LoadAll() ([]*domain.Holding, error) {
	rules, err := r.ListRules()
	if err != nil {
		return nil, err
	}
	rulesByCode := make(map[string]*domain.RegulatoryRule, len(rules))
	for _, rule := range rules {
		rulesByCode[rule.Code] = rule
	}

	rows, err := r.holdingsDB.Query("SELECT " + holdingColumns + " FROM holdings ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]*domain.Holding, 0)
	for rows.Next() {
		holding, ruleCode, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holding.Rule = rulesByCode[ruleCode]
		holdings = append(holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	for _, holding := range holdings {
		derivatives, err := r.loadDerivatives(holding.Ticker)
		if err != nil {
			return nil, err
		}
		holding.Derivatives = derivatives
	}
	return holdings, nil
}

// Get returns one holding by ticker, with rule and derivatives attached.
func (r *Repository) Get(ticker string) (*domain.Holding, error) {
	row := r.holdingsDB.QueryRow("SELECT "+holdingColumns+" FROM holdings WHERE ticker = ?", ticker)

	holding, ruleCode, err := scanHolding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldingNotFound
		}
		return nil, err
	}

	rule, err := r.GetRule(ruleCode)
	if err != nil {
		return nil, err
	}
	holding.Rule = rule

	derivatives, err := r.loadDerivatives(ticker)
	if err != nil {
		return nil, err
	}
	holding.Derivatives = derivatives
	return holding, nil
}

// Upsert writes the full holding row and replaces its derivative positions.
func (r *Repository) Upsert(h *domain.Holding) error {
	if h.Rule == nil {
		return fmt.Errorf("holding %s has no regulatory rule", h.Ticker)
	}

	tx, err := r.holdingsDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO holdings (`+holdingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			issuer = excluded.issuer,
			isin = excluded.isin,
			jurisdiction = excluded.jurisdiction,
			shares_owned = excluded.shares_owned,
			total_shares_outstanding = excluded.total_shares_outstanding,
			buying_velocity = excluded.buying_velocity,
			price = excluded.price,
			rule_code = excluded.rule_code,
			total_shares_bloomberg = excluded.total_shares_bloomberg,
			total_shares_refinitiv = excluded.total_shares_refinitiv,
			asset_status = excluded.asset_status,
			last_updated = excluded.last_updated`,
		h.Ticker, h.Issuer, h.ISIN, h.Jurisdiction, h.SharesOwned,
		h.TotalSharesOutstanding, h.BuyingVelocity, h.Price, h.Rule.Code,
		nullableFloat(h.TotalSharesBloomberg), nullableFloat(h.TotalSharesRefinitiv),
		string(h.AssetStatus), h.LastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert holding %s: %w", h.Ticker, err)
	}

	if _, err := tx.Exec("DELETE FROM derivative_positions WHERE ticker = ?", h.Ticker); err != nil {
		return fmt.Errorf("failed to clear derivative positions for %s: %w", h.Ticker, err)
	}
	for seq, d := range h.Derivatives {
		_, err := tx.Exec(`
			INSERT INTO derivative_positions (ticker, seq, option_type, contracts, delta)
			VALUES (?, ?, ?, ?, ?)`,
			h.Ticker, seq, string(d.Type), d.Contracts, d.Delta,
		)
		if err != nil {
			return fmt.Errorf("failed to insert derivative position for %s: %w", h.Ticker, err)
		}
	}

	return tx.Commit()
}

// Delete removes a holding and its derivative positions.
func (r *Repository) Delete(ticker string) error {
	result, err := r.holdingsDB.Exec("DELETE FROM holdings WHERE ticker = ?", ticker)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", ticker, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion of %s: %w", ticker, err)
	}
	if affected == 0 {
		return ErrHoldingNotFound
	}
	return nil
}

// ListRules returns all regulatory rules ordered by code.
func (r *Repository) ListRules() ([]*domain.RegulatoryRule, error) {
	rows, err := r.holdingsDB.Query(`
		SELECT code, name, jurisdiction, threshold_percent, deadline_business_days
		FROM regulatory_rules ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query regulatory rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*domain.RegulatoryRule, 0)
	for rows.Next() {
		rule := &domain.RegulatoryRule{}
		if err := rows.Scan(&rule.Code, &rule.Name, &rule.Jurisdiction,
			&rule.ThresholdPercent, &rule.DeadlineBusinessDays); err != nil {
			return nil, fmt.Errorf("failed to scan regulatory rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GetRule returns one regulatory rule by code.
func (r *Repository) GetRule(code string) (*domain.RegulatoryRule, error) {
	rule := &domain.RegulatoryRule{}
	err := r.holdingsDB.QueryRow(`
		SELECT code, name, jurisdiction, threshold_percent, deadline_business_days
		FROM regulatory_rules WHERE code = ?`, code).
		Scan(&rule.Code, &rule.Name, &rule.Jurisdiction,
			&rule.ThresholdPercent, &rule.DeadlineBusinessDays)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("regulatory rule %s not found", code)
		}
		return nil, fmt.Errorf("failed to load regulatory rule %s: %w", code, err)
	}
	return rule, nil
}

// SeedRules inserts the given rules, ignoring ones already present.
func (r *Repository) SeedRules(rules []*domain.RegulatoryRule) error {
	for _, rule := range rules {
		_, err := r.holdingsDB.Exec(`
			INSERT INTO regulatory_rules (code, name, jurisdiction, threshold_percent, deadline_business_days)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(code) DO NOTHING`,
			rule.Code, rule.Name, rule.Jurisdiction, rule.ThresholdPercent, rule.DeadlineBusinessDays,
		)
		if err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", rule.Code, err)
		}
	}
	return nil
}

func (r *Repository) loadDerivatives(ticker string) ([]domain.DerivativePosition, error) {
	rows, err := r.holdingsDB.Query(`
		SELECT option_type, contracts, delta
		FROM derivative_positions WHERE ticker = ? ORDER BY seq`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query derivative positions for %s: %w", ticker, err)
	}
	defer rows.Close()

	positions := make([]domain.DerivativePosition, 0)
	for rows.Next() {
		var d domain.DerivativePosition
		var optionType string
		if err := rows.Scan(&optionType, &d.Contracts, &d.Delta); err != nil {
			return nil, fmt.Errorf("failed to scan derivative position: %w", err)
		}
		d.Type = domain.OptionType(optionType)
		positions = append(positions, d)
	}
	return positions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (*domain.Holding, string, error) {
	holding := &domain.Holding{}
	var ruleCode, assetStatus string
	var bloomberg, refinitiv sql.NullFloat64
	var lastUpdated int64

	err := row.Scan(
		&holding.Ticker, &holding.Issuer, &holding.ISIN, &holding.Jurisdiction,
		&holding.SharesOwned, &holding.TotalSharesOutstanding,
		&holding.BuyingVelocity, &holding.Price, &ruleCode,
		&bloomberg, &refinitiv, &assetStatus, &lastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("failed to scan holding: %w", err)
	}

	holding.AssetStatus = domain.AssetStatus(assetStatus)
	holding.LastUpdated = time.Unix(lastUpdated, 0).UTC()
	if bloomberg.Valid {
		holding.TotalSharesBloomberg = bloomberg.Float64
	}
	if refinitiv.Valid {
		holding.TotalSharesRefinitiv = refinitiv.Float64
	}
	return holding, ruleCode, nil
}

func nullableFloat(v float64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
