package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// SQLiteMirrorRepository is the durable mirror backed by the history database.
// Rows are append-only; structured payloads (audit metadata, per-jurisdiction
// breakdowns) are stored as msgpack blobs.
type SQLiteMirrorRepository struct {
	historyDB *sql.DB
	log       zerolog.Logger
}

// NewSQLiteMirrorRepository creates a mirror repository over the history database.
func NewSQLiteMirrorRepository(historyDB *sql.DB, log zerolog.Logger) *SQLiteMirrorRepository {
	return &SQLiteMirrorRepository{
		historyDB: historyDB,
		log:       log.With().Str("repo", "history_mirror").Logger(),
	}
}

// AppendSnapshot inserts a holding snapshot row.
func (r *SQLiteMirrorRepository) AppendSnapshot(snap *HoldingSnapshot) error {
	_, err := r.historyDB.Exec(`
		INSERT INTO holding_snapshots (
			id, ticker, jurisdiction, timestamp, shares_owned,
			total_shares_outstanding, ownership_percent, buying_velocity,
			price, regulatory_status, threshold_percent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Ticker, snap.Jurisdiction, snap.Timestamp.Unix(),
		snap.SharesOwned, snap.TotalSharesOutstanding, snap.OwnershipPercent,
		snap.BuyingVelocity, snap.Price, string(snap.RegulatoryStatus),
		snap.ThresholdPercent,
	)
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

// AppendBreachEvent inserts a breach event row.
func (r *SQLiteMirrorRepository) AppendBreachEvent(event *BreachEvent) error {
	var dueDate interface{}
	if event.FilingDueDate != nil {
		dueDate = event.FilingDueDate.Unix()
	}

	_, err := r.historyDB.Exec(`
		INSERT INTO breach_events (
			id, ticker, jurisdiction, event_type, timestamp,
			ownership_percent, threshold_percent, buying_velocity,
			projected_breach_hours, filing_due_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Ticker, event.Jurisdiction, string(event.EventType),
		event.Timestamp.Unix(), event.OwnershipPercent, event.ThresholdPercent,
		event.BuyingVelocity, event.ProjectedBreachHours, dueDate,
	)
	if err != nil {
		return fmt.Errorf("failed to append breach event: %w", err)
	}
	return nil
}

// AppendAudit inserts an audit log row. Metadata is msgpack-encoded.
func (r *SQLiteMirrorRepository) AppendAudit(entry *AuditEntry) error {
	var metadata []byte
	if len(entry.Metadata) > 0 {
		encoded, err := msgpack.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metadata = encoded
	}

	_, err := r.historyDB.Exec(`
		INSERT INTO audit_log (id, timestamp, system_id, level, message, raw_line, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.Unix(), entry.SystemID, entry.Level,
		entry.Message, entry.RawLine, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// AppendTrendPoint inserts a trend rollup row. The per-jurisdiction breakdown
// is msgpack-encoded.
func (r *SQLiteMirrorRepository) AppendTrendPoint(point *TrendDataPoint) error {
	var jurisdictions []byte
	if len(point.Jurisdictions) > 0 {
		encoded, err := msgpack.Marshal(point.Jurisdictions)
		if err != nil {
			return fmt.Errorf("failed to encode jurisdiction breakdown: %w", err)
		}
		jurisdictions = encoded
	}

	_, err := r.historyDB.Exec(`
		INSERT INTO trend_points (
			id, timestamp, total_breaches, total_warnings, total_safe,
			avg_ownership_percent, avg_buying_velocity, jurisdictions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		point.ID, point.Timestamp.Unix(), point.TotalBreaches,
		point.TotalWarnings, point.TotalSafe, point.AvgOwnershipPercent,
		point.AvgBuyingVelocity, jurisdictions,
	)
	if err != nil {
		return fmt.Errorf("failed to append trend point: %w", err)
	}
	return nil
}

// RecentTrendPoints loads the most recent trend rollups, oldest first, for
// seeding the in-memory store on startup.
func (r *SQLiteMirrorRepository) RecentTrendPoints(limit int) ([]TrendDataPoint, error) {
	rows, err := r.historyDB.Query(`
		SELECT id, timestamp, total_breaches, total_warnings, total_safe,
		       avg_ownership_percent, avg_buying_velocity, jurisdictions
		FROM trend_points
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend points: %w", err)
	}
	defer rows.Close()

	points := make([]TrendDataPoint, 0)
	for rows.Next() {
		var point TrendDataPoint
		var ts int64
		var jurisdictions []byte

		if err := rows.Scan(
			&point.ID, &ts, &point.TotalBreaches, &point.TotalWarnings,
			&point.TotalSafe, &point.AvgOwnershipPercent,
			&point.AvgBuyingVelocity, &jurisdictions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		point.Timestamp = time.Unix(ts, 0).UTC()

		if len(jurisdictions) > 0 {
			if err := msgpack.Unmarshal(jurisdictions, &point.Jurisdictions); err != nil {
				r.log.Warn().Err(err).Str("id", point.ID).
					Msg("Failed to decode jurisdiction breakdown, skipping field")
			}
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trend points: %w", err)
	}

	// Reverse into chronological order
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// RowCounts reports the row count of each mirror table, for health reporting.
func (r *SQLiteMirrorRepository) RowCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range []string{"holding_snapshots", "breach_events", "audit_log", "trend_points"} {
		var count int64
		if err := r.historyDB.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
