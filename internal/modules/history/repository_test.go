package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMirrorDB opens a throwaway history database with the mirror schema
// applied. The cgo sqlite3 driver is used here so the mirror SQL is
// exercised against a second independent driver implementation.
func newMirrorDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history_test.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "database", "schemas", "history_schema.sql"))
	require.NoError(t, err)

	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func newTestMirrorRepository(t *testing.T) *SQLiteMirrorRepository {
	t.Helper()
	return NewSQLiteMirrorRepository(newMirrorDB(t), zerolog.Nop())
}

func TestMirrorRepository_AppendSnapshot(t *testing.T) {
	repo := newTestMirrorRepository(t)

	snap := &HoldingSnapshot{
		ID:                     "snap-1",
		Ticker:                 "AAPL",
		Jurisdiction:           "US",
		Timestamp:              time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		SharesOwned:            1_000_000,
		TotalSharesOutstanding: 15_000_000_000,
		OwnershipPercent:       0.0067,
		BuyingVelocity:         1200,
		Price:                  182.44,
		RegulatoryStatus:       "safe",
		ThresholdPercent:       5.0,
	}
	require.NoError(t, repo.AppendSnapshot(snap))

	counts, err := repo.RowCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["holding_snapshots"])
}

func TestMirrorRepository_AppendBreachEvent_NullableFields(t *testing.T) {
	repo := newTestMirrorRepository(t)

	hours := 12.5
	due := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)

	withProjection := &BreachEvent{
		ID:                   "evt-1",
		Ticker:               "VOD",
		Jurisdiction:         "UK",
		EventType:            "WARNING_DETECTED",
		Timestamp:            time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		OwnershipPercent:     2.85,
		ThresholdPercent:     3.0,
		BuyingVelocity:       50_000,
		ProjectedBreachHours: &hours,
	}
	require.NoError(t, repo.AppendBreachEvent(withProjection))

	withDeadline := &BreachEvent{
		ID:               "evt-2",
		Ticker:           "VOD",
		Jurisdiction:     "UK",
		EventType:        "BREACH_DETECTED",
		Timestamp:        time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		OwnershipPercent: 3.1,
		ThresholdPercent: 3.0,
		BuyingVelocity:   50_000,
		FilingDueDate:    &due,
	}
	require.NoError(t, repo.AppendBreachEvent(withDeadline))

	var storedHours sql.NullFloat64
	var storedDue sql.NullInt64
	err := repo.historyDB.QueryRow(
		"SELECT projected_breach_hours, filing_due_date FROM breach_events WHERE id = ?", "evt-1",
	).Scan(&storedHours, &storedDue)
	require.NoError(t, err)
	assert.True(t, storedHours.Valid)
	assert.InDelta(t, 12.5, storedHours.Float64, 1e-9)
	assert.False(t, storedDue.Valid)

	err = repo.historyDB.QueryRow(
		"SELECT projected_breach_hours, filing_due_date FROM breach_events WHERE id = ?", "evt-2",
	).Scan(&storedHours, &storedDue)
	require.NoError(t, err)
	assert.False(t, storedHours.Valid)
	require.True(t, storedDue.Valid)
	assert.Equal(t, due.Unix(), storedDue.Int64)
}

func TestMirrorRepository_AppendAudit_MetadataRoundTrip(t *testing.T) {
	repo := newTestMirrorRepository(t)

	entry := &AuditEntry{
		ID:        "audit-1",
		Timestamp: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		SystemID:  "fix_feed",
		Level:     "error",
		Message:   "message rejected",
		RawLine:   "35=8|55=AAPL",
		Metadata:  map[string]interface{}{"reason": "missing ticker"},
	}
	require.NoError(t, repo.AppendAudit(entry))

	var blob []byte
	err := repo.historyDB.QueryRow("SELECT metadata FROM audit_log WHERE id = ?", "audit-1").Scan(&blob)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
}

func TestMirrorRepository_TrendPointRoundTrip(t *testing.T) {
	repo := newTestMirrorRepository(t)

	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		point := &TrendDataPoint{
			ID:            "trend-" + string(rune('a'+i)),
			Timestamp:     base.Add(time.Duration(i) * time.Hour),
			TotalBreaches: i,
			TotalWarnings: 1,
			TotalSafe:     10 - i,
			Jurisdictions: map[string]JurisdictionBreakdown{
				"US": {Breaches: i, Warnings: 1, Safe: 5},
				"UK": {Safe: 5 - i},
			},
			AvgOwnershipPercent: 2.5 + float64(i)*0.1,
			AvgBuyingVelocity:   1000,
		}
		require.NoError(t, repo.AppendTrendPoint(point))
	}

	// Limit smaller than the table keeps the most recent rollups,
	// returned oldest first for seeding.
	points, err := repo.RecentTrendPoints(3)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, 2, points[0].TotalBreaches)
	assert.Equal(t, 4, points[2].TotalBreaches)
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
	assert.True(t, points[1].Timestamp.Before(points[2].Timestamp))

	// msgpack breakdown survives the round trip
	require.Contains(t, points[2].Jurisdictions, "US")
	assert.Equal(t, 4, points[2].Jurisdictions["US"].Breaches)
	assert.Equal(t, 1, points[2].Jurisdictions["US"].Warnings)
	assert.Equal(t, 1, points[2].Jurisdictions["UK"].Safe)
}

func TestMirrorRepository_RowCounts(t *testing.T) {
	repo := newTestMirrorRepository(t)

	require.NoError(t, repo.AppendAudit(&AuditEntry{
		ID: "a1", Timestamp: time.Now().UTC(), SystemID: "test", Level: "info", Message: "m",
	}))

	counts, err := repo.RowCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts["holding_snapshots"])
	assert.Equal(t, int64(0), counts["breach_events"])
	assert.Equal(t, int64(1), counts["audit_log"])
	assert.Equal(t, int64(0), counts["trend_points"])
}
