// Package history holds the bounded time-series collections: holding
// snapshots, breach events, audit entries, and trend rollups. Each collection
// retains the most recent N records with oldest-first eviction; every append
// is also handed to an asynchronous durable mirror that may fail or be absent
// without affecting the in-memory store, which remains authoritative for the
// running process.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Limits configures the capacity of each bounded collection.
type Limits struct {
	MaxSnapshots    int
	MaxBreachEvents int
	MaxAuditEntries int
	MaxTrendPoints  int
}

// Submitter receives records for asynchronous durable mirroring.
// Implementations must never block the caller.
type Submitter interface {
	Submit(record MirrorRecord)
}

// Store is the bounded in-memory time-series store. One instance exists per
// process, constructed by the composition root. All collection mutations are
// serialized under a single mutex: an append+evict is never interleaved with
// another append or a query.
type Store struct {
	mu sync.Mutex

	snapshots    []HoldingSnapshot
	breachEvents []BreachEvent
	auditEntries []AuditEntry
	trendPoints  []TrendDataPoint

	limits Limits
	mirror Submitter // nil disables mirroring
	log    zerolog.Logger
}

// NewStore creates a bounded store with the given capacities. The mirror may
// be nil, in which case the store is in-memory only.
func NewStore(limits Limits, mirror Submitter, log zerolog.Logger) *Store {
	return &Store{
		limits: limits,
		mirror: mirror,
		log:    log.With().Str("module", "history").Logger(),
	}
}

// RecordSnapshot appends a holding snapshot, evicting the oldest entries when
// the collection is at capacity. A missing ID or timestamp is filled in.
func (s *Store) RecordSnapshot(snap HoldingSnapshot) HoldingSnapshot {
	stamp(&snap.ID, &snap.Timestamp)

	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	if over := len(s.snapshots) - s.limits.MaxSnapshots; over > 0 && s.limits.MaxSnapshots > 0 {
		s.snapshots = s.snapshots[over:]
	}
	s.mu.Unlock()

	s.submit(MirrorRecord{Kind: KindSnapshot, Snapshot: &snap})
	return snap
}

// RecordBreachEvent appends a breach lifecycle record.
func (s *Store) RecordBreachEvent(event BreachEvent) BreachEvent {
	stamp(&event.ID, &event.Timestamp)

	s.mu.Lock()
	s.breachEvents = append(s.breachEvents, event)
	if over := len(s.breachEvents) - s.limits.MaxBreachEvents; over > 0 && s.limits.MaxBreachEvents > 0 {
		s.breachEvents = s.breachEvents[over:]
	}
	s.mu.Unlock()

	s.submit(MirrorRecord{Kind: KindBreachEvent, BreachEvent: &event})
	return event
}

// RecordAudit appends an audit log entry.
func (s *Store) RecordAudit(entry AuditEntry) AuditEntry {
	stamp(&entry.ID, &entry.Timestamp)

	s.mu.Lock()
	s.auditEntries = append(s.auditEntries, entry)
	if over := len(s.auditEntries) - s.limits.MaxAuditEntries; over > 0 && s.limits.MaxAuditEntries > 0 {
		s.auditEntries = s.auditEntries[over:]
	}
	s.mu.Unlock()

	s.submit(MirrorRecord{Kind: KindAudit, AuditEntry: &entry})
	return entry
}

// RecordTrendPoint appends a trend rollup.
func (s *Store) RecordTrendPoint(point TrendDataPoint) TrendDataPoint {
	stamp(&point.ID, &point.Timestamp)

	s.mu.Lock()
	s.trendPoints = append(s.trendPoints, point)
	if over := len(s.trendPoints) - s.limits.MaxTrendPoints; over > 0 && s.limits.MaxTrendPoints > 0 {
		s.trendPoints = s.trendPoints[over:]
	}
	s.mu.Unlock()

	s.submit(MirrorRecord{Kind: KindTrendPoint, TrendPoint: &point})
	return point
}

// SeedTrendPoints loads previously mirrored trend points into the collection
// without re-mirroring them. Used at startup for cross-session continuity.
func (s *Store) SeedTrendPoints(points []TrendDataPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trendPoints = append(s.trendPoints, points...)
	sort.Slice(s.trendPoints, func(i, j int) bool {
		return s.trendPoints[i].Timestamp.Before(s.trendPoints[j].Timestamp)
	})
	if over := len(s.trendPoints) - s.limits.MaxTrendPoints; over > 0 && s.limits.MaxTrendPoints > 0 {
		s.trendPoints = s.trendPoints[over:]
	}
}

// QuerySnapshots returns snapshots matching the filter, most recent first.
func (s *Store) QuerySnapshots(f Filter) []HoldingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]HoldingSnapshot, 0)
	for _, snap := range s.snapshots {
		if !f.inWindow(snap.Timestamp) {
			continue
		}
		if f.Ticker != "" && snap.Ticker != f.Ticker {
			continue
		}
		if f.Jurisdiction != "" && snap.Jurisdiction != f.Jurisdiction {
			continue
		}
		matched = append(matched, snap)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}

// QueryBreachEvents returns breach events matching the filter, most recent first.
func (s *Store) QueryBreachEvents(f Filter) []BreachEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]BreachEvent, 0)
	for _, event := range s.breachEvents {
		if !f.inWindow(event.Timestamp) {
			continue
		}
		if f.Ticker != "" && event.Ticker != f.Ticker {
			continue
		}
		if f.Jurisdiction != "" && event.Jurisdiction != f.Jurisdiction {
			continue
		}
		if f.EventType != "" && event.EventType != f.EventType {
			continue
		}
		matched = append(matched, event)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}

// QueryAudit returns audit entries matching the filter, most recent first.
func (s *Store) QueryAudit(f Filter) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]AuditEntry, 0)
	for _, entry := range s.auditEntries {
		if !f.inWindow(entry.Timestamp) {
			continue
		}
		if f.Level != "" && entry.Level != f.Level {
			continue
		}
		if f.SystemID != "" && entry.SystemID != f.SystemID {
			continue
		}
		matched = append(matched, entry)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}

// QueryTrends returns trend points matching the filter in chronological order
// (trend analysis reads oldest-first). When limited, the most recent N points
// are kept rather than the earliest N.
func (s *Store) QueryTrends(f Filter) []TrendDataPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]TrendDataPoint, 0)
	for _, point := range s.trendPoints {
		if !f.inWindow(point.Timestamp) {
			continue
		}
		matched = append(matched, point)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched
}

// Counts reports the current size of each collection.
func (s *Store) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]int{
		"snapshots":     len(s.snapshots),
		"breach_events": len(s.breachEvents),
		"audit_entries": len(s.auditEntries),
		"trend_points":  len(s.trendPoints),
	}
}

func (s *Store) submit(record MirrorRecord) {
	if s.mirror == nil {
		return
	}
	s.mirror.Submit(record)
}

func stamp(id *string, ts *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if ts.IsZero() {
		*ts = time.Now().UTC()
	}
}
