package history

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMirrorRepo records appended payloads and can be made to fail.
type fakeMirrorRepo struct {
	mu        sync.Mutex
	snapshots []*HoldingSnapshot
	events    []*BreachEvent
	audits    []*AuditEntry
	trends    []*TrendDataPoint
	failAll   bool
}

func (f *fakeMirrorRepo) AppendSnapshot(snap *HoldingSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("database unavailable")
	}
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeMirrorRepo) AppendBreachEvent(event *BreachEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("database unavailable")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeMirrorRepo) AppendAudit(entry *AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("database unavailable")
	}
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeMirrorRepo) AppendTrendPoint(point *TrendDataPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("database unavailable")
	}
	f.trends = append(f.trends, point)
	return nil
}

func TestMirrorWorker_DrainsRecords(t *testing.T) {
	repo := &fakeMirrorRepo{}
	worker := NewMirrorWorker(repo, 16, zerolog.Nop())
	worker.Start()

	store := NewStore(Limits{MaxSnapshots: 10, MaxBreachEvents: 10}, worker, zerolog.Nop())
	store.RecordSnapshot(HoldingSnapshot{Ticker: "ACME"})
	store.RecordBreachEvent(BreachEvent{Ticker: "ACME"})

	worker.Stop()

	require.Len(t, repo.snapshots, 1)
	require.Len(t, repo.events, 1)
	assert.Equal(t, "ACME", repo.snapshots[0].Ticker)

	written, failed, dropped := worker.Stats()
	assert.Equal(t, int64(2), written)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
}

func TestMirrorWorker_FailuresAreSwallowed(t *testing.T) {
	repo := &fakeMirrorRepo{failAll: true}
	worker := NewMirrorWorker(repo, 16, zerolog.Nop())
	worker.Start()

	store := NewStore(Limits{MaxSnapshots: 10}, worker, zerolog.Nop())
	snap := store.RecordSnapshot(HoldingSnapshot{Ticker: "ACME"})
	worker.Stop()

	// The in-memory store keeps the record regardless
	got := store.QuerySnapshots(Filter{Ticker: "ACME"})
	require.Len(t, got, 1)
	assert.Equal(t, snap.ID, got[0].ID)

	_, failed, _ := worker.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestMirrorWorker_FullQueueDropsWithoutBlocking(t *testing.T) {
	repo := &fakeMirrorRepo{}
	// Worker never started: nothing drains, so the queue fills
	worker := NewMirrorWorker(repo, 2, zerolog.Nop())

	for i := 0; i < 5; i++ {
		worker.Submit(MirrorRecord{Kind: KindAudit, AuditEntry: &AuditEntry{}})
	}

	_, _, dropped := worker.Stats()
	assert.Equal(t, int64(3), dropped)
}

func TestMirrorWorker_SubmitAfterStopDropsWithoutPanic(t *testing.T) {
	repo := &fakeMirrorRepo{}
	worker := NewMirrorWorker(repo, 16, zerolog.Nop())
	worker.Start()
	worker.Stop()

	// A late store write must be counted as dropped, not panic on the
	// closed queue
	worker.Submit(MirrorRecord{Kind: KindSnapshot, Snapshot: &HoldingSnapshot{Ticker: "ACME"}})

	written, _, dropped := worker.Stats()
	assert.Zero(t, written)
	assert.Equal(t, int64(1), dropped)
	assert.Empty(t, repo.snapshots)
}
