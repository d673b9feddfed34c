package history

import (
	"sync"

	"github.com/rs/zerolog"
)

// RecordKind identifies which collection a mirror record belongs to.
type RecordKind string

const (
	KindSnapshot    RecordKind = "snapshot"
	KindBreachEvent RecordKind = "breach_event"
	KindAudit       RecordKind = "audit"
	KindTrendPoint  RecordKind = "trend_point"
)

// MirrorRecord is one unit of work for the durable mirror. Exactly one of the
// payload pointers is set, matching Kind.
type MirrorRecord struct {
	Kind        RecordKind
	Snapshot    *HoldingSnapshot
	BreachEvent *BreachEvent
	AuditEntry  *AuditEntry
	TrendPoint  *TrendDataPoint
}

// MirrorRepository persists time-series records to the durable store.
type MirrorRepository interface {
	AppendSnapshot(snap *HoldingSnapshot) error
	AppendBreachEvent(event *BreachEvent) error
	AppendAudit(entry *AuditEntry) error
	AppendTrendPoint(point *TrendDataPoint) error
}

// MirrorWorker drains mirror records to the durable repository on a single
// background goroutine. Submission is fire-and-forget: a full queue drops the
// record with a log line, and repository errors are logged and swallowed.
// Persistence latency or outages never stall the callers.
type MirrorWorker struct {
	repo  MirrorRepository
	queue chan MirrorRecord
	log   zerolog.Logger

	stopOnce sync.Once
	done     chan struct{}

	mu      sync.Mutex
	stopped bool
	dropped int64
	failed  int64
	written int64
}

// NewMirrorWorker creates a worker with the given queue capacity. Call Start
// to begin draining and Stop to flush and shut down.
func NewMirrorWorker(repo MirrorRepository, queueSize int, log zerolog.Logger) *MirrorWorker {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &MirrorWorker{
		repo:  repo,
		queue: make(chan MirrorRecord, queueSize),
		log:   log.With().Str("module", "history").Str("component", "mirror").Logger(),
		done:  make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (w *MirrorWorker) Start() {
	go w.drain()
}

// Stop closes the queue, waits for the remaining records to be written, and
// returns. Safe to call more than once.
func (w *MirrorWorker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.queue)
	})
	<-w.done
}

// Submit enqueues a record without blocking. When the queue is full, or the
// worker has already stopped, the record is dropped and counted; the
// in-memory store already holds it.
func (w *MirrorWorker) Submit(record MirrorRecord) {
	w.mu.Lock()
	if w.stopped {
		w.dropped++
		w.mu.Unlock()
		w.log.Warn().
			Str("kind", string(record.Kind)).
			Msg("Mirror worker stopped, dropping record")
		return
	}
	select {
	case w.queue <- record:
		w.mu.Unlock()
	default:
		w.dropped++
		w.mu.Unlock()
		w.log.Warn().
			Str("kind", string(record.Kind)).
			Msg("Mirror queue full, dropping record")
	}
}

// Stats reports written/failed/dropped counters since startup.
func (w *MirrorWorker) Stats() (written, failed, dropped int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.failed, w.dropped
}

func (w *MirrorWorker) drain() {
	defer close(w.done)

	for record := range w.queue {
		if err := w.write(record); err != nil {
			w.mu.Lock()
			w.failed++
			w.mu.Unlock()
			w.log.Error().
				Err(err).
				Str("kind", string(record.Kind)).
				Msg("Durable mirror write failed, record retained in memory only")
			continue
		}
		w.mu.Lock()
		w.written++
		w.mu.Unlock()
	}
}

func (w *MirrorWorker) write(record MirrorRecord) error {
	switch record.Kind {
	case KindSnapshot:
		return w.repo.AppendSnapshot(record.Snapshot)
	case KindBreachEvent:
		return w.repo.AppendBreachEvent(record.BreachEvent)
	case KindAudit:
		return w.repo.AppendAudit(record.AuditEntry)
	case KindTrendPoint:
		return w.repo.AppendTrendPoint(record.TrendPoint)
	}
	return nil
}
