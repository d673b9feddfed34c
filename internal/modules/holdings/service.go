package holdings

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/events"
	"github.com/aristath/vigil/internal/modules/compliance"
	"github.com/aristath/vigil/internal/modules/history"
	"github.com/aristath/vigil/pkg/formulas"
)

// Number of recent execution deltas retained per ticker for velocity
// estimation, and the EMA length applied over them
const (
	velocityWindow    = 20
	velocityEMALength = 8
)

// Evaluator is notified with the computed compliance state of a holding
// after each recomputation. Implemented by the alerting service.
type Evaluator interface {
	Evaluate(h *domain.Holding, calc *domain.BreachCalculation)
}

// HoldingView pairs a holding with its computed compliance state.
type HoldingView struct {
	Holding     *domain.Holding           `json:"holding"`
	Calculation *domain.BreachCalculation `json:"calculation"`
}

// executionSample is one observed position delta, used for velocity smoothing.
type executionSample struct {
	deltaShares  float64
	elapsedHours float64
}

// Service owns the in-memory working set of holdings. Execution events
// mutate state immediately but recomputation is coalesced: affected tickers
// join a dirty set drained on a short tick, so a burst of events for one
// ticker costs one recomputation and the final state reflects the most
// recent event.
type Service struct {
	mu sync.Mutex

	holdings   map[string]*domain.Holding
	dirty      map[string]struct{}
	lastStatus map[string]domain.BreachStatus
	samples    map[string][]executionSample
	lastEvent  map[string]time.Time

	repo          *Repository
	calculator    *compliance.Calculator
	store         *history.Store
	eventManager  *events.Manager
	subscriptions *SubscriptionRegistry
	evaluator     Evaluator // optional, set after wiring
	log           zerolog.Logger
}

// NewService creates the holdings service
func NewService(
	repo *Repository,
	calculator *compliance.Calculator,
	store *history.Store,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:      make(map[string]*domain.Holding),
		dirty:         make(map[string]struct{}),
		lastStatus:    make(map[string]domain.BreachStatus),
		samples:       make(map[string][]executionSample),
		lastEvent:     make(map[string]time.Time),
		repo:          repo,
		calculator:    calculator,
		store:         store,
		eventManager:  eventManager,
		subscriptions: NewSubscriptionRegistry(),
		log:           log.With().Str("module", "holdings").Logger(),
	}
}

// SetEvaluator attaches the alerting evaluator. Must be called before the
// first recomputation tick if alert evaluation is wanted.
func (s *Service) SetEvaluator(evaluator Evaluator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluator = evaluator
}

// Subscriptions exposes the per-ticker dispatch registry for provider wiring.
func (s *Service) Subscriptions() *SubscriptionRegistry {
	return s.subscriptions
}

// Load reads the portfolio from the repository into memory and subscribes
// every ticker for execution dispatch.
func (s *Service) Load() error {
	holdings, err := s.repo.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, holding := range holdings {
		s.holdings[holding.Ticker] = holding
		s.dirty[holding.Ticker] = struct{}{}
		s.subscriptions.Subscribe(holding.Ticker, s.ApplyExecution)
	}

	s.log.Info().Int("holdings", len(holdings)).Msg("Portfolio loaded")
	return nil
}

// AddHolding registers a new holding, persists it, and subscribes its ticker.
func (s *Service) AddHolding(h *domain.Holding) error {
	if h.LastUpdated.IsZero() {
		h.LastUpdated = time.Now().UTC()
	}
	if h.AssetStatus == "" {
		h.AssetStatus = domain.AssetStatusOK
	}
	if err := s.repo.Upsert(h); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings[h.Ticker] = h
	s.dirty[h.Ticker] = struct{}{}
	s.subscriptions.Subscribe(h.Ticker, s.ApplyExecution)
	return nil
}

// RemoveHolding drops a holding from the working set and the database, and
// unsubscribes its ticker so no further execution dispatch reaches it.
func (s *Service) RemoveHolding(ticker string) error {
	if err := s.repo.Delete(ticker); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holdings, ticker)
	delete(s.dirty, ticker)
	delete(s.lastStatus, ticker)
	delete(s.samples, ticker)
	delete(s.lastEvent, ticker)
	s.subscriptions.Unsubscribe(ticker)
	return nil
}

// ApplyExecution applies a normalized execution event to the holding state.
// BUY adds shares, SELL subtracts (floored at zero); price is updated when
// present. The ticker is marked dirty for the next recomputation tick.
// Events for unknown tickers are ignored.
func (s *Service) ApplyExecution(event domain.ExecutionEvent) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	holding, ok := s.holdings[event.Symbol]
	if !ok {
		return
	}

	delta := event.Quantity
	if event.Side == domain.SideSell {
		delta = -delta
	}

	holding.SharesOwned += delta
	if holding.SharesOwned < 0 {
		holding.SharesOwned = 0
	}
	if event.Price > 0 {
		holding.Price = event.Price
	}
	holding.LastUpdated = now

	if last, ok := s.lastEvent[event.Symbol]; ok {
		elapsed := now.Sub(last).Hours()
		samples := append(s.samples[event.Symbol], executionSample{deltaShares: delta, elapsedHours: elapsed})
		if len(samples) > velocityWindow {
			samples = samples[len(samples)-velocityWindow:]
		}
		s.samples[event.Symbol] = samples
	}
	s.lastEvent[event.Symbol] = now

	s.dirty[event.Symbol] = struct{}{}
}

// RefreshSharesOutstanding updates the denominator and the secondary
// reconciliation sources for a ticker and marks it dirty.
func (s *Service) RefreshSharesOutstanding(ticker string, primary, bloomberg, refinitiv float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	holding, ok := s.holdings[ticker]
	if !ok {
		return ErrHoldingNotFound
	}

	if primary > 0 {
		holding.TotalSharesOutstanding = primary
	}
	holding.TotalSharesBloomberg = bloomberg
	holding.TotalSharesRefinitiv = refinitiv
	holding.LastUpdated = time.Now().UTC()
	s.dirty[ticker] = struct{}{}
	return nil
}

// RecomputeDirty drains the dirty set and recomputes compliance state for
// each affected holding: velocity estimation, denominator reconciliation,
// breach classification, status transition events, immediate snapshots on
// transition, persistence, and alert evaluation. A failing holding is logged
// and skipped; it never aborts the rest of the batch.
func (s *Service) RecomputeDirty() {
	s.mu.Lock()
	tickers := make([]string, 0, len(s.dirty))
	for ticker := range s.dirty {
		tickers = append(tickers, ticker)
	}
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	sort.Strings(tickers)
	for _, ticker := range tickers {
		if err := s.recompute(ticker); err != nil {
			s.log.Error().Err(err).Str("ticker", ticker).Msg("Recomputation failed, skipping holding")
		}
	}
}

func (s *Service) recompute(ticker string) error {
	s.mu.Lock()
	holding, ok := s.holdings[ticker]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	holding.BuyingVelocity = s.estimateVelocityLocked(ticker)

	recon := compliance.CheckDenominatorConfidence(
		holding.TotalSharesOutstanding,
		holding.TotalSharesBloomberg,
		holding.TotalSharesRefinitiv,
	)
	previousAsset := holding.AssetStatus
	if recon.Confident {
		holding.AssetStatus = domain.AssetStatusOK
	} else {
		holding.AssetStatus = domain.AssetStatusDataQuality
	}

	snapshot := *holding
	s.mu.Unlock()

	if snapshot.AssetStatus == domain.AssetStatusDataQuality && previousAsset != domain.AssetStatusDataQuality {
		s.store.RecordAudit(history.AuditEntry{
			SystemID: "holdings",
			Level:    "warn",
			Message:  "shares-outstanding sources disagree, auto-filing disabled",
			Metadata: map[string]interface{}{
				"ticker":            snapshot.Ticker,
				"max_relative_diff": recon.MaxRelativeDiff,
				"sources_compared":  recon.SourcesCompared,
			},
		})
	}

	calc, err := s.calculator.Calculate(&snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous, seen := s.lastStatus[ticker]
	s.lastStatus[ticker] = calc.Status
	evaluator := s.evaluator
	s.mu.Unlock()

	if seen && previous != calc.Status {
		s.handleTransition(&snapshot, calc, previous)
	} else if !seen && calc.Status != domain.StatusSafe {
		// First computation already over a threshold
		s.handleTransition(&snapshot, calc, domain.StatusSafe)
	}

	if err := s.repo.Upsert(&snapshot); err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to persist holding")
	}

	if evaluator != nil {
		evaluator.Evaluate(&snapshot, calc)
	}
	return nil
}

// handleTransition records the breach event, an immediate snapshot, and the
// corresponding bus events for a status change.
func (s *Service) handleTransition(h *domain.Holding, calc *domain.BreachCalculation, previous domain.BreachStatus) {
	now := time.Now().UTC()

	event := history.BreachEvent{
		Ticker:               h.Ticker,
		Jurisdiction:         h.Jurisdiction,
		Timestamp:            now,
		OwnershipPercent:     calc.OwnershipPercent,
		ThresholdPercent:     h.Rule.ThresholdPercent,
		BuyingVelocity:       h.BuyingVelocity,
		ProjectedBreachHours: calc.ProjectedBreachTime,
	}

	var busEvent events.EventType
	switch {
	case calc.Status == domain.StatusBreach:
		event.EventType = domain.EventBreachDetected
		busEvent = events.BreachDetected
		deadline := compliance.FilingDeadline(now, h.Rule)
		event.FilingDueDate = &deadline.DueDate
	case previous == domain.StatusBreach:
		event.EventType = domain.EventBreachResolved
		busEvent = events.BreachResolved
	case calc.Status == domain.StatusWarning:
		event.EventType = domain.EventWarningDetected
		busEvent = events.WarningDetected
	default:
		event.EventType = domain.EventWarningCleared
		busEvent = events.WarningCleared
	}

	s.store.RecordBreachEvent(event)
	s.recordSnapshotFor(h, calc)

	data := map[string]interface{}{
		"ticker":            h.Ticker,
		"jurisdiction":      h.Jurisdiction,
		"status":            string(calc.Status),
		"previous_status":   string(previous),
		"ownership_percent": calc.OwnershipPercent,
		"threshold_percent": h.Rule.ThresholdPercent,
		"time_to_breach":    calc.TimeToBreach,
	}
	if event.FilingDueDate != nil {
		data["filing_due_date"] = event.FilingDueDate.Format(time.RFC3339)
		data["can_auto_file"] = compliance.CanAutoFile(h)
	}

	s.eventManager.Emit(busEvent, "holdings", data)
	s.eventManager.Emit(events.StatusChanged, "holdings", data)
}

// RecordSnapshots writes one snapshot per holding. Run on the snapshot
// interval; a failing holding is skipped.
func (s *Service) RecordSnapshots() {
	for _, view := range s.List() {
		s.recordSnapshotFor(view.Holding, view.Calculation)
	}
}

func (s *Service) recordSnapshotFor(h *domain.Holding, calc *domain.BreachCalculation) {
	if calc == nil {
		return
	}
	s.store.RecordSnapshot(history.HoldingSnapshot{
		Ticker:                 h.Ticker,
		Jurisdiction:           h.Jurisdiction,
		SharesOwned:            h.SharesOwned,
		TotalSharesOutstanding: h.TotalSharesOutstanding,
		OwnershipPercent:       calc.OwnershipPercent,
		BuyingVelocity:         h.BuyingVelocity,
		Price:                  h.Price,
		RegulatoryStatus:       calc.Status,
		ThresholdPercent:       h.Rule.ThresholdPercent,
	})
}

// RecordTrendPoint scans the full holding set and records one aggregate
// rollup. Run on the trend interval.
func (s *Service) RecordTrendPoint() {
	views := s.List()
	if len(views) == 0 {
		return
	}

	point := history.TrendDataPoint{
		Jurisdictions: make(map[string]history.JurisdictionBreakdown),
	}

	percents := make([]float64, 0, len(views))
	velocities := make([]float64, 0, len(views))
	for _, view := range views {
		if view.Calculation == nil {
			continue
		}
		breakdown := point.Jurisdictions[view.Holding.Jurisdiction]
		switch view.Calculation.Status {
		case domain.StatusBreach:
			point.TotalBreaches++
			breakdown.Breaches++
		case domain.StatusWarning:
			point.TotalWarnings++
			breakdown.Warnings++
		default:
			point.TotalSafe++
			breakdown.Safe++
		}
		point.Jurisdictions[view.Holding.Jurisdiction] = breakdown
		percents = append(percents, view.Calculation.OwnershipPercent)
		velocities = append(velocities, view.Holding.BuyingVelocity)
	}

	point.AvgOwnershipPercent = formulas.Mean(percents)
	point.AvgBuyingVelocity = formulas.Mean(velocities)
	s.store.RecordTrendPoint(point)
}

// Get returns one holding with its computed compliance state.
func (s *Service) Get(ticker string) (*HoldingView, error) {
	s.mu.Lock()
	holding, ok := s.holdings[ticker]
	if !ok {
		s.mu.Unlock()
		return nil, ErrHoldingNotFound
	}
	snapshot := *holding
	s.mu.Unlock()

	calc, err := s.calculator.Calculate(&snapshot)
	if err != nil {
		return &HoldingView{Holding: &snapshot}, nil
	}
	return &HoldingView{Holding: &snapshot, Calculation: calc}, nil
}

// List returns every holding with computed compliance state, ordered by
// ticker. Holdings whose computation fails are included without a
// calculation.
func (s *Service) List() []*HoldingView {
	s.mu.Lock()
	snapshots := make([]domain.Holding, 0, len(s.holdings))
	for _, holding := range s.holdings {
		snapshots = append(snapshots, *holding)
	}
	s.mu.Unlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Ticker < snapshots[j].Ticker
	})

	views := make([]*HoldingView, 0, len(snapshots))
	for i := range snapshots {
		view := &HoldingView{Holding: &snapshots[i]}
		if calc, err := s.calculator.Calculate(&snapshots[i]); err == nil {
			view.Calculation = calc
		} else {
			s.log.Warn().Err(err).Str("ticker", snapshots[i].Ticker).Msg("Compliance computation failed")
		}
		views = append(views, view)
	}
	return views
}

// Close marks all subscriptions inactive.
func (s *Service) Close() {
	s.subscriptions.Close()
}

// estimateVelocityLocked derives buying velocity from the recent execution
// samples via EMA smoothing. Caller holds s.mu.
func (s *Service) estimateVelocityLocked(ticker string) float64 {
	samples := s.samples[ticker]
	if len(samples) == 0 {
		if holding, ok := s.holdings[ticker]; ok {
			return holding.BuyingVelocity
		}
		return 0
	}

	deltas := make([]float64, len(samples))
	elapsed := make([]float64, len(samples))
	for i, sample := range samples {
		deltas[i] = sample.deltaShares
		elapsed[i] = sample.elapsedHours
	}
	return formulas.SmoothedVelocity(deltas, elapsed, velocityEMALength)
}
