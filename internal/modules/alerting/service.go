package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/events"
	"github.com/aristath/vigil/internal/modules/history"
)

// deliveryQueueSize bounds pending deliveries. A full queue records the
// notification as undelivered instead of stalling evaluation.
const deliveryQueueSize = 256

// deliveryJob carries one composed notification to the delivery worker.
type deliveryJob struct {
	notification *Notification
	ruleName     string
	address      string
}

// Service evaluates alert rules against computed compliance state and
// dispatches notifications. It implements the holdings evaluator contract:
// Evaluate is called once per holding per recomputation tick.
//
// Enabled rules are cached in memory and reloaded on every rule mutation, so
// the evaluation path never touches the database for rule reads. Delivery
// runs on a single background worker fed by a buffered queue, so a slow
// channel gateway never stalls rule evaluation for other holdings.
type Service struct {
	repo      *Repository
	evaluator *RuleEvaluator
	sender    domain.ChannelSender
	store     *history.Store
	events    *events.Manager
	log       zerolog.Logger

	deliveries   chan deliveryJob
	deliveryDone chan struct{}
	stopOnce     sync.Once

	mu      sync.Mutex
	rules   []*AlertRule
	stopped bool
}

// NewService creates the alerting service, loads the enabled rule cache, and
// starts the delivery worker.
func NewService(
	repo *Repository,
	sender domain.ChannelSender,
	store *history.Store,
	eventManager *events.Manager,
	log zerolog.Logger,
) (*Service, error) {
	s := &Service{
		repo:         repo,
		evaluator:    NewRuleEvaluator(),
		sender:       sender,
		store:        store,
		events:       eventManager,
		log:          log.With().Str("module", "alerting").Logger(),
		deliveries:   make(chan deliveryJob, deliveryQueueSize),
		deliveryDone: make(chan struct{}),
	}
	if err := s.reloadRules(); err != nil {
		return nil, err
	}
	go s.deliverLoop()
	return s, nil
}

// Stop drains pending deliveries and shuts the delivery worker down.
// Safe to call more than once; Evaluate calls after Stop deliver nothing.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.deliveries)
	})
	<-s.deliveryDone
}

// Evaluate runs every enabled rule against one holding's computed state.
// Matching rules inside their cooldown window are suppressed; the rest fire.
// A delivery failure is recorded on the notification and never aborts the
// evaluation of other rules or holdings.
func (s *Service) Evaluate(h *domain.Holding, calc *domain.BreachCalculation) {
	s.mu.Lock()
	rules := s.rules
	s.mu.Unlock()

	for _, rule := range rules {
		if !s.evaluator.Matches(rule, h, calc) {
			continue
		}
		if !s.evaluator.ShouldFire(rule.ID, h.Ticker, rule.CooldownMinutes) {
			s.log.Debug().
				Str("rule", rule.Name).
				Str("ticker", h.Ticker).
				Msg("Alert suppressed by cooldown")
			continue
		}
		s.fire(rule, h, calc)
	}
}

// PruneCooldowns drops cooldown stamps older than the horizon. Run on a
// periodic job.
func (s *Service) PruneCooldowns(olderThan time.Duration) {
	if pruned := s.evaluator.PruneCooldowns(olderThan); pruned > 0 {
		s.log.Debug().Int("pruned", pruned).Msg("Cooldown stamps pruned")
	}
}

// fire constructs one notification per (recipient, channel) pair and hands
// each off to the delivery worker: the rule's recipient list is expanded
// (the all-users sentinel becomes every registered non-default recipient)
// and each rule channel is intersected with the channels the recipient
// accepts. When expansion fails nothing was dispatched, so the cooldown
// stamp taken in Evaluate is released.
func (s *Service) fire(rule *AlertRule, h *domain.Holding, calc *domain.BreachCalculation) {
	recipients, err := s.expandRecipients(rule)
	if err != nil {
		s.evaluator.ResetCooldown(rule.ID, h.Ticker)
		s.log.Error().Err(err).Str("rule", rule.Name).Msg("Failed to expand recipients")
		return
	}

	severity := severityForStatus(calc.Status)
	title, message := composeContent(h, calc)

	for _, recipient := range recipients {
		for _, channel := range rule.Channels {
			if !recipient.Accepts(channel) {
				continue
			}

			notification := &Notification{
				AlertRuleID:       rule.ID,
				RecipientID:       recipient.ID,
				Channel:           channel,
				Severity:          severity,
				Status:            calc.Status,
				Title:             title,
				Message:           message,
				Ticker:            h.Ticker,
				Jurisdiction:      h.Jurisdiction,
				SentAt:            time.Now().UTC(),
				OwnershipPercent:  calc.OwnershipPercent,
				ThresholdPercent:  h.Rule.ThresholdPercent,
				TimeToBreachHours: calc.ProjectedBreachTime,
			}

			s.enqueueDelivery(deliveryJob{
				notification: notification,
				ruleName:     rule.Name,
				address:      recipient.Address(channel),
			})
		}
	}
}

// enqueueDelivery hands a notification to the delivery worker without
// blocking. When the queue is full or the worker is stopped the notification
// is recorded as undelivered.
func (s *Service) enqueueDelivery(job deliveryJob) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.recordUndeliverable(job, "delivery worker stopped")
		return
	}
	select {
	case s.deliveries <- job:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.recordUndeliverable(job, "delivery queue full")
	}
}

// recordUndeliverable persists a notification that never reached the sender.
func (s *Service) recordUndeliverable(job deliveryJob, reason string) {
	job.notification.Error = reason
	s.log.Warn().
		Str("rule", job.ruleName).
		Str("ticker", job.notification.Ticker).
		Str("channel", string(job.notification.Channel)).
		Msg("Notification dropped: " + reason)
	if err := s.repo.RecordNotification(job.notification); err != nil {
		s.log.Error().Err(err).Str("rule", job.ruleName).Msg("Failed to record notification")
	}
}

// deliverLoop drains the delivery queue on a single goroutine.
func (s *Service) deliverLoop() {
	defer close(s.deliveryDone)

	for job := range s.deliveries {
		s.deliver(job)
	}
}

// deliver sends one notification, stamps the outcome on the record, emits
// the matching bus event, and persists the record. Failures are captured on
// the notification and audited, never propagated.
func (s *Service) deliver(job deliveryJob) {
	notification := job.notification
	channel := notification.Channel

	if err := s.sender.Send(channel, job.address, notification.Title, notification.Message); err != nil {
		notification.Error = err.Error()
		s.store.RecordAudit(history.AuditEntry{
			SystemID: "alerting",
			Level:    "error",
			Message:  "notification delivery failed",
			Metadata: map[string]interface{}{
				"rule":      job.ruleName,
				"ticker":    notification.Ticker,
				"channel":   string(channel),
				"recipient": notification.RecipientID,
				"error":     err.Error(),
			},
		})
		s.events.Emit(events.NotificationFailed, "alerting", map[string]interface{}{
			"rule":    job.ruleName,
			"ticker":  notification.Ticker,
			"channel": string(channel),
			"error":   err.Error(),
		})
	} else {
		now := time.Now().UTC()
		notification.DeliveredAt = &now
		s.events.Emit(events.NotificationSent, "alerting", map[string]interface{}{
			"rule":     job.ruleName,
			"ticker":   notification.Ticker,
			"channel":  string(channel),
			"severity": string(notification.Severity),
		})
	}

	if err := s.repo.RecordNotification(notification); err != nil {
		s.log.Error().Err(err).Str("rule", job.ruleName).Msg("Failed to record notification")
	}
}

// expandRecipients resolves the rule's recipient id list, expanding the
// all-users sentinel to every registered non-default recipient. Unknown ids
// are skipped with a log line.
func (s *Service) expandRecipients(rule *AlertRule) ([]*Recipient, error) {
	seen := make(map[string]struct{})
	expanded := make([]*Recipient, 0, len(rule.Recipients))

	for _, id := range rule.Recipients {
		if id == AllUsersRecipient {
			all, err := s.repo.ListRecipients()
			if err != nil {
				return nil, err
			}
			for _, recipient := range all {
				if recipient.IsDefault {
					continue
				}
				if _, dup := seen[recipient.ID]; dup {
					continue
				}
				seen[recipient.ID] = struct{}{}
				expanded = append(expanded, recipient)
			}
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}
		recipient, err := s.repo.GetRecipient(id)
		if err != nil {
			s.log.Warn().Str("recipient", id).Str("rule", rule.Name).Msg("Unknown recipient on rule, skipping")
			continue
		}
		seen[id] = struct{}{}
		expanded = append(expanded, recipient)
	}
	return expanded, nil
}

// CreateRule persists a rule and refreshes the cache.
func (s *Service) CreateRule(rule *AlertRule) error {
	if err := s.repo.CreateRule(rule); err != nil {
		return err
	}
	return s.reloadRules()
}

// UpdateRule persists a rule change and refreshes the cache.
func (s *Service) UpdateRule(rule *AlertRule) error {
	if err := s.repo.UpdateRule(rule); err != nil {
		return err
	}
	return s.reloadRules()
}

// DeleteRule removes a rule and refreshes the cache.
func (s *Service) DeleteRule(id string) error {
	if err := s.repo.DeleteRule(id); err != nil {
		return err
	}
	return s.reloadRules()
}

// SetRuleEnabled toggles a rule and refreshes the cache.
func (s *Service) SetRuleEnabled(id string, enabled bool) error {
	if err := s.repo.SetRuleEnabled(id, enabled); err != nil {
		return err
	}
	return s.reloadRules()
}

// Repo exposes the repository for read paths (handlers).
func (s *Service) Repo() *Repository {
	return s.repo
}

func (s *Service) reloadRules() error {
	rules, err := s.repo.EnabledRules()
	if err != nil {
		return fmt.Errorf("failed to load enabled alert rules: %w", err)
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	return nil
}

func severityForStatus(status domain.BreachStatus) Severity {
	switch status {
	case domain.StatusBreach:
		return SeverityCritical
	case domain.StatusWarning:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// composeContent builds the title and message for a notification. Breach
// notifications carry the required filing action; warnings include the
// projected breach time when it is under 24 hours.
func composeContent(h *domain.Holding, calc *domain.BreachCalculation) (title, message string) {
	switch calc.Status {
	case domain.StatusBreach:
		title = fmt.Sprintf("REGULATORY BREACH: %s at %.2f%%", h.Ticker, calc.OwnershipPercent)
		message = fmt.Sprintf(
			"%s (%s) holds %.2f%% against the %.1f%% disclosure threshold (%s). A regulatory filing is required within %d business days.",
			h.Ticker, h.Jurisdiction, calc.OwnershipPercent,
			h.Rule.ThresholdPercent, h.Rule.Name, h.Rule.DeadlineBusinessDays,
		)
	case domain.StatusWarning:
		title = fmt.Sprintf("Threshold warning: %s at %.2f%%", h.Ticker, calc.OwnershipPercent)
		message = fmt.Sprintf(
			"%s (%s) holds %.2f%% approaching the %.1f%% disclosure threshold.",
			h.Ticker, h.Jurisdiction, calc.OwnershipPercent, h.Rule.ThresholdPercent,
		)
		if calc.ProjectedBreachTime != nil && *calc.ProjectedBreachTime < 24 {
			message += fmt.Sprintf(" Projected breach in %.1f hours at the current buying velocity.", *calc.ProjectedBreachTime)
		}
	default:
		title = fmt.Sprintf("Holding update: %s at %.2f%%", h.Ticker, calc.OwnershipPercent)
		message = fmt.Sprintf(
			"%s (%s) holds %.2f%% of shares outstanding. Status: %s.",
			h.Ticker, h.Jurisdiction, calc.OwnershipPercent, calc.TimeToBreach,
		)
	}
	return title, message
}
