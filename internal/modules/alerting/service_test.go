package alerting

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/events"
	"github.com/aristath/vigil/internal/modules/history"
	vigiltesting "github.com/aristath/vigil/internal/testing"
)

// fakeSender records sends and can fail selected channels. When release is
// set, Send blocks until it is closed, simulating a stalled gateway.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	fail    map[domain.NotificationChannel]bool
	release chan struct{}
}

type sentMessage struct {
	channel domain.NotificationChannel
	address string
	title   string
}

func (f *fakeSender) Send(channel domain.NotificationChannel, address, title, message string) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[channel] {
		return errors.New("gateway unreachable")
	}
	f.sent = append(f.sent, sentMessage{channel, address, title})
	return nil
}

func (f *fakeSender) snapshot() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestAlerting(t *testing.T) (*Service, *fakeSender, *history.Store, func()) {
	t.Helper()
	db, cleanup := vigiltesting.NewTestDB(t, "alerting")

	repo := NewRepository(db.Conn(), zerolog.Nop())
	sender := &fakeSender{fail: make(map[domain.NotificationChannel]bool)}
	store := history.NewStore(history.Limits{MaxAuditEntries: 100}, nil, zerolog.Nop())
	manager := events.NewManager(events.NewBus(), zerolog.Nop())

	service, err := NewService(repo, sender, store, manager, zerolog.Nop())
	require.NoError(t, err)
	return service, sender, store, cleanup
}

func addRecipient(t *testing.T, service *Service, id, email string, isDefault bool, channels ...domain.NotificationChannel) {
	t.Helper()
	require.NoError(t, service.repo.CreateRecipient(&Recipient{
		ID:        id,
		Name:      id,
		Email:     email,
		Phone:     "+10000000000",
		PushToken: "token-" + id,
		Channels:  channels,
		IsDefault: isDefault,
	}))
}

func breachState() (*domain.Holding, *domain.BreachCalculation) {
	h := &domain.Holding{
		Ticker:       "ACME",
		Jurisdiction: "US",
		Rule: &domain.RegulatoryRule{
			Code:                 "SEC-13D",
			Name:                 "SEC Schedule 13D",
			ThresholdPercent:     5.0,
			DeadlineBusinessDays: 5,
		},
	}
	calc := &domain.BreachCalculation{
		Status:           domain.StatusBreach,
		OwnershipPercent: 5.2,
		TimeToBreach:     "Active Breach",
	}
	return h, calc
}

func breachRule(recipients []string, channels ...domain.NotificationChannel) *AlertRule {
	return &AlertRule{
		Name:    "breach rule",
		Enabled: true,
		Conditions: []Condition{
			{Type: ConditionBreach, Operator: OpEquals, Value: true},
		},
		Recipients:      recipients,
		Channels:        channels,
		Severity:        SeverityCritical,
		CooldownMinutes: 60,
	}
}

func TestEvaluate_FiresAndRecordsNotification(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(breachRule([]string{"ops"}, domain.ChannelEmail)))

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Stop()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, domain.ChannelEmail, sender.sent[0].channel)
	assert.Equal(t, "ops@fund.example", sender.sent[0].address)
	assert.Contains(t, sender.sent[0].title, "REGULATORY BREACH")

	notifications, err := service.repo.QueryNotifications(NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, SeverityCritical, notifications[0].Severity)
	assert.NotNil(t, notifications[0].DeliveredAt)
	assert.Empty(t, notifications[0].Error)
	assert.InDelta(t, 5.2, notifications[0].OwnershipPercent, 1e-9)
}

func TestEvaluate_CooldownSuppressesSecondFire(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(breachRule([]string{"ops"}, domain.ChannelEmail)))

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Evaluate(h, calc)
	service.Stop()

	// Two evaluations inside the window produce exactly one notification
	assert.Len(t, sender.sent, 1)
	notifications, err := service.repo.QueryNotifications(NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestEvaluate_CooldownIsPerHolding(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(breachRule([]string{"ops"}, domain.ChannelEmail)))

	h, calc := breachState()
	service.Evaluate(h, calc)

	other, otherCalc := breachState()
	other.Ticker = "BETA"
	service.Evaluate(other, otherCalc)
	service.Stop()

	assert.Len(t, sender.sent, 2)
}

func TestEvaluate_AllUsersExpandsToNonDefaultRecipients(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	addRecipient(t, service, "legal", "legal@fund.example", false, domain.ChannelEmail)
	addRecipient(t, service, "system", "system@fund.example", true, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(breachRule([]string{AllUsersRecipient}, domain.ChannelEmail)))

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Stop()

	require.Len(t, sender.sent, 2, "default recipient excluded from all-users")
	addresses := []string{sender.sent[0].address, sender.sent[1].address}
	assert.ElementsMatch(t, []string{"legal@fund.example", "ops@fund.example"}, addresses)
}

func TestEvaluate_ChannelIntersection(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	// Rule declares email+sms, recipient only accepts sms
	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelSMS)
	require.NoError(t, service.CreateRule(breachRule([]string{"ops"}, domain.ChannelEmail, domain.ChannelSMS)))

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Stop()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, domain.ChannelSMS, sender.sent[0].channel)
}

func TestEvaluate_DeliveryFailureRecordedNotThrown(t *testing.T) {
	service, sender, store, cleanup := newTestAlerting(t)
	defer cleanup()
	sender.fail[domain.ChannelEmail] = true

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(breachRule([]string{"ops"}, domain.ChannelEmail)))

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Stop()

	notifications, err := service.repo.QueryNotifications(NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Nil(t, notifications[0].DeliveredAt)
	assert.Equal(t, "gateway unreachable", notifications[0].Error)

	audits := store.QueryAudit(history.Filter{SystemID: "alerting"})
	assert.Len(t, audits, 1)
}

func TestEvaluate_DisabledRuleSkipped(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	rule := breachRule([]string{"ops"}, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(rule))
	require.NoError(t, service.SetRuleEnabled(rule.ID, false))

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Stop()

	assert.Empty(t, sender.sent)
}

func TestEvaluate_WarningContentIncludesProjection(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(&AlertRule{
		Name:    "warning rule",
		Enabled: true,
		Conditions: []Condition{
			{Type: ConditionWarning, Operator: OpEquals, Value: true},
		},
		Recipients:      []string{"ops"},
		Channels:        []domain.NotificationChannel{domain.ChannelEmail},
		Severity:        SeverityHigh,
		CooldownMinutes: 60,
	}))

	hours := 12.0
	h, _ := breachState()
	calc := &domain.BreachCalculation{
		Status:              domain.StatusWarning,
		OwnershipPercent:    4.7,
		ProjectedBreachTime: &hours,
		TimeToBreach:        "Breach in 12.0h",
	}
	service.Evaluate(h, calc)
	service.Stop()

	notifications, err := service.repo.QueryNotifications(NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, SeverityHigh, notifications[0].Severity)
	assert.Contains(t, notifications[0].Message, "12.0 hours")
	require.NotNil(t, notifications[0].TimeToBreachHours)
	assert.InDelta(t, 12.0, *notifications[0].TimeToBreachHours, 1e-9)
	assert.Len(t, sender.sent, 1)
}

func TestSeedDefaultRules(t *testing.T) {
	service, _, _, cleanup := newTestAlerting(t)
	defer cleanup()

	require.NoError(t, SeedDefaultRules(service.repo))
	rules, err := service.repo.ListRules()
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	// Seeding twice never duplicates
	require.NoError(t, SeedDefaultRules(service.repo))
	rules, err = service.repo.ListRules()
	require.NoError(t, err)
	assert.Len(t, rules, 3)
}

func TestQueryNotifications_FiltersAndPagination(t *testing.T) {
	service, _, _, cleanup := newTestAlerting(t)
	defer cleanup()

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail, domain.ChannelSMS)
	require.NoError(t, service.CreateRule(breachRule([]string{"ops"}, domain.ChannelEmail, domain.ChannelSMS)))

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Stop()

	all, err := service.repo.QueryNotifications(NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	email, err := service.repo.QueryNotifications(NotificationFilter{Channel: domain.ChannelEmail})
	require.NoError(t, err)
	require.Len(t, email, 1)

	page, err := service.repo.QueryNotifications(NotificationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestEvaluate_SlowGatewayDoesNotStallEvaluation(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()
	sender.release = make(chan struct{})

	addRecipient(t, service, "ops", "ops@fund.example", false, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(breachRule([]string{"ops"}, domain.ChannelEmail)))

	h, calc := breachState()
	other, otherCalc := breachState()
	other.Ticker = "BETA"

	// Both evaluations must return promptly even while the gateway hangs
	done := make(chan struct{})
	go func() {
		service.Evaluate(h, calc)
		service.Evaluate(other, otherCalc)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation blocked on notification delivery")
	}

	assert.Empty(t, sender.snapshot(), "nothing should be sent while the gateway is stalled")

	close(sender.release)
	service.Stop()

	assert.Len(t, sender.snapshot(), 2)
	notifications, err := service.repo.QueryNotifications(NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	for _, n := range notifications {
		assert.NotNil(t, n.DeliveredAt)
	}
}

func TestEvaluate_RecipientExpansionFailureClearsCooldown(t *testing.T) {
	service, sender, _, cleanup := newTestAlerting(t)
	defer cleanup()

	rule := breachRule([]string{AllUsersRecipient}, domain.ChannelEmail)
	require.NoError(t, service.CreateRule(rule))

	// Rules are cached in memory, so closing the connection breaks only the
	// recipient lookup inside fire
	require.NoError(t, service.repo.alertingDB.Close())

	h, calc := breachState()
	service.Evaluate(h, calc)
	service.Stop()

	assert.Empty(t, sender.sent)
	assert.True(t, service.evaluator.ShouldFire(rule.ID, h.Ticker, rule.CooldownMinutes),
		"pair must not stay in cooldown when nothing was dispatched")
}
