package alerting

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

// ErrRuleNotFound is returned when an alert rule id has no row.
var ErrRuleNotFound = errors.New("alert rule not found")

// ErrRecipientNotFound is returned when a recipient id has no row.
var ErrRecipientNotFound = errors.New("recipient not found")

// Repository handles alert rule, recipient, and notification persistence.
// Condition lists, recipient lists, and channel lists are stored as JSON
// text columns.
type Repository struct {
	alertingDB *sql.DB
	log        zerolog.Logger
}

// NewRepository creates a new alerting repository
func NewRepository(alertingDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		alertingDB: alertingDB,
		log:        log.With().Str("repo", "alerting").Logger(),
	}
}

// CreateRule inserts a new alert rule, assigning an id when absent.
func (r *Repository) CreateRule(rule *AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditions, recipients, channels, err := marshalRuleLists(rule)
	if err != nil {
		return err
	}

	_, err = r.alertingDB.Exec(`
		INSERT INTO alert_rules (
			id, name, description, enabled, conditions, recipients, channels,
			severity, cooldown_minutes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.Description, boolToInt(rule.Enabled),
		conditions, recipients, channels, string(rule.Severity),
		rule.CooldownMinutes, rule.CreatedAt.Unix(), rule.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// UpdateRule rewrites an existing rule.
func (r *Repository) UpdateRule(rule *AlertRule) error {
	rule.UpdatedAt = time.Now().UTC()

	conditions, recipients, channels, err := marshalRuleLists(rule)
	if err != nil {
		return err
	}

	result, err := r.alertingDB.Exec(`
		UPDATE alert_rules SET
			name = ?, description = ?, enabled = ?, conditions = ?,
			recipients = ?, channels = ?, severity = ?, cooldown_minutes = ?,
			updated_at = ?
		WHERE id = ?`,
		rule.Name, rule.Description, boolToInt(rule.Enabled), conditions,
		recipients, channels, string(rule.Severity), rule.CooldownMinutes,
		rule.UpdatedAt.Unix(), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert rule %s: %w", rule.ID, err)
	}
	return checkAffected(result, ErrRuleNotFound)
}

// SetRuleEnabled toggles a rule's enabled flag.
func (r *Repository) SetRuleEnabled(id string, enabled bool) error {
	result, err := r.alertingDB.Exec(
		"UPDATE alert_rules SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to toggle alert rule %s: %w", id, err)
	}
	return checkAffected(result, ErrRuleNotFound)
}

// DeleteRule removes a rule.
func (r *Repository) DeleteRule(id string) error {
	result, err := r.alertingDB.Exec("DELETE FROM alert_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete alert rule %s: %w", id, err)
	}
	return checkAffected(result, ErrRuleNotFound)
}

// GetRule returns one rule by id.
func (r *Repository) GetRule(id string) (*AlertRule, error) {
	row := r.alertingDB.QueryRow(`
		SELECT id, name, description, enabled, conditions, recipients,
		       channels, severity, cooldown_minutes, created_at, updated_at
		FROM alert_rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// ListRules returns all rules ordered by name.
func (r *Repository) ListRules() ([]*AlertRule, error) {
	rows, err := r.alertingDB.Query(`
		SELECT id, name, description, enabled, conditions, recipients,
		       channels, severity, cooldown_minutes, created_at, updated_at
		FROM alert_rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*AlertRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// EnabledRules returns the enabled subset, for evaluation.
func (r *Repository) EnabledRules() ([]*AlertRule, error) {
	rules, err := r.ListRules()
	if err != nil {
		return nil, err
	}
	enabled := make([]*AlertRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return enabled, nil
}

// CreateRecipient inserts a recipient, assigning an id when absent.
func (r *Repository) CreateRecipient(recipient *Recipient) error {
	if recipient.ID == "" {
		recipient.ID = uuid.New().String()
	}
	channels, err := json.Marshal(recipient.Channels)
	if err != nil {
		return fmt.Errorf("failed to encode recipient channels: %w", err)
	}

	_, err = r.alertingDB.Exec(`
		INSERT INTO recipients (id, name, email, phone, push_token, channels, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		recipient.ID, recipient.Name, recipient.Email, recipient.Phone,
		recipient.PushToken, string(channels), boolToInt(recipient.IsDefault),
	)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

// UpdateRecipient rewrites an existing recipient.
func (r *Repository) UpdateRecipient(recipient *Recipient) error {
	channels, err := json.Marshal(recipient.Channels)
	if err != nil {
		return fmt.Errorf("failed to encode recipient channels: %w", err)
	}

	result, err := r.alertingDB.Exec(`
		UPDATE recipients SET name = ?, email = ?, phone = ?, push_token = ?,
			channels = ?, is_default = ?
		WHERE id = ?`,
		recipient.Name, recipient.Email, recipient.Phone, recipient.PushToken,
		string(channels), boolToInt(recipient.IsDefault), recipient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipient %s: %w", recipient.ID, err)
	}
	return checkAffected(result, ErrRecipientNotFound)
}

// DeleteRecipient removes a recipient.
func (r *Repository) DeleteRecipient(id string) error {
	result, err := r.alertingDB.Exec("DELETE FROM recipients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete recipient %s: %w", id, err)
	}
	return checkAffected(result, ErrRecipientNotFound)
}

// GetRecipient returns one recipient by id.
func (r *Repository) GetRecipient(id string) (*Recipient, error) {
	row := r.alertingDB.QueryRow(`
		SELECT id, name, email, phone, push_token, channels, is_default
		FROM recipients WHERE id = ?`, id)

	recipient, err := scanRecipient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	return recipient, nil
}

// ListRecipients returns all recipients ordered by name.
func (r *Repository) ListRecipients() ([]*Recipient, error) {
	rows, err := r.alertingDB.Query(`
		SELECT id, name, email, phone, push_token, channels, is_default
		FROM recipients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	recipients := make([]*Recipient, 0)
	for rows.Next() {
		recipient, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, recipient)
	}
	return recipients, rows.Err()
}

// RecordNotification inserts one delivery record.
func (r *Repository) RecordNotification(n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	var deliveredAt interface{}
	if n.DeliveredAt != nil {
		deliveredAt = n.DeliveredAt.Unix()
	}
	var errText interface{}
	if n.Error != "" {
		errText = n.Error
	}

	_, err := r.alertingDB.Exec(`
		INSERT INTO notifications (
			id, alert_rule_id, recipient_id, channel, severity, status,
			title, message, ticker, jurisdiction, sent_at, delivered_at,
			error, ownership_percent, threshold_percent, time_to_breach_hours
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AlertRuleID, n.RecipientID, string(n.Channel),
		string(n.Severity), string(n.Status), n.Title, n.Message, n.Ticker,
		n.Jurisdiction, n.SentAt.Unix(), deliveredAt, errText,
		n.OwnershipPercent, n.ThresholdPercent, n.TimeToBreachHours,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// QueryNotifications returns delivery records matching the filter, most
// recent first, with limit/offset pagination.
func (r *Repository) QueryNotifications(f NotificationFilter) ([]*Notification, error) {
	query := `
		SELECT id, alert_rule_id, recipient_id, channel, severity, status,
		       title, message, ticker, jurisdiction, sent_at, delivered_at,
		       error, ownership_percent, threshold_percent, time_to_breach_hours
		FROM notifications WHERE 1=1`
	args := make([]interface{}, 0)

	if f.RecipientID != "" {
		query += " AND recipient_id = ?"
		args = append(args, f.RecipientID)
	}
	if f.Channel != "" {
		query += " AND channel = ?"
		args = append(args, string(f.Channel))
	}
	if f.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(f.Severity))
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.Start != nil {
		query += " AND sent_at >= ?"
		args = append(args, f.Start.Unix())
	}
	if f.End != nil {
		query += " AND sent_at <= ?"
		args = append(args, f.End.Unix())
	}

	query += " ORDER BY sent_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := r.alertingDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*Notification, 0)
	for rows.Next() {
		n := &Notification{}
		var channel, severity, status string
		var sentAt int64
		var deliveredAt, timeToBreach sql.NullFloat64
		var errText sql.NullString

		if err := rows.Scan(
			&n.ID, &n.AlertRuleID, &n.RecipientID, &channel, &severity,
			&status, &n.Title, &n.Message, &n.Ticker, &n.Jurisdiction,
			&sentAt, &deliveredAt, &errText, &n.OwnershipPercent,
			&n.ThresholdPercent, &timeToBreach,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.Channel = domain.NotificationChannel(channel)
		n.Severity = Severity(severity)
		n.Status = domain.BreachStatus(status)
		n.SentAt = time.Unix(sentAt, 0).UTC()
		if deliveredAt.Valid {
			t := time.Unix(int64(deliveredAt.Float64), 0).UTC()
			n.DeliveredAt = &t
		}
		if errText.Valid {
			n.Error = errText.String
		}
		if timeToBreach.Valid {
			v := timeToBreach.Float64
			n.TimeToBreachHours = &v
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func marshalRuleLists(rule *AlertRule) (conditions, recipients, channels string, err error) {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode rule conditions: %w", err)
	}
	recipientsJSON, err := json.Marshal(rule.Recipients)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode rule recipients: %w", err)
	}
	channelsJSON, err := json.Marshal(rule.Channels)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode rule channels: %w", err)
	}
	return string(conditionsJSON), string(recipientsJSON), string(channelsJSON), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*AlertRule, error) {
	rule := &AlertRule{}
	var enabled int
	var conditions, recipients, channels, severity string
	var createdAt, updatedAt int64

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &enabled, &conditions,
		&recipients, &channels, &severity, &rule.CooldownMinutes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan alert rule: %w", err)
	}

	rule.Enabled = enabled != 0
	rule.Severity = Severity(severity)
	rule.CreatedAt = time.Unix(createdAt, 0).UTC()
	rule.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(recipients), &rule.Recipients); err != nil {
		return nil, fmt.Errorf("failed to decode recipients for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(channels), &rule.Channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels for rule %s: %w", rule.ID, err)
	}
	return rule, nil
}

func scanRecipient(row rowScanner) (*Recipient, error) {
	recipient := &Recipient{}
	var channels string
	var isDefault int

	err := row.Scan(
		&recipient.ID, &recipient.Name, &recipient.Email, &recipient.Phone,
		&recipient.PushToken, &channels, &isDefault,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan recipient: %w", err)
	}

	recipient.IsDefault = isDefault != 0
	if err := json.Unmarshal([]byte(channels), &recipient.Channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels for recipient %s: %w", recipient.ID, err)
	}
	return recipient, nil
}

func checkAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
