package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

const webhookTimeout = 10 * time.Second

// WebhookSender posts notification payloads to an external gateway that fans
// out to the actual email/SMS/push providers.
type WebhookSender struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewWebhookSender creates a webhook-backed channel sender
func NewWebhookSender(url string, log zerolog.Logger) *WebhookSender {
	return &WebhookSender{
		url:        url,
		httpClient: &http.Client{Timeout: webhookTimeout},
		log:        log.With().Str("client", "notify_webhook").Logger(),
	}
}

// Send posts one delivery request. Non-2xx responses are returned as errors
// so the caller records them on the notification.
func (s *WebhookSender) Send(channel domain.NotificationChannel, recipientAddress, title, message string) error {
	payload, err := json.Marshal(map[string]string{
		"channel":   string(channel),
		"recipient": recipientAddress,
		"title":     title,
		"message":   message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.log.Debug().
		Str("channel", string(channel)).
		Str("recipient", recipientAddress).
		Msg("Notification posted to webhook")
	return nil
}
