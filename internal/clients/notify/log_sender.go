// Package notify contains channel sender implementations for alert delivery.
package notify

import (
	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

// LogSender writes deliveries to the log instead of an external gateway.
// Used in dev mode and as the fallback when no webhook is configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a log-backed channel sender
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{
		log: log.With().Str("client", "notify_log").Logger(),
	}
}

// Send logs the notification and always succeeds.
func (s *LogSender) Send(channel domain.NotificationChannel, recipientAddress, title, message string) error {
	s.log.Info().
		Str("channel", string(channel)).
		Str("recipient", recipientAddress).
		Str("title", title).
		Str("message", message).
		Msg("Notification delivered (log channel)")
	return nil
}
