// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Compliance lifecycle
	StatusChanged   EventType = "STATUS_CHANGED"
	BreachDetected  EventType = "BREACH_DETECTED"
	BreachResolved  EventType = "BREACH_RESOLVED"
	WarningDetected EventType = "WARNING_DETECTED"
	WarningCleared  EventType = "WARNING_CLEARED"

	// Market data
	ExecutionApplied EventType = "EXECUTION_APPLIED"
	ParseRejected    EventType = "PARSE_REJECTED"
	FeedConnected    EventType = "FEED_CONNECTED"
	FeedDisconnected EventType = "FEED_DISCONNECTED"

	// Alerting
	NotificationSent   EventType = "NOTIFICATION_SENT"
	NotificationFailed EventType = "NOTIFICATION_FAILED"

	// System
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
