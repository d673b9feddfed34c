package events

import (
	"sync"
	"time"
)

// Handler receives events published on the bus
type Handler func(event Event)

// Bus is an in-process publish/subscribe bus keyed by event type.
// Handlers run synchronously in publish order; a subscription for the empty
// event type receives every event. The bus is the single seam between the
// compliance engine, the time-series store, and the alerting subsystem.
type Bus struct {
	handlers map[EventType][]Handler
	mu       sync.RWMutex
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type.
// Subscribing with the empty event type receives all events.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit publishes an event to all matching handlers
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}
	b.Publish(event)
}

// Publish delivers a pre-built event to all matching handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	specific := make([]Handler, len(b.handlers[event.Type]))
	copy(specific, b.handlers[event.Type])
	wildcard := make([]Handler, len(b.handlers[EventType("")]))
	copy(wildcard, b.handlers[EventType("")])
	b.mu.RUnlock()

	for _, h := range specific {
		h(event)
	}
	for _, h := range wildcard {
		h(event)
	}
}
