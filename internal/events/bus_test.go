package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe(StatusChanged, func(e Event) {
		received = append(received, e)
	})

	bus.Emit(StatusChanged, "compliance", map[string]interface{}{"ticker": "ACME"})
	bus.Emit(ExecutionApplied, "holdings", nil) // no handler registered

	assert.Len(t, received, 1)
	assert.Equal(t, StatusChanged, received[0].Type)
	assert.Equal(t, "compliance", received[0].Module)
	assert.Equal(t, "ACME", received[0].Data["ticker"])
}

func TestBus_MultipleHandlersRunInOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(BreachDetected, func(Event) { order = append(order, 1) })
	bus.Subscribe(BreachDetected, func(Event) { order = append(order, 2) })

	bus.Emit(BreachDetected, "compliance", nil)

	assert.Equal(t, []int{1, 2}, order)
}

func TestBus_WildcardSubscriptionReceivesAllEvents(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Subscribe(EventType(""), func(Event) { count++ })

	bus.Emit(StatusChanged, "compliance", nil)
	bus.Emit(NotificationSent, "alerting", nil)
	bus.Emit(ParseRejected, "fix", nil)

	assert.Equal(t, 3, count)
}
