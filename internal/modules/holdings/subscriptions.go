package holdings

import (
	"sync"

	"github.com/aristath/vigil/internal/domain"
)

// SubscriptionRegistry dispatches execution events to per-ticker callbacks.
// Multiple subscribers per ticker are supported; a ticker with no remaining
// holding is unsubscribed so no further callbacks fire for it. Dispatch after
// Close is a no-op.
type SubscriptionRegistry struct {
	mu        sync.Mutex
	callbacks map[string][]domain.TickerCallback
	closed    bool
}

// NewSubscriptionRegistry creates an empty registry
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		callbacks: make(map[string][]domain.TickerCallback),
	}
}

// Subscribe registers a callback for a ticker.
func (r *SubscriptionRegistry) Subscribe(ticker string, cb domain.TickerCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.callbacks[ticker] = append(r.callbacks[ticker], cb)
}

// Unsubscribe removes all callbacks for a ticker.
func (r *SubscriptionRegistry) Unsubscribe(ticker string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, ticker)
}

// Dispatch invokes every callback registered for the event's symbol.
func (r *SubscriptionRegistry) Dispatch(event domain.ExecutionEvent) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	callbacks := make([]domain.TickerCallback, len(r.callbacks[event.Symbol]))
	copy(callbacks, r.callbacks[event.Symbol])
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(event)
	}
}

// Subscribed reports whether a ticker has at least one callback.
func (r *SubscriptionRegistry) Subscribed(ticker string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.callbacks[ticker]) > 0
}

// Close marks all subscriptions inactive. No callback fires after Close
// returns.
func (r *SubscriptionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.callbacks = make(map[string][]domain.TickerCallback)
}
