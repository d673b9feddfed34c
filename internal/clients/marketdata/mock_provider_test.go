package marketdata

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vigil/internal/domain"
)

func TestMockProvider_EmitsToSubscribers(t *testing.T) {
	provider := NewMockProvider(zerolog.Nop())

	var mu sync.Mutex
	received := make([]domain.ExecutionEvent, 0)
	require.NoError(t, provider.SubscribeToTicker("ACME", func(event domain.ExecutionEvent) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
	}))

	provider.emitRound()
	provider.emitRound()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "ACME", received[0].Symbol)
	assert.Positive(t, received[0].Quantity)
	assert.Positive(t, received[0].Price)
	assert.True(t, received[0].ChecksumValid)
}

func TestMockProvider_UnsubscribedTickerSilent(t *testing.T) {
	provider := NewMockProvider(zerolog.Nop())

	fired := false
	require.NoError(t, provider.SubscribeToTicker("ACME", func(domain.ExecutionEvent) {
		fired = true
	}))

	// Rounds only cover subscribed tickers; BETA never fires anything
	provider.emitRound()
	assert.True(t, fired)
}

func TestMockProvider_DisposeStopsDispatch(t *testing.T) {
	provider := NewMockProvider(zerolog.Nop())

	count := 0
	require.NoError(t, provider.SubscribeToTicker("ACME", func(domain.ExecutionEvent) {
		count++
	}))
	require.NoError(t, provider.Connect())
	require.NoError(t, provider.Dispose())

	provider.emitRound()
	assert.Zero(t, count, "no callback fires after Dispose returns")

	// Dispose is idempotent, and a disposed provider rejects new work
	require.NoError(t, provider.Dispose())
	assert.Error(t, provider.Connect())
	assert.Error(t, provider.SubscribeToTicker("BETA", func(domain.ExecutionEvent) {}))
}
