// Package marketdata contains market data provider implementations. Each
// provider is a standalone implementation of the data-provider contract,
// selected at startup by configuration.
package marketdata

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

const mockTickInterval = 2 * time.Second

// MockProvider generates random-walk execution events for every subscribed
// ticker. Used in dev mode when no upstream feed is available.
type MockProvider struct {
	mu        sync.Mutex
	callbacks map[string][]domain.TickerCallback
	prices    map[string]float64
	connected bool
	disposed  bool
	stopChan  chan struct{}
	wg        sync.WaitGroup

	rng *rand.Rand
	log zerolog.Logger
}

// NewMockProvider creates a mock provider
func NewMockProvider(log zerolog.Logger) *MockProvider {
	return &MockProvider{
		callbacks: make(map[string][]domain.TickerCallback),
		prices:    make(map[string]float64),
		stopChan:  make(chan struct{}),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       log.With().Str("provider", "mock").Logger(),
	}
}

// Connect starts the event generation loop.
func (p *MockProvider) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return fmt.Errorf("provider disposed")
	}
	if p.connected {
		return nil
	}
	p.connected = true

	p.wg.Add(1)
	go p.generate()

	p.log.Info().Msg("Mock provider connected")
	return nil
}

// SubscribeToTicker registers a callback for generated events on a ticker.
func (p *MockProvider) SubscribeToTicker(ticker string, callback domain.TickerCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return fmt.Errorf("provider disposed")
	}

	p.callbacks[ticker] = append(p.callbacks[ticker], callback)
	if _, ok := p.prices[ticker]; !ok {
		p.prices[ticker] = 20 + p.rng.Float64()*180
	}
	return nil
}

// Dispose stops generation synchronously. No callbacks fire after Dispose
// returns.
func (p *MockProvider) Dispose() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	connected := p.connected
	p.connected = false
	p.mu.Unlock()

	if connected {
		close(p.stopChan)
		p.wg.Wait()
	}

	p.log.Info().Msg("Mock provider disposed")
	return nil
}

func (p *MockProvider) generate() {
	defer p.wg.Done()

	ticker := time.NewTicker(mockTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.emitRound()
		}
	}
}

// emitRound produces one random-walk execution per subscribed ticker.
func (p *MockProvider) emitRound() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}

	type dispatch struct {
		event     domain.ExecutionEvent
		callbacks []domain.TickerCallback
	}
	dispatches := make([]dispatch, 0, len(p.callbacks))

	for symbol, callbacks := range p.callbacks {
		price := p.prices[symbol] * (1 + (p.rng.Float64()-0.5)*0.01)
		p.prices[symbol] = price

		side := domain.SideBuy
		if p.rng.Float64() < 0.3 {
			side = domain.SideSell
		}

		copied := make([]domain.TickerCallback, len(callbacks))
		copy(copied, callbacks)
		dispatches = append(dispatches, dispatch{
			event: domain.ExecutionEvent{
				MsgType:       "8",
				Symbol:        symbol,
				Side:          side,
				Quantity:      float64(100 + p.rng.Intn(9900)),
				Price:         price,
				ChecksumValid: true,
			},
			callbacks: copied,
		})
	}
	p.mu.Unlock()

	for _, d := range dispatches {
		for _, cb := range d.callbacks {
			cb(d.event)
		}
	}
}
