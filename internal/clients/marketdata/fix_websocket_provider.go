package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/events"
	"github.com/aristath/vigil/internal/fix"
	"github.com/aristath/vigil/internal/modules/history"
)

const (
	fixDialTimeout       = 30 * time.Second
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// FIXWebSocketProvider streams raw FIX frames over a WebSocket, parses them
// through the wire protocol parser, and dispatches the normalized execution
// events to per-ticker callbacks. Checksum-invalid or malformed frames are
// dropped with an audit entry; they never mutate holding state.
type FIXWebSocketProvider struct {
	url    string
	parser *fix.Parser

	mu        sync.Mutex
	conn      *websocket.Conn
	connCtx   context.Context
	cancel    context.CancelFunc
	callbacks map[string][]domain.TickerCallback
	connected bool
	disposed  bool
	stopChan  chan struct{}
	wg        sync.WaitGroup

	store        *history.Store
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewFIXWebSocketProvider creates a FIX-over-WebSocket provider
func NewFIXWebSocketProvider(
	url string,
	store *history.Store,
	eventManager *events.Manager,
	log zerolog.Logger,
) *FIXWebSocketProvider {
	return &FIXWebSocketProvider{
		url:          url,
		parser:       fix.NewParser(),
		callbacks:    make(map[string][]domain.TickerCallback),
		stopChan:     make(chan struct{}),
		store:        store,
		eventManager: eventManager,
		log:          log.With().Str("provider", "fix_websocket").Logger(),
	}
}

// Connect dials the upstream feed and starts the read loop.
func (p *FIXWebSocketProvider) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return fmt.Errorf("provider disposed")
	}
	if p.connected {
		return nil
	}

	if err := p.dialLocked(); err != nil {
		return err
	}

	p.wg.Add(1)
	go p.readLoop(p.connCtx)
	return nil
}

// SubscribeToTicker registers a callback for parsed executions on a ticker.
func (p *FIXWebSocketProvider) SubscribeToTicker(ticker string, callback domain.TickerCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return fmt.Errorf("provider disposed")
	}
	p.callbacks[ticker] = append(p.callbacks[ticker], callback)
	return nil
}

// Dispose synchronously closes the connection and stops the read loop. No
// callbacks fire after Dispose returns.
func (p *FIXWebSocketProvider) Dispose() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	close(p.stopChan)
	if p.cancel != nil {
		p.cancel()
	}
	conn := p.conn
	p.conn = nil
	p.connected = false
	p.callbacks = make(map[string][]domain.TickerCallback)
	p.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	p.wg.Wait()

	p.log.Info().Msg("FIX WebSocket provider disposed")
	return nil
}

// dialLocked establishes the connection. Caller holds p.mu.
func (p *FIXWebSocketProvider) dialLocked() error {
	dialCtx, dialCancel := context.WithTimeout(context.Background(), fixDialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial FIX feed: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	p.conn = conn
	p.connCtx = connCtx
	p.cancel = cancel
	p.connected = true

	p.eventManager.Emit(events.FeedConnected, "marketdata", map[string]interface{}{
		"url": p.url,
	})
	p.log.Info().Str("url", p.url).Msg("Connected to FIX feed")
	return nil
}

func (p *FIXWebSocketProvider) readLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			p.handleDisconnect(err)
			return
		}
		p.handleFrame(string(data))
	}
}

// handleFrame parses one WebSocket frame, which may carry several FIX
// messages, and dispatches the valid executions.
func (p *FIXWebSocketProvider) handleFrame(frame string) {
	parsed, parseErrs := p.parser.ParseAll(frame)

	for _, parseErr := range parseErrs {
		p.log.Warn().Err(parseErr).Msg("FIX message rejected")
		p.store.RecordAudit(history.AuditEntry{
			SystemID: "fix_feed",
			Level:    "error",
			Message:  "wire message rejected",
			RawLine:  frame,
			Metadata: map[string]interface{}{
				"error": parseErr.Error(),
			},
		})
		p.eventManager.Emit(events.ParseRejected, "marketdata", map[string]interface{}{
			"error": parseErr.Error(),
		})
	}

	for _, event := range parsed {
		p.dispatch(*event)
	}
}

func (p *FIXWebSocketProvider) dispatch(event domain.ExecutionEvent) {
	p.mu.Lock()
	callbacks := make([]domain.TickerCallback, len(p.callbacks[event.Symbol]))
	copy(callbacks, p.callbacks[event.Symbol])
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(event)
	}
}

// handleDisconnect cleans up the dead connection and reconnects with
// exponential backoff unless the provider was disposed.
func (p *FIXWebSocketProvider) handleDisconnect(cause error) {
	p.mu.Lock()
	disposed := p.disposed
	if p.cancel != nil {
		p.cancel()
	}
	p.conn = nil
	p.connected = false
	p.mu.Unlock()

	if disposed {
		return
	}

	p.log.Warn().Err(cause).Msg("FIX feed disconnected")
	p.eventManager.Emit(events.FeedDisconnected, "marketdata", map[string]interface{}{
		"error": cause.Error(),
	})
	p.store.RecordAudit(history.AuditEntry{
		SystemID: "fix_feed",
		Level:    "warn",
		Message:  "feed disconnected",
		Metadata: map[string]interface{}{"error": cause.Error()},
	})

	go p.reconnectLoop()
}

func (p *FIXWebSocketProvider) reconnectLoop() {
	delay := baseReconnectDelay

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-p.stopChan:
			return
		case <-time.After(delay):
		}

		p.mu.Lock()
		if p.disposed {
			p.mu.Unlock()
			return
		}
		err := p.dialLocked()
		if err == nil {
			p.wg.Add(1)
			go p.readLoop(p.connCtx)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		p.log.Warn().Err(err).Int("attempt", attempt).Msg("FIX feed reconnect failed")
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}

	p.log.Error().Msg("FIX feed reconnect attempts exhausted")
}
