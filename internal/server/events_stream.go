package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/vigil/internal/events"
)

// subscriberBuffer is the per-client event buffer. A slow client that falls
// more than this far behind is disconnected rather than backpressuring the
// event bus.
const subscriberBuffer = 64

// EventsStreamHandler fans the internal event bus out to WebSocket clients.
// Handlers on the bus run synchronously, so delivery into the per-client
// buffers must never block.
type EventsStreamHandler struct {
	log         zerolog.Logger
	mu          sync.Mutex
	subscribers map[chan events.Event]struct{}
	closed      bool
}

// NewEventsStreamHandler creates the stream handler and attaches it to the
// bus with a wildcard subscription.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	h := &EventsStreamHandler{
		log:         log.With().Str("handler", "events_stream").Logger(),
		subscribers: make(map[chan events.Event]struct{}),
	}

	bus.Subscribe(events.EventType(""), h.broadcast)

	return h
}

// ServeHTTP upgrades the connection and streams every bus event as JSON
// until the client disconnects.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := h.subscribe()
	if ch == nil {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unsubscribe(ch)

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("Event stream client connected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Event stream client write failed")
				return
			}
		}
	}
}

// Close disconnects all clients. Subsequent connections are refused.
func (h *EventsStreamHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[chan events.Event]struct{})
}

func (h *EventsStreamHandler) subscribe() chan events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	ch := make(chan events.Event, subscriberBuffer)
	h.subscribers[ch] = struct{}{}
	return ch
}

func (h *EventsStreamHandler) unsubscribe(ch chan events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// broadcast delivers one event to every subscriber without blocking.
// Full buffers are skipped; the client read loop will fall behind and
// miss the event rather than stall the bus.
func (h *EventsStreamHandler) broadcast(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
