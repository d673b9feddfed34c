package domain

// TickerCallback receives execution events dispatched for a subscribed ticker
type TickerCallback func(event ExecutionEvent)

// MarketDataProvider defines the data-provider contract implemented by all
// market data sources (mock, FIX-over-WebSocket, vendor adapters).
// Concrete providers are standalone implementations selected at startup by
// configuration - there is no shared base with overridden behavior.
type MarketDataProvider interface {
	// Connect establishes the upstream connection
	Connect() error

	// SubscribeToTicker registers a callback for events on the given ticker.
	// Multiple subscribers per ticker are supported.
	SubscribeToTicker(ticker string, callback TickerCallback) error

	// Dispose synchronously stops the provider. No callbacks fire after
	// Dispose returns.
	Dispose() error
}

// NotificationChannel identifies a delivery channel for alert notifications
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelPush  NotificationChannel = "push"
)

// ChannelSender delivers one notification payload over one channel.
// Implementations live in internal/clients/notify; delivery failures are
// returned as errors and recorded on the Notification, never thrown.
type ChannelSender interface {
	// Send delivers the message to the recipient address.
	Send(channel NotificationChannel, recipientAddress, title, message string) error
}
