package mq

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
)

// ContextDialer is an interface for custom network dialing logic. It matches
// the signature of net.Dialer.DialContext and is also satisfied by
// gorilla/websocket-backed dialers (see WebSocketDialer).
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// clientOptions holds configuration for the MQTT client.
type clientOptions struct {
	Server string

	ClientID string
	Username string
	Password string

	KeepAlive      time.Duration
	CleanSession   bool
	ConnectTimeout time.Duration

	AutoReconnect     bool
	MinReconnectDelay time.Duration
	MaxReconnectDelay time.Duration

	MaxInFlight int // 0 = unlimited outstanding QoS>0 publishes

	TLSConfig *tls.Config

	Logger *slog.Logger

	will *willMessage

	OnConnect        func(*Client)
	OnConnectionLost func(*Client, error)

	InitialSubscriptions map[string]MessageHandler

	DefaultPublishHandler MessageHandler

	Dialer ContextDialer

	Metrics *Metrics
}

// willMessage represents the Last Will and Testament message.
type willMessage struct {
	Topic    string
	Payload  []byte
	QoS      uint8
	Retained bool
}

// Option is a functional option for configuring the client.
type Option func(*clientOptions)

// WithClientID sets the client identifier.
//
// An empty client ID together with CleanSession=false is rejected locally:
// MQTT 3.1.1 gives that combination no defined server behavior worth relying
// on. Without WithClientID the client keeps the random identifier that
// defaultOptions generates; an explicitly empty ID with CleanSession=true is
// sent as is.
func WithClientID(id string) Option {
	return func(o *clientOptions) { o.ClientID = id }
}

// WithCredentials sets the username and password used in CONNECT.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.Username = username
		o.Password = password
	}
}

// WithKeepAlive sets the keep-alive interval advertised in CONNECT. Zero
// disables keep-alive pings entirely.
func WithKeepAlive(duration time.Duration) Option {
	return func(o *clientOptions) { o.KeepAlive = duration }
}

// WithCleanSession sets the CONNECT clean-session flag.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) { o.CleanSession = clean }
}

// WithAutoReconnect enables or disables automatic reconnection on connection
// loss. Enabled by default.
func WithAutoReconnect(enable bool) Option {
	return func(o *clientOptions) { o.AutoReconnect = enable }
}

// WithReconnectDelay sets the exponential backoff bounds used between
// reconnect attempts. The delay starts at min and doubles on each failure up
// to max.
func WithReconnectDelay(min, max time.Duration) Option {
	return func(o *clientOptions) {
		o.MinReconnectDelay = min
		o.MaxReconnectDelay = max
	}
}

// WithConnectTimeout sets the timeout applied to the initial TCP/TLS dial and
// CONNACK handshake of each (re)connection attempt.
func WithConnectTimeout(duration time.Duration) Option {
	return func(o *clientOptions) { o.ConnectTimeout = duration }
}

// WithTLS enables TLS using the given configuration. A nil config still
// enables TLS with Go's defaults when the server URL scheme requires it.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) { o.TLSConfig = config }
}

// WithMaxInFlight bounds the number of QoS 1/2 publishes the client will have
// outstanding at once; further Publish calls queue until one completes. Zero
// (the default) leaves the count unbounded.
func WithMaxInFlight(max int) Option {
	return func(o *clientOptions) { o.MaxInFlight = max }
}

// WithLogger sets the structured logger used for client diagnostics. If not
// provided, the client logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.Logger = logger }
}

// WithDialer sets a custom dialer used to establish the underlying
// connection, in place of the default TCP/TLS transport. Use this to route
// through a WebSocket (see WebSocketDialer) or a test in-memory pipe.
func WithDialer(dialer ContextDialer) Option {
	return func(o *clientOptions) { o.Dialer = dialer }
}

// DialFunc adapts a plain function to the ContextDialer interface.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func (f DialFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}

// WithWill sets the Last Will and Testament message the server publishes on
// this client's behalf if the connection is lost ungracefully.
func WithWill(topic string, payload []byte, qos uint8, retained bool) Option {
	return func(o *clientOptions) {
		o.will = &willMessage{Topic: topic, Payload: payload, QoS: qos, Retained: retained}
	}
}

// WithOnConnect registers a callback invoked (in its own goroutine) each time
// the client establishes a connection, including reconnects.
func WithOnConnect(onConnect func(*Client)) Option {
	return func(o *clientOptions) { o.OnConnect = onConnect }
}

// WithOnConnectionLost registers a callback invoked when the connection is
// lost, with the error describing why.
func WithOnConnectionLost(onConnectionLost func(*Client, error)) Option {
	return func(o *clientOptions) { o.OnConnectionLost = onConnectionLost }
}

// WithSubscription registers a handler for topic that is (re)subscribed
// automatically on every successful connection, including reconnects, that
// starts a fresh session (clean session, or no session present on the
// server); a resumed session keeps the server's existing subscriptions. Prefer
// this over Client.Subscribe for subscriptions that must survive a dropped
// session.
func WithSubscription(topic string, handler MessageHandler) Option {
	return func(o *clientOptions) {
		if o.InitialSubscriptions == nil {
			o.InitialSubscriptions = make(map[string]MessageHandler)
		}
		o.InitialSubscriptions[topic] = handler
	}
}

// WithDefaultPublishHandler sets the handler invoked for an inbound PUBLISH
// that matches no registered subscription filter.
func WithDefaultPublishHandler(handler MessageHandler) Option {
	return func(o *clientOptions) { o.DefaultPublishHandler = handler }
}

// WithMetrics attaches a Metrics instance (see NewMetrics) so the client
// reports connection and packet counters to Prometheus.
func WithMetrics(m *Metrics) Option {
	return func(o *clientOptions) { o.Metrics = m }
}

// DisconnectOptions holds configuration for a graceful disconnect.
type DisconnectOptions struct {
	quiesce time.Duration
}

// DisconnectOption is a functional option for Client.Disconnect.
type DisconnectOption func(*DisconnectOptions)

// WithQuiesce bounds how long Disconnect waits for an in-flight DISCONNECT
// packet to reach the wire before closing the connection unconditionally.
func WithQuiesce(d time.Duration) DisconnectOption {
	return func(o *DisconnectOptions) { o.quiesce = d }
}

func defaultOptions(server string) *clientOptions {
	return &clientOptions{
		Server:            server,
		ClientID:          uuid.NewString(),
		CleanSession:      true,
		KeepAlive:         30 * time.Second,
		ConnectTimeout:    10 * time.Second,
		AutoReconnect:     true,
		MinReconnectDelay: time.Second,
		MaxReconnectDelay: 2 * time.Minute,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
