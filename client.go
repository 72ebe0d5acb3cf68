package mq

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gonzalop/mqtt311/internal/packets"
	"golang.org/x/sync/errgroup"
)

// Client represents an MQTT 3.1.1 client connection. A Client is safe for
// concurrent use: Publish, Subscribe, Unsubscribe, and Disconnect may be
// called from any goroutine. All server-facing protocol state, however, is
// owned exclusively by logicLoop's single goroutine.
type Client struct {
	opts *clientOptions

	conn     net.Conn
	connLock sync.RWMutex

	outgoing       chan packets.Packet
	incoming       chan packets.Packet
	requests       chan any
	connectedCh    chan struct{}
	packetReceived chan struct{}
	pingPendingCh  chan struct{}
	stop           chan struct{}
	stopOnce       sync.Once
	pingPending    bool

	// Owned exclusively by logicLoop.
	nextPacketID  uint16
	pending       map[uint16]*pendingOp
	publishQueue  []*publishRequest
	inFlightCount int
	receivedQoS2  map[uint16]struct{}
	tree          *topicTree

	connected atomic.Bool
	group     *errgroup.Group
	connWG    sync.WaitGroup

	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	reconnectCount  atomic.Uint64

	disconnected chan struct{}

	lastDisconnectReason error
}

// DialContext establishes a connection to an MQTT server using ctx to bound
// the initial network dial, TLS handshake, and CONNECT/CONNACK exchange.
// Subsequent automatic reconnection attempts use WithConnectTimeout instead.
func DialContext(ctx context.Context, server string, opts ...Option) (*Client, error) {
	options := defaultOptions(server)
	for _, opt := range opts {
		opt(options)
	}
	options.Logger = options.Logger.With("lib", "mq")

	if options.ClientID == "" && !options.CleanSession {
		return nil, fmt.Errorf("%w: a non-empty ClientID is required when CleanSession is false", errProtocol)
	}

	c := &Client{
		opts:           options,
		outgoing:       make(chan packets.Packet, 1000),
		incoming:       make(chan packets.Packet, 100),
		requests:       make(chan any, 100),
		connectedCh:    make(chan struct{}, 1),
		packetReceived: make(chan struct{}, 1),
		pingPendingCh:  make(chan struct{}, 1),
		stop:           make(chan struct{}),
		pending:        make(map[uint16]*pendingOp),
		receivedQoS2:   make(map[uint16]struct{}),
		tree:           newTopicTree(),
		disconnected:   make(chan struct{}, 1),
	}

	for topic, handler := range options.InitialSubscriptions {
		h := handler
		if err := c.tree.Insert(topic, 0, func(t string, payload []byte, qos uint8, retain, dup bool) {
			go h(c, Message{Topic: t, Payload: payload, QoS: QoS(qos), Retained: retain, Duplicate: dup})
		}, nil); err != nil {
			return nil, fmt.Errorf("initial subscription %q: %w", topic, err)
		}
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	group, groupCtx := errgroup.WithContext(context.Background())
	c.group = group
	group.Go(c.logicLoop)
	if options.AutoReconnect {
		group.Go(func() error { return c.reconnectLoop(groupCtx) })
	}

	return c, nil
}

// Dial is DialContext with a context bounded by WithConnectTimeout.
func Dial(server string, opts ...Option) (*Client, error) {
	options := defaultOptions(server)
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithTimeout(context.Background(), options.ConnectTimeout)
	defer cancel()
	return DialContext(ctx, server, opts...)
}

// connect performs one TCP/TLS dial and CONNECT/CONNACK handshake, then
// starts the per-connection readLoop and writeLoop.
func (c *Client) connect(ctx context.Context) error {
	c.opts.Logger.Debug("connecting to MQTT server", "server", c.opts.Server)

	conn, err := c.dialServer(ctx)
	if err != nil {
		return err
	}

	c.connLock.Lock()
	c.conn = conn
	c.lastDisconnectReason = nil
	c.connLock.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opts.ConnectTimeout)
	}
	_ = conn.SetDeadline(deadline)

	connectPkt := c.buildConnectPacket()
	buf, err := connectPkt.Append(nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to build CONNECT: %w", err)
	}
	if _, err := conn.Write(buf); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send CONNECT: %w", err)
	}
	c.packetsSent.Add(1)

	connack, err := c.readConnack(conn)
	if err != nil {
		conn.Close()
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	if connack.ReturnCode != packets.ConnAccepted {
		conn.Close()
		return &ConnackError{ReturnCode: connack.ReturnCode}
	}

	c.opts.Logger.Debug("connection established", "server", c.opts.Server, "session_present", connack.SessionPresent)
	c.connected.Store(true)
	if m := c.opts.Metrics; m != nil {
		m.Connected.Set(1)
	}

	if c.opts.OnConnect != nil {
		go c.opts.OnConnect(c)
	}

	if c.opts.CleanSession || !connack.SessionPresent {
		c.receivedQoS2 = make(map[uint16]struct{})
		select {
		case c.requests <- resubscribeSignal{}:
		default:
		}
	}

	c.connWG.Add(2)
	go c.readLoop()
	go c.writeLoop()

	select {
	case c.connectedCh <- struct{}{}:
	default:
	}

	return nil
}

// resubscribeSignal tells logicLoop (via the requests channel, so it stays
// single-threaded) to re-issue SUBSCRIBE for every tree entry. Sent when a
// fresh session started instead of resuming one the server already knew.
type resubscribeSignal struct{}

func (c *Client) dialServer(ctx context.Context) (net.Conn, error) {
	if c.opts.Dialer != nil {
		return c.opts.Dialer.DialContext(ctx, "tcp", c.opts.Server)
	}

	u, err := url.Parse(c.opts.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Port() == "" {
		switch u.Scheme {
		case "tls", "ssl", "mqtts":
			u.Host = net.JoinHostPort(u.Host, "8883")
		default:
			u.Host = net.JoinHostPort(u.Host, "1883")
		}
	}

	useTLS := u.Scheme == "tls" || u.Scheme == "ssl" || u.Scheme == "mqtts" || c.opts.TLSConfig != nil
	if !useTLS && u.Scheme != "tcp" && u.Scheme != "mqtt" && u.Scheme != "" {
		return nil, fmt.Errorf("unsupported scheme: %s (supported: tcp, mqtt, tls, ssl, mqtts)", u.Scheme)
	}

	if useTLS {
		tlsConfig := c.opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		dialer := &tls.Dialer{Config: tlsConfig}
		return dialer.DialContext(ctx, "tcp", u.Host)
	}

	var d net.Dialer
	return d.DialContext(ctx, "tcp", u.Host)
}

func (c *Client) buildConnectPacket() *packets.ConnectPacket {
	pkt := &packets.ConnectPacket{
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		CleanSession:  c.opts.CleanSession,
		KeepAlive:     uint16(c.opts.KeepAlive.Seconds()),
		ClientID:      c.opts.ClientID,
	}
	if c.opts.Username != "" {
		pkt.UsernameFlag = true
		pkt.Username = c.opts.Username
	}
	if c.opts.Password != "" {
		pkt.PasswordFlag = true
		pkt.Password = c.opts.Password
	}
	if c.opts.will != nil {
		pkt.WillFlag = true
		pkt.WillTopic = c.opts.will.Topic
		pkt.WillMessage = c.opts.will.Payload
		pkt.WillQoS = c.opts.will.QoS
		pkt.WillRetain = c.opts.will.Retained
	}
	return pkt
}

// readConnack reads and decodes exactly one CONNACK off conn, accumulating
// partial reads the way readLoop does for the steady-state stream.
func (c *Client) readConnack(conn net.Conn) (*packets.ConnackPacket, error) {
	buf := make([]byte, 0, 64)
	tmp := make([]byte, 64)
	for {
		pkt, consumed, err := packets.Decode(buf)
		if err == nil {
			c.packetsReceived.Add(1)
			connack, ok := pkt.(*packets.ConnackPacket)
			if !ok {
				return nil, fmt.Errorf("expected CONNACK, got packet type %d", pkt.Type())
			}
			_ = consumed
			return connack, nil
		}
		if err != packets.ErrIncomplete {
			return nil, fmt.Errorf("failed to decode CONNACK: %w", err)
		}

		n, err := conn.Read(tmp)
		if n > 0 {
			c.bytesReceived.Add(uint64(n))
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CONNACK: %w", err)
		}
	}
}

// readLoop accumulates bytes from conn into a decode buffer and forwards
// complete packets to logicLoop via c.incoming.
func (c *Client) readLoop() {
	defer c.connWG.Done()
	defer c.handleDisconnect()

	c.connLock.RLock()
	conn := c.conn
	c.connLock.RUnlock()
	if conn == nil {
		return
	}

	br := bufio.NewReaderSize(conn, 4096)
	buf := make([]byte, 0, 4096)
	tmpPtr := packets.GetBuffer(4096)
	defer packets.PutBuffer(tmpPtr)
	tmp := *tmpPtr

	for {
		for {
			pkt, consumed, err := packets.Decode(buf)
			if err == packets.ErrIncomplete {
				break
			}
			if err != nil {
				c.opts.Logger.Debug("decode error, disconnecting", "error", err)
				return
			}
			buf = buf[consumed:]
			c.packetsReceived.Add(1)
			if m := c.opts.Metrics; m != nil {
				m.PacketsReceived.WithLabelValues(packets.PacketNames[pkt.Type()]).Inc()
			}

			select {
			case c.packetReceived <- struct{}{}:
			default:
			}
			select {
			case c.incoming <- pkt:
			case <-c.stop:
				return
			}
		}

		n, err := br.Read(tmp)
		if n > 0 {
			c.bytesReceived.Add(uint64(n))
			if m := c.opts.Metrics; m != nil {
				m.BytesReceived.Add(float64(n))
			}
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			c.opts.Logger.Debug("read error, disconnecting", "error", err)
			return
		}
	}
}

// writeLoop drains c.outgoing onto the connection and drives the keep-alive
// PINGREQ/PINGRESP cycle.
func (c *Client) writeLoop() {
	defer c.connWG.Done()

	c.connLock.RLock()
	conn := c.conn
	c.connLock.RUnlock()
	if conn == nil {
		return
	}

	var tickerCh <-chan time.Time
	if c.opts.KeepAlive > 0 {
		ticker := time.NewTicker(c.opts.KeepAlive / 4)
		defer ticker.Stop()
		tickerCh = ticker.C
	}

	bw := bufio.NewWriterSize(conn, 4096)
	lastReceived := time.Now()
	lastSent := lastReceived

	write := func(pkt packets.Packet) bool {
		buf, err := pkt.Append(nil)
		if err != nil {
			c.opts.Logger.Error("failed to encode outgoing packet", "error", err)
			return true
		}
		if _, err := bw.Write(buf); err != nil {
			c.opts.Logger.Debug("write error, disconnecting", "error", err)
			return false
		}
		c.packetsSent.Add(1)
		c.bytesSent.Add(uint64(len(buf)))
		if m := c.opts.Metrics; m != nil {
			m.PacketsSent.WithLabelValues(packets.PacketNames[pkt.Type()]).Inc()
			m.BytesSent.Add(float64(len(buf)))
		}
		lastSent = time.Now()
		return true
	}

	for {
		select {
		case pkt := <-c.outgoing:
			if !write(pkt) {
				c.handleDisconnect()
				return
			}
			for drained := len(c.outgoing); drained > 0; drained-- {
				if !write(<-c.outgoing) {
					c.handleDisconnect()
					return
				}
			}
			if err := bw.Flush(); err != nil {
				c.opts.Logger.Debug("flush error, disconnecting", "error", err)
				c.handleDisconnect()
				return
			}

		case <-c.packetReceived:
			lastReceived = time.Now()

		case <-c.pingPendingCh:
			c.pingPending = false

		case <-tickerCh:
			timeout := c.opts.KeepAlive + c.opts.KeepAlive/2
			if time.Since(lastReceived) >= timeout {
				c.opts.Logger.Debug("keepalive timeout", "timeout", timeout)
				c.connLock.Lock()
				c.lastDisconnectReason = fmt.Errorf("keepalive timeout after %v: %w", timeout, errTimeout)
				c.connLock.Unlock()
				c.handleDisconnect()
				return
			}
			threshold := c.opts.KeepAlive - c.opts.KeepAlive/4
			if !c.pingPending && (time.Since(lastSent) >= threshold || time.Since(lastReceived) >= threshold) {
				if !write(&packets.PingreqPacket{}) || bw.Flush() != nil {
					c.handleDisconnect()
					return
				}
				c.pingPending = true
			}

		case <-c.stop:
			return
		}
	}
}

// handleDisconnect tears down the current connection and, if AutoReconnect
// is enabled, wakes reconnectLoop.
func (c *Client) handleDisconnect() {
	if !c.connected.Swap(false) {
		return
	}
	if m := c.opts.Metrics; m != nil {
		m.Connected.Set(0)
	}

	c.connLock.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	reason := error(fmt.Errorf("connection lost"))
	if c.lastDisconnectReason != nil {
		reason = c.lastDisconnectReason
		c.lastDisconnectReason = nil
	}
	c.connLock.Unlock()

	if c.opts.OnConnectionLost != nil {
		go c.opts.OnConnectionLost(c, reason)
	}

	select {
	case c.disconnected <- struct{}{}:
	default:
	}
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Disconnect sends a DISCONNECT packet, stops background processing, and
// closes the network connection. AutoReconnect, if enabled, is disabled as
// part of shutdown; create a new Client to reconnect.
func (c *Client) Disconnect(ctx context.Context, opts ...DisconnectOption) error {
	options := &DisconnectOptions{quiesce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(options)
	}

	wasConnected := c.connected.Swap(false)
	if wasConnected {
		select {
		case c.outgoing <- &packets.DisconnectPacket{}:
			time.Sleep(options.quiesce)
		case <-time.After(options.quiesce):
		}
	}

	c.stopOnce.Do(func() { close(c.stop) })

	c.connLock.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connLock.Unlock()

	done := make(chan struct{})
	go func() {
		c.connWG.Wait()
		if c.group != nil {
			_ = c.group.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		c.opts.Logger.Debug("disconnected successfully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for background goroutines to exit")
	}
}

// reconnectLoop waits for disconnection signals and retries connect with
// exponential backoff bounded by WithReconnectDelay.
func (c *Client) reconnectLoop(ctx context.Context) error {
	backoff := c.opts.MinReconnectDelay

	for {
		select {
		case <-c.disconnected:
			select {
			case <-time.After(backoff):
			case <-c.stop:
				return nil
			}

			c.reconnectCount.Add(1)
			if m := c.opts.Metrics; m != nil {
				m.Reconnects.Inc()
			}

			connCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
			err := c.connect(connCtx)
			cancel()

			if err != nil {
				backoff = min(backoff*2, c.opts.MaxReconnectDelay)
				select {
				case c.disconnected <- struct{}{}:
				default:
				}
				continue
			}
			backoff = c.opts.MinReconnectDelay

		case <-c.stop:
			return nil
		}
	}
}

// ClientStats holds connection and throughput statistics.
type ClientStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	ReconnectCount  uint64
	Connected       bool
}

// GetStats returns the current client statistics.
func (c *Client) GetStats() ClientStats {
	return ClientStats{
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		ReconnectCount:  c.reconnectCount.Load(),
		Connected:       c.IsConnected(),
	}
}
