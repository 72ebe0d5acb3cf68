package mq

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer is a ContextDialer that carries the MQTT byte stream over
// a WebSocket connection using the "mqtt" subprotocol, for servers reachable
// only over ws:// or wss://. Pass it to WithDialer.
type WebSocketDialer struct {
	// Dialer configures the underlying websocket.Dialer (TLS config, proxy,
	// handshake timeout). It is used as given, so the zero value dials with
	// no proxy and no handshake timeout. Subprotocols is always set to "mqtt".
	Dialer websocket.Dialer
}

func (d *WebSocketDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "tcp", "tls", "mqtt", "mqtts", "":
		u.Scheme = "ws"
	default:
		return nil, errors.New("websocket dialer: unsupported scheme " + u.Scheme)
	}

	dialer := d.Dialer
	dialer.Subprotocols = []string{"mqtt"}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return newWebSocketConn(conn), nil
}

// webSocketConn adapts a *websocket.Conn, which exchanges discrete framed
// messages, into the continuous byte stream net.Conn the codec expects:
// MQTT packets are written one per WebSocket binary message and read back
// by draining each message's reader before asking for the next one.
type webSocketConn struct {
	conn   *websocket.Conn
	reader io.Reader
}

func newWebSocketConn(conn *websocket.Conn) *webSocketConn {
	return &webSocketConn{conn: conn}
}

func (c *webSocketConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			msgType, r, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				return 0, errors.New("websocket: received non-binary message")
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *webSocketConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *webSocketConn) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *webSocketConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *webSocketConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *webSocketConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *webSocketConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *webSocketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
