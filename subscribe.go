package mq

import (
	"fmt"

	"github.com/gonzalop/mqtt311/internal/packets"
)

// Subscribe subscribes to a topic filter with the requested QoS level.
//
// handler is invoked, in its own goroutine, for each PUBLISH whose topic
// matches filter. Filters support the '+' and '#' MQTT wildcards. The
// returned Token completes once the server's SUBACK arrives.
func (c *Client) Subscribe(filter string, qos QoS, handler MessageHandler) Token {
	c.opts.Logger.Debug("subscribing to topic", "filter", filter, "qos", qos)

	if err := validateSubscribeTopic(filter); err != nil {
		tok := newToken()
		tok.complete(fmt.Errorf("invalid topic filter: %w", err))
		return tok
	}
	if qos > 2 {
		tok := newToken()
		tok.complete(fmt.Errorf("%w: qos %d out of range", errProtocol, qos))
		return tok
	}

	pkt := &packets.SubscribePacket{
		Topics: []string{filter},
		QoS:    []uint8{uint8(qos)},
	}

	tok := newToken()
	c.submit(&subscribeRequest{packet: pkt, handler: handler, token: tok})
	return tok
}

// Unsubscribe removes one or more active subscriptions. The returned Token
// completes once the server's UNSUBACK arrives.
func (c *Client) Unsubscribe(filters ...string) Token {
	c.opts.Logger.Debug("unsubscribing from topics", "filters", filters)

	if len(filters) == 0 {
		tok := newToken()
		tok.complete(nil)
		return tok
	}

	pkt := &packets.UnsubscribePacket{Topics: filters}
	tok := newToken()
	c.submit(&unsubscribeRequest{packet: pkt, filters: filters, token: tok})
	return tok
}
