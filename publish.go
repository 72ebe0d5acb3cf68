package mq

import (
	"fmt"

	"github.com/gonzalop/mqtt311/internal/packets"
)

// PublishOptions holds configuration for a publish operation.
type PublishOptions struct {
	QoS    uint8
	Retain bool
}

// PublishOption is a functional option for configuring a PUBLISH packet.
type PublishOption func(*PublishOptions)

// WithQoS sets the Quality of Service level for the publish. Default is QoS 0.
func WithQoS(qos QoS) PublishOption {
	return func(o *PublishOptions) { o.QoS = uint8(qos) }
}

// WithRetain sets the retain flag for the publish. When true, the server
// stores the message and delivers it to future subscribers of the topic.
func WithRetain(retain bool) PublishOption {
	return func(o *PublishOptions) { o.Retain = retain }
}

// Publish publishes a message to the specified topic.
//
// The returned Token completes immediately for QoS 0. For QoS 1 and 2 it
// completes once the matching PUBACK, or PUBCOMP, acknowledgment arrives.
func (c *Client) Publish(topic string, payload []byte, opts ...PublishOption) Token {
	c.opts.Logger.Debug("publishing message", "topic", topic, "payload_size", len(payload))

	if err := validatePublishTopic(topic); err != nil {
		tok := newToken()
		tok.complete(fmt.Errorf("invalid topic: %w", err))
		return tok
	}

	pubOpts := &PublishOptions{}
	for _, opt := range opts {
		opt(pubOpts)
	}
	if pubOpts.QoS > 2 {
		tok := newToken()
		tok.complete(fmt.Errorf("%w: qos %d out of range", errProtocol, pubOpts.QoS))
		return tok
	}

	pkt := &packets.PublishPacket{
		Topic:   topic,
		Payload: payload,
		QoS:     pubOpts.QoS,
		Retain:  pubOpts.Retain,
	}

	tok := newToken()
	c.submit(&publishRequest{packet: pkt, token: tok})
	return tok
}
