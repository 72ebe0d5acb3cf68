package mq

// Message represents an MQTT message received on a subscribed topic. It is
// passed to subscription handlers and contains all relevant information
// about the received PUBLISH.
type Message struct {
	// Topic the message was published to.
	Topic string

	// Payload of the message.
	Payload []byte

	// QoS level the message was delivered at.
	QoS QoS

	// Retained reports whether this was a retained message.
	Retained bool

	// Duplicate reports whether the DUP flag was set on the wire, meaning
	// this may be a retransmission of a message already seen.
	Duplicate bool
}

// MessageHandler is called when a message is received on a subscribed
// topic, or by DefaultPublishHandler for a PUBLISH matching no subscription.
type MessageHandler func(*Client, Message)
