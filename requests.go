package mq

import (
	"time"

	"github.com/gonzalop/mqtt311/internal/packets"
)

// publishRequest represents a request to publish a message.
type publishRequest struct {
	packet *packets.PublishPacket
	token  *token
}

// subscribeRequest represents a request to subscribe to one topic filter.
type subscribeRequest struct {
	packet  *packets.SubscribePacket
	handler MessageHandler
	token   *token
}

// unsubscribeRequest represents a request to unsubscribe from topic filters.
type unsubscribeRequest struct {
	packet  *packets.UnsubscribePacket
	filters []string
	token   *token
}

// pendingOp tracks an outstanding packet awaiting acknowledgment: a
// QoS 1/2 PUBLISH, a SUBSCRIBE, or an UNSUBSCRIBE. It is only ever read or
// mutated from logicLoop, so it needs no lock of its own.
type pendingOp struct {
	packet    packets.Packet
	token     *token
	qos       uint8
	timestamp time.Time
	sub       *subscribeRequest
	unsub     *unsubscribeRequest
}

// submit hands a request to logicLoop. It never blocks the caller past the
// client's shutdown: if the client has already stopped, the request's token
// completes with ErrClientStopped instead of being queued.
func (c *Client) submit(req any) {
	select {
	case c.requests <- req:
	case <-c.stop:
		switch r := req.(type) {
		case *publishRequest:
			r.token.complete(ErrClientStopped)
		case *subscribeRequest:
			r.token.complete(ErrClientStopped)
		case *unsubscribeRequest:
			r.token.complete(ErrClientStopped)
		}
	}
}

// handleRequest dispatches a request received on c.requests. Called only
// from logicLoop.
func (c *Client) handleRequest(req any) {
	switch r := req.(type) {
	case *publishRequest:
		c.handlePublishRequest(r)
	case *subscribeRequest:
		c.handleSubscribeRequest(r)
	case *unsubscribeRequest:
		c.handleUnsubscribeRequest(r)
	case resubscribeSignal:
		c.resubscribeAll()
	}
}

func (c *Client) handlePublishRequest(r *publishRequest) {
	pkt := r.packet

	if pkt.QoS == 0 {
		if !c.connected.Load() {
			r.token.complete(errCancelled)
			return
		}
		if !c.enqueueOutgoing(pkt) {
			r.token.complete(errTimeout)
			return
		}
		r.token.complete(nil)
		return
	}

	if c.opts.MaxInFlight > 0 && c.inFlightCount >= c.opts.MaxInFlight {
		c.publishQueue = append(c.publishQueue, r)
		return
	}
	c.dispatchPublish(r)
}

// dispatchPublish assigns a packet ID, registers the pending operation, and
// attempts delivery. Callers have already checked that MaxInFlight leaves
// room; the in-flight slot is taken here.
func (c *Client) dispatchPublish(r *publishRequest) {
	pkt := r.packet
	pkt.PacketID = c.nextID()

	c.pending[pkt.PacketID] = &pendingOp{
		packet:    pkt,
		token:     r.token,
		qos:       pkt.QoS,
		timestamp: time.Now(),
	}
	c.inFlightCount++
	if m := c.opts.Metrics; m != nil {
		m.InFlight.Set(float64(c.inFlightCount))
	}

	c.enqueueOutgoing(pkt)
}

func (c *Client) handleSubscribeRequest(r *subscribeRequest) {
	pkt := r.packet
	filter := pkt.Topics[0]
	qos := pkt.QoS[0]

	if err := c.tree.Insert(filter, qos, func(topic string, payload []byte, pqos uint8, retain, dup bool) {
		go r.handler(c, Message{Topic: topic, Payload: payload, QoS: QoS(pqos), Retained: retain, Duplicate: dup})
	}, nil); err != nil {
		r.token.complete(err)
		return
	}

	pkt.PacketID = c.nextID()
	c.pending[pkt.PacketID] = &pendingOp{packet: pkt, token: r.token, timestamp: time.Now(), sub: r}
	c.enqueueOutgoing(pkt)
}

func (c *Client) handleUnsubscribeRequest(r *unsubscribeRequest) {
	for _, filter := range r.filters {
		c.tree.Remove(filter)
	}

	pkt := r.packet
	pkt.PacketID = c.nextID()
	c.pending[pkt.PacketID] = &pendingOp{packet: pkt, token: r.token, timestamp: time.Now(), unsub: r}
	c.enqueueOutgoing(pkt)
}

// enqueueOutgoing attempts a non-blocking handoff to writeLoop. logicLoop
// must never block on a full or absent connection: a packet that doesn't fit
// is simply left for retryPending (for tracked pendingOps) or dropped (QoS 0
// publishes, which carry no delivery guarantee by definition).
func (c *Client) enqueueOutgoing(pkt packets.Packet) bool {
	select {
	case c.outgoing <- pkt:
		return true
	default:
		return false
	}
}

// nextID allocates the next free packet ID (1-65535, cycling, 0 reserved).
func (c *Client) nextID() uint16 {
	for range uint16(65535) {
		c.nextPacketID++
		if c.nextPacketID == 0 {
			c.nextPacketID = 1
		}
		if _, used := c.pending[c.nextPacketID]; !used {
			return c.nextPacketID
		}
	}
	return c.nextPacketID
}

// flushPending retransmits every outstanding operation after a (re)connect,
// marking PUBLISH packets as duplicates. CONNECT has just completed, so the
// outgoing channel is freshly drained and this should succeed immediately.
func (c *Client) flushPending() {
	for _, op := range c.pending {
		if pub, ok := op.packet.(*packets.PublishPacket); ok {
			pub.Dup = true
		}
		c.enqueueOutgoing(op.packet)
	}
}

// resubscribeAll re-sends a SUBSCRIBE for every filter currently registered
// in the topic tree. Necessary after a reconnect that starts a fresh session
// (clean session, or the server reported no prior session present).
func (c *Client) resubscribeAll() {
	var filters []string
	var qoss []uint8
	c.tree.Walk(func(filter string, qos uint8) {
		filters = append(filters, filter)
		qoss = append(qoss, qos)
	})
	if len(filters) == 0 {
		return
	}

	const batchSize = 100
	for i := 0; i < len(filters); i += batchSize {
		end := min(i+batchSize, len(filters))
		pkt := &packets.SubscribePacket{
			PacketID: c.nextID(),
			Topics:   filters[i:end],
			QoS:      qoss[i:end],
		}
		c.pending[pkt.PacketID] = &pendingOp{packet: pkt, token: newToken(), timestamp: time.Now()}
		c.enqueueOutgoing(pkt)
	}
}
