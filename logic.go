package mq

import (
	"fmt"
	"time"

	"github.com/gonzalop/mqtt311/internal/packets"
)

// logicLoop is the single-threaded core of the Connection FSM: every mutation
// of pending, publishQueue, the topic tree, and packet-ID allocation happens
// here, so none of that state needs its own lock.
func (c *Client) logicLoop() error {
	retryTicker := time.NewTicker(5 * time.Second)
	defer retryTicker.Stop()

	for {
		select {
		case pkt := <-c.incoming:
			c.handleIncoming(pkt)

		case req := <-c.requests:
			c.handleRequest(req)

		case <-retryTicker.C:
			c.retryPending()

		case <-c.connectedCh:
			c.flushPending()

		case <-c.stop:
			for _, op := range c.pending {
				op.token.complete(ErrClientStopped)
			}
			for _, req := range c.publishQueue {
				req.token.complete(ErrClientStopped)
			}
			c.publishQueue = nil
			return nil
		}
	}
}

func (c *Client) handleIncoming(pkt packets.Packet) {
	switch p := pkt.(type) {
	case *packets.PublishPacket:
		c.handlePublish(p)
	case *packets.PubackPacket:
		c.handlePuback(p)
	case *packets.PubrecPacket:
		c.handlePubrec(p)
	case *packets.PubrelPacket:
		c.handlePubrel(p)
	case *packets.PubcompPacket:
		c.handlePubcomp(p)
	case *packets.SubackPacket:
		c.handleSuback(p)
	case *packets.UnsubackPacket:
		c.handleUnsuback(p)
	case *packets.PingrespPacket:
		select {
		case c.pingPendingCh <- struct{}{}:
		default:
		}
	case *packets.DisconnectPacket:
		// v3.1.1 never sends a server-initiated DISCONNECT; a well-behaved
		// broker simply closes the TCP connection. Treat receipt as protocol
		// noise and let the closed socket drive handleDisconnect.
		c.opts.Logger.Warn("received unexpected DISCONNECT from server")
	}
}

// handlePublish processes an incoming PUBLISH, dispatching it to every
// matching subscription and completing the QoS handshake.
func (c *Client) handlePublish(p *packets.PublishPacket) {
	if p.QoS == 2 {
		if _, dup := c.receivedQoS2[p.PacketID]; dup {
			c.enqueueOutgoing(&packets.PubrecPacket{PacketID: p.PacketID})
			return
		}
		c.receivedQoS2[p.PacketID] = struct{}{}
	}

	matched := c.tree.Publish(p.Topic, p.Payload, p.QoS, p.Retain, p.Dup)
	if matched == 0 && c.opts.DefaultPublishHandler != nil {
		handler := c.opts.DefaultPublishHandler
		go handler(c, Message{Topic: p.Topic, Payload: p.Payload, QoS: QoS(p.QoS), Retained: p.Retain, Duplicate: p.Dup})
	}

	switch p.QoS {
	case 1:
		c.enqueueOutgoing(&packets.PubackPacket{PacketID: p.PacketID})
	case 2:
		c.enqueueOutgoing(&packets.PubrecPacket{PacketID: p.PacketID})
	}
}

func (c *Client) handlePuback(p *packets.PubackPacket) {
	c.completePending(p.PacketID, nil)
}

func (c *Client) handlePubrec(p *packets.PubrecPacket) {
	op, ok := c.pending[p.PacketID]
	if !ok {
		return
	}
	pubrel := &packets.PubrelPacket{PacketID: p.PacketID}
	op.packet = pubrel
	op.timestamp = time.Now()
	c.enqueueOutgoing(pubrel)
}

func (c *Client) handlePubrel(p *packets.PubrelPacket) {
	delete(c.receivedQoS2, p.PacketID)
	c.enqueueOutgoing(&packets.PubcompPacket{PacketID: p.PacketID})
}

func (c *Client) handlePubcomp(p *packets.PubcompPacket) {
	c.completePending(p.PacketID, nil)
}

func (c *Client) completePending(packetID uint16, err error) {
	op, ok := c.pending[packetID]
	if !ok {
		return
	}
	op.token.complete(err)
	delete(c.pending, packetID)
	if op.qos > 0 {
		c.inFlightCount--
		if m := c.opts.Metrics; m != nil {
			m.InFlight.Set(float64(c.inFlightCount))
		}
		c.processPublishQueue()
	}
}

func (c *Client) handleSuback(p *packets.SubackPacket) {
	op, ok := c.pending[p.PacketID]
	if !ok {
		return
	}
	if _, isSub := op.packet.(*packets.SubscribePacket); !isSub {
		return
	}
	if op.sub != nil && len(p.ReturnCodes) > 0 && p.ReturnCodes[0] >= 0x80 {
		filter := op.sub.packet.Topics[0]
		c.tree.Remove(filter)
		op.token.complete(fmt.Errorf("%w: subscription to %q rejected by server (return code %#x)", errProtocol, filter, p.ReturnCodes[0]))
	} else {
		op.token.complete(nil)
	}
	delete(c.pending, p.PacketID)
}

func (c *Client) handleUnsuback(p *packets.UnsubackPacket) {
	op, ok := c.pending[p.PacketID]
	if !ok {
		return
	}
	op.token.complete(nil)
	delete(c.pending, p.PacketID)
}

// retryPending retransmits packets that haven't been acknowledged within the
// retransmission window, setting DUP on PUBLISH packets per MQTT-3.3.1-1.
func (c *Client) retryPending() {
	if !c.connected.Load() {
		return
	}
	now := time.Now()
	for _, op := range c.pending {
		if now.Sub(op.timestamp) < 10*time.Second {
			continue
		}
		if pub, ok := op.packet.(*packets.PublishPacket); ok {
			pub.Dup = true
		}
		if c.enqueueOutgoing(op.packet) {
			op.timestamp = now
		}
	}
}
