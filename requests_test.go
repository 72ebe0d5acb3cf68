package mq

import (
	"testing"
	"time"

	"github.com/gonzalop/mqtt311/internal/packets"
)

func TestNextIDSkipsInFlightAndWraps(t *testing.T) {
	c := &Client{pending: make(map[uint16]*pendingOp)}

	first := c.nextID()
	if first != 1 {
		t.Fatalf("first allocated ID = %d, want 1", first)
	}
	c.pending[2] = &pendingOp{}

	second := c.nextID()
	if second != 3 {
		t.Fatalf("nextID skipped in-use 2 incorrectly: got %d, want 3", second)
	}

	c.nextPacketID = 65535
	wrapped := c.nextID()
	if wrapped != 1 {
		t.Fatalf("nextID did not wrap past 65535 to 1 (0 is reserved): got %d", wrapped)
	}
}

func TestNextIDNeverReturnsZero(t *testing.T) {
	c := &Client{pending: make(map[uint16]*pendingOp), nextPacketID: 65535}
	for range 10 {
		if id := c.nextID(); id == 0 {
			t.Fatal("nextID returned reserved packet ID 0")
		}
	}
}

func TestFlushPendingMarksPublishDup(t *testing.T) {
	c := &Client{
		outgoing: make(chan packets.Packet, 10),
		pending:  make(map[uint16]*pendingOp),
	}
	pub := &packets.PublishPacket{PacketID: 7, Topic: "t", QoS: 1}
	c.pending[7] = &pendingOp{packet: pub, qos: 1}

	c.flushPending()

	select {
	case pkt := <-c.outgoing:
		got, ok := pkt.(*packets.PublishPacket)
		if !ok {
			t.Fatalf("flushPending enqueued %T, want *packets.PublishPacket", pkt)
		}
		if !got.Dup {
			t.Error("flushPending must mark retransmitted PUBLISH packets as duplicates (MQTT-3.3.1-1)")
		}
	default:
		t.Fatal("flushPending did not enqueue the pending PUBLISH")
	}
}

func TestCompletePendingReleasesInFlightSlot(t *testing.T) {
	c := &Client{
		opts:    defaultOptions("tcp://localhost:1883"),
		pending: make(map[uint16]*pendingOp),
	}
	tok := newToken()
	c.pending[9] = &pendingOp{token: tok, qos: 1, timestamp: time.Now()}
	c.inFlightCount = 1

	c.completePending(9, nil)

	if _, ok := c.pending[9]; ok {
		t.Error("completePending left the entry in the pending map")
	}
	if c.inFlightCount != 0 {
		t.Errorf("inFlightCount = %d, want 0", c.inFlightCount)
	}
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			t.Errorf("token completed with error %v, want nil", err)
		}
	default:
		t.Error("completePending did not complete the token")
	}
}

func TestCompletePendingUnknownIDIsNoop(t *testing.T) {
	c := &Client{opts: defaultOptions("tcp://localhost:1883"), pending: make(map[uint16]*pendingOp)}
	c.completePending(123, nil)
}
