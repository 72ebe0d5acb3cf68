package packets

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, p Packet) []byte {
	t.Helper()
	buf, err := p.Append(nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	pkt, consumed, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed %d, want %d", consumed, len(buf))
	}
	if pkt.Type() != p.Type() {
		t.Fatalf("type %d, want %d", pkt.Type(), p.Type())
	}
	return buf
}

func TestConnectRoundTrip(t *testing.T) {
	p := &ConnectPacket{
		ProtocolName:  "MQTT",
		ProtocolLevel: 4,
		CleanSession:  true,
		WillFlag:      true,
		WillQoS:       QoS1,
		WillTopic:     "last/will",
		WillMessage:   []byte("bye"),
		UsernameFlag:  true,
		Username:      "alice",
		PasswordFlag:  true,
		Password:      "hunter2",
		KeepAlive:     60,
		ClientID:      "client-1",
	}
	buf := roundTrip(t, p)

	pkt, _, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	got := pkt.(*ConnectPacket)
	if got.ClientID != p.ClientID || got.WillTopic != p.WillTopic || !bytes.Equal(got.WillMessage, p.WillMessage) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.CleanSession || got.WillQoS != QoS1 || got.Username != "alice" || got.Password != "hunter2" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestConnectRejectsPasswordWithoutUsername(t *testing.T) {
	p := &ConnectPacket{ProtocolName: "MQTT", ProtocolLevel: 4, PasswordFlag: true}
	buf, err := p.Append(nil)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = Decode(buf)
	var ce *CodecError
	if err == nil {
		t.Fatal("expected error")
	}
	if !errorsAs(err, &ce) || ce.Kind != InvalidCredentials {
		t.Fatalf("got %v, want InvalidCredentials", err)
	}
}

func TestPublishRoundTrip(t *testing.T) {
	p := &PublishPacket{
		QoS:      QoS1,
		Topic:    "sensors/temp",
		PacketID: 42,
		Payload:  []byte("21.5"),
	}
	buf := roundTrip(t, p)

	pkt, _, _ := Decode(buf)
	got := pkt.(*PublishPacket)
	if got.Topic != p.Topic || got.PacketID != p.PacketID || !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestPublishQoS0RejectsDup(t *testing.T) {
	header := FixedHeader{PacketType: PUBLISH, Flags: 0x08, RemainingLength: 4}
	_, err := DecodePublish([]byte{0x00, 0x01, 'a', 0x00}, header)
	var ce *CodecError
	if !errorsAs(err, &ce) || ce.Kind != ProtocolError {
		t.Fatalf("got %v, want ProtocolError", err)
	}
}

func TestSubscribeRoundTrip(t *testing.T) {
	p := &SubscribePacket{
		PacketID: 7,
		Topics:   []string{"a/+", "b/#"},
		QoS:      []uint8{QoS0, QoS2},
	}
	buf := roundTrip(t, p)

	pkt, _, _ := Decode(buf)
	got := pkt.(*SubscribePacket)
	if len(got.Topics) != 2 || got.Topics[0] != "a/+" || got.QoS[1] != QoS2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSubackRoundTrip(t *testing.T) {
	p := &SubackPacket{PacketID: 7, ReturnCodes: []uint8{SubackQoS0, SubackFailure}}
	buf := roundTrip(t, p)

	pkt, _, _ := Decode(buf)
	got := pkt.(*SubackPacket)
	if !bytes.Equal(got.ReturnCodes, p.ReturnCodes) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestPubrelFixedFlags(t *testing.T) {
	buf, _ := (&PubrelPacket{PacketID: 1}).Append(nil)
	header, _, err := DecodeFixedHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if header.Flags != 0x02 {
		t.Fatalf("flags = %#x, want 0x02", header.Flags)
	}
}

func TestPingreqPingrespDisconnect(t *testing.T) {
	for _, p := range []Packet{&PingreqPacket{}, &PingrespPacket{}, &DisconnectPacket{}} {
		roundTrip(t, p)
	}
}

func TestDecodeIncompleteWaitsForMoreData(t *testing.T) {
	full, _ := (&PublishPacket{Topic: "t", Payload: []byte("hello")}).Append(nil)
	for i := 0; i < len(full); i++ {
		if _, _, err := Decode(full[:i]); err != ErrIncomplete {
			t.Fatalf("at %d bytes: got %v, want ErrIncomplete", i, err)
		}
	}
	if _, consumed, err := Decode(full); err != nil || consumed != len(full) {
		t.Fatalf("full buffer: consumed=%d err=%v", consumed, err)
	}
}

func TestDecodeRemainingLengthTooLong(t *testing.T) {
	_, _, err := DecodeRemainingLength([]byte{0xff, 0xff, 0xff, 0xff, 0x01})
	var ce *CodecError
	if !errorsAs(err, &ce) || ce.Kind != InvalidRemainingLength {
		t.Fatalf("got %v, want InvalidRemainingLength", err)
	}
}

func errorsAs(err error, target **CodecError) bool {
	ce, ok := err.(*CodecError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
