package packets

import "encoding/binary"

// UnsubscribePacket represents an MQTT UNSUBSCRIBE control packet.
type UnsubscribePacket struct {
	PacketID uint16
	Topics   []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() uint8 {
	return UNSUBSCRIBE
}

// Append encodes the UNSUBSCRIBE packet (fixed header included) onto dst.
// UNSUBSCRIBE carries fixed reserved flags of 0x02.
func (p *UnsubscribePacket) Append(dst []byte) ([]byte, error) {
	variableHeader := binary.BigEndian.AppendUint16(make([]byte, 0, 2), p.PacketID)

	payload := make([]byte, 0, 32)
	var err error
	for _, topic := range p.Topics {
		payload, err = AppendString(payload, topic)
		if err != nil {
			return dst, err
		}
	}

	header := FixedHeader{
		PacketType:      UNSUBSCRIBE,
		Flags:           0x02,
		RemainingLength: len(variableHeader) + len(payload),
	}
	dst = header.Append(dst)
	dst = append(dst, variableHeader...)
	dst = append(dst, payload...)
	return dst, nil
}

// DecodeUnsubscribe decodes an UNSUBSCRIBE packet from its remaining-length
// body.
func DecodeUnsubscribe(buf []byte) (*UnsubscribePacket, error) {
	if len(buf) < 2 {
		return nil, ErrIncomplete
	}
	pkt := &UnsubscribePacket{}
	offset := 0

	pkt.PacketID = binary.BigEndian.Uint16(buf[offset : offset+2])
	offset += 2
	if pkt.PacketID == 0 {
		return nil, codecErr(ProtocolError)
	}

	for offset < len(buf) {
		topic, n, err := DecodeString(buf[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		pkt.Topics = append(pkt.Topics, topic)
	}
	if len(pkt.Topics) == 0 {
		return nil, codecErr(ProtocolError)
	}

	return pkt, nil
}
