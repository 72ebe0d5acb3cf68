package packets

import "encoding/binary"

// SubscribePacket represents an MQTT SUBSCRIBE control packet.
type SubscribePacket struct {
	PacketID uint16
	Topics   []string
	QoS      []uint8 // requested QoS per topic, same length as Topics
}

// Type returns the packet type.
func (p *SubscribePacket) Type() uint8 {
	return SUBSCRIBE
}

// Append encodes the SUBSCRIBE packet (fixed header included) onto dst.
// SUBSCRIBE carries fixed reserved flags of 0x02.
func (p *SubscribePacket) Append(dst []byte) ([]byte, error) {
	variableHeader := binary.BigEndian.AppendUint16(make([]byte, 0, 2), p.PacketID)

	payload := make([]byte, 0, 32)
	var err error
	for i, topic := range p.Topics {
		payload, err = AppendString(payload, topic)
		if err != nil {
			return dst, err
		}
		payload = append(payload, p.QoS[i]&0x03)
	}

	header := FixedHeader{
		PacketType:      SUBSCRIBE,
		Flags:           0x02,
		RemainingLength: len(variableHeader) + len(payload),
	}
	dst = header.Append(dst)
	dst = append(dst, variableHeader...)
	dst = append(dst, payload...)
	return dst, nil
}

// DecodeSubscribe decodes a SUBSCRIBE packet from its remaining-length body.
func DecodeSubscribe(buf []byte) (*SubscribePacket, error) {
	if len(buf) < 2 {
		return nil, ErrIncomplete
	}
	pkt := &SubscribePacket{}
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

		if offset >= len(buf) {
			return nil, ErrIncomplete
		}
		qos := buf[offset] & 0x03
		if qos > QoS2 {
			return nil, codecErr(InvalidQoS)
		}
		offset++

		pkt.Topics = append(pkt.Topics, topic)
		pkt.QoS = append(pkt.QoS, qos)
	}
	if len(pkt.Topics) == 0 {
		return nil, codecErr(ProtocolError)
	}

	return pkt, nil
}
