package packets

import "encoding/binary"

// PublishPacket represents an MQTT PUBLISH control packet.
type PublishPacket struct {
	Dup    bool
	QoS    uint8
	Retain bool

	Topic    string
	PacketID uint16 // only meaningful when QoS > 0

	Payload []byte
}

// Type returns the packet type.
func (p *PublishPacket) Type() uint8 {
	return PUBLISH
}

// Append encodes the PUBLISH packet (fixed header included) onto dst.
func (p *PublishPacket) Append(dst []byte) ([]byte, error) {
	variableHeaderLen := 2 + len(p.Topic)
	if p.QoS > 0 {
		variableHeaderLen += 2
	}

	var flags uint8
	if p.Dup {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}

	header := FixedHeader{
		PacketType:      PUBLISH,
		Flags:           flags,
		RemainingLength: variableHeaderLen + len(p.Payload),
	}
	dst = header.Append(dst)

	var err error
	dst, err = AppendString(dst, p.Topic)
	if err != nil {
		return dst, err
	}
	if p.QoS > 0 {
		dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	}
	dst = append(dst, p.Payload...)
	return dst, nil
}

// DecodePublish decodes a PUBLISH packet from its remaining-length body and
// fixed header. The returned Payload aliases buf; callers that retain it
// past the lifetime of the read buffer must copy it.
func DecodePublish(buf []byte, header FixedHeader) (*PublishPacket, error) {
	pkt := &PublishPacket{
		Dup:    header.Flags&0x08 != 0,
		QoS:    (header.Flags >> 1) & 0x03,
		Retain: header.Flags&0x01 != 0,
	}
	if pkt.QoS > QoS2 {
		return nil, codecErr(InvalidQoS)
	}
	if pkt.QoS == QoS0 && pkt.Dup {
		return nil, codecErr(ProtocolError)
	}

	offset := 0
	topic, n, err := DecodeString(buf[offset:])
	if err != nil {
		return nil, err
	}
	pkt.Topic = topic
	offset += n

	if pkt.QoS > 0 {
		if offset+2 > len(buf) {
			return nil, ErrIncomplete
		}
		pkt.PacketID = binary.BigEndian.Uint16(buf[offset : offset+2])
		if pkt.PacketID == 0 {
			return nil, codecErr(ProtocolError)
		}
		offset += 2
	}

	pkt.Payload = buf[offset:]
	return pkt, nil
}
