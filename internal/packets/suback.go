package packets

import "encoding/binary"

// SubackPacket represents an MQTT SUBACK control packet.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []uint8
}

// Type returns the packet type.
func (p *SubackPacket) Type() uint8 {
	return SUBACK
}

// Append encodes the SUBACK packet (fixed header included) onto dst.
func (p *SubackPacket) Append(dst []byte) ([]byte, error) {
	header := FixedHeader{
		PacketType:      SUBACK,
		RemainingLength: 2 + len(p.ReturnCodes),
	}
	dst = header.Append(dst)
	dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	dst = append(dst, p.ReturnCodes...)
	return dst, nil
}

// DecodeSuback decodes a SUBACK packet from its remaining-length body.
func DecodeSuback(buf []byte) (*SubackPacket, error) {
	if len(buf) < 2 {
		return nil, ErrIncomplete
	}
	pkt := &SubackPacket{
		PacketID:    binary.BigEndian.Uint16(buf[0:2]),
		ReturnCodes: append([]byte(nil), buf[2:]...),
	}
	return pkt, nil
}
