package packets

import "encoding/binary"

// PubcompPacket represents an MQTT PUBCOMP control packet (QoS 2, step 3).
type PubcompPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubcompPacket) Type() uint8 {
	return PUBCOMP
}

// Append encodes the PUBCOMP packet (fixed header included) onto dst.
func (p *PubcompPacket) Append(dst []byte) ([]byte, error) {
	header := FixedHeader{PacketType: PUBCOMP, RemainingLength: 2}
	dst = header.Append(dst)
	return binary.BigEndian.AppendUint16(dst, p.PacketID), nil
}

// DecodePubcomp decodes a PUBCOMP packet from its remaining-length body.
func DecodePubcomp(buf []byte) (*PubcompPacket, error) {
	if len(buf) < 2 {
		return nil, ErrIncomplete
	}
	return &PubcompPacket{PacketID: binary.BigEndian.Uint16(buf[0:2])}, nil
}
