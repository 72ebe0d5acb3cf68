package packets

// Packet is the interface implemented by every MQTT 3.1.1 control packet.
//
// Encoding is cursor-based rather than io.Writer-based: Append grows dst and
// returns the extended slice, so a caller assembling an outgoing packet into
// a pooled buffer never forces an intermediate allocation or a blocking
// write. This mirrors how the packet is actually handed to a Transport: as a
// byte range ready to hand to a non-blocking send, not a stream to drain.
type Packet interface {
	// Type returns the MQTT control packet type.
	Type() uint8

	// Append encodes the packet (fixed header included) onto dst and
	// returns the extended slice.
	Append(dst []byte) ([]byte, error)
}
