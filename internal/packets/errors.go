package packets

import "fmt"

// ErrorKind enumerates the ways a CONNECT/encode/decode operation can fail.
// Kinds map to MQTT-3.1.1 spec requirements rather than Go idioms, mirroring
// the normative-rule-per-error-code table used by the wire protocol.
type ErrorKind uint8

const (
	_ ErrorKind = iota
	InvalidReservedBits
	BufferTooBig
	InvalidRemainingLength
	UnsupportedProtocolName
	UnsupportedProtocolLevel
	InvalidCredentials
	InvalidQoS
	InvalidPacketType
	ProtocolError
)

var errorKindStrings = map[ErrorKind]string{
	InvalidReservedBits:      "bits marked as reserved in the MQTT spec were incorrectly set",
	BufferTooBig:             "[MQTT-1.5.3] encoded UTF-8 strings may be no longer than 65535 bytes",
	InvalidRemainingLength:   "[MQTT-2.2.3] encoded remaining length field is malformed",
	UnsupportedProtocolName:  "[MQTT-3.1.2-1] protocol name specified is unsupported",
	UnsupportedProtocolLevel: "[MQTT-3.1.2-2] protocol level specified is unsupported",
	InvalidCredentials:       "[MQTT-3.1.2-21] CONNECT may not carry a password without a username",
	InvalidQoS:               "both bits of a QoS field must not be set",
	InvalidPacketType:        "packet type in the fixed header is invalid",
	ProtocolError:            "protocol error",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindStrings[k]; ok {
		return s
	}
	return "unknown codec error"
}

// CodecError is returned by every encode/decode operation in this package.
// Callers should switch on Kind rather than compare error strings.
type CodecError struct {
	Kind ErrorKind
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("mqtt codec: %s", e.Kind)
}

func codecErr(kind ErrorKind) error {
	return &CodecError{Kind: kind}
}

// ErrIncomplete is a sentinel returned by decoders when the supplied buffer
// does not yet hold a full packet. It is not a protocol violation: the
// caller should retain the bytes and retry once more data arrives.
var ErrIncomplete = fmt.Errorf("mqtt codec: incomplete packet")
