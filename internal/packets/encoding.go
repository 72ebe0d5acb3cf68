package packets

import "encoding/binary"

// MaxStringLength is the largest length MQTT's 2-byte string prefix can
// describe.
const MaxStringLength = 65535

// AppendString appends a length-prefixed UTF-8 string to dst. It fails with
// BufferTooBig if s is longer than MaxStringLength bytes.
func AppendString(dst []byte, s string) ([]byte, error) {
	if len(s) > MaxStringLength {
		return dst, codecErr(BufferTooBig)
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...), nil
}

// AppendBinary appends length-prefixed binary data to dst.
func AppendBinary(dst []byte, data []byte) ([]byte, error) {
	if len(data) > MaxStringLength {
		return dst, codecErr(BufferTooBig)
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(data)))
	return append(dst, data...), nil
}

// DecodeString reads a 2-byte-length-prefixed UTF-8 string from the front of
// buf. It returns the string and the number of bytes consumed.
func DecodeString(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, ErrIncomplete
	}
	length := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+length {
		return "", 0, ErrIncomplete
	}
	return string(buf[2 : 2+length]), 2 + length, nil
}

// DecodeBinary reads a 2-byte-length-prefixed byte string from the front of
// buf. The returned slice aliases buf; callers that retain it past the
// lifetime of the read buffer must copy it.
func DecodeBinary(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}
	length := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+length {
		return nil, 0, ErrIncomplete
	}
	return buf[2 : 2+length], 2 + length, nil
}
