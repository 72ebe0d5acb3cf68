package mq

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the ways a connection-level operation can fail,
// mirroring the codec's own ErrorKind (internal/packets) plus the
// connection-lifecycle failures the wire format can't express on its own.
type ErrorKind uint8

const (
	_ ErrorKind = iota
	ErrKindProtocol
	ErrKindTimeout
	ErrKindCancelled
	ErrKindConnectionRefused
	ErrKindTransport
)

var errorKindStrings = map[ErrorKind]string{
	ErrKindProtocol:          "protocol error",
	ErrKindTimeout:           "operation timed out waiting for acknowledgment",
	ErrKindCancelled:         "operation cancelled by disconnect",
	ErrKindConnectionRefused: "server refused the connection",
	ErrKindTransport:         "transport error",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindStrings[k]; ok {
		return s
	}
	return "unknown error"
}

// errProtocol, errTimeout and errCancelled are the sentinels operations
// complete with; wrap them with fmt.Errorf("...: %w", ...) for context and
// unwrap with errors.Is against these values.
var (
	errProtocol  = errors.New(ErrKindProtocol.String())
	errTimeout   = errors.New(ErrKindTimeout.String())
	errCancelled = errors.New(ErrKindCancelled.String())
)

// ConnackError reports a CONNACK rejection, carrying the wire return code
// from internal/packets so callers can distinguish "bad credentials" from
// "identifier rejected" without string matching.
type ConnackError struct {
	ReturnCode uint8
}

func (e *ConnackError) Error() string {
	return fmt.Sprintf("connection refused: %s", connackReturnCodeString(e.ReturnCode))
}

func (e *ConnackError) Is(target error) bool {
	return target == ErrConnectionRefused
}

// ErrConnectionRefused is the sentinel to compare against with errors.Is;
// use a *ConnackError type assertion to recover the specific return code.
var ErrConnectionRefused = errors.New("connection refused")

func connackReturnCodeString(code uint8) string {
	switch code {
	case 0:
		return "accepted"
	case 1:
		return "unacceptable protocol version"
	case 2:
		return "identifier rejected"
	case 3:
		return "server unavailable"
	case 4:
		return "bad username or password"
	case 5:
		return "not authorized"
	default:
		return fmt.Sprintf("unknown return code %d", code)
	}
}

// ErrClientStopped is returned by operations issued after the client has
// begun its final teardown.
var ErrClientStopped = errors.New("client stopped")
