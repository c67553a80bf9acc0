package w5500

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure surfaced by the driver, independent of the
// underlying transport. Errors are wrapped with device-specific context
// rather than a third-party errors package, the same way other chip
// drivers in this ecosystem wrap bare transport errors.
type ErrorKind int

// Error kinds returned by this package.
const (
	ErrBusTransport ErrorKind = iota
	ErrChipNotConnected
	ErrSocketsNotReleased
	ErrNoMoreSockets
	ErrUnsupportedAddress
	ErrUnsupportedMode
	ErrSocketNotOpen
	ErrNotConnected
	ErrDestinationNotSet
	ErrBufferFull
	ErrBufferOverflow
	ErrWriteTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrBusTransport:
		return "bus transport"
	case ErrChipNotConnected:
		return "chip not connected"
	case ErrSocketsNotReleased:
		return "sockets not released"
	case ErrNoMoreSockets:
		return "no more sockets"
	case ErrUnsupportedAddress:
		return "unsupported address"
	case ErrUnsupportedMode:
		return "unsupported mode"
	case ErrSocketNotOpen:
		return "socket not open"
	case ErrNotConnected:
		return "not connected"
	case ErrDestinationNotSet:
		return "destination not set"
	case ErrBufferFull:
		return "buffer full"
	case ErrBufferOverflow:
		return "buffer overflow"
	case ErrWriteTimeout:
		return "write timeout"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by this package. Kind is always
// set; Err additionally holds the underlying transport error for
// ErrBusTransport.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("w5500: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("w5500: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// wrapTransport wraps an error returned by the Bus as ErrBusTransport,
// passed through verbatim: the bus performs no retries and no
// partial-frame recovery of its own.
func wrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrBusTransport, Err: err}
}

func newError(kind ErrorKind) error {
	return &Error{Kind: kind}
}

// ErrWouldBlock is returned by UDPSocket.Receive when no datagram is
// buffered yet. TCPSocket.Receive and RawDevice.ReadFrame report that case
// as (0, nil) instead. It is never wrapped, so callers compare with
// errors.Is(err, w5500.ErrWouldBlock) directly.
var ErrWouldBlock = errors.New("w5500: would block")
