// Package rpcerr defines the transport-agnostic error kinds shared by every
// layer of switchboard: the envelope pipeline, the response router, and all
// three transport bindings.
//
// The teacher framework reports failures as bare strings on
// message.RPCMessage.Error; that loses the ability to tell a timeout from a
// resolution failure programmatically. Error carries a Kind so callers can
// branch on errors.As instead of string matching.
package rpcerr

import "fmt"

// Kind identifies the category of an RPC-level failure.
type Kind string

const (
	NotConnected      Kind = "not_connected"
	AlreadyRegistered Kind = "already_registered"
	Contract          Kind = "contract"
	Resolution        Kind = "resolution"
	Serialization     Kind = "serialization"
	Transport         Kind = "transport"
	Timeout           Kind = "timeout"
	Invocation        Kind = "invocation"
)

// Error is the concrete error type carried on Response.Error and returned by
// every public API in this module.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotConnectedf(format string, args ...any) *Error {
	return New(NotConnected, fmt.Sprintf(format, args...))
}

func AlreadyRegisteredf(format string, args ...any) *Error {
	return New(AlreadyRegistered, fmt.Sprintf(format, args...))
}

func Contractf(format string, args ...any) *Error {
	return New(Contract, fmt.Sprintf(format, args...))
}

func Resolutionf(format string, args ...any) *Error {
	return New(Resolution, fmt.Sprintf(format, args...))
}

func Serializationf(cause error, format string, args ...any) *Error {
	return Wrap(Serialization, fmt.Sprintf(format, args...), cause)
}

func Transportf(cause error, format string, args ...any) *Error {
	return Wrap(Transport, fmt.Sprintf(format, args...), cause)
}

func Timeoutf(format string, args ...any) *Error {
	return New(Timeout, fmt.Sprintf(format, args...))
}

func Invocationf(cause error, format string, args ...any) *Error {
	return Wrap(Invocation, fmt.Sprintf(format, args...), cause)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
