// Package envelope defines the Request/Response data model shared by every
// transport — the "self-describing unit of work and its reply" from the
// spec. It replaces the teacher's message.RPCMessage, which only carried a
// ServiceMethod string, a JSON payload and an error string: not enough to
// support per-argument type resolution, expiry, or the broker's reply
// addressing.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// Request is the immutable unit of work dispatched by a ClientProxy and
// resolved by a ReceiverCore.
type Request struct {
	ID            uuid.UUID
	ServiceType   string
	MethodName    string
	ArgumentTypes []string
	// Arguments holds live Go values — populated on the in-process path,
	// where no wire encoding ever happens.
	Arguments []any
	// RawArguments holds codec-encoded per-argument bytes — populated by
	// wire transports (HTTP, broker) instead of Arguments. A Request never
	// carries both populated at once.
	RawArguments [][]byte
	// Correlation is opaque; transports that need an out-of-band reply
	// address (the broker) stamp it themselves before publishing.
	Correlation string
	ExpiresAt   *time.Time
	Context     map[string]string
}

// NewRequest builds a Request for a single in-process-style invocation
// (Arguments populated directly). Wire transports build the RawArguments
// variant themselves after decoding off the wire.
func NewRequest(serviceType, methodName string, argumentTypes []string, arguments []any, ctx map[string]string, ttl time.Duration) *Request {
	if len(argumentTypes) != len(arguments) {
		panic("envelope: len(argumentTypes) != len(arguments)")
	}
	req := &Request{
		ID:            uuid.New(),
		ServiceType:   serviceType,
		MethodName:    methodName,
		ArgumentTypes: argumentTypes,
		Arguments:     arguments,
		Context:       ctx,
	}
	if ttl > 0 {
		at := time.Now().Add(ttl)
		req.ExpiresAt = &at
	}
	return req
}

// Expired reports whether the request's deadline, if any, has passed.
func (r *Request) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// wireRequest is the on-the-wire shape used by EncodeRequest /
// DecodeRequest (wire.go) — Arguments become opaque per-value byte slices so each can
// be decoded independently once the receiver knows its expected type.
type wireRequest struct {
	ID            uuid.UUID
	ServiceType   string
	MethodName    string
	ArgumentTypes []string
	Arguments     [][]byte
	Correlation   string
	ExpiresAtUnix int64 // 0 means unset
	Context       map[string]string
}

func (r *Request) toWire(raw [][]byte) *wireRequest {
	w := &wireRequest{
		ID:            r.ID,
		ServiceType:   r.ServiceType,
		MethodName:    r.MethodName,
		ArgumentTypes: r.ArgumentTypes,
		Arguments:     raw,
		Correlation:   r.Correlation,
		Context:       r.Context,
	}
	if r.ExpiresAt != nil {
		w.ExpiresAtUnix = r.ExpiresAt.UnixMilli()
	}
	return w
}

func fromWireRequest(w *wireRequest) *Request {
	r := &Request{
		ID:            w.ID,
		ServiceType:   w.ServiceType,
		MethodName:    w.MethodName,
		ArgumentTypes: w.ArgumentTypes,
		RawArguments:  w.Arguments,
		Correlation:   w.Correlation,
		Context:       w.Context,
	}
	if w.ExpiresAtUnix != 0 {
		at := time.UnixMilli(w.ExpiresAtUnix)
		r.ExpiresAt = &at
	}
	return r
}
