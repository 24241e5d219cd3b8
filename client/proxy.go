// Package client implements the spec's ClientProxy (§3): the caller-side
// half of a contract. Where the teacher's Client resolves an address via
// etcd + a load balancer and owns a pool of raw TCP transports, Proxy holds
// a single pluggable Transport and dispatches every call through it — service
// discovery and load balancing are explicitly out of scope (spec.md
// Non-goals). What survives from the teacher is the call pipeline: build the
// request, hand it to the transport, wait on the per-call channel, unmarshal
// into the typed reply.
package client

import (
	"context"
	"reflect"
	"time"

	"switchboard/ambient"
	"switchboard/codec"
	"switchboard/envelope"
	"switchboard/future"
	"switchboard/rpcerr"
)

// Transport is the pluggable dispatch mechanism a Proxy calls through. Each
// of the three bindings (in-process, HTTP, broker) implements it with a
// wildly different internal shape, but all of them present the same
// "dispatch a request, get a completion back" contract, so Proxy never
// needs to know which one it's holding.
type Transport interface {
	Dispatch(ctx context.Context, req *envelope.Request) *future.Completion[*envelope.Response]
}

// disconnector is implemented by transports that own a connection worth
// tearing down explicitly (the broker's Dispatcher). HTTP dials fresh per
// call and has nothing to close; the in-process transport is a shared table
// keyed by many contracts at once, not a per-Proxy connection, so neither
// implements it. Proxy.Close type-asserts for this rather than widening
// Transport itself, so transports that don't own a connection aren't forced
// to grow a no-op Disconnect.
type disconnector interface {
	Disconnect() error
}

// Proxy is the caller-side half of a single service contract.
type Proxy struct {
	serviceType string
	transport   Transport
	ambientP    ambient.Provider
	codec       codec.Codec
	ttl         time.Duration
}

// New returns a Proxy that dispatches every call for serviceType through t.
// provider may be nil, meaning no ambient context is installed automatically
// (callers can still pass one explicitly per call via Context). c is used to
// decode a wire transport's RawResult against each Invoke[T]'s T; in-process
// dispatch never touches it since results travel as live values.
func New(serviceType string, t Transport, provider ambient.Provider, c codec.Codec, ttl time.Duration) *Proxy {
	return &Proxy{serviceType: serviceType, transport: t, ambientP: provider, codec: c, ttl: ttl}
}

// Close tears down the Proxy's transport if it owns a connection worth
// closing (the broker Dispatcher does; HTTP and in-process don't). Hub's
// DisconnectAll calls this during teardown via the same "does it implement
// an optional Close-shaped interface" check the teacher's Server.Shutdown
// uses for its listeners.
func (p *Proxy) Close() error {
	if d, ok := p.transport.(disconnector); ok {
		return d.Disconnect()
	}
	return nil
}

// call builds and dispatches a single request, blocking until the response
// resolves or ctx is cancelled. It's unexported: Invoke is the typed
// entry point every generated/hand-written façade method should call.
//
// Per spec §4.2, the outgoing ambient context is a snapshot of the caller's
// ambient context. A caller running many concurrent calls through the same
// Proxy attaches one explicitly via ambient.NewContext(ctx, ...) — that
// value is scoped to this call's own ctx and never touches shared state.
// p.ambientP is consulted only as a fallback default for callers that never
// attach one, and is meant for a single goroutine issuing calls one at a
// time (see ambient.Provider's doc comment); it is this fallback path alone
// that gets restored from the response's echoed context in step 1 below,
// since an explicit per-call context has nowhere shared left to restore
// into.
func (p *Proxy) call(ctx context.Context, method string, argTypes []string, args []any) (*envelope.Response, error) {
	ambientCtx := ambient.FromContext(ctx)
	restoreToProvider := false
	if ambientCtx == nil && p.ambientP != nil {
		ambientCtx = p.ambientP.Get()
		restoreToProvider = true
	}

	req := envelope.NewRequest(p.serviceType, method, argTypes, args, map[string]string(ambientCtx), p.ttl)
	completion := p.transport.Dispatch(ctx, req)

	resp, err := completion.WaitContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, rpcerr.Timeoutf("call to %s.%s cancelled: %v", p.serviceType, method, ctx.Err())
		}
		return nil, rpcerr.Transportf(err, "call to %s.%s failed", p.serviceType, method)
	}

	// Step 1 of spec §4.2: restore the caller's context from the response's
	// echoed context, since the completion may resolve on a goroutine other
	// than the one that issued the call.
	if restoreToProvider {
		p.ambientP.Set(ambient.Context(resp.Context))
	}
	return resp, nil
}

// Invoke is the generic typed façade for a single-result asynchronous RPC
// method: it builds a request for serviceType.method, dispatches it through
// proxy, and decodes the result into T. This is the sanctioned alternative
// to a reflect.MakeFunc-based dynamic proxy (Design Notes §9): a generic
// function can't be synthesized purely from reflection because Go's
// reflect package cannot construct a new instantiation of a generic type
// at runtime, so callers write one small typed wrapper method per RPC
// method that simply calls Invoke[T].
func Invoke[T any](ctx context.Context, p *Proxy, method string, argTypes []string, args []any) (T, error) {
	var zero T

	resp, err := p.call(ctx, method, argTypes, args)
	if err != nil {
		return zero, err
	}
	if resp.Error != nil {
		return zero, resp.Error
	}

	if resp.Result != nil {
		if v, ok := resp.Result.(T); ok {
			return v, nil
		}
		rt := reflect.TypeOf(resp.Result)
		return zero, rpcerr.Resolutionf("method %s.%s returned %v, not assignable to %T", p.serviceType, method, rt, zero)
	}

	if resp.RawResult != nil {
		if p.codec == nil {
			return zero, rpcerr.Serializationf(nil,
				"Invoke[%T]: response carried a raw wire payload but proxy has no codec configured", zero)
		}
		v, err := p.codec.Decode(reflect.TypeOf(zero), resp.RawResult)
		if err != nil {
			return zero, err
		}
		return v.(T), nil
	}

	// Nil result and nil raw result: a method genuinely returning nothing,
	// e.g. Invoke[struct{}] against a fire-and-forget call.
	return zero, nil
}
