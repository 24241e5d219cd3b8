// Package interceptor implements the onion-model interceptor chain wrapped
// around receiver dispatch, adapted from the teacher's middleware package.
// The handler signature is generalized from message.RPCMessage to the
// envelope types so interceptors see the same request/response shapes as
// everything else in the module.
package interceptor

import (
	"context"

	"switchboard/envelope"
)

// HandlerFunc is the function signature wrapped and invoked at each layer.
type HandlerFunc func(ctx context.Context, req *envelope.Request) *envelope.Response

// Interceptor wraps a handler to add a cross-cutting concern without
// modifying the handler itself.
type Interceptor func(next HandlerFunc) HandlerFunc

// Chain composes interceptors into one, executed outermost-first on the way
// in and outermost-last on the way out:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
func Chain(interceptors ...Interceptor) Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(interceptors) - 1; i >= 0; i-- {
			next = interceptors[i](next)
		}
		return next
	}
}
