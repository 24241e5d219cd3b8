// Package inprocess implements the in-process transport binding (spec §6):
// a contract consumed and implemented within the same process dispatches
// directly into the receiver's method table, with no encoding step at all —
// Arguments and Result travel as live Go values.
package inprocess

import (
	"context"
	"sync"

	"switchboard/client"
	"switchboard/envelope"
	"switchboard/future"
	"switchboard/hub"
	"switchboard/rpcerr"
)

// Transport is a process-wide table mapping a service type to the hub that
// implements it. Unlike HTTP or the broker, there's no network address to
// configure: Connect simply records which hub answers for serviceType, and
// Dispatch looks it up again on every call.
type Transport struct {
	mu   sync.RWMutex
	hubs map[string]*hub.Registry
}

// New returns an empty in-process transport table.
func New() *Transport {
	return &Transport{hubs: make(map[string]*hub.Registry)}
}

// Connect registers h as the receiver-side hub for serviceType. Call this
// once per service type before any Proxy dispatches through this transport.
func (t *Transport) Connect(serviceType string, h *hub.Registry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hubs[serviceType] = h
}

// Disconnect removes serviceType's entry. Subsequent dispatches for it fail
// with NotConnectedError.
func (t *Transport) Disconnect(serviceType string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hubs, serviceType)
}

// Dispatch implements client.Transport: it resolves req.ServiceType to its
// registered hub and calls straight into it, resolving the returned
// completion immediately since there is no asynchronous I/O in this path at
// all.
func (t *Transport) Dispatch(ctx context.Context, req *envelope.Request) *future.Completion[*envelope.Response] {
	t.mu.RLock()
	h, ok := t.hubs[req.ServiceType]
	t.mu.RUnlock()

	if !ok {
		return future.Resolved(envelope.Fail(req, rpcerr.NotConnectedf(
			"no in-process receiver is connected for service %q", req.ServiceType)))
	}
	return future.Resolved(h.Dispatch(ctx, req))
}

var _ client.Transport = (*Transport)(nil)
