// Package router implements the ResponseRouter described in the spec (§4.4):
// an asynchronous correlation layer that lets a single reply-reading
// goroutine fan responses back out to the many callers awaiting them.
//
// The design generalizes the teacher's ClientTransport: there, a
// sync.Map[seq uint32]chan *message.RPCMessage routed responses read by one
// recvLoop back to blocked callers. Here the key is the request's id (a
// uuid, not a connection-local sequence number, since broker-mediated
// transports correlate across process boundaries), the value is a
// future.Completion fulfilled instead of a raw channel send, and expired
// entries are reaped proactively instead of only on connection death.
package router

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"switchboard/envelope"
	"switchboard/executor"
	"switchboard/future"
	"switchboard/rpcerr"
)

// Router correlates outstanding requests with their eventual responses,
// keyed by request/response id. Safe for concurrent use.
type Router struct {
	exec executor.Executor

	mu      sync.Mutex
	pending map[uuid.UUID]*entry
}

type entry struct {
	completion *future.Completion[*envelope.Response]
	expiresAt  *time.Time
}

// New returns a Router that runs completion fulfillment through exec, so a
// slow or panicking caller continuation never blocks the router's own
// response-reading goroutine.
func New(exec executor.Executor) *Router {
	return &Router{
		exec:    exec,
		pending: make(map[uuid.UUID]*entry),
	}
}

// Open constructs a new pending entry keyed by req.ID and returns the
// completion the caller should await. Open MUST be called before the
// request is handed to the transport, to close the race between "response
// arrives" and "caller starts waiting" — the same ordering the teacher's
// Send enforces by storing into t.pending before writing the frame.
func (r *Router) Open(req *envelope.Request) *future.Completion[*envelope.Response] {
	c := future.New[*envelope.Response]()
	r.mu.Lock()
	r.pending[req.ID] = &entry{completion: c, expiresAt: req.ExpiresAt}
	r.mu.Unlock()
	return c
}

// Complete removes the entry at resp.ID, if present, and fulfills its
// completion with resp on the configured executor — never inline on the
// I/O thread reading responses off the wire. If absent (already completed,
// cancelled, or expired), the response is discarded. Complete is
// idempotent: a given id can be completed at most once, enforced by
// removing the entry atomically before fulfilling it.
func (r *Router) Complete(resp *envelope.Response) {
	r.mu.Lock()
	e, ok := r.pending[resp.ID]
	if ok {
		delete(r.pending, resp.ID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.exec.Submit(func() {
		e.completion.Fulfill(resp)
	})
}

// Cancel removes the entry at req.ID, if present, and fails its completion
// with err (expiry goes through ReapExpired instead). Used when the transport itself fails (connection
// drop, publish error) and no response will ever arrive.
func (r *Router) Cancel(req *envelope.Request, err error) {
	r.mu.Lock()
	e, ok := r.pending[req.ID]
	if ok {
		delete(r.pending, req.ID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.exec.Submit(func() {
		e.completion.Fail(err)
	})
}

// CancelAll resolves every pending request with err. Used on transport
// teardown (disconnect) so no caller is left blocked forever — the router
// equivalent of the teacher's closeAllPending.
func (r *Router) CancelAll(err error) {
	r.mu.Lock()
	all := r.pending
	r.pending = make(map[uuid.UUID]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e := e
		r.exec.Submit(func() {
			e.completion.Fail(err)
		})
	}
}

// ReapExpired snapshots every entry whose deadline is before now, removes
// them, then fails each with a TimeoutError — snapshot-then-mutate, per
// spec §4.4, to avoid iterator invalidation and self-referential removal
// under contention. Transports that support per-request TTL (the broker
// dispatcher) call this periodically; transports with no independent
// expiry notion (in-process, HTTP) never need it since the call itself
// times out synchronously.
func (r *Router) ReapExpired(now time.Time) int {
	r.mu.Lock()
	var expired []*entry
	for id, e := range r.pending {
		if e.expiresAt != nil && now.After(*e.expiresAt) {
			expired = append(expired, e)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e := e
		r.exec.Submit(func() {
			e.completion.Fail(rpcerr.Timeoutf("request expired before a response arrived"))
		})
	}
	return len(expired)
}

// Pending reports the number of requests currently awaiting a response.
// Mostly useful for tests and diagnostics.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
