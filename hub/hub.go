// Package hub implements the Registry described in the spec (§3): the
// top-level object an application holds that tracks every contract it has
// implemented (receiver side) and every contract it consumes (proxy side).
//
// Grounded on the teacher's Server: serviceMap there is a single
// map[string]*service built up via Register and torn down (implicitly, by
// process exit) at Shutdown. Registry generalizes this to two maps —
// receivers and proxies — since a switchboard process can both serve and
// call contracts, and adds explicit duplicate-registration rejection, which
// the teacher's Register silently allowed (a later Register call simply
// overwrote the map entry).
package hub

import (
	"context"
	"sync"
	"time"

	"switchboard/ambient"
	"switchboard/client"
	"switchboard/codec"
	"switchboard/envelope"
	"switchboard/interceptor"
	"switchboard/receiver"
	"switchboard/rpcerr"
)

// Registry tracks every contract a process implements or consumes.
type Registry struct {
	mu        sync.RWMutex
	receivers map[string]*receiver.Core
	proxies   map[string]*client.Proxy

	codec    codec.Codec
	ambientP ambient.Provider
	chain    interceptor.Interceptor
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithCodec sets the codec used to decode wire arguments/results for every
// contract registered on this hub. Defaults to JSON if never set.
func WithCodec(c codec.Codec) Option {
	return func(r *Registry) { r.codec = c }
}

// WithAmbientProvider installs the ambient.Provider every receiver.Core and
// client.Proxy on this hub shares.
func WithAmbientProvider(p ambient.Provider) Option {
	return func(r *Registry) { r.ambientP = p }
}

// WithInterceptors installs the interceptor chain wrapped around every
// receiver.Core registered on this hub.
func WithInterceptors(chain interceptor.Interceptor) Option {
	return func(r *Registry) { r.chain = chain }
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		receivers: make(map[string]*receiver.Core),
		proxies:   make(map[string]*client.Proxy),
		codec:     &codec.JSONCodec{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Implement registers rcvr as the receiver for serviceType. Returns
// AlreadyRegisteredError if serviceType already has a receiver on this hub.
func (r *Registry) Implement(serviceType string, rcvr any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.receivers[serviceType]; ok {
		return rpcerr.AlreadyRegisteredf("service %q is already implemented on this hub", serviceType)
	}

	core, err := receiver.New(serviceType, rcvr, r.ambientP, r.codec, r.chain)
	if err != nil {
		return err
	}
	r.receivers[serviceType] = core
	return nil
}

// Consume registers a Proxy dispatching calls for serviceType through t.
// Returns AlreadyRegisteredError if serviceType is already being consumed on
// this hub.
func (r *Registry) Consume(serviceType string, t client.Transport, ttl time.Duration) (*client.Proxy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.proxies[serviceType]; ok {
		return nil, rpcerr.AlreadyRegisteredf("service %q is already being consumed on this hub", serviceType)
	}

	p := client.New(serviceType, t, r.ambientP, r.codec, ttl)
	r.proxies[serviceType] = p
	return p, nil
}

// Receiver returns the receiver.Core implementing serviceType, or
// NotConnectedError if nothing has been Implemented under that name.
func (r *Registry) Receiver(serviceType string) (*receiver.Core, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	core, ok := r.receivers[serviceType]
	if !ok {
		return nil, rpcerr.NotConnectedf("no receiver implements service %q", serviceType)
	}
	return core, nil
}

// Dispatch routes req to whichever receiver.Core implements req.ServiceType.
// Transports that resolve the receiver out-of-band (in-process dispatch,
// the broker's request listener) call this directly instead of going
// through a Proxy.
func (r *Registry) Dispatch(ctx context.Context, req *envelope.Request) *envelope.Response {
	core, err := r.Receiver(req.ServiceType)
	if err != nil {
		return envelope.Fail(req, err)
	}
	return core.Apply(ctx, req)
}

// DisconnectAll tears down every registered proxy and receiver in parallel
// and waits for teardown to finish, the same wg.Wait()-bounded-by-timeout
// shape as the teacher's Server.Shutdown, generalized from "close one
// listener" to "tear down every consumed/implemented contract on this hub".
func (r *Registry) DisconnectAll(timeout time.Duration) error {
	r.mu.Lock()
	proxies := r.proxies
	receivers := r.receivers
	r.proxies = make(map[string]*client.Proxy)
	r.receivers = make(map[string]*receiver.Core)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, p := range proxies {
			p := p
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = p.Close()
			}()
		}
		for range receivers {
			// receiver.Core holds no independent resources of its own today
			// (no background goroutines, no open connections) — teardown is
			// purely removing it from the map above. This loop is kept as
			// the extension point once a receiver needs its own Close.
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return rpcerr.Timeoutf("timeout waiting for hub teardown to finish")
	}
}
