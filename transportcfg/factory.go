package transportcfg

import (
	"fmt"

	"go.uber.org/zap"

	"switchboard/client"
	"switchboard/codec"
	"switchboard/executor"
	"switchboard/rpcerr"
	"switchboard/transport/broker"
	"switchboard/transport/httptransport"
	"switchboard/transport/inprocess"
)

// dialURI rebuilds a bare scheme://[user:pass@]host URI from the parsed
// fields, stripping the query string Parse consumed into Config's other
// fields — the transport bindings below dial on this, not on the original
// URI verbatim.
func (c *Config) dialURI() string {
	if c.Username == "" {
		return fmt.Sprintf("%s://%s", c.Scheme, c.Host)
	}
	return fmt.Sprintf("%s://%s:%s@%s", c.Scheme, c.Username, c.Password, c.Host)
}

// NewClientTransport builds the concrete client.Transport cfg.Scheme names,
// the scheme-dispatch step go-ethereum's rpc.Client performs internally when
// handed a raw connection string instead of a pre-built client. serviceType
// names the contract this transport will dispatch for — the broker binding
// needs it upfront to declare its request queue, even though HTTP and
// in-process ignore it entirely (a bare connection there serves every
// contract dispatched through it). c encodes and decodes wire payloads; exec
// runs blocking I/O for bindings that need one (HTTP round trips, the
// broker's router completions); logger is only consulted by the broker
// binding.
//
// The in-process scheme returns a bare, unconnected inprocess.Transport:
// unlike HTTP and the broker, there is no network address to dial, so the
// caller still has to call Transport.Connect with whichever hub.Registry
// implements the contract.
func NewClientTransport(cfg *Config, serviceType string, c codec.Codec, exec executor.Executor, logger *zap.Logger) (client.Transport, error) {
	switch cfg.Scheme {
	case SchemeInProcess:
		return inprocess.New(), nil

	case SchemeHTTP, SchemeHTTPS:
		return httptransport.NewClient(cfg.dialURI(), c, exec, cfg.RequestTTL, cfg.AcceptSelfSigned), nil

	case SchemeAMQP, SchemeAMQPS:
		d := broker.NewDispatcher(serviceType, c, logger, cfg.RequestTTL)
		if err := d.Connect(cfg.dialURI(), exec); err != nil {
			return nil, err
		}
		return d, nil

	default:
		return nil, rpcerr.Resolutionf("transportcfg: no client transport for scheme %q", cfg.Scheme)
	}
}
