package broker

import (
	"context"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"switchboard/codec"
	"switchboard/envelope"
	"switchboard/executor"
	"switchboard/hub"
	"switchboard/rpcerr"
)

// defaultReplyTTL is the TTL put on broker replies when NewReceiver is given
// replyTTL <= 0. The reply TTL is a per-Receiver setting (the replyTTL
// argument of NewReceiver) rather than a hardcoded "60000" ms literal; this
// default keeps the same 60s.
const defaultReplyTTL = 60 * time.Second

// Receiver is the server-side half of the broker transport for a single
// service contract: it competes for deliveries on the contract's request
// queue and publishes replies back to whichever reply queue the request
// named.
type Receiver struct {
	serviceType string
	hub         *hub.Registry
	codec       codec.Codec
	logger      *zap.Logger
	replyTTL    time.Duration
	exec        executor.Executor

	mu        sync.Mutex
	conn      *amqp.Connection
	requestCh *amqp.Channel
	replyCh   *amqp.Channel
	connected bool
}

// NewReceiver returns a Receiver for serviceType backed by h. replyTTL <= 0
// uses defaultReplyTTL.
func NewReceiver(serviceType string, h *hub.Registry, c codec.Codec, logger *zap.Logger, exec executor.Executor, replyTTL time.Duration) *Receiver {
	if replyTTL <= 0 {
		replyTTL = defaultReplyTTL
	}
	return &Receiver{serviceType: serviceType, hub: h, codec: c, logger: logger, exec: exec, replyTTL: replyTTL}
}

// Connect opens the broker connection, declares the request queue, sets
// prefetch=1 on its OWN channel for fair dispatch across competing workers,
// installs a consumer, and launches the request listener daemon.
//
// Per spec §4.7 Open Question (c), the request-consuming channel and the
// reply-publishing channel are kept separate: prefetch affects only the
// channel it's set on, so sharing one channel between consuming requests
// and publishing replies would let the publish side's flow silently affect
// request fan-out (or vice versa). Two channels on one connection isolates
// the two concerns.
func (r *Receiver) Connect(uri string) error {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return rpcerr.Transportf(err, "broker receiver: dial %s", uri)
	}

	requestCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return rpcerr.Transportf(err, "broker receiver: open request channel")
	}
	if _, err := requestCh.QueueDeclare(r.serviceType, false, false, false, false, nil); err != nil {
		requestCh.Close()
		conn.Close()
		return rpcerr.Transportf(err, "broker receiver: declare request queue %q", r.serviceType)
	}
	if err := requestCh.Qos(1, 0, false); err != nil {
		requestCh.Close()
		conn.Close()
		return rpcerr.Transportf(err, "broker receiver: set prefetch")
	}

	replyCh, err := conn.Channel()
	if err != nil {
		requestCh.Close()
		conn.Close()
		return rpcerr.Transportf(err, "broker receiver: open reply channel")
	}

	deliveries, err := requestCh.Consume(r.serviceType, "", false, false, false, false, nil)
	if err != nil {
		requestCh.Close()
		replyCh.Close()
		conn.Close()
		return rpcerr.Transportf(err, "broker receiver: consume request queue %q", r.serviceType)
	}

	r.mu.Lock()
	r.conn = conn
	r.requestCh = requestCh
	r.replyCh = replyCh
	r.connected = true
	r.mu.Unlock()

	go r.requestListener(deliveries)
	return nil
}

// Disconnect marks the receiver disconnected and closes the broker
// connection.
func (r *Receiver) Disconnect() error {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return nil
	}
	r.connected = false
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// requestListener blocks on the request queue's consumer for the next
// delivery; on decode failure or mid-disconnect, it backs off instead of
// busy-looping; otherwise it submits a handler task to the executor that
// applies the request, awaits the response, and publishes the reply.
func (r *Receiver) requestListener(deliveries <-chan amqp.Delivery) {
	for {
		r.mu.Lock()
		connected := r.connected
		r.mu.Unlock()
		if !connected {
			return
		}

		delivery, ok := <-deliveries
		if !ok {
			return
		}

		r.mu.Lock()
		connected = r.connected
		r.mu.Unlock()

		req, err := envelope.DecodeRequest(r.codec, delivery.Body)
		if err != nil || !connected {
			r.logger.Warn("broker receiver: failed to decode request", zap.Error(err))
			delivery.Nack(false, false)
			time.Sleep(responseLoopBackoff)
			continue
		}

		r.exec.Submit(func() {
			r.handle(req, delivery)
		})
	}
}

func (r *Receiver) handle(req *envelope.Request, delivery amqp.Delivery) {
	resp := r.hub.Dispatch(context.Background(), req)

	body, err := envelope.EncodeResponse(r.codec, resp)
	if err != nil {
		r.logger.Warn("broker receiver: failed to encode response", zap.Error(err))
		delivery.Nack(false, false)
		return
	}

	publishing := amqp.Publishing{
		Body:          body,
		CorrelationId: resp.ID.String(),
		Expiration:    strconv.FormatInt(r.replyTTL.Milliseconds(), 10),
	}

	r.mu.Lock()
	replyCh := r.replyCh
	r.mu.Unlock()

	if err := replyCh.PublishWithContext(context.Background(), "", resp.Correlation, false, false, publishing); err != nil {
		r.logger.Warn("broker receiver: failed to publish reply", zap.Error(err))
		delivery.Nack(false, false)
		return
	}
	delivery.Ack(false)
}
