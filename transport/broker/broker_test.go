package broker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"switchboard/codec"
	"switchboard/envelope"
	"switchboard/hub"
	"switchboard/rpcerr"
)

// These tests exercise the parts of the broker transport that don't require
// a live broker connection: pre-Connect error behavior and the configurable
// reply TTL (spec §4.7 Open Question b). Connect/Dispatch/Receiver wiring
// against a real broker is integration-level and out of scope for unit
// tests here.

func TestDispatchBeforeConnectIsNotConnected(t *testing.T) {
	d := NewDispatcher("Greeter", &codec.JSONCodec{}, zap.NewNop(), time.Second)

	req := envelope.NewRequest("Greeter", "Say", nil, nil, nil, time.Second)
	completion := d.Dispatch(context.Background(), req)

	resp, err := completion.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Error == nil || !rpcerr.Is(resp.Error, rpcerr.NotConnected) {
		t.Fatalf("expected not-connected response, got %+v", resp.Error)
	}
}

func TestDisconnectBeforeConnectIsNoop(t *testing.T) {
	d := NewDispatcher("Greeter", &codec.JSONCodec{}, zap.NewNop(), time.Second)
	if err := d.Disconnect(); err != nil {
		t.Fatalf("Disconnect before Connect should be a no-op, got: %v", err)
	}
}

func TestNewReceiverDefaultsReplyTTL(t *testing.T) {
	h := hub.New()
	r := NewReceiver("Greeter", h, &codec.JSONCodec{}, zap.NewNop(), nil, 0)
	if r.replyTTL != defaultReplyTTL {
		t.Fatalf("replyTTL = %v, want default %v", r.replyTTL, defaultReplyTTL)
	}
}

func TestNewReceiverHonorsExplicitReplyTTL(t *testing.T) {
	h := hub.New()
	r := NewReceiver("Greeter", h, &codec.JSONCodec{}, zap.NewNop(), nil, 30*time.Second)
	if r.replyTTL != 30*time.Second {
		t.Fatalf("replyTTL = %v, want 30s", r.replyTTL)
	}
}
