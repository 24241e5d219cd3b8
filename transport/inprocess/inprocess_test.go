package inprocess

import (
	"context"
	"testing"
	"time"

	"switchboard/client"
	"switchboard/future"
	"switchboard/hub"
	"switchboard/rpcerr"
)

type echoService struct{}

func (echoService) Echo(ctx context.Context, msg string) *future.Completion[string] {
	return future.Resolved(msg)
}

func TestInProcessRoundTrip(t *testing.T) {
	h := hub.New()
	if err := h.Implement("Echo", &echoService{}); err != nil {
		t.Fatalf("Implement: %v", err)
	}

	transport := New()
	transport.Connect("Echo", h)

	consumer := hub.New()
	p, err := consumer.Consume("Echo", transport, time.Second)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	got, err := client.Invoke[string](context.Background(), p, "Echo", []string{"string"}, []any{"hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hi" {
		t.Fatalf("got %q, want hi", got)
	}
}

func TestInProcessDispatchWithoutConnectIsNotConnected(t *testing.T) {
	transport := New()
	p := client.New("Echo", transport, nil, nil, time.Second)

	_, err := client.Invoke[string](context.Background(), p, "Echo", []string{"string"}, []any{"hi"})
	if err == nil || !rpcerr.Is(err, rpcerr.NotConnected) {
		t.Fatalf("expected not-connected error, got %v", err)
	}
}

func TestInProcessDisconnectStopsDispatch(t *testing.T) {
	h := hub.New()
	if err := h.Implement("Echo", &echoService{}); err != nil {
		t.Fatalf("Implement: %v", err)
	}
	transport := New()
	transport.Connect("Echo", h)
	transport.Disconnect("Echo")

	p := client.New("Echo", transport, nil, nil, time.Second)
	_, err := client.Invoke[string](context.Background(), p, "Echo", []string{"string"}, []any{"hi"})
	if err == nil || !rpcerr.Is(err, rpcerr.NotConnected) {
		t.Fatalf("expected not-connected error after disconnect, got %v", err)
	}
}
