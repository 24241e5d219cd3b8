// Package e2e exercises the scenarios from the spec's end-to-end section
// that don't require a live broker. The broker scenarios need a running AMQP
// server and are not exercised anywhere in this repository; the broker
// package's own tests cover only its behaviour before Connect.
package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"switchboard/client"
	"switchboard/codec"
	"switchboard/executor"
	"switchboard/future"
	"switchboard/hub"
	"switchboard/rpcerr"
	"switchboard/transport/httptransport"
	"switchboard/transport/inprocess"
)

// helloService maps "Hello X" -> "Goodbye X" (and "hello X" -> "goodbye X"),
// the spec's canonical end-to-end fixture.
type helloService struct{}

func (helloService) Say(ctx context.Context, msg string) *future.Completion[string] {
	if strings.HasPrefix(msg, "hello") {
		return future.Resolved("goodbye" + strings.TrimPrefix(msg, "hello"))
	}
	return future.Resolved(strings.Replace(msg, "Hello", "Goodbye", 1))
}

func TestInProcessEcho(t *testing.T) {
	h := hub.New()
	if err := h.Implement("HelloService", &helloService{}); err != nil {
		t.Fatalf("Implement: %v", err)
	}

	transport := inprocess.New()
	transport.Connect("HelloService", h)

	p := client.New("HelloService", transport, nil, nil, time.Second)
	got, err := client.Invoke[string](context.Background(), p, "Say", []string{"string"}, []any{"Hello World"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Goodbye World" {
		t.Fatalf("got %q, want %q", got, "Goodbye World")
	}
}

func TestHTTPRoundTripFourConcurrentCallsPlusPingAnd404(t *testing.T) {
	h := hub.New(hub.WithCodec(&codec.JSONCodec{}))
	if err := h.Implement("HelloService", &helloService{}); err != nil {
		t.Fatalf("Implement: %v", err)
	}
	srv := httptransport.NewServer("", h, &codec.JSONCodec{}, zap.NewNop(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	exec := executor.New(8)
	defer exec.Close()
	transport := httptransport.NewClient(ts.URL, &codec.JSONCodec{}, exec, 2*time.Second, false)
	p := client.New("HelloService", transport, nil, &codec.JSONCodec{}, time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := client.Invoke[string](context.Background(), p, "Say", []string{"string"}, []any{"hello world"})
			if err != nil {
				errs <- err
				return
			}
			if got != "goodbye world" {
				errs <- rpcerr.Resolutionf("got %q, want goodbye world", got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call failed: %v", err)
	}

	pingResp, err := http.Get(ts.URL + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	pingResp.Body.Close()
	if pingResp.StatusCode != http.StatusOK {
		t.Fatalf("ping status = %d, want 200", pingResp.StatusCode)
	}

	notFoundResp, err := http.Get(ts.URL + "/foo")
	if err != nil {
		t.Fatalf("GET /foo: %v", err)
	}
	notFoundResp.Body.Close()
	if notFoundResp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", notFoundResp.StatusCode)
	}
}

func TestDuplicateImplementRejected(t *testing.T) {
	h := hub.New()
	if err := h.Implement("HelloService", &helloService{}); err != nil {
		t.Fatalf("first Implement: %v", err)
	}

	err := h.Implement("HelloService", &helloService{})
	if err == nil || !rpcerr.Is(err, rpcerr.AlreadyRegistered) {
		t.Fatalf("expected AlreadyRegisteredError on second Implement, got %v", err)
	}

	// The first registration must remain functional.
	transport := inprocess.New()
	transport.Connect("HelloService", h)
	p := client.New("HelloService", transport, nil, nil, time.Second)
	got, err := client.Invoke[string](context.Background(), p, "Say", []string{"string"}, []any{"Hello Again"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Goodbye Again" {
		t.Fatalf("got %q, want %q", got, "Goodbye Again")
	}
}

type nonAsyncService struct{}

func (nonAsyncService) Say(ctx context.Context, msg string) string {
	return msg
}

func TestContractValidationRejectsNonAsyncMethod(t *testing.T) {
	h := hub.New()
	if err := h.Implement("Broken", &nonAsyncService{}); err != nil {
		t.Fatalf("Implement should succeed (the method is just skipped): %v", err)
	}

	transport := inprocess.New()
	transport.Connect("Broken", h)
	p := client.New("Broken", transport, nil, nil, time.Second)

	_, err := client.Invoke[string](context.Background(), p, "Say", []string{"string"}, []any{"hi"})
	if err == nil || !rpcerr.Is(err, rpcerr.Contract) {
		t.Fatalf("expected a contract error invoking a non-async method, got %v", err)
	}
}
