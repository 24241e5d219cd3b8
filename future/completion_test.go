package future

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCompletionFulfillThenWait(t *testing.T) {
	c := New[int]()
	c.Fulfill(42)

	v, err := c.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestCompletionFailThenWait(t *testing.T) {
	c := New[int]()
	want := errors.New("boom")
	c.Fail(want)

	_, err := c.Wait()
	if err != want {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestCompletionResolvesAtMostOnce(t *testing.T) {
	c := New[int]()
	c.Fulfill(1)
	c.Fulfill(2)
	c.Fail(errors.New("ignored"))

	v, err := c.Wait()
	if err != nil || v != 1 {
		t.Fatalf("got (%d, %v), want (1, nil): only the first resolution should stick", v, err)
	}
}

func TestCompletionWaitBlocksUntilResolved(t *testing.T) {
	c := New[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Fulfill(7)
	}()

	v, err := c.Wait()
	if err != nil || v != 7 {
		t.Fatalf("got (%d, %v), want (7, nil)", v, err)
	}
}

func TestCompletionWaitContextTimesOut(t *testing.T) {
	c := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.WaitContext(ctx)
	if err == nil {
		t.Fatal("expected ctx deadline to cancel WaitContext")
	}
}

func TestCompletionWaitContextReturnsResolvedValue(t *testing.T) {
	c := Resolved(9)
	v, err := c.WaitContext(context.Background())
	if err != nil || v != 9 {
		t.Fatalf("got (%d, %v), want (9, nil)", v, err)
	}
}

func TestRejectedCompletion(t *testing.T) {
	want := errors.New("rejected")
	c := Rejected[int](want)

	_, err := c.Wait()
	if err != want {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestGoResolvesFromReturnedFunc(t *testing.T) {
	c := Go(func() (int, error) { return 5, nil })
	v, err := c.Wait()
	if err != nil || v != 5 {
		t.Fatalf("got (%d, %v), want (5, nil)", v, err)
	}
}

func TestAwaitAnyBoxesResult(t *testing.T) {
	c := Resolved("hi")
	v, err := c.AwaitAny()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(string) != "hi" {
		t.Fatalf("got %v, want hi", v)
	}
}

func TestDoneClosesOnResolution(t *testing.T) {
	c := New[int]()
	select {
	case <-c.Done():
		t.Fatal("Done channel closed before resolution")
	default:
	}

	c.Fulfill(1)
	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel did not close after Fulfill")
	}
}
