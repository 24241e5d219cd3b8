package ambient

import (
	"context"
	"testing"
)

func TestNewContextFromContextRoundTrip(t *testing.T) {
	c := Context{"trace_id": "abc"}
	ctx := NewContext(context.Background(), c)

	got := FromContext(ctx)
	if got["trace_id"] != "abc" {
		t.Fatalf("got %v, want trace_id=abc", got)
	}
}

func TestFromContextWithoutInstalledValueIsNil(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestContextCloneIsDefensive(t *testing.T) {
	original := Context{"k": "v"}
	clone := original.Clone()
	clone["k"] = "changed"

	if original["k"] != "v" {
		t.Fatalf("mutating the clone mutated the original: %v", original)
	}
}

func TestContextCloneOfNilIsNil(t *testing.T) {
	var c Context
	if clone := c.Clone(); clone != nil {
		t.Fatalf("expected nil clone of a nil Context, got %v", clone)
	}
}

func TestStaticProviderGetSetRoundTrip(t *testing.T) {
	p := NewStaticProvider(nil)
	if got := p.Get(); got != nil {
		t.Fatalf("expected nil default, got %v", got)
	}

	p.Set(Context{"trace_id": "xyz"})
	got := p.Get()
	if got["trace_id"] != "xyz" {
		t.Fatalf("got %v, want trace_id=xyz", got)
	}
}

func TestStaticProviderGetReturnsACloneNotTheLiveMap(t *testing.T) {
	p := NewStaticProvider(Context{"k": "v"})
	got := p.Get()
	got["k"] = "mutated"

	again := p.Get()
	if again["k"] != "v" {
		t.Fatalf("Get() leaked a mutable reference to internal state: %v", again)
	}
}
