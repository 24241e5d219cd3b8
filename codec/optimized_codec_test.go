package codec

import (
	"reflect"
	"testing"
)

func TestOptimizedCodecRoundTripUnregistered(t *testing.T) {
	c := NewOptimizedCodec()
	original := addArgs{A: 3, B: 4}

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := c.Decode(reflect.TypeOf(addArgs{}), data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.(addArgs) != original {
		t.Fatalf("got %+v, want %+v", decoded, original)
	}
}

func TestOptimizedCodecRoundTripRegisteredElidesTag(t *testing.T) {
	c := NewOptimizedCodec()
	c.RegisterType(addArgs{})
	original := addArgs{A: 5, B: 6}

	registered, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode (registered): %v", err)
	}

	unregisteredCodec := NewOptimizedCodec()
	unregistered, err := unregisteredCodec.Encode(original)
	if err != nil {
		t.Fatalf("Encode (unregistered): %v", err)
	}
	if len(registered) >= len(unregistered) {
		t.Fatalf("registered encoding (%d bytes) should be shorter than unregistered (%d bytes): tag not elided",
			len(registered), len(unregistered))
	}

	decoded, err := c.Decode(reflect.TypeOf(addArgs{}), registered)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.(addArgs) != original {
		t.Fatalf("got %+v, want %+v", decoded, original)
	}
}

func TestOptimizedCodecEncodeNilDoesNotPanic(t *testing.T) {
	c := NewOptimizedCodec()
	data, err := c.Encode(nil)
	if err != nil {
		t.Fatalf("Encode(nil): %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a non-empty frame for a nil value")
	}
}

func TestOptimizedCodecDecodeTruncatedFrameFails(t *testing.T) {
	c := NewOptimizedCodec()
	if _, err := c.Decode(reflect.TypeOf(addArgs{}), []byte{0x00}); err == nil {
		t.Fatal("expected an error decoding a truncated frame")
	}
}

func TestOptimizedCodecType(t *testing.T) {
	if NewOptimizedCodec().Type() != TypeOptimized {
		t.Fatalf("Type() = %v, want TypeOptimized", NewOptimizedCodec().Type())
	}
}
