package codec

import (
	"encoding/binary"
	"encoding/json"
	"reflect"
	"sync"

	"switchboard/rpcerr"
)

// OptimizedCodec implements the spec's "optimized one that pre-registers
// Request/Response so their type tags are elided" (§4.1).
//
// Wire format for an unregistered value:
//
//	┌─────────────┬──────────────┬─────────┐
//	│ TagLen (2)  │ Tag bytes    │ Payload │
//	└─────────────┴──────────────┴─────────┘
//
// For a pre-registered type, the tag is dropped entirely — decode already
// knows the expected type from context (the caller passes it explicitly),
// so the tag exists only to let an unregistered value self-describe itself
// on the wire. This generalizes the teacher's BinaryCodec, which
// length-prefixed ServiceMethod/Payload/Error on one hardcoded struct; here
// any value can be framed, and the "ServiceMethod" savings become "skip the
// tag for well-known types" savings.
type OptimizedCodec struct {
	mu         sync.RWMutex
	registered map[reflect.Type]struct{}
}

// NewOptimizedCodec returns a codec with nothing pre-registered. Call
// RegisterType for every type whose tag should be elided.
func NewOptimizedCodec() *OptimizedCodec {
	return &OptimizedCodec{registered: make(map[reflect.Type]struct{})}
}

// RegisterType marks zero's type as pre-registered: future Encode/Decode
// calls for values of this type skip the tag.
func (c *OptimizedCodec) RegisterType(zero any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered[reflect.TypeOf(zero)] = struct{}{}
}

func (c *OptimizedCodec) isRegistered(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.registered[t]
	return ok
}

// nullTag is the wire tag for a nil value: reflect.TypeOf(nil) returns a nil
// reflect.Type, which has no String() to call, so nil can't self-describe
// with its own type name the way every other unregistered value does.
const nullTag = "null"

func (c *OptimizedCodec) Encode(v any) ([]byte, error) {
	if v == nil {
		return c.frame(nullTag, []byte("null")), nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, rpcerr.Serializationf(err, "optimized encode of %T failed", v)
	}

	if c.isRegistered(reflect.TypeOf(v)) {
		return payload, nil
	}

	return c.frame(reflect.TypeOf(v).String(), payload), nil
}

func (c *OptimizedCodec) frame(tag string, payload []byte) []byte {
	buf := make([]byte, 2+len(tag)+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(tag)))
	copy(buf[2:2+len(tag)], tag)
	copy(buf[2+len(tag):], payload)
	return buf
}

func (c *OptimizedCodec) Decode(expectedType reflect.Type, data []byte) (any, error) {
	var payload []byte
	if c.isRegistered(expectedType) {
		payload = data
	} else {
		if len(data) < 2 {
			return nil, rpcerr.Serializationf(nil, "optimized decode: truncated frame (%d bytes)", len(data))
		}
		tagLen := int(binary.BigEndian.Uint16(data[0:2]))
		if len(data) < 2+tagLen {
			return nil, rpcerr.Serializationf(nil, "optimized decode: truncated tag (want %d bytes)", tagLen)
		}
		payload = data[2+tagLen:]
	}

	ptr := reflect.New(expectedType)
	if err := json.Unmarshal(payload, ptr.Interface()); err != nil {
		return nil, rpcerr.Serializationf(err, "optimized decode into %s failed", expectedType)
	}
	return ptr.Elem().Interface(), nil
}

func (c *OptimizedCodec) Type() Type {
	return TypeOptimized
}
