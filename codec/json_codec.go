package codec

import (
	"encoding/json"
	"reflect"

	"switchboard/rpcerr"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug.
// Cons: slower due to reflection + string parsing, larger payload (field
// names repeated).
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, rpcerr.Serializationf(err, "json encode of %T failed", v)
	}
	return data, nil
}

func (c *JSONCodec) Decode(expectedType reflect.Type, data []byte) (any, error) {
	ptr := reflect.New(expectedType)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, rpcerr.Serializationf(err, "json decode into %s failed", expectedType)
	}
	return ptr.Elem().Interface(), nil
}

func (c *JSONCodec) Type() Type {
	return TypeJSON
}
