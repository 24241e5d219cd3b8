package envelope

import (
	"reflect"

	"switchboard/codec"
)

var (
	wireRequestType  = reflect.TypeOf(wireRequest{})
	wireResponseType = reflect.TypeOf(wireResponse{})
)

// RegisterWireTypes pre-registers the envelope's own wire structs with an
// OptimizedCodec so their type tags are elided on the wire, per spec §4.1.
// JSON codecs ignore this; it's a no-op for them.
func RegisterWireTypes(c codec.Codec) {
	if oc, ok := c.(*codec.OptimizedCodec); ok {
		oc.RegisterType(wireRequest{})
		oc.RegisterType(wireResponse{})
	}
}

// EncodeRequest serializes req for a wire transport: each argument is
// encoded independently (so the receiver can later decode it against its
// own expected parameter type), then the whole envelope is encoded once
// more as the outer frame.
func EncodeRequest(c codec.Codec, req *Request) ([]byte, error) {
	raw := make([][]byte, len(req.Arguments))
	for i, arg := range req.Arguments {
		b, err := c.Encode(arg)
		if err != nil {
			return nil, err
		}
		raw[i] = b
	}
	return c.Encode(*req.toWire(raw))
}

// DecodeRequest parses a wire-encoded Request. The returned Request carries
// RawArguments, not Arguments — per-argument decoding happens later, once
// the receiver knows each parameter's expected type.
func DecodeRequest(c codec.Codec, data []byte) (*Request, error) {
	v, err := c.Decode(wireRequestType, data)
	if err != nil {
		return nil, err
	}
	w := v.(wireRequest)
	return fromWireRequest(&w), nil
}

// EncodeResponse serializes resp for a wire transport.
func EncodeResponse(c codec.Codec, resp *Response) ([]byte, error) {
	var raw []byte
	if resp.Error == nil {
		b, err := c.Encode(resp.Result)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return c.Encode(*resp.toWire(raw))
}

// DecodeResponse parses a wire-encoded Response. The returned Response
// carries RawResult, not Result — the caller decodes it against the type it
// expects its own method to return.
func DecodeResponse(c codec.Codec, data []byte) (*Response, error) {
	v, err := c.Decode(wireResponseType, data)
	if err != nil {
		return nil, err
	}
	w := v.(wireResponse)
	return fromWireResponse(&w), nil
}
