package envelope

import (
	"time"

	"github.com/google/uuid"

	"switchboard/rpcerr"
)

// Response mirrors the originating Request's id and correlation. Exactly
// one of Result / Error is ever set. Context echoes back the ambient
// context that was installed for the invocation, per spec §4.2 step 1 —
// the proxy restores its caller's context from this field once the
// completion resolves, since the goroutine it resolves on may not be the
// one that issued the call.
type Response struct {
	ID          uuid.UUID
	Correlation string
	Result      any
	RawResult   []byte
	Error       *rpcerr.Error
	ExpiresAt   *time.Time
	ServiceInfo string
	Context     map[string]string
}

// Ok builds a successful Response for req.
func Ok(req *Request, result any) *Response {
	return &Response{
		ID:          req.ID,
		Correlation: req.Correlation,
		Result:      result,
		ExpiresAt:   req.ExpiresAt,
		Context:     req.Context,
	}
}

// Fail builds a failed Response for req. Response construction never fails —
// any error, including ones unrelated to rpcerr, is captured here.
func Fail(req *Request, err error) *Response {
	rerr, ok := err.(*rpcerr.Error)
	if !ok {
		rerr = rpcerr.Invocationf(err, "invocation failed")
	}
	return &Response{
		ID:          req.ID,
		Correlation: req.Correlation,
		Error:       rerr,
		ExpiresAt:   req.ExpiresAt,
		Context:     req.Context,
	}
}

type wireResponse struct {
	ID            uuid.UUID
	Correlation   string
	Result        []byte
	ErrorKind     string
	ErrorMessage  string
	HasError      bool
	ExpiresAtUnix int64
	ServiceInfo   string
	Context       map[string]string
}

func (r *Response) toWire(raw []byte) *wireResponse {
	w := &wireResponse{
		ID:          r.ID,
		Correlation: r.Correlation,
		Result:      raw,
		ServiceInfo: r.ServiceInfo,
		Context:     r.Context,
	}
	if r.Error != nil {
		w.HasError = true
		w.ErrorKind = string(r.Error.Kind)
		w.ErrorMessage = r.Error.Message
	}
	if r.ExpiresAt != nil {
		w.ExpiresAtUnix = r.ExpiresAt.UnixMilli()
	}
	return w
}

func fromWireResponse(w *wireResponse) *Response {
	r := &Response{
		ID:          w.ID,
		Correlation: w.Correlation,
		RawResult:   w.Result,
		ServiceInfo: w.ServiceInfo,
		Context:     w.Context,
	}
	if w.HasError {
		r.Error = &rpcerr.Error{Kind: rpcerr.Kind(w.ErrorKind), Message: w.ErrorMessage}
	}
	if w.ExpiresAtUnix != 0 {
		at := time.UnixMilli(w.ExpiresAtUnix)
		r.ExpiresAt = &at
	}
	return r
}
