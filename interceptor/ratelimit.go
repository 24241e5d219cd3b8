package interceptor

import (
	"context"

	"golang.org/x/time/rate"

	"switchboard/envelope"
	"switchboard/rpcerr"
)

// RateLimit rejects dispatches beyond r tokens/sec with burst capacity.
// The limiter is built once in the outer closure and shared across every
// request; building it per-request would hand every call a fresh full
// bucket and defeat the limiter entirely.
func RateLimit(r float64, burst int) Interceptor {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) *envelope.Response {
			if !limiter.Allow() {
				return envelope.Fail(req, rpcerr.Invocationf(nil, "rate limit exceeded"))
			}
			return next(ctx, req)
		}
	}
}
