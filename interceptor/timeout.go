package interceptor

import (
	"context"
	"time"

	"switchboard/envelope"
	"switchboard/rpcerr"
)

// Timeout enforces a maximum duration for each dispatch, same race-the-
// context idiom as the teacher's TimeOutMiddleware. The handler goroutine
// is not cancelled when the deadline fires — only the caller stops waiting
// for it — so handlers that need true cancellation must watch ctx.Done()
// themselves.
func Timeout(d time.Duration) Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) *envelope.Response {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan *envelope.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return envelope.Fail(req, rpcerr.Timeoutf("request timed out after %s", d))
			}
		}
	}
}
