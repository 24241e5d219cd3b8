package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"switchboard/envelope"
)

// Logging records the service/method, duration, and any error for each
// invocation through the configured zap logger, replacing the teacher's
// stdlib log.Printf calls with structured fields.
func Logging(logger *zap.Logger) Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) *envelope.Response {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("service", req.ServiceType),
				zap.String("method", req.MethodName),
				zap.Duration("duration", time.Since(start)),
			}
			if resp.Error != nil {
				logger.Warn("rpc call failed", append(fields,
					zap.String("error_kind", string(resp.Error.Kind)),
					zap.String("error", resp.Error.Message))...)
			} else {
				logger.Debug("rpc call completed", fields...)
			}
			return resp
		}
	}
}
