package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// through logger, or the default logger when nil. Client errors are logged
// at warn level and server errors at error level.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			log := logger
			if log == nil {
				log = slog.Default()
			}

			start := time.Now()
			procedure := req.Spec().Procedure

			c := &caller{userID: GetUserID(ctx)}
			resp, err := next(context.WithValue(ctx, callerKey, c), req)

			userID := c.userID
			duration := time.Since(start).Milliseconds()
			if err == nil {
				log.InfoContext(ctx, "RPC ok",
					"procedure", procedure,
					"user_id", userID,
					"duration_ms", duration,
				)
				return resp, nil
			}

			code := connect.CodeOf(err)
			attrs := []any{
				"procedure", procedure,
				"code", code.String(),
				"user_id", userID,
				"duration_ms", duration,
			}
			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				attrs = append(attrs, "error", connectErr.Message())
			} else {
				attrs = append(attrs, "error", err)
			}

			if isServerError(code) {
				log.ErrorContext(ctx, "RPC error", attrs...)
			} else {
				log.WarnContext(ctx, "RPC error", attrs...)
			}

			return resp, err
		}
	}
}

// caller lets an inner auth interceptor report the user ID back out.
type caller struct {
	userID string
}

const callerKey contextKey = "caller"

func isServerError(code connect.Code) bool {
	switch code {
	case connect.CodeInternal, connect.CodeUnknown, connect.CodeDataLoss,
		connect.CodeUnavailable, connect.CodeUnimplemented:
		return true
	}
	return false
}
