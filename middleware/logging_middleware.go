package middleware

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware records the payload size, duration, and any error
// for each handled request using structured logging instead of the
// teacher's log.Printf, matching the slog convention used throughout
// this module's ambient stack.
func LoggingMiddleware(log *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()

			resp, err := next(ctx, payload)

			log.Debug("handled request", "request_bytes", len(payload), "duration", time.Since(start))
			if err != nil {
				log.Warn("handler error", "error", err)
			}
			return resp, err
		}
	}
}
