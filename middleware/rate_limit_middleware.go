package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the request is rejected for
// exceeding the configured rate.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware admits requests into the handler at a token
// bucket rate. The core protocol has no admission control of its own —
// wiring this in is opt-in, not a default.
//
// The limiter is created once in the outer closure, not per request —
// a fresh limiter per call would reset the bucket every time and
// disable rate limiting entirely.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, payload)
		}
	}
}
