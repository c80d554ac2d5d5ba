package middleware

import (
	"context"
	"errors"
	"time"
)

// ErrHandlerTimeout is returned when a handler invocation is still
// running after TimeoutMiddleware's budget elapses.
var ErrHandlerTimeout = errors.New("middleware: handler timed out")

// TimeoutMiddleware bounds how long the inline handler invocation may
// run before the server gives up waiting on it and suppresses the
// reply (rdpserver treats a returned error as a suppressed reply, same
// as any other handler error).
//
// The handler goroutine is not stopped when the timeout fires: its
// context is cancelled, but a handler that ignores ctx (as the handler
// rdpserver wraps does) keeps running in the background. Queuing work off the receive loop
// with true cancellation support is a possible future extension, not
// implemented here.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp []byte
				err  error
			}
			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, payload)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, ErrHandlerTimeout
			}
		}
	}
}
