// Package middleware implements the onion-model middleware chain used
// to wrap the chat handler the server invokes for novel requests.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
package middleware

import "context"

// HandlerFunc is the function signature shared by the business handler
// and every middleware-wrapped handler.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, built from right to left so the
// first middleware listed is the outermost layer.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
