// Package middleware wraps the call path between the service dispatch core and
// the transport. Middlewares compose as an onion:
//
//	Chain(A, B, C)(handler) == A(B(C(handler)))
//	A.before → B.before → C.before → handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"softlayer-rpc/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
