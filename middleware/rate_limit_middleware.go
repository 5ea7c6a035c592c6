package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"softlayer-rpc/message"
	"softlayer-rpc/transport"
)

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
//
// Calls wait for a token instead of failing; the wait is bounded by the call
// context, so a per-call timeout still applies.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, &transport.Error{
					Op:  "call",
					URL: transport.ServiceURL(req.Endpoint, req.Service),
					Err: err,
				}
			}
			return next(ctx, req)
		}
	}
}
