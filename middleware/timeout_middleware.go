package middleware

import (
	"context"
	"time"

	"softlayer-rpc/message"
	"softlayer-rpc/transport"
)

type result struct {
	resp *message.Response
	err  error
}

// TimeOutMiddleware bounds every call by timeout. The deadline travels in the
// context so the transport can abort the HTTP exchange; the select guarantees
// the caller is released even if a handler ignores its context.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, &transport.Error{
					Op:  "call",
					URL: transport.ServiceURL(req.Endpoint, req.Service),
					Err: ctx.Err(),
				}
			}
		}
	}
}
