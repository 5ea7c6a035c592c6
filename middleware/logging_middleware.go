package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/loggo/v2"

	"softlayer-rpc/message"
)

// LoggingMiddleware logs every call at DEBUG, tagged with a request id so the
// request and response lines of concurrent calls can be paired.
func LoggingMiddleware(logger loggo.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			id := uuid.NewString()
			start := time.Now()
			logger.Debugf("[%s] -> %s::%s args=%d headers=%v", id, req.Service, req.Method, len(req.Args), headerKeys(req))

			resp, err := next(ctx, req)

			duration := time.Since(start)
			if err != nil {
				logger.Debugf("[%s] <- %s::%s failed after %s: %v", id, req.Service, req.Method, duration, err)
				return resp, err
			}
			logger.Debugf("[%s] <- %s::%s ok in %s", id, req.Service, req.Method, duration)
			return resp, nil
		}
	}
}

// headerKeys lists header names only; values carry credentials.
func headerKeys(req *message.Request) []string {
	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	return keys
}
