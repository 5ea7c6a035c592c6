// Package transport implements the Transport Adapter: the leaf that posts one
// encoded call to a service endpoint and blocks until the decoded response
// (or a failure) comes back.
//
//	caller ──Call(req)──▶ codec.EncodeRequest ──POST {endpoint}/{service}──▶ API
//	caller ◀──Response── codec.DecodeResponse ◀──────── body ───────────────┘
//
// A remote fault is returned as a *message.Fault error; every failure to get
// a decodable answer (DNS, connect, TLS, timeout, garbage body) is a *Error.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"softlayer-rpc/message"
)

// Transport performs a single blocking call.
type Transport interface {
	Call(ctx context.Context, req *message.Request) (*message.Response, error)
}

// Error reports a transport-level failure: the request never produced a
// decodable response.
type Error struct {
	Op         string // "encode", "post", "read", "decode", "resolve", "call"
	URL        string
	StatusCode int // HTTP status when one was received, 0 otherwise
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "transport: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was caused by a deadline.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
