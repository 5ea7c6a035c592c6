package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"softlayer-rpc/message"
	"softlayer-rpc/transport"
)

// 模拟一个简单的 handler：直接返回成功响应
func echoHandler(ctx context.Context, req *message.Request) (*message.Response, error) {
	return &message.Response{Result: req.Method}, nil
}

// 模拟一个慢 handler：睡 200ms
func slowHandler(ctx context.Context, req *message.Request) (*message.Response, error) {
	time.Sleep(200 * time.Millisecond)
	return &message.Response{Result: "late"}, nil
}

func faultHandler(ctx context.Context, req *message.Request) (*message.Response, error) {
	return nil, &message.Fault{Code: "SoftLayer_Exception_NotFound", Message: "nope"}
}

func newRequest() *message.Request {
	return &message.Request{
		Endpoint: "https://api.example.test/xmlrpc/v3",
		Service:  "SoftLayer_Account",
		Method:   "getObject",
		Headers:  map[string]any{"authenticate": map[string]any{"username": "u", "apiKey": "secret"}},
	}
}

func TestLogging(t *testing.T) {
	c := qt.New(t)
	ctx := loggo.NewContext(loggo.DEBUG)
	tw := &loggo.TestWriter{}
	c.Assert(ctx.AddWriter("test", tw), qt.IsNil)

	handler := LoggingMiddleware(ctx.GetLogger("softlayer.test"))(echoHandler)
	resp, err := handler(context.Background(), newRequest())
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Result, qt.Equals, "getObject")

	logs := tw.Log()
	c.Assert(logs, qt.HasLen, 2)
	c.Assert(logs[0].Message, qt.Contains, "-> SoftLayer_Account::getObject")
	c.Assert(logs[1].Message, qt.Contains, "ok in")
	for _, entry := range logs {
		c.Assert(strings.Contains(entry.Message, "secret"), qt.IsFalse)
	}
}

func TestLoggingFailure(t *testing.T) {
	c := qt.New(t)
	ctx := loggo.NewContext(loggo.DEBUG)
	tw := &loggo.TestWriter{}
	c.Assert(ctx.AddWriter("test", tw), qt.IsNil)

	handler := LoggingMiddleware(ctx.GetLogger("softlayer.test"))(faultHandler)
	_, err := handler(context.Background(), newRequest())
	c.Assert(err, qt.ErrorMatches, `remote fault \(SoftLayer_Exception_NotFound\): nope`)
	c.Assert(tw.Log()[1].Message, qt.Contains, "failed after")
}

func TestTimeoutPass(t *testing.T) {
	c := qt.New(t)
	// 超时 500ms，handler 很快，应该正常返回
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	resp, err := handler(context.Background(), newRequest())
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Result, qt.Equals, "getObject")
}

func TestTimeoutExceeded(t *testing.T) {
	c := qt.New(t)
	// 超时 50ms，handler 需要 200ms，应该超时
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	resp, err := handler(context.Background(), newRequest())
	c.Assert(resp, qt.IsNil)
	var terr *transport.Error
	c.Assert(errors.As(err, &terr), qt.IsTrue)
	c.Assert(terr.Timeout(), qt.IsTrue)
	c.Assert(terr.URL, qt.Equals, "https://api.example.test/xmlrpc/v3/SoftLayer_Account")
}

func TestTimeoutPassesFaultThrough(t *testing.T) {
	c := qt.New(t)
	handler := TimeOutMiddleware(time.Second)(faultHandler)

	_, err := handler(context.Background(), newRequest())
	var fault *message.Fault
	c.Assert(errors.As(err, &fault), qt.IsTrue)
	c.Assert(fault.Code, qt.Equals, "SoftLayer_Exception_NotFound")
}

func TestRateLimit(t *testing.T) {
	c := qt.New(t)
	// burst=2 → 前 2 个立刻放行，第 3 个需要等待下一个令牌
	handler := RateLimitMiddleware(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		_, err := handler(context.Background(), newRequest())
		c.Assert(err, qt.IsNil, qt.Commentf("request %d", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := handler(ctx, newRequest())
	var terr *transport.Error
	c.Assert(errors.As(err, &terr), qt.IsTrue)
	c.Assert(terr.Op, qt.Equals, "call")
}

func TestRateLimitWaits(t *testing.T) {
	c := qt.New(t)
	handler := RateLimitMiddleware(20, 1)(echoHandler)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := handler(context.Background(), newRequest())
		c.Assert(err, qt.IsNil)
	}
	// two calls had to wait roughly 50ms each
	c.Assert(time.Since(start) >= 80*time.Millisecond, qt.IsTrue)
}

func TestMetrics(t *testing.T) {
	c := qt.New(t)
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	c.Assert(err, qt.IsNil)

	ok := m.Middleware()(echoHandler)
	failing := m.Middleware()(faultHandler)
	broken := m.Middleware()(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		return nil, &transport.Error{Op: "post", Err: errors.New("connection refused")}
	})

	for i := 0; i < 3; i++ {
		_, _ = ok(context.Background(), newRequest())
	}
	_, _ = failing(context.Background(), newRequest())
	_, _ = broken(context.Background(), newRequest())

	calls := m.Calls()
	c.Assert(testutil.ToFloat64(calls.WithLabelValues("SoftLayer_Account", "getObject", OutcomeOK)), qt.Equals, float64(3))
	c.Assert(testutil.ToFloat64(calls.WithLabelValues("SoftLayer_Account", "getObject", OutcomeFault)), qt.Equals, float64(1))
	c.Assert(testutil.ToFloat64(calls.WithLabelValues("SoftLayer_Account", "getObject", OutcomeTransport)), qt.Equals, float64(1))
	c.Assert(testutil.CollectAndCount(m.duration, "softlayer_rpc_call_duration_seconds"), qt.Equals, 1)
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	c := qt.New(t)
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	c.Assert(err, qt.IsNil)
	_, err = NewMetrics(reg)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestChain(t *testing.T) {
	c := qt.New(t)
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Request) (*message.Response, error) {
				order = append(order, name+".before")
				resp, err := next(ctx, req)
				order = append(order, name+".after")
				return resp, err
			}
		}
	}

	handler := Chain(mark("A"), mark("B"), TimeOutMiddleware(500*time.Millisecond))(echoHandler)
	resp, err := handler(context.Background(), newRequest())
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Result, qt.Equals, "getObject")
	c.Assert(order, qt.DeepEquals, []string{"A.before", "B.before", "B.after", "A.after"})
}
