package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"softlayer-rpc/message"
)

// Call outcomes recorded by Metrics.
const (
	OutcomeOK        = "ok"
	OutcomeFault     = "fault"
	OutcomeTransport = "transport_error"
)

// Metrics counts calls and their latency per service and method.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "softlayer",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Remote API calls by service, method and outcome.",
		}, []string{"service", "method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "softlayer",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Latency of remote API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Calls exposes the call counter, mainly for tests.
func (m *Metrics) Calls() *prometheus.CounterVec {
	return m.calls
}

func (m *Metrics) Middleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			m.duration.WithLabelValues(req.Service, req.Method).Observe(time.Since(start).Seconds())

			outcome := OutcomeOK
			var fault *message.Fault
			switch {
			case errors.As(err, &fault):
				outcome = OutcomeFault
			case err != nil:
				outcome = OutcomeTransport
			}
			m.calls.WithLabelValues(req.Service, req.Method, outcome).Inc()
			return resp, err
		}
	}
}
