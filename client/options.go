package client

import (
	"time"

	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"

	"softlayer-rpc/auth"
	"softlayer-rpc/codec"
	"softlayer-rpc/config"
	"softlayer-rpc/loadbalance"
	"softlayer-rpc/middleware"
	"softlayer-rpc/registry"
	"softlayer-rpc/transport"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	credentials auth.Credentials
	cfg         *config.Config
	endpointURL string
	timeout     time.Duration
	userAgent   string
	codecType   *codec.CodecType
	transport   transport.Transport
	registry    registry.Registry
	balancer    loadbalance.Balancer
	middlewares []middleware.Middleware
	rateLimit   float64
	rateBurst   int
	metrics     prometheus.Registerer
	logger      *loggo.Logger
	debug       bool
	maxDepth    int

	usingClient *Client
	rawAuth     bool // credentials or configuration were given directly
	count       int  // options other than UsingClient
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCredentials sets the credentials collaborator.
func WithCredentials(creds auth.Credentials) Option {
	return func(o *options) {
		o.credentials = creds
		o.rawAuth = true
		o.count++
	}
}

// WithAPIKey is WithCredentials(auth.APIKey{...}).
func WithAPIKey(username, apiKey string) Option {
	return WithCredentials(auth.APIKey{Username: username, APIKey: apiKey})
}

// WithConfig fills every setting not given by another option from cfg,
// credentials included.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
		o.rawAuth = true
		o.count++
	}
}

// WithEndpoint overrides the API endpoint base URL.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpointURL = url; o.count++ }
}

// WithTimeout bounds every call. Zero selects config.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d; o.count++ }
}

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua; o.count++ }
}

// WithCodec selects the wire format of the default HTTP transport and the
// default endpoint.
func WithCodec(ct codec.CodecType) Option {
	return func(o *options) { o.codecType = &ct; o.count++ }
}

// WithTransport replaces the HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t; o.count++ }
}

// WithRegistry resolves endpoints per service through reg instead of the
// single configured endpoint.
func WithRegistry(reg registry.Registry) Option {
	return func(o *options) { o.registry = reg; o.count++ }
}

// WithBalancer picks among the endpoints the registry returns. The default
// is round robin.
func WithBalancer(b loadbalance.Balancer) Option {
	return func(o *options) { o.balancer = b; o.count++ }
}

// WithMiddleware appends to the call chain, innermost last. User middlewares
// run inside the built-in logging, metrics and rate limiting and outside the
// per-call timeout.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...); o.count++ }
}

// WithRateLimit throttles calls to r per second with bursts of burst.
func WithRateLimit(r float64, burst int) Option {
	return func(o *options) { o.rateLimit, o.rateBurst = r, burst; o.count++ }
}

// WithMetrics registers call metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = reg; o.count++ }
}

// WithLogger replaces the "softlayer.client" logger.
func WithLogger(logger loggo.Logger) Option {
	return func(o *options) { o.logger = &logger; o.count++ }
}

// WithDebug logs every call at DEBUG. Without WithLogger the client logs to
// its own child of "softlayer.client", leaving other clients at their level.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug; o.count++ }
}

// WithMaxDispatchDepth limits how deeply calls may nest, e.g. a middleware
// that calls the API itself. The default is 3.
func WithMaxDispatchDepth(n int) Option {
	return func(o *options) { o.maxDepth = n; o.count++ }
}

// UsingClient makes NewService reuse c. It is rejected by NewClient.
func UsingClient(c *Client) Option {
	return func(o *options) { o.usingClient = c }
}
