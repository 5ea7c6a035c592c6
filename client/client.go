// Package client is a dynamic client for the SoftLayer API: any method on any
// service can be called by name, with object masks, object filters, result
// limits and object ids attached through an immutable Filter.
//
//	c, err := client.NewClient(client.WithAPIKey(user, key))
//	account, err := c.Service("Account")
//	tickets, err := account.ObjectMask("id", "title").Call(ctx, "getOpenTickets")
//
// Call path:
//
//	Service/Filter → headers + args → Registry → Balancer → Middleware Chain → Transport
package client

import (
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/loggo/v2"

	"softlayer-rpc/auth"
	"softlayer-rpc/codec"
	"softlayer-rpc/config"
	"softlayer-rpc/loadbalance"
	"softlayer-rpc/middleware"
	"softlayer-rpc/protocol"
	"softlayer-rpc/registry"
	"softlayer-rpc/transport"
)

// Version is reported in the default User-Agent.
const Version = "0.3.0"

const defaultMaxDepth = 3

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// clientSeq names the per-client logger modules of debug clients.
var clientSeq atomic.Uint64

// Client holds the connection settings shared by every Service it hands out.
// It is safe for concurrent use.
type Client struct {
	credentials auth.Credentials
	endpointURL string
	timeout     time.Duration
	userAgent   string
	maxDepth    int
	logger      loggo.Logger
	registry    registry.Registry
	balancer    loadbalance.Balancer
	handler     middleware.HandlerFunc // middleware(...(transport.Call))

	mu       sync.Mutex
	services map[string]*Service // qualified name → *Service
}

// NewClient builds a client. Credentials are required, from WithCredentials,
// WithAPIKey or WithConfig.
func NewClient(opts ...Option) (*Client, error) {
	o := newOptions(opts)
	if o.usingClient != nil {
		return nil, &ConfigurationError{Reason: "UsingClient is only valid with NewService"}
	}
	return newClient(o)
}

func newClient(o *options) (*Client, error) {
	cfg := o.cfg
	if cfg == nil {
		cfg = &config.Config{}
	}

	// Options win over configuration.
	creds := o.credentials
	if creds == nil && (cfg.Username != "" || cfg.APIKey != "") {
		creds = auth.APIKey{Username: cfg.Username, APIKey: cfg.APIKey}
	}
	if creds == nil {
		return nil, &ConfigurationError{Reason: "missing credentials: a username and API key are required"}
	}
	if err := creds.Validate(); err != nil {
		return nil, &ConfigurationError{Reason: "invalid credentials: " + err.Error()}
	}

	codecType := codec.CodecTypeXMLRPC
	if o.codecType != nil {
		codecType = *o.codecType
	} else if cfg.Transport != "" {
		ct, err := codec.ParseCodecType(cfg.Transport)
		if err != nil {
			return nil, &ConfigurationError{Reason: err.Error()}
		}
		codecType = ct
	}

	endpointURL := firstNonEmpty(o.endpointURL, cfg.EndpointURL)
	if endpointURL == "" {
		endpointURL = config.DefaultXMLRPCEndpoint
		if codecType == codec.CodecTypeSOAP {
			endpointURL = config.DefaultSOAPEndpoint
		}
	}
	if err := validateEndpoint(endpointURL); err != nil {
		return nil, err
	}

	timeout := o.timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	if timeout == 0 {
		timeout = config.DefaultTimeout
	}
	if timeout < 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("negative timeout %s", timeout)}
	}

	userAgent := firstNonEmpty(o.userAgent, cfg.UserAgent)
	if userAgent == "" {
		userAgent = fmt.Sprintf("softlayer-rpc/%s (%s)", Version, runtime.Version())
	}

	maxDepth := o.maxDepth
	if maxDepth == 0 {
		maxDepth = defaultMaxDepth
	}
	if maxDepth < 0 {
		return nil, &ConfigurationError{Reason: "dispatch depth must be positive"}
	}

	logger := loggo.GetLogger("softlayer.client")
	switch {
	case o.logger != nil:
		logger = *o.logger
		if o.debug {
			logger.SetLogLevel(loggo.DEBUG)
		}
	case o.debug:
		// A child module per client keeps DEBUG off the shared module.
		logger = logger.Child(fmt.Sprintf("%d", clientSeq.Add(1)))
		logger.SetLogLevel(loggo.DEBUG)
	}

	c := &Client{
		credentials: creds,
		endpointURL: endpointURL,
		timeout:     timeout,
		userAgent:   userAgent,
		maxDepth:    maxDepth,
		logger:      logger,
		registry:    o.registry,
		balancer:    o.balancer,
		services:    make(map[string]*Service),
	}
	if c.registry == nil {
		c.registry = registry.NewStaticRegistry(registry.Endpoint{URL: endpointURL, Weight: 1})
	}
	if c.balancer == nil {
		c.balancer = &loadbalance.RoundRobinBalancer{}
	}

	t := o.transport
	if t == nil {
		t = transport.NewHTTPTransport(codecType, userAgent)
	}

	// Build the call chain once: logging → metrics → rate limit → user → timeout → transport
	var chain []middleware.Middleware
	if o.debug {
		chain = append(chain, middleware.LoggingMiddleware(logger))
	}
	if o.metrics != nil {
		m, err := middleware.NewMetrics(o.metrics)
		if err != nil {
			return nil, &ConfigurationError{Reason: "registering metrics: " + err.Error()}
		}
		chain = append(chain, m.Middleware())
	}
	if o.rateLimit > 0 {
		burst := o.rateBurst
		if burst < 1 {
			burst = 1
		}
		chain = append(chain, middleware.RateLimitMiddleware(o.rateLimit, burst))
	}
	chain = append(chain, o.middlewares...)
	chain = append(chain, middleware.TimeOutMiddleware(timeout))
	c.handler = middleware.Chain(chain...)(t.Call)

	logger.Debugf("client for %s (%s, timeout %s)", endpointURL, codecType, timeout)
	return c, nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid endpoint URL %q: %v", raw, err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid endpoint URL %q: must be an absolute http or https URL", raw)}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Service returns the proxy for a service. Short names get the SoftLayer_
// prefix: "Account" and "SoftLayer_Account" return the same *Service.
func (c *Client) Service(name string) (*Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ConfigurationError{Reason: "empty service name"}
	}
	qualified := protocol.QualifiedServiceName(name)
	if !serviceNamePattern.MatchString(qualified) {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("malformed service name %q", name)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.services[qualified]; ok {
		return svc, nil
	}
	svc := &Service{name: qualified, client: c}
	c.services[qualified] = svc
	return svc, nil
}

// AuthenticationHeaders returns a fresh copy of the headers that authenticate
// every call.
func (c *Client) AuthenticationHeaders() map[string]any {
	return maps.Clone(c.credentials.AuthenticationHeaders())
}

// EndpointURL returns the configured API endpoint base URL.
func (c *Client) EndpointURL() string {
	return c.endpointURL
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// UserAgent returns the User-Agent sent with every call.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// NewService builds a Service directly. With UsingClient the service shares
// that client; otherwise the options build a new one.
func NewService(name string, opts ...Option) (*Service, error) {
	o := newOptions(opts)
	if o.usingClient != nil {
		if o.rawAuth {
			return nil, &ConfigurationError{Reason: "UsingClient cannot be combined with credentials or configuration"}
		}
		if o.count > 0 {
			return nil, &ConfigurationError{Reason: "UsingClient cannot be combined with client options"}
		}
		return o.usingClient.Service(name)
	}
	c, err := newClient(o)
	if err != nil {
		return nil, err
	}
	return c.Service(name)
}
