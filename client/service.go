package client

import (
	"context"
	"fmt"

	"softlayer-rpc/message"
	"softlayer-rpc/protocol"
)

// Service is the proxy for one remote service. It carries no call state and
// is safe for concurrent use.
type Service struct {
	name   string
	client *Client
}

// Name returns the qualified service name, e.g. "SoftLayer_Account".
func (s *Service) Name() string {
	return s.name
}

// Client returns the client the service was obtained from.
func (s *Service) Client() *Client {
	return s.client
}

// Filter returns a Filter with no parameters set.
func (s *Service) Filter() *Filter {
	return &Filter{service: s}
}

// Call invokes method remotely, or resolves one of the builder names
// (objectWithId, objectMask, objectFilter, resultLimit) locally and returns
// the resulting *Filter.
func (s *Service) Call(ctx context.Context, method string, args ...any) (any, error) {
	return s.Filter().Call(ctx, method, args...)
}

// ObjectWithID scopes calls to one object.
func (s *Service) ObjectWithID(id any) *Filter {
	return s.Filter().ObjectWithID(id)
}

// ObjectMask selects the properties returned.
func (s *Service) ObjectMask(masks ...string) *Filter {
	return s.Filter().ObjectMask(masks...)
}

// ObjectFilter restricts results; f is a map[string]any or an
// *objectfilter.Filter.
func (s *Service) ObjectFilter(f any) *Filter {
	return s.Filter().ObjectFilter(f)
}

// ResultLimit requests one page of results.
func (s *Service) ResultLimit(offset, limit int) *Filter {
	return s.Filter().ResultLimit(offset, limit)
}

// AllPages collects every page of a list method.
func (s *Service) AllPages(ctx context.Context, method string, pageSize int, args ...any) ([]any, error) {
	return s.Filter().AllPages(ctx, method, pageSize, args...)
}

type depthKey struct{}

// invoke performs one remote call with the accumulated parameters.
func (s *Service) invoke(ctx context.Context, p params, method string, args []any) (any, error) {
	c := s.client

	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= c.maxDepth {
		return nil, &ProgrammingError{Reason: fmt.Sprintf(
			"dispatch depth %d exceeded calling %s::%s", c.maxDepth, s.name, method)}
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	headers := c.AuthenticationHeaders()
	if p.filter != nil {
		headers[protocol.ObjectFilterHeader(s.name)] = p.filter
	}
	if p.mask != "" {
		headers[protocol.ObjectMaskHeader] = protocol.ObjectMask(p.mask)
	}
	if p.hasLimit {
		headers[protocol.ResultLimitHeader] = protocol.ResultLimit(p.offset, p.limit)
	}
	if p.hasID {
		headers[protocol.InitParametersHeader(s.name)] = protocol.InitParameters(p.id)
	}
	normalized, err := protocol.Normalize(headers)
	if err != nil {
		return nil, &ProgrammingError{Reason: "unsupported header value: " + err.Error()}
	}

	if method == "getObject" && len(args) > 0 {
		c.logger.Warningf("%s::getObject takes no arguments; dropping %d", s.name, len(args))
		args = nil
	}
	wireArgs := make([]any, len(args))
	for i, arg := range args {
		if wireArgs[i], err = protocol.Normalize(arg); err != nil {
			return nil, &ProgrammingError{Reason: fmt.Sprintf("argument %d to %s::%s: %v", i, s.name, method, err)}
		}
	}

	endpoints, err := c.registry.Discover(ctx, s.name)
	if err != nil {
		return nil, &TransportError{Op: "resolve", URL: s.name, Err: err}
	}
	ep, err := c.balancer.Pick(s.name, endpoints)
	if err != nil {
		return nil, &TransportError{Op: "resolve", URL: s.name, Err: err}
	}

	req := &message.Request{
		Endpoint: ep.URL,
		Service:  s.name,
		Method:   method,
		Headers:  normalized.(map[string]any),
		Args:     wireArgs,
	}
	resp, err := c.handler(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return resp.Result, nil
}
