// Package registry tells the client which API endpoint serves a service.
//
// A registry holds endpoints per qualified service name. The special service
// name DefaultService ("*") holds endpoints for every service that has no
// entry of its own.
package registry

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

// DefaultService is the fallback service name.
const DefaultService = "*"

// Endpoint is one API base URL, e.g. "https://api.softlayer.com/xmlrpc/v3".
type Endpoint struct {
	URL     string `json:"url"`
	Weight  int    `json:"weight"`            // Weight for load balancing
	Network string `json:"network,omitempty"` // "public" or "private"
}

type Registry interface {
	Register(ctx context.Context, service string, ep Endpoint, ttl int64) error
	Deregister(ctx context.Context, service string, url string) error
	Discover(ctx context.Context, service string) ([]Endpoint, error)
	Watch(ctx context.Context, service string) <-chan []Endpoint
}

// StaticRegistry is an in-memory Registry. The ttl passed to Register is
// ignored: entries live until deregistered.
type StaticRegistry struct {
	mu        sync.RWMutex
	endpoints map[string][]Endpoint
	watchers  map[string][]chan []Endpoint
}

// NewStaticRegistry returns a registry serving defaults for every service.
func NewStaticRegistry(defaults ...Endpoint) *StaticRegistry {
	r := &StaticRegistry{
		endpoints: make(map[string][]Endpoint),
		watchers:  make(map[string][]chan []Endpoint),
	}
	if len(defaults) > 0 {
		r.endpoints[DefaultService] = append([]Endpoint(nil), defaults...)
	}
	return r
}

func (r *StaticRegistry) Register(ctx context.Context, service string, ep Endpoint, ttl int64) error {
	if ep.URL == "" {
		return errors.NotValidf("endpoint with empty URL")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[service]
	for i := range eps {
		if eps[i].URL == ep.URL {
			eps[i] = ep
			r.notifyLocked(service)
			return nil
		}
	}
	r.endpoints[service] = append(eps, ep)
	r.notifyLocked(service)
	return nil
}

func (r *StaticRegistry) Deregister(ctx context.Context, service string, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[service]
	for i := range eps {
		if eps[i].URL == url {
			r.endpoints[service] = append(eps[:i:i], eps[i+1:]...)
			if len(r.endpoints[service]) == 0 {
				delete(r.endpoints, service)
			}
			r.notifyLocked(service)
			return nil
		}
	}
	return errors.NotFoundf("endpoint %q for %s", url, service)
}

// Discover returns the service's endpoints, or the defaults when it has none.
func (r *StaticRegistry) Discover(ctx context.Context, service string) ([]Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(service), nil
}

func (r *StaticRegistry) lookupLocked(service string) []Endpoint {
	eps, ok := r.endpoints[service]
	if !ok {
		eps = r.endpoints[DefaultService]
	}
	return append([]Endpoint(nil), eps...)
}

// Watch emits the endpoint list after every change until ctx is done.
func (r *StaticRegistry) Watch(ctx context.Context, service string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)
	r.mu.Lock()
	r.watchers[service] = append(r.watchers[service], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[service]
		for i := range ws {
			if ws[i] == ch {
				r.watchers[service] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// notifyLocked pushes the latest list; a slow watcher only ever sees the
// newest snapshot.
func (r *StaticRegistry) notifyLocked(service string) {
	targets := []string{service}
	if service == DefaultService {
		targets = targets[:0]
		for name := range r.watchers {
			if _, own := r.endpoints[name]; !own || name == DefaultService {
				targets = append(targets, name)
			}
		}
	}
	for _, name := range targets {
		eps := r.lookupLocked(name)
		for _, ch := range r.watchers[name] {
			select {
			case <-ch:
			default:
			}
			ch <- eps
		}
	}
}
