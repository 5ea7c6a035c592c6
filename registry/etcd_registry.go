// etcd-backed Registry.
//
// Layout:
//
//	Key:   /softlayer-rpc/endpoints/{Service}/{escaped URL}
//	Value: JSON-encoded Endpoint
//
// Registration uses TTL-based leases: an API gateway that stops renewing its
// lease drops out of discovery on its own.
package registry

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var logger = loggo.GetLogger("softlayer.registry")

const keyPrefix = "/softlayer-rpc/endpoints/"

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to etcd %v", endpoints)
	}
	return &EtcdRegistry{client: c}, nil
}

// Close releases the etcd connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

func servicePrefix(service string) string {
	return keyPrefix + service + "/"
}

func endpointKey(service, rawURL string) string {
	return servicePrefix(service) + url.PathEscape(rawURL)
}

// Register stores ep under a lease of ttl seconds and keeps the lease alive
// until ctx is cancelled.
//
// leaseID stays a local: several gateways may share one EtcdRegistry.
func (r *EtcdRegistry) Register(ctx context.Context, service string, ep Endpoint, ttl int64) error {
	if ep.URL == "" {
		return errors.NotValidf("endpoint with empty URL")
	}
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Annotate(err, "granting lease")
	}

	val, err := json.Marshal(ep)
	if err != nil {
		return errors.Trace(err)
	}

	_, err = r.client.Put(ctx, endpointKey(service, ep.URL), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return errors.Annotatef(err, "registering %s for %s", ep.URL, service)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return errors.Annotate(err, "keeping lease alive")
	}

	// Drain KeepAlive responses so the channel never fills up
	go func() {
		for range ch {
		}
		logger.Debugf("lease for %s (%s) no longer renewed", ep.URL, service)
	}()
	return nil
}

// Deregister removes an endpoint.
func (r *EtcdRegistry) Deregister(ctx context.Context, service string, rawURL string) error {
	resp, err := r.client.Delete(ctx, endpointKey(service, rawURL))
	if err != nil {
		return errors.Annotatef(err, "deregistering %s for %s", rawURL, service)
	}
	if resp.Deleted == 0 {
		return errors.NotFoundf("endpoint %q for %s", rawURL, service)
	}
	return nil
}

// Discover returns the endpoints registered for service, falling back to the
// DefaultService entries when there are none.
func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]Endpoint, error) {
	eps, err := r.list(ctx, service)
	if err != nil {
		return nil, err
	}
	if len(eps) == 0 && service != DefaultService {
		return r.list(ctx, DefaultService)
	}
	return eps, nil
}

func (r *EtcdRegistry) list(ctx context.Context, service string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, servicePrefix(service), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Annotatef(err, "discovering %s", service)
	}

	eps := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			logger.Warningf("skipping malformed endpoint at %s: %v", kv.Key, err)
			continue
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// Watch emits the full endpoint list whenever the service's keys change.
// The channel is closed once ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, service string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, servicePrefix(service), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the whole list rather than applying individual events
			eps, err := r.Discover(ctx, service)
			if err != nil {
				logger.Warningf("watch %s: %v", service, err)
				continue
			}
			select {
			case ch <- eps:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}
