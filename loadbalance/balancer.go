// Package loadbalance picks one API endpoint out of the candidates a registry
// returns.
//
// Three strategies are implemented:
//   - RoundRobin:      spread calls evenly over equivalent endpoints
//   - WeightedRandom:  favour endpoints with more capacity
//   - ConsistentHash:  pin each service to one endpoint
package loadbalance

import (
	"errors"

	"softlayer-rpc/registry"
)

// ErrNoEndpoints is returned by Pick when there is nothing to choose from.
var ErrNoEndpoints = errors.New("no endpoints available")

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each call to select a target endpoint.
type Balancer interface {
	// Pick selects one endpoint. key is the qualified service name; strategies
	// that have no use for it ignore it. Must be goroutine-safe.
	Pick(key string, endpoints []registry.Endpoint) (*registry.Endpoint, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer registered under name: "roundrobin",
// "weightedrandom" or "consistenthash".
func New(name string) (Balancer, error) {
	switch name {
	case "", "roundrobin":
		return &RoundRobinBalancer{}, nil
	case "weightedrandom":
		return &WeightedRandomBalancer{}, nil
	case "consistenthash":
		return NewConsistentHashBalancer(), nil
	}
	return nil, errors.New("unknown balancer " + name)
}
