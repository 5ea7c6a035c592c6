package loadbalance

import (
	"sync/atomic"

	"softlayer-rpc/registry"
)

// RoundRobinBalancer distributes calls evenly across all endpoints in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *RoundRobinBalancer) Pick(key string, endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	index := (b.counter.Add(1) - 1) % uint64(len(endpoints))
	ep := endpoints[index]
	return &ep, nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
