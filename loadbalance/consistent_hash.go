package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"softlayer-rpc/registry"
)

// ConsistentHashBalancer maps keys to endpoints using a hash ring.
// The same service always lands on the same endpoint until the endpoint set
// changes, and a change only moves the services owned by the affected node.
//
// Each real endpoint is mapped to replicas virtual nodes on the ring so a
// handful of endpoints still spread evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	mu       sync.Mutex
	replicas int                  // Virtual nodes per real endpoint
	rings    map[string]*hashRing // Endpoint set fingerprint → ring built from it
	added    *hashRing            // Endpoints placed with Add
	builds   int
}

// maxRings bounds the ring cache; it is emptied when full.
const maxRings = 64

type hashRing struct {
	hashes []uint32                     // Sorted hash values on the ring
	nodes  map[uint32]registry.Endpoint // Hash value → endpoint mapping
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per endpoint.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		rings:    make(map[string]*hashRing),
		added:    &hashRing{nodes: make(map[uint32]registry.Endpoint)},
	}
}

// Add places an endpoint onto the ring used when Pick gets no endpoints.
// Each virtual node is hashed from "{url}#{i}".
func (b *ConsistentHashBalancer) Add(ep registry.Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added.add(ep, b.replicas)
}

func (r *hashRing) add(ep registry.Endpoint, replicas int) {
	for i := 0; i < replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", ep.URL, i)))
		if _, taken := r.nodes[hash]; !taken {
			r.hashes = append(r.hashes, hash)
		}
		r.nodes[hash] = ep
	}
	// Keep the ring sorted for binary search in get()
	sort.Slice(r.hashes, func(i, j int) bool {
		return r.hashes[i] < r.hashes[j]
	})
}

func (r *hashRing) get(key string) (registry.Endpoint, bool) {
	if len(r.hashes) == 0 {
		return registry.Endpoint{}, false
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	// Binary search: find first node with hash >= key's hash
	idx := sort.Search(len(r.hashes), func(i int) bool {
		return r.hashes[i] >= hash
	})

	// Wrap around: if key's hash > all nodes, go to the first node
	if idx == len(r.hashes) {
		idx = 0
	}
	return r.nodes[r.hashes[idx]], true
}

// Pick finds the endpoint responsible for key on the ring built from
// endpoints. Rings are cached per endpoint set, so services with different
// endpoints sharing one balancer do not rebuild on every call. An empty
// endpoints list picks from the endpoints placed with Add.
func (b *ConsistentHashBalancer) Pick(key string, endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.added
	if len(endpoints) > 0 {
		fp := fingerprint(endpoints)
		var ok bool
		if r, ok = b.rings[fp]; !ok {
			if len(b.rings) >= maxRings {
				clear(b.rings)
			}
			r = &hashRing{nodes: make(map[uint32]registry.Endpoint)}
			for _, ep := range endpoints {
				r.add(ep, b.replicas)
			}
			b.rings[fp] = r
			b.builds++
		}
	}

	ep, ok := r.get(key)
	if !ok {
		return nil, ErrNoEndpoints
	}
	return &ep, nil
}

func fingerprint(endpoints []registry.Endpoint) string {
	urls := make([]string, len(endpoints))
	for i, ep := range endpoints {
		urls[i] = ep.URL
	}
	sort.Strings(urls)
	return strings.Join(urls, "\n")
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
