package loadbalance

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"softlayer-rpc/registry"
)

var testEndpoints = []registry.Endpoint{
	{URL: "https://a.example.test/xmlrpc/v3", Weight: 10},
	{URL: "https://b.example.test/xmlrpc/v3", Weight: 5},
	{URL: "https://c.example.test/xmlrpc/v3", Weight: 10},
}

func TestRoundRobin(t *testing.T) {
	c := qt.New(t)
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all endpoints in order
	for i := 0; i < 3; i++ {
		ep, err := b.Pick("SoftLayer_Account", testEndpoints)
		c.Assert(err, qt.IsNil)
		c.Assert(ep.URL, qt.Equals, testEndpoints[i].URL)
	}

	// Pick again, should wrap around to first
	ep, _ := b.Pick("SoftLayer_Account", testEndpoints)
	c.Assert(ep.URL, qt.Equals, testEndpoints[0].URL)
}

func TestRoundRobinConcurrent(t *testing.T) {
	c := qt.New(t)
	b := &RoundRobinBalancer{}
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep, err := b.Pick("", testEndpoints)
			c.Check(err, qt.IsNil)
			mu.Lock()
			counts[ep.URL]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	for _, ep := range testEndpoints {
		c.Assert(counts[ep.URL], qt.Equals, 10)
	}
}

func TestEmpty(t *testing.T) {
	c := qt.New(t)
	for _, b := range []Balancer{&RoundRobinBalancer{}, &WeightedRandomBalancer{}, NewConsistentHashBalancer()} {
		_, err := b.Pick("SoftLayer_Account", nil)
		c.Assert(errors.Is(err, ErrNoEndpoints), qt.IsTrue, qt.Commentf("%s", b.Name()))
	}
}

func TestWeightedRandom(t *testing.T) {
	c := qt.New(t)
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		ep, err := b.Pick("", testEndpoints)
		c.Assert(err, qt.IsNil)
		counts[ep.URL]++
	}

	// Weight ratio is 10:5:10, so a and c should be ~2x of b
	ratio := float64(counts[testEndpoints[0].URL]) / float64(counts[testEndpoints[1].URL])
	c.Assert(ratio > 1.5 && ratio < 2.5, qt.IsTrue, qt.Commentf("ratio a/b = %.2f", ratio))
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	c := qt.New(t)
	b := &WeightedRandomBalancer{}
	eps := []registry.Endpoint{{URL: "https://x"}, {URL: "https://y", Weight: -3}}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ep, err := b.Pick("", eps)
		c.Assert(err, qt.IsNil)
		seen[ep.URL] = true
	}
	c.Assert(seen, qt.HasLen, 2)
}

func TestConsistentHash(t *testing.T) {
	c := qt.New(t)
	b := NewConsistentHashBalancer()

	// Same key should always map to the same endpoint
	ep1, _ := b.Pick("SoftLayer_Account", testEndpoints)
	ep2, _ := b.Pick("SoftLayer_Account", testEndpoints)
	c.Assert(ep1.URL, qt.Equals, ep2.URL)

	// Different keys should spread over the endpoints
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ep, _ := b.Pick(fmt.Sprintf("SoftLayer_Service_%d", i), testEndpoints)
		seen[ep.URL] = true
	}
	c.Assert(len(seen) >= 2, qt.IsTrue)
}

func TestConsistentHashRebuildsOnChange(t *testing.T) {
	c := qt.New(t)
	b := NewConsistentHashBalancer()

	owner, _ := b.Pick("SoftLayer_Ticket", testEndpoints)

	// order does not matter
	reversed := []registry.Endpoint{testEndpoints[2], testEndpoints[1], testEndpoints[0]}
	again, _ := b.Pick("SoftLayer_Ticket", reversed)
	c.Assert(again.URL, qt.Equals, owner.URL)

	// dropping the owner moves the key to a surviving endpoint
	var rest []registry.Endpoint
	for _, ep := range testEndpoints {
		if ep.URL != owner.URL {
			rest = append(rest, ep)
		}
	}
	moved, err := b.Pick("SoftLayer_Ticket", rest)
	c.Assert(err, qt.IsNil)
	c.Assert(moved.URL, qt.Not(qt.Equals), owner.URL)
}

func TestConsistentHashAdd(t *testing.T) {
	c := qt.New(t)
	b := NewConsistentHashBalancer()
	b.Add(testEndpoints[0])

	ep, err := b.Pick("SoftLayer_Account", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(ep.URL, qt.Equals, testEndpoints[0].URL)
}

func TestConsistentHashCachesRingPerEndpointSet(t *testing.T) {
	c := qt.New(t)
	b := NewConsistentHashBalancer()
	ticketEndpoints := testEndpoints[:2]

	first, _ := b.Pick("SoftLayer_Account", testEndpoints)
	for i := 0; i < 10; i++ {
		ep, err := b.Pick("SoftLayer_Account", testEndpoints)
		c.Assert(err, qt.IsNil)
		c.Assert(ep.URL, qt.Equals, first.URL)
		_, err = b.Pick("SoftLayer_Ticket", ticketEndpoints)
		c.Assert(err, qt.IsNil)
	}
	c.Assert(b.builds, qt.Equals, 2)
}

func TestNew(t *testing.T) {
	c := qt.New(t)
	for name, want := range map[string]string{
		"":               "RoundRobin",
		"roundrobin":     "RoundRobin",
		"weightedrandom": "WeightedRandom",
		"consistenthash": "ConsistentHash",
	} {
		b, err := New(name)
		c.Assert(err, qt.IsNil)
		c.Assert(b.Name(), qt.Equals, want)
	}
	_, err := New("fastest")
	c.Assert(err, qt.ErrorMatches, "unknown balancer fastest")
}
