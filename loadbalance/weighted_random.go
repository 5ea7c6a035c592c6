package loadbalance

import (
	"math/rand"

	"softlayer-rpc/registry"
)

// WeightedRandomBalancer picks endpoints with probability proportional to
// their Weight. Weights below 1 count as 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(key string, endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	// 计算总权重
	totalWeight := 0
	for _, ep := range endpoints {
		totalWeight += weightOf(ep)
	}

	// 生成一个随机数，范围是0到总权重
	r := rand.Intn(totalWeight)
	for _, ep := range endpoints {
		r -= weightOf(ep)
		if r < 0 {
			return &ep, nil
		}
	}

	// unreachable: r < totalWeight
	ep := endpoints[len(endpoints)-1]
	return &ep, nil
}

func weightOf(ep registry.Endpoint) int {
	if ep.Weight < 1 {
		return 1
	}
	return ep.Weight
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
