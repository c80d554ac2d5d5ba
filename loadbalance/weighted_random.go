package loadbalance

import (
	"fmt"
	"math/rand"

	"chatter/registry"
)

// WeightedRandomBalancer selects a shard probabilistically based on
// its advertised Weight. A shard with weight 10 gets roughly 2x the
// traffic of one with weight 5 — useful when shards run on
// heterogeneous hardware and shouldn't get equal shares of the load.
//
// Like RoundRobinBalancer, it ignores the requesting username, so it
// carries the same caveat against this repo's in-memory chatstore —
// see the package doc.
//
// Algorithm:
//  1. Sum all weights → totalWeight
//  2. Generate random number r in [0, totalWeight)
//  3. Subtract each shard's weight from r until r < 0
//  4. The shard that makes r negative is selected
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.ShardInstance) (*registry.ShardInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no shards available")
	}

	// Calculate total weight
	totalWeight := 0
	for _, v := range instances {
		totalWeight += v.Weight
	}

	// Random selection proportional to weight
	r := rand.Intn(totalWeight)
	for _, v := range instances {
		r -= v.Weight
		if r < 0 {
			return &v, nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
