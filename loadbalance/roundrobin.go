package loadbalance

import (
	"fmt"
	"sync/atomic"

	"chatter/registry"
)

// RoundRobinBalancer cycles through shards in order, ignoring which
// username a request is for. Uses an atomic counter for lock-free,
// goroutine-safe operation.
//
// Best for: a deployment where chatstore state isn't shard-local (a
// shared KV backend), so any shard can answer any username's request.
// Against this repo's in-memory chatstore it will scatter one user's
// LOGIN/MESSAGE/FETCH/EXIT calls across shards that don't share state —
// see the package doc.
type RoundRobinBalancer struct {
	counter int64 // Atomic counter, incremented on each Pick()
}

// Pick selects the next shard in round-robin order.
// The atomic counter ensures even distribution without locks.
func (b *RoundRobinBalancer) Pick(instances []registry.ShardInstance) (*registry.ShardInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no shards available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
