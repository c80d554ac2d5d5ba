// Package loadbalance provides strategies for picking a chat-server
// shard out of the instance list registry.Registry.Discover returns.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity shards, no session affinity needed
//   - WeightedRandom:  heterogeneous shards (different CPU/memory)
//   - ConsistentHash:  picks by username, giving a user's requests
//     session affinity to the same shard across calls
//
// Because chatstore.Store is in-memory and shard-local, RoundRobin and
// WeightedRandom are only safe against a deployment where every shard
// shares the same backing store (the out-of-scope KV layer spec.md
// §1 names); against this repo's in-memory chatstore, sending a user's
// LOGIN to one shard and their next MESSAGE to another yields
// AUTHORIZATION-ERROR, since the second shard never saw the LOGIN.
// chatclient defaults to ConsistentHash for that reason and exposes
// the other two only for operators who know their deployment doesn't
// need affinity (see cmd/chat-client's --balance-strategy flag).
package loadbalance

import "chatter/registry"

// Balancer is the interface for the strategies that don't need a
// per-call key: the client calls Pick() before each request to select
// a target shard out of the current shard list, ignoring which
// username the request is for. ConsistentHashBalancer deliberately
// doesn't implement this interface — its Pick takes the username as a
// key, since that's the whole point of session affinity.
type Balancer interface {
	// Pick selects one shard from the available list.
	// Called on every request — must be goroutine-safe.
	Pick(instances []registry.ShardInstance) (*registry.ShardInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
