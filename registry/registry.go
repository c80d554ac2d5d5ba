// Package registry defines the shard discovery interface chat-client
// uses to find chat-server shards, replacing a hardcoded host:port with
// a central directory every shard registers itself in.
//
// A chat deployment has no single server: a username's LOGIN/MESSAGE/
// FETCH/EXIT calls all need to land on the same shard (each
// chatstore.Store is in-memory and shard-local), so the client has to
// learn the live shard set and pick one per username rather than
// dialing a fixed address. Shards register themselves here on startup
// and clients query it to get the current shard list for
// loadbalance.Balancer/ConsistentHashBalancer to pick from.
package registry

// ShardInstance describes one running chat-server shard as advertised
// in the registry.
type ShardInstance struct {
	Addr    string // UDP address the shard's datagram.Channel is bound to, e.g., "127.0.0.1:9000"
	Weight  int    // Relative capacity for WeightedRandomBalancer (higher = more traffic)
	Version string // Shard build version, for canary rollouts
}

// Registry is the interface for shard registration and discovery.
// EtcdRegistry is the only implementation in this module.
type Registry interface {
	// Register adds a shard to the registry with a TTL lease.
	// The instance will be automatically removed if KeepAlive stops (e.g., shard crashes).
	Register(serviceName string, instance ShardInstance, ttl int64) error

	// Deregister removes a shard from the registry. chat-server does not
	// call it on shutdown; its entry disappears when the lease expires.
	Deregister(serviceName string, addr string) error

	// Discover returns all currently registered shards for a service.
	// The client calls this to get the instance list for load balancing.
	Discover(serviceName string) ([]ShardInstance, error)

	// Watch returns a channel that emits updated shard lists whenever
	// the set changes (new shards, removals, lease expirations).
	// This enables real-time service discovery without polling.
	Watch(serviceName string) <-chan []ShardInstance
}
