// Package registry provides the etcd-based implementation of the Registry interface.
//
// etcd is a distributed key-value store that provides strong consistency (Raft protocol).
// We use it as a "distributed phonebook" for chat shards:
//
//	Key:   /chatter/shards/{ServiceName}/{Addr}
//	Value: JSON-encoded ShardInstance
//
// The "shards" segment namespaces chat-server registrations away from
// anything else that might one day share the same etcd cluster (e.g. a
// separate registry.Register caller for an unrelated service), since
// Discover/Watch match by prefix.
//
// Registration uses TTL-based leases: if the server crashes, the lease expires
// and the entry is automatically removed — preventing "ghost" shards a
// client could still pick and send datagrams into the void.
package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// shardKey returns the etcd key a shard registers itself under.
func shardKey(serviceName, addr string) string {
	return "/chatter/shards/" + serviceName + "/" + addr
}

// shardPrefix returns the etcd key prefix covering every shard
// registered for serviceName.
func shardPrefix(serviceName string) string {
	return "/chatter/shards/" + serviceName + "/"
}

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Register adds a shard to etcd with a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease
//
// Note: leaseID is a local variable, NOT stored on the struct.
// This prevents a data race when multiple shards share one EtcdRegistry instance
// (discovered via `go test -race`).
func (r *EtcdRegistry) Register(serviceName string, instance ShardInstance, ttl int64) error {
	ctx := context.TODO()

	// Create a TTL-based lease — if KeepAlive stops, the entry auto-expires
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	// Serialize the shard metadata
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	// Store in etcd: key = /chatter/shards/{service}/{addr}, value = JSON metadata
	_, err = r.client.Put(ctx, shardKey(serviceName, instance.Addr), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// Start background lease renewal — KeepAlive sends heartbeats to etcd
	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes a shard from etcd. chat-server does not call it on
// shutdown; without it the entry is removed when its lease expires.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	ctx := context.TODO()
	_, err := r.client.Delete(ctx, shardKey(serviceName, addr))
	if err != nil {
		return err
	}
	return nil
}

// Watch monitors a shard prefix in etcd and emits updated shard lists
// whenever changes occur (new registrations, deregistrations, lease expirations).
//
// Uses etcd's Watch API (server-push), which is more efficient than polling.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ShardInstance {
	ctx := context.TODO()
	ch := make(chan []ShardInstance, 1)

	go func() {
		// Watch all keys under the shard prefix
		watchChan := r.client.Watch(ctx, shardPrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			// On any change, re-fetch the full shard list
			// (simpler than parsing individual watch events)
			instances, _ := r.Discover(serviceName)
			ch <- instances
		}
	}()

	return ch
}

// Discover returns all currently registered shards for a service.
// Queries etcd with a key prefix to find all shards under
// /chatter/shards/{serviceName}/.
func (r *EtcdRegistry) Discover(serviceName string) ([]ShardInstance, error) {
	ctx := context.TODO()

	// Get all keys with the prefix
	resp, err := r.client.Get(ctx, shardPrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	// Deserialize each value into a ShardInstance
	instances := make([]ShardInstance, 0)
	for _, kv := range resp.Kvs {
		var instance ShardInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}

	return instances, nil
}
