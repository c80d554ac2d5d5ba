// Package chatclient is the Go analogue of
// _examples/original_source/client/services/messaging_protocol.py and
// authentication.py: it pairs an rdpclient.Engine with chatproto
// request/response encoding, and (optionally) a registry.Registry +
// a loadbalance strategy for picking a shard instead of dialing a
// single hardcoded host:port.
package chatclient

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"chatter/chatproto"
	"chatter/loadbalance"
	"chatter/rdpclient"
	"chatter/registry"
)

// ErrRequestFailed wraps a non-SUCCESS response, mirroring the
// original's _throwIfResponseIsError.
type ErrRequestFailed struct {
	Status  chatproto.Status
	Message string
}

func (e *ErrRequestFailed) Error() string {
	return fmt.Sprintf("chatclient: request failed: %s: %s", e.Status, e.Message)
}

// Strategy selects which loadbalance algorithm NewSharded uses to pick
// a shard for each request.
type Strategy string

const (
	// StrategyConsistentHash picks a shard by hashing the username, so
	// one user's LOGIN/MESSAGE/FETCH/EXIT calls always land on the same
	// shard's in-memory chatstore.Store. This is the default and the
	// only strategy that's safe without a shared backing store.
	StrategyConsistentHash Strategy = "consistent-hash"
	// StrategyRoundRobin cycles through shards in order, ignoring the
	// username. See loadbalance's package doc for the affinity caveat.
	StrategyRoundRobin Strategy = "round-robin"
	// StrategyWeightedRandom picks a shard at random, weighted by its
	// advertised capacity, ignoring the username. Same caveat as
	// StrategyRoundRobin.
	StrategyWeightedRandom Strategy = "weighted-random"
)

// Client is a chat-protocol-aware wrapper around an rdpclient.Engine.
type Client struct {
	engine *rdpclient.Engine

	// Fixed-shard mode: used when registry is nil.
	host string
	port int

	registry    registry.Registry
	serviceName string
	strategy    Strategy

	// balancer holds the stateful Balancer for StrategyRoundRobin/
	// StrategyWeightedRandom so, e.g., the round-robin counter persists
	// across calls instead of resetting on every Do. Unused (nil) for
	// StrategyConsistentHash, which is rebuilt from the live shard list
	// on every call since it needs the username as a Pick key, not just
	// the shard list.
	balancer loadbalance.Balancer
}

// New creates a Client that always talks to the fixed shard at
// host:port.
func New(engine *rdpclient.Engine, host string, port int) *Client {
	return &Client{engine: engine, host: host, port: port}
}

// NewSharded creates a Client that discovers shards from reg under
// serviceName and picks one per request using strategy. An empty
// strategy defaults to StrategyConsistentHash.
func NewSharded(engine *rdpclient.Engine, reg registry.Registry, serviceName string, strategy Strategy) *Client {
	c := &Client{engine: engine, registry: reg, serviceName: serviceName, strategy: strategy}
	switch strategy {
	case StrategyRoundRobin:
		c.balancer = &loadbalance.RoundRobinBalancer{}
	case StrategyWeightedRandom:
		c.balancer = &loadbalance.WeightedRandomBalancer{}
	default:
		c.strategy = StrategyConsistentHash
	}
	return c
}

// Do sends a chat request for username and returns the parsed response
// on success. For a non-SUCCESS status it returns the parsed response
// together with an *ErrRequestFailed wrapping the status.
func (c *Client) Do(method chatproto.Method, username string, data any) (chatproto.Response, error) {
	payload, err := chatproto.EncodeRequest(method, data)
	if err != nil {
		return chatproto.Response{}, err
	}

	host, port, err := c.resolveShard(username)
	if err != nil {
		return chatproto.Response{}, err
	}

	correlationID, err := c.engine.Send(payload, host, port)
	if err != nil {
		return chatproto.Response{}, fmt.Errorf("chatclient: send: %w", err)
	}

	respPayload, err := c.engine.Response(correlationID)
	if err != nil {
		return chatproto.Response{}, fmt.Errorf("chatclient: response: %w", err)
	}

	resp, err := chatproto.ParseResponse(respPayload)
	if err != nil {
		return chatproto.Response{}, err
	}
	if resp.Status != chatproto.StatusSuccess {
		return resp, &ErrRequestFailed{Status: resp.Status, Message: resp.Message}
	}
	return resp, nil
}

func (c *Client) resolveShard(username string) (string, int, error) {
	if c.registry == nil {
		return c.host, c.port, nil
	}

	instances, err := c.registry.Discover(c.serviceName)
	if err != nil {
		return "", 0, fmt.Errorf("chatclient: discover shards: %w", err)
	}
	if len(instances) == 0 {
		return "", 0, errors.New("chatclient: no shards available")
	}

	if c.balancer != nil {
		inst, err := c.balancer.Pick(instances)
		if err != nil {
			return "", 0, err
		}
		return splitHostPort(inst.Addr)
	}

	// StrategyConsistentHash: rebuild the ring from the current shard
	// list on every call so a changed shard set (scale up/down) is
	// picked up without a separate Watch subscription, then pick by
	// username for session affinity.
	hashBalancer := loadbalance.NewConsistentHashBalancer()
	for i := range instances {
		hashBalancer.Add(&instances[i])
	}

	inst, err := hashBalancer.Pick(username)
	if err != nil {
		return "", 0, err
	}
	return splitHostPort(inst.Addr)
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("chatclient: invalid shard address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("chatclient: invalid shard port %q: %w", addr, err)
	}
	return host, port, nil
}
