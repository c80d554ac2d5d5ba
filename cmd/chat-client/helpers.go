package main

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"chatter/chatclient"
	"chatter/chatproto"
)

// newRegistryOrDiscard returns a fresh Prometheus registry scoped to
// this single CLI invocation — chat-client is a one-shot command, not
// a long-running process with a /metrics endpoint to scrape.
func newRegistryOrDiscard() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("chat-client: invalid --server address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("chat-client: invalid --server port %q: %w", addr, err)
	}
	return host, port, nil
}

func parseBalanceStrategy(s string) (chatclient.Strategy, error) {
	switch chatclient.Strategy(s) {
	case chatclient.StrategyConsistentHash, chatclient.StrategyRoundRobin, chatclient.StrategyWeightedRandom:
		return chatclient.Strategy(s), nil
	default:
		return "", fmt.Errorf("chat-client: invalid --balance-strategy %q: must be consistent-hash, round-robin, or weighted-random", s)
	}
}

func mustMarshalData(resp chatproto.Response) []byte {
	out, err := json.Marshal(resp.Data)
	if err != nil {
		return []byte(fmt.Sprintf("%v", resp.Data))
	}
	return out
}
