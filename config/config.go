// Package config holds the tunables for the chat-server and
// chat-client binaries, following the Config-plus-Validate pattern
// used by the doublezero flow-ingest server (internal/server/config.go):
// a plain struct with required fields and defaulted optional ones,
// validated once at startup rather than scattered across the code
// that consumes them.
package config

import (
	"errors"
	"time"

	"chatter/rdpserver"
)

// Timing defaults mirror the fixed protocol constants: a 500ms
// retransmit tick and a 6s response budget.
const (
	DefaultRetransmitInterval = 500 * time.Millisecond
	DefaultResponseTimeout    = 6 * time.Second
	DefaultDedupTTL           = rdpserver.DefaultDedupTTL
	DefaultCleanupInterval    = 5 * time.Second
	DefaultMTU                = 2048
)

// ServerConfig configures a chat-server instance.
type ServerConfig struct {
	ListenAddr string

	DedupTTL        time.Duration
	CleanupInterval time.Duration

	// RateLimitPerSecond and RateLimitBurst configure the optional
	// rate-limit middleware. Zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// HandlerTimeout, when non-zero, bounds how long the chatstore
	// handler may run before middleware.TimeoutMiddleware aborts the
	// reply with ErrHandlerTimeout. Zero disables it.
	HandlerTimeout time.Duration

	// RegistryEndpoints, when non-empty, advertises ListenAddr under
	// RegistryKey in etcd so clients can discover this shard.
	RegistryEndpoints []string
	RegistryKey       string

	MetricsAddr string
	Verbose     bool
}

// Validate checks required fields and fills in defaults, matching the
// required-field / defaulted-field split the doublezero Config.Validate
// uses.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen address is required")
	}

	if c.DedupTTL == 0 {
		c.DedupTTL = DefaultDedupTTL
	}
	if c.DedupTTL <= 0 {
		return errors.New("config: dedup ttl must be > 0")
	}

	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.CleanupInterval <= 0 {
		return errors.New("config: cleanup interval must be > 0")
	}

	if c.RateLimitPerSecond < 0 {
		return errors.New("config: rate limit per second must be >= 0")
	}
	if c.RateLimitPerSecond > 0 && c.RateLimitBurst <= 0 {
		return errors.New("config: rate limit burst must be > 0 when rate limiting is enabled")
	}

	if c.HandlerTimeout < 0 {
		return errors.New("config: handler timeout must be >= 0")
	}

	if len(c.RegistryEndpoints) > 0 && c.RegistryKey == "" {
		return errors.New("config: registry key is required when registry endpoints are set")
	}

	return nil
}

// ClientConfig configures a chatclient instance.
type ClientConfig struct {
	LocalAddr string

	// ServerAddr is used when no registry is configured — a fixed
	// single shard.
	ServerAddr string

	RetransmitInterval time.Duration
	ResponseTimeout    time.Duration

	RegistryEndpoints []string
	RegistryKey       string

	MetricsAddr string
	Verbose     bool
}

// Validate checks required fields and fills in defaults.
func (c *ClientConfig) Validate() error {
	if c.LocalAddr == "" {
		c.LocalAddr = "0.0.0.0:0"
	}

	if c.ServerAddr == "" && len(c.RegistryEndpoints) == 0 {
		return errors.New("config: either server address or registry endpoints must be set")
	}
	if len(c.RegistryEndpoints) > 0 && c.RegistryKey == "" {
		return errors.New("config: registry key is required when registry endpoints are set")
	}

	if c.RetransmitInterval == 0 {
		c.RetransmitInterval = DefaultRetransmitInterval
	}
	if c.RetransmitInterval <= 0 {
		return errors.New("config: retransmit interval must be > 0")
	}

	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.ResponseTimeout <= 0 {
		return errors.New("config: response timeout must be > 0")
	}

	return nil
}
