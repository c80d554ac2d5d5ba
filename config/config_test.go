package config

import "testing"

func TestServerConfigValidateFillsDefaults(t *testing.T) {
	c := &ServerConfig{ListenAddr: "0.0.0.0:9000"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DedupTTL != DefaultDedupTTL {
		t.Fatalf("expected default dedup ttl, got %v", c.DedupTTL)
	}
	if c.CleanupInterval != DefaultCleanupInterval {
		t.Fatalf("expected default cleanup interval, got %v", c.CleanupInterval)
	}
}

func TestServerConfigValidateRequiresListenAddr(t *testing.T) {
	c := &ServerConfig{}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing listen address")
	}
}

func TestServerConfigValidateRejectsRateLimitWithoutBurst(t *testing.T) {
	c := &ServerConfig{ListenAddr: "0.0.0.0:9000", RateLimitPerSecond: 10}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for rate limit without burst")
	}
}

func TestClientConfigValidateRequiresServerOrRegistry(t *testing.T) {
	c := &ClientConfig{}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing server/registry")
	}
}

func TestClientConfigValidateFillsDefaults(t *testing.T) {
	c := &ClientConfig{ServerAddr: "127.0.0.1:9000"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.LocalAddr != "0.0.0.0:0" {
		t.Fatalf("expected default local addr, got %q", c.LocalAddr)
	}
	if c.RetransmitInterval != DefaultRetransmitInterval {
		t.Fatalf("expected default retransmit interval, got %v", c.RetransmitInterval)
	}
	if c.ResponseTimeout != DefaultResponseTimeout {
		t.Fatalf("expected default response timeout, got %v", c.ResponseTimeout)
	}
}
