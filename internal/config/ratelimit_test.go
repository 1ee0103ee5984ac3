package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigClampsMinimums(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "0s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity < 1 {
		t.Errorf("Capacity = %d, want >= 1", cfg.Capacity)
	}
	if cfg.RefillTokens < 1 {
		t.Errorf("RefillTokens = %d, want >= 1", cfg.RefillTokens)
	}
	if cfg.RefillInterval <= 0 {
		t.Errorf("RefillInterval = %s, want > 0", cfg.RefillInterval)
	}
	if cfg.TTL < 5*cfg.RefillInterval {
		t.Errorf("TTL = %s, want >= %s", cfg.TTL, 5*cfg.RefillInterval)
	}
}

func TestConfigTTLHelpers(t *testing.T) {
	c := Config{AccessTTLMin: 15, RefreshTTLDays: 30}
	if got := c.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %s", got)
	}
	if got := c.RefreshTTL(); got != 30*24*time.Hour {
		t.Errorf("RefreshTTL = %s", got)
	}
}
