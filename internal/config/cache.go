package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache placed in front of
// the public catalogue reads (products and single reviews).  When Enabled is
// false or no Redis client is available, caching is skipped entirely.
// KeyStrategy decides which parts of the request make up the cache key:
// "route", "route_query" (default) or "path_query".
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables, falling back to defaults.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  strings.ToLower(envStr("CACHE_KEY_STRATEGY", "route_query")),
		Prefix:       envStr("CACHE_PREFIX", "storefront:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return cfg
}
