// Package cache defines the distributed-tier backend that
// github.com/sievelang/sieve/internal/cache.CompileCache falls back to once
// its in-process LRU misses: a byte-oriented, TTL'd key/value store keyed on
// a hash of (schema generation, query text).
package cache

import (
	"context"
	"time"
)

// Cache is the distributed tier a CompileCache wraps. RedisCache is the
// only implementation; the compile cache's own unit tests run with a nil
// distributed tier.
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache
	Clear(ctx context.Context) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)
}

// CacheConfig holds common configuration for cache backends.
type CacheConfig struct {
	// DefaultTTL is used when RedisCache.Set is called with a zero TTL.
	DefaultTTL time.Duration
	// Prefix namespaces compile-cache keys from any other consumer of the
	// same Redis instance (rate-limit counters included).
	Prefix string
}

// DefaultCacheConfig returns the default compile-cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "sieve:",
	}
}

// ErrCacheMiss is returned when a compile-cache key has no entry.
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss reports whether err is an ErrCacheMiss.
func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}
