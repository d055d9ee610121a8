// Package cache is the two-tier compile-result cache: an in-process
// hashicorp/golang-lru tier in front of the distributed tier (redis-backed
// github.com/sievelang/sieve/internal/web/cache.Cache), keyed on a hash of
// (schema generation, query text) so a schema edit invalidates every
// previously cached compile without touching the cache keys themselves.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	webcache "github.com/sievelang/sieve/internal/web/cache"
)

// CompileCache serves compiled query documents out of an in-process LRU
// before falling back to the distributed tier.
type CompileCache struct {
	local       *lru.Cache
	distributed webcache.Cache
	ttl         time.Duration
}

// New builds a CompileCache with an in-process tier of the given capacity.
// distributed may be nil, in which case the cache only has a local tier
// (the shape the `sieve` CLI uses when run disconnected from Redis).
func New(localCapacity int, distributed webcache.Cache, ttl time.Duration) (*CompileCache, error) {
	local, err := lru.New(localCapacity)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to build local tier: %w", err)
	}
	return &CompileCache{local: local, distributed: distributed, ttl: ttl}, nil
}

// Key hashes (schemaGeneration, query) into a cache key. schemaGeneration
// should change whenever the field-classification schema changes, so a
// schema edit naturally invalidates every cached compile for it without the
// cache needing to track dependency edges.
func Key(schemaGeneration int64, query string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s", schemaGeneration, query)
	return "compile:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns a previously compiled document for key, checking the local
// tier first and then the distributed tier (populating the local tier on a
// distributed hit).
func (c *CompileCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if v, ok := c.local.Get(key); ok {
		return v.(json.RawMessage), true
	}

	if c.distributed == nil {
		return nil, false
	}

	raw, err := c.distributed.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	doc := json.RawMessage(raw)
	c.local.Add(key, doc)
	return doc, true
}

// Set populates both tiers with doc under key.
func (c *CompileCache) Set(ctx context.Context, key string, doc json.RawMessage) error {
	c.local.Add(key, doc)

	if c.distributed == nil {
		return nil
	}
	return c.distributed.Set(ctx, key, doc, c.ttl)
}

// Purge empties the local tier. The distributed tier is left untouched.
func (c *CompileCache) Purge() {
	c.local.Purge()
}
