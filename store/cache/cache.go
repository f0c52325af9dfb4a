// Package cache provides the in-memory read cache used by the store.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config holds the configuration for a cache.
type Config struct {
	DefaultTTL time.Duration // TTL for entries, 0 disables expiry
	MaxItems   int           // Max entries before LRU eviction, 0 means unbounded
}

// Fetcher loads a value from the backing store on a miss.
type Fetcher[V any] func(ctx context.Context, key string) (V, error)

// Cache is an LRU cache with per-entry TTL.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New creates a new cache.
func New[V any](config Config) *Cache[V] {
	return &Cache[V]{
		lru: expirable.NewLRU[string, V](config.MaxItems, nil, config.DefaultTTL),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}

func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

func (c *Cache[V]) Size() int {
	return c.lru.Len()
}

// GetOrFetch returns the cached value or loads it with fetch and caches the
// result. Fetch errors are returned and nothing is cached.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	if value, ok := c.lru.Get(key); ok {
		return value, nil
	}
	value, err := fetch(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, value)
	return value, nil
}
