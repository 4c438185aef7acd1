// Package cache is a typed in-memory store with optional expiry, used for
// the lookup tables loaded from the WSI server.
package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NoExpiration keeps entries until they are deleted or replaced.
const NoExpiration = gocache.NoExpiration

// Cache holds values of a single type keyed by string.
type Cache[V any] struct {
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache. A defaultTTL of zero or NoExpiration keeps entries
// forever; cleanupInterval is how often expired entries are purged.
func New[V any](defaultTTL, cleanupInterval time.Duration) *Cache[V] {
	if defaultTTL == 0 {
		defaultTTL = NoExpiration
	}
	return &Cache[V]{store: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	if v, ok := c.store.Get(key); ok {
		if typed, ok := v.(V); ok {
			c.hits.Add(1)
			return typed, true
		}
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// SetWithTTL stores value under key with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.store.Delete(key)
}

// Replace swaps the whole content for entries.
func (c *Cache[V]) Replace(entries map[string]V) {
	c.store.Flush()
	for k, v := range entries {
		c.store.Set(k, v, gocache.DefaultExpiration)
	}
}

// Items returns a copy of the unexpired entries.
func (c *Cache[V]) Items() map[string]V {
	items := c.store.Items()
	out := make(map[string]V, len(items))
	for k, item := range items {
		if v, ok := item.Object.(V); ok {
			out[k] = v
		}
	}
	return out
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.store.Flush()
}

// Len returns the number of entries, including expired ones not yet purged.
func (c *Cache[V]) Len() int {
	return c.store.ItemCount()
}

// Stats reports cache usage.
type Stats struct {
	Items  int   `json:"items"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns current usage counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Items:  c.store.ItemCount(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
