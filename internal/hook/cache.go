package hook

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the shared, process-wide store handed to every hook invocation.
type Cache interface {
	Get(key string) (any, bool)
	// Set stores value for ttl. A zero ttl uses the cache's default expiration.
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}

// MemoryCache is an in-process Cache with per-entry expiration.
type MemoryCache struct {
	c *gocache.Cache
}

// Compile-time check to ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache. Expired entries are purged every cleanupInterval;
// a non-positive interval disables the janitor.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *MemoryCache) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *MemoryCache) Set(key string, value any, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *MemoryCache) Delete(key string) {
	m.c.Delete(key)
}

// ItemCount returns the number of entries, including expired ones not yet purged.
func (m *MemoryCache) ItemCount() int {
	return m.c.ItemCount()
}
