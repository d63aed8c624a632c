// Package fetcher retrieves raw page content with a shared response
// cache, secure-to-insecure transport fallback and anti-bot challenge
// detection.
package fetcher

import (
	"sync"

	"github.com/pageharvest/harvestd/internal/metrics"
)

// Cache is the process-wide fetch cache. Keys are exact URL strings with
// no normalization; entries have no individual TTL and are dropped either
// when an artifact is persisted or by the periodic wholesale reset.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string][]byte),
	}
}

// Get returns the cached body for url, if present.
func (c *Cache) Get(url string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.entries[url]
	return body, ok
}

// Put stores a body under the exact url string.
func (c *Cache) Put(url string, body []byte) {
	c.mu.Lock()
	c.entries[url] = body
	n := len(c.entries)
	c.mu.Unlock()
	metrics.SetCacheEntries(n)
}

// Invalidate drops a single entry. The artifact store calls this after a
// successful persist.
func (c *Cache) Invalidate(url string) {
	c.mu.Lock()
	delete(c.entries, url)
	n := len(c.entries)
	c.mu.Unlock()
	metrics.SetCacheEntries(n)
}

// Reset clears every entry. Driven by the periodic schedule as a coarse
// memory bound; an in-flight fetch that loses its entry simply re-fetches.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string][]byte)
	c.mu.Unlock()
	metrics.SetCacheEntries(0)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
