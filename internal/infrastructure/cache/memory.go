package cache

import (
	"sync"
	"time"

	"github.com/finsight/backend/internal/domain"
)

// cacheItem is a stored classification with its expiration
type cacheItem struct {
	result     *domain.ClassificationResult
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory classification cache with TTL.
// Entries are immutable once written and keys are rarely removed, so a
// plain RWMutex map is sufficient.
type MemoryCache struct {
	data  map[string]cacheItem
	ttl   time.Duration
	mutex sync.RWMutex
}

// NewMemoryCache creates a cache whose entries expire after ttl. A zero
// ttl keeps entries for the process lifetime.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]cacheItem),
		ttl:  ttl,
	}

	if ttl > 0 {
		// Remove expired entries periodically
		go c.cleanupExpired()
	}

	return c
}

// Get retrieves a cached classification for the merchant key
func (c *MemoryCache) Get(key string) (*domain.ClassificationResult, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(item.expiration) {
		return nil, false
	}
	return item.result, true
}

// Set stores a classification under the merchant key
func (c *MemoryCache) Set(key string, result *domain.ClassificationResult) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem{
		result:     result,
		expiration: time.Now().Add(c.ttl),
	}
}

// Size returns the current number of cached entries
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all cached entries
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}

func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		for key, item := range c.data {
			if now.After(item.expiration) {
				delete(c.data, key)
			}
		}
		c.mutex.Unlock()
	}
}
