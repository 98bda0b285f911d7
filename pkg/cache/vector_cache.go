// Package cache provides a small thread-safe LRU with TTL, used to keep
// recently computed query embeddings.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// VectorCache is a thread-safe LRU cache mapping text keys to embedding
// vectors, with per-entry expiration.
type VectorCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
	now      func() time.Time
}

type entry struct {
	key       string
	vector    []float32
	expiresAt time.Time
}

// NewVectorCache creates a cache with the given capacity and TTL. A zero or
// negative capacity disables caching entirely.
func NewVectorCache(capacity int, ttl time.Duration) *VectorCache {
	return &VectorCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, max(capacity, 0)),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the cached vector for the key, or false when absent or
// expired.
func (c *VectorCache) Get(key string) ([]float32, bool) {
	if c.capacity <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	ent := elem.Value.(*entry)
	if c.now().After(ent.expiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return ent.vector, true
}

// Set stores a vector under the key, evicting the least recently used entry
// when over capacity.
func (c *VectorCache) Set(key string, vector []float32) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		ent := elem.Value.(*entry)
		ent.vector = vector
		ent.expiresAt = expiresAt
		return
	}

	elem := c.lru.PushFront(&entry{key: key, vector: vector, expiresAt: expiresAt})
	c.items[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}

// Len returns the number of cached entries, expired ones included.
func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear removes all entries.
func (c *VectorCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, max(c.capacity, 0))
	c.lru.Init()
}

// HashKey derives a stable cache key from query text.
func HashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
