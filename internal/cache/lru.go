package cache

import (
	"sync"
	"sync/atomic"

	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// LRUCache implements a thread-safe fixed-capacity cache with LRU eviction.
//
// Entries live on an intrusive doubly-linked list indexed by key. The head is
// the most recently touched entry and the tail is the eviction candidate.
// Both Save and a hit in Fetch move an entry to the head, so Fetch takes the
// same exclusive lock as Save.
type LRUCache[K comparable, V any] struct {
	mu     sync.Mutex
	config Config
	items  map[K]*lruNode[K, V]
	head   *lruNode[K, V]
	tail   *lruNode[K, V]

	// Statistics
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions uint64

	opts options
}

// lruNode is one entry of an LRUCache.
type lruNode[K comparable, V any] struct {
	key   K
	value V
	prev  *lruNode[K, V]
	next  *lruNode[K, V]
}

var _ types.Cache[string, int] = (*LRUCache[string, int])(nil)

// NewLRUCache creates a new LRU cache
func NewLRUCache[K comparable, V any](config Config, opts ...Option) (*LRUCache[K, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &LRUCache[K, V]{
		config: config,
		items:  make(map[K]*lruNode[K, V], config.Capacity),
		opts:   buildOptions(config.Name, opts),
	}, nil
}

// Save inserts or updates the value for k and marks it most recently used.
// An empty key or value is rejected. When the insert pushes the cache over
// capacity, the least recently used entry is evicted.
func (c *LRUCache[K, V]) Save(k K, v V) (err error) {
	if isEmpty(k) {
		return invalidArgument(errors.ErrCodeInvalidKey, c.config.Name, "save", "cache key cannot be empty")
	}
	if isEmpty(v) {
		return invalidArgument(errors.ErrCodeInvalidValue, c.config.Name, "save", "cache value cannot be empty")
	}
	if !c.config.Enabled {
		return nil
	}

	var ev events
	defer c.opts.publish(&ev)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = panicError(c.config.Name, "save", r)
			c.opts.logger.Error("Failed to store value in cache", "key", k, "error", err)
			if len(c.items) > c.config.Capacity {
				c.evictOldest(&ev)
			}
			ev.resize(len(c.items))
		}
	}()

	if n, exists := c.items[k]; exists {
		n.value = v
		c.moveToFront(n)
		c.opts.logger.Debug("Updated value in cache", "key", k)
		return nil
	}

	n := &lruNode[K, V]{key: k, value: v}
	c.items[k] = n
	c.pushFront(n)
	c.opts.logger.Debug("Stored value in cache", "key", k)

	// Each insert grows the cache by one, so one eviction restores the bound.
	if len(c.items) > c.config.Capacity {
		c.evictOldest(&ev)
	}
	ev.resize(len(c.items))

	return nil
}

// Fetch returns the value stored for k. A hit marks the entry most recently
// used; a miss leaves the order untouched. Fetch never fails: any internal
// failure is reported as a miss.
func (c *LRUCache[K, V]) Fetch(k K) (value V, ok bool) {
	var ev events
	defer c.opts.publish(&ev)

	if isEmpty(k) {
		c.opts.logger.Warn("Attempted to fetch with empty key")
		c.recordMiss(&ev)
		return value, false
	}
	if !c.config.Enabled {
		c.recordMiss(&ev)
		return value, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			var zero V
			value, ok = zero, false
			c.recordMiss(&ev)
			c.opts.logger.Error("Failed to fetch value from cache", "key", k, "error", panicError(c.config.Name, "fetch", r))
		}
	}()

	n, exists := c.items[k]
	if !exists {
		c.recordMiss(&ev)
		c.opts.logger.Debug("Cache miss", "key", k)
		return value, false
	}

	c.moveToFront(n)
	c.hits.Add(1)
	ev.hits++
	c.opts.logger.Debug("Cache hit", "key", k)
	return n.value, true
}

// Size returns the number of entries
func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries
func (c *LRUCache[K, V]) Capacity() int {
	return c.config.Capacity
}

// Name returns the configured cache name
func (c *LRUCache[K, V]) Name() string {
	return c.config.Name
}

// Keys returns the cached keys, most recently used first.
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for n := c.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns cache statistics
func (c *LRUCache[K, V]) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	stats := types.CacheStats{
		Name:      c.config.Name,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions,
		Size:      int64(len(c.items)),
		Capacity:  int64(c.config.Capacity),
		Enabled:   c.config.Enabled,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	stats.Utilization = float64(len(c.items)) / float64(c.config.Capacity)
	return stats
}

// Helper methods

// evictOldest drops the tail entry. Must hold c.mu.
func (c *LRUCache[K, V]) evictOldest(ev *events) {
	n := c.tail
	if n == nil {
		return
	}

	c.unlink(n)
	delete(c.items, n.key)
	c.evictions++
	ev.capacityEvictions++
	c.opts.logger.Debug("Evicted least recently used entry", "key", n.key)
}

func (c *LRUCache[K, V]) recordMiss(ev *events) {
	c.misses.Add(1)
	ev.misses++
}

func (c *LRUCache[K, V]) pushFront(n *lruNode[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRUCache[K, V]) unlink(n *lruNode[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *LRUCache[K, V]) moveToFront(n *lruNode[K, V]) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}
