package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// PartitionedCache keeps one bounded LRU region per partition and a global
// budget on the number of keys held across all partitions.
//
// Every entry sits on two intrusive lists at once: its partition's list, used
// for local eviction, and one global recency list shared by all partitions.
// Saves stamp entries with a strictly increasing marker and move them to the
// head of both lists, so the global tail always holds the smallest marker and
// global eviction is O(1) per entry.
//
// Save holds the write lock for the whole batch including eviction. Fetch,
// TotalSize and TypeSize only read, so they share the read lock and never see
// a partially applied Save.
type PartitionedCache[T comparable, K comparable] struct {
	mu         sync.RWMutex
	config     TypeConfig
	partitions map[T]*partition[T, K]
	head       *recencyNode[T, K]
	tail       *recencyNode[T, K]
	totalItems int
	clock      uint64

	// Statistics
	hits            atomic.Uint64
	misses          atomic.Uint64
	localEvictions  uint64
	globalEvictions uint64

	opts options
}

type partition[T comparable, K comparable] struct {
	key   T
	items map[K]*recencyNode[T, K]
	head  *recencyNode[T, K]
	tail  *recencyNode[T, K]
}

type recencyNode[T comparable, K comparable] struct {
	owner  *partition[T, K]
	key    K
	marker uint64

	// global list
	prev *recencyNode[T, K]
	next *recencyNode[T, K]

	// partition list
	localPrev *recencyNode[T, K]
	localNext *recencyNode[T, K]
}

var _ types.TypeAwareCache[string, string] = (*PartitionedCache[string, string])(nil)

// NewPartitionedCache creates a new partitioned cache
func NewPartitionedCache[T comparable, K comparable](config TypeConfig, opts ...Option) (*PartitionedCache[T, K], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &PartitionedCache[T, K]{
		config:     config,
		partitions: make(map[T]*partition[T, K]),
		opts:       buildOptions(config.Name, opts),
	}, nil
}

// Save adds items to the region of partition, creating it if needed. A key
// already held by the partition is refreshed rather than counted again. Once
// all items are applied, the globally oldest entries are evicted until the
// total fits the global budget; those may belong to any partition, including
// entries saved earlier in the same call.
//
// The whole batch is validated first, so a rejected call changes nothing.
func (c *PartitionedCache[T, K]) Save(p T, items []K) (err error) {
	if isEmpty(p) {
		return invalidArgument(errors.ErrCodeInvalidKey, c.config.Name, "save", "partition key cannot be empty")
	}
	for i, item := range items {
		if isEmpty(item) {
			return invalidArgument(errors.ErrCodeInvalidValue, c.config.Name, "save", "cache item cannot be empty").
				WithDetail("index", i)
		}
	}
	if !c.config.Enabled || len(items) == 0 {
		return nil
	}

	var ev events
	defer c.opts.publish(&ev)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = panicError(c.config.Name, "save", r)
			c.opts.logger.Error("Failed to store items in cache", "partition", p, "error", err)
			// items applied before the failure stay, but the budget must hold
			c.evictGlobally(&ev)
			ev.resize(c.totalItems)
		}
	}()

	for _, item := range items {
		c.touch(p, item, &ev)
	}
	c.evictGlobally(&ev)
	ev.resize(c.totalItems)

	c.opts.logger.Debug("Stored items in cache", "partition", p, "items", len(items), "total", c.totalItems)
	return nil
}

// Fetch returns the keys held for partition p, most recently saved first.
// It reports false when the partition is unknown, including when every entry
// it held has been evicted. Fetch does not change recency.
func (c *PartitionedCache[T, K]) Fetch(p T) (keys []K, ok bool) {
	var ev events
	defer c.opts.publish(&ev)

	if !c.config.Enabled {
		c.recordMiss(&ev)
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	defer func() {
		if r := recover(); r != nil {
			keys, ok = nil, false
			c.recordMiss(&ev)
			c.opts.logger.Error("Failed to fetch partition from cache", "partition", p, "error", panicError(c.config.Name, "fetch", r))
		}
	}()

	part, exists := c.partitions[p]
	if !exists {
		c.recordMiss(&ev)
		c.opts.logger.Debug("Cache miss", "partition", p)
		return nil, false
	}

	keys = make([]K, 0, len(part.items))
	for n := part.head; n != nil; n = n.localNext {
		keys = append(keys, n.key)
	}

	c.hits.Add(1)
	ev.hits++
	c.opts.logger.Debug("Cache hit", "partition", p, "items", len(keys))
	return keys, true
}

// TotalSize returns the number of keys held across all partitions
func (c *PartitionedCache[T, K]) TotalSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalItems
}

// TypeSize returns the number of keys held for partition p, or 0 if unknown
func (c *PartitionedCache[T, K]) TypeSize(p T) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if part, exists := c.partitions[p]; exists {
		return len(part.items)
	}
	return 0
}

// Partitions returns the known partitions in no particular order
func (c *PartitionedCache[T, K]) Partitions() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.partitions))
	for p := range c.partitions {
		out = append(out, p)
	}
	return out
}

// Name returns the configured cache name
func (c *PartitionedCache[T, K]) Name() string {
	return c.config.Name
}

// Stats returns cache statistics
func (c *PartitionedCache[T, K]) Stats() types.PartitionedCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	stats := types.PartitionedCacheStats{
		Name:              c.config.Name,
		Hits:              hits,
		Misses:            misses,
		LocalEvictions:    c.localEvictions,
		GlobalEvictions:   c.globalEvictions,
		TotalItems:        int64(c.totalItems),
		GlobalCapacity:    int64(c.config.Count),
		PartitionCapacity: int64(c.config.Capacity),
		Partitions:        len(c.partitions),
		Enabled:           c.config.Enabled,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	stats.Utilization = float64(c.totalItems) / float64(c.config.Count)
	return stats
}

// String renders the partitions and their keys for debugging
func (c *PartitionedCache[T, K]) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lines := make([]string, 0, len(c.partitions))
	for p, part := range c.partitions {
		keys := make([]string, 0, len(part.items))
		for n := part.head; n != nil; n = n.localNext {
			keys = append(keys, fmt.Sprint(n.key))
		}
		lines = append(lines, fmt.Sprintf("  %v -> [%s]\n", p, strings.Join(keys, ", ")))
	}
	sort.Strings(lines)

	var sb strings.Builder
	sb.WriteString(c.config.Name + ":\n")
	for _, line := range lines {
		sb.WriteString(line)
	}
	sb.WriteString(fmt.Sprintf("Total: %d/%d", c.totalItems, c.config.Count))
	return sb.String()
}

// Helper methods

// touch inserts or refreshes key in partition p. A new partition is only
// registered once its first entry is in place. Must hold c.mu.
func (c *PartitionedCache[T, K]) touch(p T, key K, ev *events) {
	c.clock++

	part, exists := c.partitions[p]
	if exists {
		if n, held := part.items[key]; held {
			n.marker = c.clock
			c.unlinkGlobal(n)
			c.pushGlobal(n)
			part.unlink(n)
			part.pushFront(n)
			return
		}
	} else {
		part = &partition[T, K]{
			key:   p,
			items: make(map[K]*recencyNode[T, K]),
		}
	}

	n := &recencyNode[T, K]{owner: part, key: key, marker: c.clock}
	part.items[key] = n
	if !exists {
		c.partitions[p] = part
	}
	part.pushFront(n)
	c.pushGlobal(n)
	c.totalItems++

	if len(part.items) > c.config.Capacity {
		c.remove(part.tail)
		c.localEvictions++
		ev.capacityEvictions++
	}
}

// evictGlobally drops the globally oldest entries until the budget holds. Must hold c.mu.
func (c *PartitionedCache[T, K]) evictGlobally(ev *events) {
	for c.totalItems > c.config.Count && c.tail != nil {
		oldest := c.tail
		c.opts.logger.Debug("Evicting globally oldest entry", "partition", oldest.owner.key, "key", oldest.key, "marker", oldest.marker)
		c.remove(oldest)
		c.globalEvictions++
		ev.globalEvictions++
	}
}

// remove detaches n from both lists and drops its partition once empty. Must hold c.mu.
func (c *PartitionedCache[T, K]) remove(n *recencyNode[T, K]) {
	part := n.owner
	c.unlinkGlobal(n)
	part.unlink(n)
	delete(part.items, n.key)
	c.totalItems--

	if len(part.items) == 0 {
		delete(c.partitions, part.key)
	}
}

func (c *PartitionedCache[T, K]) recordMiss(ev *events) {
	c.misses.Add(1)
	ev.misses++
}

func (c *PartitionedCache[T, K]) pushGlobal(n *recencyNode[T, K]) {
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

func (c *PartitionedCache[T, K]) unlinkGlobal(n *recencyNode[T, K]) {
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

func (p *partition[T, K]) pushFront(n *recencyNode[T, K]) {
	n.localPrev = nil
	n.localNext = p.head
	if p.head != nil {
		p.head.localPrev = n
	}
	p.head = n
	if p.tail == nil {
		p.tail = n
	}
}

func (p *partition[T, K]) unlink(n *recencyNode[T, K]) {
	if n.localPrev != nil {
		n.localPrev.localNext = n.localNext
	} else {
		p.head = n.localNext
	}
	if n.localNext != nil {
		n.localNext.localPrev = n.localPrev
	} else {
		p.tail = n.localPrev
	}
	n.localPrev, n.localNext = nil, nil
}
