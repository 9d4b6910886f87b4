/*
Package cache provides the in-process caches that sit in front of the product store.

Callers fetch from a cache first; on a miss they query the upstream store and
save the result back. The caches never perform I/O themselves.

	┌─────────────────────────────────────────────┐
	│              Services                       │
	│     (fetch → miss → query → save)           │
	└─────────────────────────────────────────────┘
	          │                          │
	┌─────────┴──────────┐    ┌──────────┴─────────┐
	│      LRUCache      │    │  PartitionedCache  │  ← This Package
	│   key → value      │    │  partition → keys  │
	└────────────────────┘    └────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│            Upstream store                   │
	└─────────────────────────────────────────────┘

# LRUCache

A fixed-capacity key/value cache with least-recently-used eviction:

  - Save inserts or updates an entry and makes it the most recently used
  - Fetch returns the value and, on a hit, makes it the most recently used
  - A Save that pushes the cache over capacity evicts exactly one entry, the tail
  - Empty keys and values (nil or "") are rejected with a validation error
  - Fetch never fails; any internal failure is reported as a miss

# PartitionedCache

A set of bounded LRU regions keyed by partition, plus a global budget on the
number of keys held across all of them:

  - Save(partition, items) stamps each item with a strictly increasing marker
  - A partition over its own capacity evicts its own oldest key
  - After the batch, the globally oldest keys are evicted until the total fits
  - A partition whose last key is evicted is dropped
  - Fetch(partition) lists the keys without changing recency

Every entry is threaded through one global recency list shared by all
partitions, so the global eviction candidate is always the list tail.

# Configuration

	cache:
	  simple_cache_configs:
	    id-cache:
	      name: id-cache
	      capacity: 100
	      enabled: true
	  type_cache_configs:
	    type-cache:
	      name: type-cache
	      capacity: 5
	      count: 10
	      enabled: true

A cache with enabled: false accepts Save without storing anything and reports
every Fetch as a miss.

# Thread Safety

LRUCache guards every operation with one mutex, since Fetch reorders entries.
PartitionedCache uses a read-write mutex: Save takes the write lock for the
whole batch including eviction, and the read-only operations share the read
lock.
*/
package cache
