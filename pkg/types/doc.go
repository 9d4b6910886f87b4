/*
Package types provides the shared data structures and contracts of productcache.

The package sits at the bottom of the dependency graph:

	┌─────────────────────────────────────────────┐
	│                HTTP API                     │
	│                (pkg/api)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│               Services                      │
	│           (internal/service)                │
	└─────────────────────────────────────────────┘
	          │                          │
	┌─────────┴──────────┐    ┌──────────┴─────────┐
	│       Caches       │    │   Upstream store   │
	│  (internal/cache)  │    │  (internal/store)  │
	└────────────────────┘    └────────────────────┘

# Contracts

Cache is the simple bounded cache: Save inserts or updates, Fetch returns a
value or a miss and never fails.

TypeAwareCache is the partitioned cache: Save adds a batch of keys under a
partition, Fetch lists the keys held for a partition.

ProductStore is the upstream store. The caches never call it; the services
query it on a miss and backfill the caches.

# Data

Product and RecommendationQuery are the catalog types. CacheStats and
PartitionedCacheStats are the statistics snapshots reported by the caches.
*/
package types
