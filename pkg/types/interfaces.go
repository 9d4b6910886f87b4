package types

import "context"

// Cache is a bounded key/value cache. Fetch never fails; callers fall back to
// the upstream store on a miss.
type Cache[K comparable, V any] interface {
	Save(k K, v V) error
	Fetch(k K) (V, bool)
	Size() int
	Stats() CacheStats
}

// TypeAwareCache groups keys under a partition and bounds both each
// partition and the total across partitions.
type TypeAwareCache[T comparable, K comparable] interface {
	Save(partition T, items []K) error
	Fetch(partition T) ([]K, bool)
	TotalSize() int
	TypeSize(partition T) int
	Stats() PartitionedCacheStats
}

// ProductStore is the upstream store the caches sit in front of.
type ProductStore interface {
	FindByID(ctx context.Context, id string) (Product, bool, error)
	FindByType(ctx context.Context, productType string) ([]Product, error)
	FindAll(ctx context.Context) ([]Product, error)
	Save(ctx context.Context, p Product) (Product, error)
	Count(ctx context.Context) (int, error)
}
