// Package provider builds the named caches of the product service from
// configuration and owns them for the lifetime of the process.
package provider

import (
	"log/slog"

	"github.com/scttfrdmn/productcache/internal/cache"
	"github.com/scttfrdmn/productcache/internal/config"
	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// MetricsFactory hands out a metrics sink per cache name
type MetricsFactory interface {
	ForCache(name string) cache.Metrics
}

// NewCache builds the LRU cache configured under name in simple_cache_configs
func NewCache[K comparable, V any](name string, settings config.CacheSettings, opts ...cache.Option) (*cache.LRUCache[K, V], error) {
	cfg, ok := settings.SimpleCacheConfigs[name]
	if !ok {
		return nil, missingConfig("simple_cache_configs", name)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cache.NewLRUCache[K, V](cfg, opts...)
}

// NewTypeCache builds the partitioned cache configured under name in type_cache_configs
func NewTypeCache[T comparable, K comparable](name string, settings config.CacheSettings, opts ...cache.Option) (*cache.PartitionedCache[T, K], error) {
	cfg, ok := settings.TypeCacheConfigs[name]
	if !ok {
		return nil, missingConfig("type_cache_configs", name)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cache.NewPartitionedCache[T, K](cfg, opts...)
}

// Provider owns the three caches used by the product service
type Provider struct {
	idCache             *cache.LRUCache[string, types.Product]
	typeCache           *cache.PartitionedCache[string, string]
	recommendationCache *cache.PartitionedCache[string, string]
}

// Stats is a point-in-time view of every cache owned by a Provider
type Stats struct {
	IDCache             types.CacheStats            `json:"idCache"`
	TypeCache           types.PartitionedCacheStats `json:"typeCache"`
	RecommendationCache types.PartitionedCacheStats `json:"recommendationCache"`
}

// New builds the id, type and recommendation caches. logger and factory may be nil.
func New(settings config.CacheSettings, logger *slog.Logger, factory MetricsFactory) (*Provider, error) {
	optsFor := func(name string) []cache.Option {
		var opts []cache.Option
		if logger != nil {
			opts = append(opts, cache.WithLogger(logger))
		}
		if factory != nil {
			opts = append(opts, cache.WithMetrics(factory.ForCache(name)))
		}
		return opts
	}

	idCache, err := NewCache[string, types.Product](config.IDCacheName, settings, optsFor(config.IDCacheName)...)
	if err != nil {
		return nil, err
	}
	typeCache, err := NewTypeCache[string, string](config.TypeCacheName, settings, optsFor(config.TypeCacheName)...)
	if err != nil {
		return nil, err
	}
	recommendationCache, err := NewTypeCache[string, string](config.RecommendationCacheName, settings, optsFor(config.RecommendationCacheName)...)
	if err != nil {
		return nil, err
	}

	return &Provider{
		idCache:             idCache,
		typeCache:           typeCache,
		recommendationCache: recommendationCache,
	}, nil
}

// IDCache maps product ID to product
func (p *Provider) IDCache() *cache.LRUCache[string, types.Product] {
	return p.idCache
}

// TypeCache maps an upper-cased product type to product IDs
func (p *Provider) TypeCache() *cache.PartitionedCache[string, string] {
	return p.typeCache
}

// RecommendationCache maps a recommendation query key to product IDs
func (p *Provider) RecommendationCache() *cache.PartitionedCache[string, string] {
	return p.recommendationCache
}

// Stats returns statistics for all caches
func (p *Provider) Stats() Stats {
	return Stats{
		IDCache:             p.idCache.Stats(),
		TypeCache:           p.typeCache.Stats(),
		RecommendationCache: p.recommendationCache.Stats(),
	}
}

func missingConfig(section, name string) error {
	return errors.Newf(errors.ErrCodeMissingConfig, "no cache configured under %s.%s", section, name).
		WithComponent("provider").
		WithContext("cache", name)
}
