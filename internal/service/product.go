// Package service implements the product lookups and recommendations served
// by the API, reading through the caches to the product store.
package service

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// LookupRecorder observes queries that reach the product store
type LookupRecorder interface {
	RecordUpstreamLookup(operation string, found bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordUpstreamLookup(string, bool) {}

// Option configures a service
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder LookupRecorder
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLookupRecorder sets the sink for store lookups
func WithLookupRecorder(r LookupRecorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", component)
	if o.recorder == nil {
		o.recorder = noopRecorder{}
	}
	return o
}

// ProductService answers product lookups from the caches, falling back to
// the store on a miss and saving what it found.
//
// The id cache holds products; the type cache holds product IDs per
// normalized type, resolved through the id cache on a hit.
type ProductService struct {
	store     types.ProductStore
	idCache   types.Cache[string, types.Product]
	typeCache types.TypeAwareCache[string, string]

	// loads collapses concurrent store lookups for the same ID
	loads singleflight.Group

	opts options
}

// NewProductService creates a product service
func NewProductService(
	store types.ProductStore,
	idCache types.Cache[string, types.Product],
	typeCache types.TypeAwareCache[string, string],
	opts ...Option,
) *ProductService {
	return &ProductService{
		store:     store,
		idCache:   idCache,
		typeCache: typeCache,
		opts:      buildOptions("product-service", opts),
	}
}

// FindByID returns the product with the given ID. A blank ID fails with
// VALIDATION_FAILED and an unknown ID with PRODUCT_NOT_FOUND.
func (s *ProductService) FindByID(ctx context.Context, id string) (types.Product, error) {
	if strings.TrimSpace(id) == "" {
		return types.Product{}, errors.NewError(errors.ErrCodeValidationFailed, "product ID cannot be blank").
			WithComponent("product-service").
			WithOperation("find_by_id")
	}

	p, found, err := s.lookup(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	if !found {
		return types.Product{}, errors.Newf(errors.ErrCodeProductNotFound, "product not found with ID: %s", id).
			WithComponent("product-service").
			WithOperation("find_by_id").
			WithDetail("id", id)
	}
	return p, nil
}

// FindByIDs resolves ids in order, skipping IDs the store no longer knows.
func (s *ProductService) FindByIDs(ctx context.Context, ids []string) ([]types.Product, error) {
	products := make([]types.Product, 0, len(ids))
	for _, id := range ids {
		p, found, err := s.lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			s.opts.logger.Warn("Cached product ID no longer in store", "id", id)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// FindByType returns the products of the given type, matched without regard to case
func (s *ProductService) FindByType(ctx context.Context, productType string) ([]types.Product, error) {
	key := types.NormalizeLabel(productType)
	if key == "" {
		return nil, errors.NewError(errors.ErrCodeValidationFailed, "product type cannot be blank").
			WithComponent("product-service").
			WithOperation("find_by_type")
	}

	if ids, ok := s.typeCache.Fetch(key); ok {
		s.opts.logger.Debug("Type cache hit", "type", key, "products", len(ids))
		// partitions list the most recent save first
		return s.FindByIDs(ctx, reversed(ids))
	}

	s.opts.logger.Debug("Type cache miss, querying store", "type", key)
	products, err := s.store.FindByType(ctx, productType)
	if err != nil {
		return nil, err
	}
	s.opts.recorder.RecordUpstreamLookup("find_by_type", len(products) > 0)

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
		s.cacheProduct(p)
	}
	if err := s.typeCache.Save(key, ids); err != nil {
		s.opts.logger.Warn("Failed to cache products for type", "type", key, "error", err)
	}

	return products, nil
}

// FindAll returns every product straight from the store
func (s *ProductService) FindAll(ctx context.Context) ([]types.Product, error) {
	s.opts.logger.Debug("Fetching all products from store")
	return s.store.FindAll(ctx)
}

// Save writes a product to the store. Cached entries are not invalidated.
func (s *ProductService) Save(ctx context.Context, p types.Product) (types.Product, error) {
	s.opts.logger.Debug("Saving product", "id", p.ID)
	return s.store.Save(ctx, p)
}

// Helper methods

// lookup reads through the id cache to the store
func (s *ProductService) lookup(ctx context.Context, id string) (types.Product, bool, error) {
	if p, ok := s.idCache.Fetch(id); ok {
		s.opts.logger.Debug("Product found in cache", "id", id)
		return p.Clone(), true, nil
	}

	s.opts.logger.Debug("Product not in cache, querying store", "id", id)
	// The flight is shared, so it must outlive the caller that started it.
	// Each caller stops waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	results := s.loads.DoChan(id, func() (interface{}, error) {
		p, found, err := s.store.FindByID(loadCtx, id)
		if err != nil {
			return nil, err
		}
		s.opts.recorder.RecordUpstreamLookup("find_by_id", found)
		if !found {
			return nil, nil
		}
		s.cacheProduct(p)
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		return types.Product{}, false, errors.Wrap(ctx.Err(), errors.ErrCodeStoreRead, "store lookup abandoned").
			WithComponent("product-service").
			WithOperation("find_by_id").
			WithDetail("id", id)
	}
	if res.Err != nil {
		return types.Product{}, false, res.Err
	}
	if res.Val == nil {
		return types.Product{}, false, nil
	}
	if res.Shared {
		s.opts.logger.Debug("Shared in-flight store lookup", "id", id)
	}
	return res.Val.(types.Product).Clone(), true, nil
}

// cacheProduct saves p in the id cache. Failures are logged and never
// fail the request.
func (s *ProductService) cacheProduct(p types.Product) {
	if err := s.idCache.Save(p.ID, p.Clone()); err != nil {
		s.opts.logger.Warn("Failed to cache product", "id", p.ID, "error", err)
	}
}
