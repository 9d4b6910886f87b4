package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/scttfrdmn/productcache/pkg/retry"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// RetryingStore retries the transient failures of another ProductStore
type RetryingStore struct {
	inner   types.ProductStore
	retryer *retry.Retryer
}

var _ types.ProductStore = (*RetryingStore)(nil)

// NewRetryingStore wraps inner with the given retry policy. Retries are logged at warn level.
func NewRetryingStore(inner types.ProductStore, config retry.Config, logger *slog.Logger) *RetryingStore {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	retryer := retry.New(config).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Warn("Retrying store call", "attempt", attempt, "delay", delay, "error", err)
	})
	return &RetryingStore{inner: inner, retryer: retryer}
}

// FindByID implements types.ProductStore
func (s *RetryingStore) FindByID(ctx context.Context, id string) (p types.Product, found bool, err error) {
	err = s.retryer.Do(ctx, func(ctx context.Context) error {
		var callErr error
		p, found, callErr = s.inner.FindByID(ctx, id)
		return callErr
	})
	return p, found, err
}

// FindByType implements types.ProductStore
func (s *RetryingStore) FindByType(ctx context.Context, productType string) (products []types.Product, err error) {
	err = s.retryer.Do(ctx, func(ctx context.Context) error {
		var callErr error
		products, callErr = s.inner.FindByType(ctx, productType)
		return callErr
	})
	return products, err
}

// FindAll implements types.ProductStore
func (s *RetryingStore) FindAll(ctx context.Context) (products []types.Product, err error) {
	err = s.retryer.Do(ctx, func(ctx context.Context) error {
		var callErr error
		products, callErr = s.inner.FindAll(ctx)
		return callErr
	})
	return products, err
}

// Save implements types.ProductStore
func (s *RetryingStore) Save(ctx context.Context, p types.Product) (saved types.Product, err error) {
	err = s.retryer.Do(ctx, func(ctx context.Context) error {
		var callErr error
		saved, callErr = s.inner.Save(ctx, p)
		return callErr
	})
	return saved, err
}

// Count implements types.ProductStore
func (s *RetryingStore) Count(ctx context.Context) (n int, err error) {
	err = s.retryer.Do(ctx, func(ctx context.Context) error {
		var callErr error
		n, callErr = s.inner.Count(ctx)
		return callErr
	})
	return n, err
}
