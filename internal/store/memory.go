// Package store provides the upstream product store the caches sit in front of.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// MemoryStore is an in-process ProductStore. Products are returned in
// insertion order and always as copies.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]types.Product
	order    []string
	nextID   int
	logger   *slog.Logger
}

var _ types.ProductStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		products: make(map[string]types.Product),
		nextID:   1,
		logger:   logger.With("component", "store"),
	}
}

// FindByID returns the product with the given ID
func (s *MemoryStore) FindByID(ctx context.Context, id string) (types.Product, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.Product{}, false, readError("find_by_id", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return types.Product{}, false, nil
	}
	return p.Clone(), true, nil
}

// FindByType returns the products whose type matches productType, ignoring case
func (s *MemoryStore) FindByType(ctx context.Context, productType string) ([]types.Product, error) {
	return s.filter(ctx, "find_by_type", func(p types.Product) bool {
		return types.EqualFold(p.Type, productType)
	})
}

// FindAll returns every product
func (s *MemoryStore) FindAll(ctx context.Context) ([]types.Product, error) {
	return s.filter(ctx, "find_all", func(types.Product) bool { return true })
}

// Save inserts or replaces a product. A product without an ID is assigned one.
func (s *MemoryStore) Save(ctx context.Context, p types.Product) (types.Product, error) {
	if err := ctx.Err(); err != nil {
		return types.Product{}, errors.Wrap(err, errors.ErrCodeStoreWrite, "store write cancelled").
			WithComponent("store").
			WithOperation("save")
	}
	if err := ValidateProduct(p); err != nil {
		return types.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.generateID()
	}
	if p.Attributes == nil {
		p.Attributes = map[string]string{}
	}
	if _, exists := s.products[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = p.Clone()

	s.logger.Debug("Saved product", "id", p.ID, "type", p.Type)
	return p.Clone(), nil
}

// SaveAll saves each product in turn, stopping at the first failure
func (s *MemoryStore) SaveAll(ctx context.Context, products []types.Product) error {
	for i, p := range products {
		if _, err := s.Save(ctx, p); err != nil {
			if appErr, ok := errors.As(err); ok {
				appErr.WithDetail("index", i)
			}
			return err
		}
	}
	return nil
}

// Count returns the number of products
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, readError("count", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

// ValidateProduct checks the required fields of a product
func ValidateProduct(p types.Product) error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name cannot be blank")
	}
	if strings.TrimSpace(p.Type) == "" {
		problems = append(problems, "type cannot be blank")
	}
	if strings.TrimSpace(p.Category) == "" {
		problems = append(problems, "category cannot be blank")
	}
	if p.Price <= 0 {
		problems = append(problems, "price must be positive")
	}
	if len(problems) == 0 {
		return nil
	}

	return errors.NewError(errors.ErrCodeValidationFailed, "invalid product: "+strings.Join(problems, "; ")).
		WithComponent("store").
		WithOperation("save").
		WithDetail("problems", problems)
}

// Helper methods

func (s *MemoryStore) filter(ctx context.Context, operation string, match func(types.Product) bool) ([]types.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError(operation, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Product
	for _, id := range s.order {
		if p := s.products[id]; match(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// generateID returns the next free sequential ID. Must hold s.mu.
func (s *MemoryStore) generateID() string {
	for {
		id := fmt.Sprintf("P%05d", s.nextID)
		s.nextID++
		if _, taken := s.products[id]; !taken {
			return id
		}
	}
}

func readError(operation string, cause error) error {
	return errors.Wrap(cause, errors.ErrCodeStoreRead, "store read cancelled").
		WithComponent("store").
		WithOperation(operation)
}
