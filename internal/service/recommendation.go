package service

import (
	"context"
	"regexp"
	"strconv"

	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// Bounds on the age filter of a recommendation query
const (
	MinAge = 0
	MaxAge = 120
)

var ageRangePattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

// RecommendationService filters the catalog by a RecommendationQuery and
// caches the matching product IDs under the query's canonical key.
type RecommendationService struct {
	products *ProductService
	cache    types.TypeAwareCache[string, string]
	opts     options
}

// NewRecommendationService creates a recommendation service
func NewRecommendationService(products *ProductService, cache types.TypeAwareCache[string, string], opts ...Option) *RecommendationService {
	return &RecommendationService{
		products: products,
		cache:    cache,
		opts:     buildOptions("recommendation-service", opts),
	}
}

// Recommend returns the products matching every filter set on q, in catalog order
func (s *RecommendationService) Recommend(ctx context.Context, q types.RecommendationQuery) ([]types.Product, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	key := q.CacheKey()
	if ids, ok := s.cache.Fetch(key); ok {
		s.opts.logger.Debug("Recommendation cache hit", "key", key, "products", len(ids))
		return s.products.FindByIDs(ctx, reversed(ids))
	}

	s.opts.logger.Debug("Recommendation cache miss", "key", key)
	all, err := s.products.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var matches []types.Product
	for _, p := range all {
		if s.matches(p, q) {
			matches = append(matches, p)
		}
	}

	ids := make([]string, len(matches))
	for i, p := range matches {
		ids[i] = p.ID
	}
	if err := s.cache.Save(key, ids); err != nil {
		s.opts.logger.Warn("Failed to cache recommendations", "key", key, "error", err)
	}

	return matches, nil
}

// ValidateQuery rejects contradictory or out-of-range filters with INVALID_QUERY
func ValidateQuery(q types.RecommendationQuery) error {
	switch {
	case q.MinPrice != nil && *q.MinPrice <= 0:
		return invalidQuery("minimum price must be positive")
	case q.MaxPrice != nil && *q.MaxPrice <= 0:
		return invalidQuery("maximum price must be positive")
	case q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice:
		return invalidQuery("minimum price cannot be greater than maximum price")
	case q.Age != nil && (*q.Age < MinAge || *q.Age > MaxAge):
		return invalidQuery("age must be between 0 and 120")
	}
	return nil
}

// AgeRange is an inclusive age interval parsed from "min-max"
type AgeRange struct {
	Min int
	Max int
}

// ParseAgeRange parses a "min-max" age group. Anything else, including
// min > max, is reported as not ok.
func ParseAgeRange(s string) (AgeRange, bool) {
	m := ageRangePattern.FindStringSubmatch(s)
	if m == nil {
		return AgeRange{}, false
	}
	lo, err := strconv.Atoi(m[1])
	if err != nil {
		return AgeRange{}, false
	}
	hi, err := strconv.Atoi(m[2])
	if err != nil || lo > hi {
		return AgeRange{}, false
	}
	return AgeRange{Min: lo, Max: hi}, true
}

// Contains reports whether age lies within the range
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// Helper methods

func (s *RecommendationService) matches(p types.Product, q types.RecommendationQuery) bool {
	if q.Type != nil && !types.EqualFold(*q.Type, p.Type) {
		return false
	}
	if q.Category != nil && !types.EqualFold(*q.Category, p.Category) {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.Age == nil || p.RecommendedAgeGroup == "" {
		return true
	}

	r, ok := ParseAgeRange(p.RecommendedAgeGroup)
	if !ok {
		s.opts.logger.Debug("Unrecognized age group", "id", p.ID, "age_group", p.RecommendedAgeGroup)
		return false
	}
	return r.Contains(*q.Age)
}

func invalidQuery(message string) error {
	return errors.NewError(errors.ErrCodeInvalidQuery, message).
		WithComponent("recommendation-service").
		WithOperation("recommend")
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
