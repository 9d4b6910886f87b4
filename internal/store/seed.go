package store

import (
	"context"
	_ "embed"
	"log/slog"

	"gopkg.in/yaml.v2"

	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

//go:embed seed.yaml
var seedCatalog []byte

type catalogFile struct {
	Products []types.Product `yaml:"products"`
}

// ParseCatalog decodes a YAML product catalog
func ParseCatalog(data []byte) ([]types.Product, error) {
	var catalog catalogFile
	if err := yaml.UnmarshalStrict(data, &catalog); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "failed to parse product catalog").
			WithComponent("store")
	}
	return catalog.Products, nil
}

// SampleProducts returns the built-in sample catalog
func SampleProducts() ([]types.Product, error) {
	return ParseCatalog(seedCatalog)
}

// Seed loads the sample catalog into s when s is empty and returns the number
// of products loaded.
func Seed(ctx context.Context, s types.ProductStore, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "seed")

	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("Store already contains products, skipping sample data", "count", count)
		return 0, nil
	}

	products, err := SampleProducts()
	if err != nil {
		return 0, err
	}

	logger.Info("Store is empty, loading sample data", "products", len(products))
	for _, p := range products {
		if _, err := s.Save(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}
