// Command productcache serves the product catalog over HTTP from an
// in-process cache layer in front of the product store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/scttfrdmn/productcache/internal/config"
	"github.com/scttfrdmn/productcache/internal/logging"
	"github.com/scttfrdmn/productcache/internal/metrics"
	"github.com/scttfrdmn/productcache/internal/provider"
	"github.com/scttfrdmn/productcache/internal/service"
	"github.com/scttfrdmn/productcache/internal/store"
	"github.com/scttfrdmn/productcache/pkg/api"
	"github.com/scttfrdmn/productcache/pkg/health"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "productcache: %v\n", err)
		os.Exit(1)
	}
}

// run starts the service and blocks until ctx is cancelled or the server fails.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("productcache", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML configuration file")
	printConfig := flags.Bool("print-config", false, "print the effective configuration and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	if *printConfig {
		return writeConfig(cfg, stdout)
	}

	logger, closer, err := logging.Open(cfg.Global.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	collector, err := metrics.NewCollector(&cfg.Metrics)
	if err != nil {
		return err
	}

	productStore := store.NewRetryingStore(store.NewMemoryStore(logger), cfg.Store.Retry, logger)
	if cfg.Global.SeedCatalog {
		if _, err := store.Seed(ctx, productStore, logger); err != nil {
			return err
		}
	}

	caches, err := provider.New(cfg.Cache, logger, collector)
	if err != nil {
		return err
	}

	products := service.NewProductService(productStore, caches.IDCache(), caches.TypeCache(),
		service.WithLogger(logger),
		service.WithLookupRecorder(collector),
	)
	recommendations := service.NewRecommendationService(products, caches.RecommendationCache(),
		service.WithLogger(logger),
	)

	tracker := health.NewTracker(cfg.Health)
	tracker.RegisterComponent(health.ComponentStore)

	server := api.NewServer(cfg.Server, api.Dependencies{
		Products:        products,
		Recommendations: recommendations,
		Caches:          caches,
		Metrics:         collector,
		Health:          tracker,
		Logger:          logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		tracker.StartHealthChecks(gctx, func(ctx context.Context, component string) error {
			_, err := productStore.Count(ctx)
			return err
		})
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("Product cache service started", "address", cfg.Server.Address)
	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error", "error", err)
		return err
	}
	logger.Info("Product cache service stopped")
	return nil
}

// loadConfig layers the defaults, the optional file and the environment, then validates.
func loadConfig(path string) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeConfig(cfg *config.Configuration, w io.Writer) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
