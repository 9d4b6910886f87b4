package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/scttfrdmn/productcache/internal/cache"
	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/health"
	"github.com/scttfrdmn/productcache/pkg/retry"
)

// Well-known cache names used by the product service
const (
	IDCacheName             = "id-cache"
	TypeCacheName           = "type-cache"
	RecommendationCacheName = "recommendation-cache"
)

const envPrefix = "PRODUCTCACHE_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig  `yaml:"global"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	Cache   CacheSettings `yaml:"cache"`
	Store   StoreConfig   `yaml:"store"`
	Health  health.Config `yaml:"health"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	Logging     LoggingConfig `yaml:"logging"`
	SeedCatalog bool          `yaml:"seed_catalog"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	File      string `yaml:"file"`
	AddSource bool   `yaml:"add_source"`

	// Rotation of File; ignored when logging to stderr
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors"`

	// EnableMetrics exposes the Prometheus endpoint on /metrics
	EnableMetrics bool `yaml:"enable_metrics"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Namespace    string            `yaml:"namespace"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// StoreConfig configures access to the product store
type StoreConfig struct {
	Retry retry.Config `yaml:"retry"`
}

// CacheSettings holds the named cache records. Records are looked up by the
// map key; the record's own name is used for logs and metrics.
type CacheSettings struct {
	SimpleCacheConfigs map[string]cache.Config     `yaml:"simple_cache_configs"`
	TypeCacheConfigs   map[string]cache.TypeConfig `yaml:"type_cache_configs"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			Logging: LoggingConfig{
				Level:  "INFO",
				Format: "text",
			},
			SeedCatalog: true,
		},
		Server: ServerConfig{
			Address:         "localhost:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			EnableCORS:      true,
			EnableMetrics:   true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "productcache",
		},
		Cache: CacheSettings{
			SimpleCacheConfigs: map[string]cache.Config{
				IDCacheName: {Name: IDCacheName, Capacity: 100, Enabled: true},
			},
			TypeCacheConfigs: map[string]cache.TypeConfig{
				TypeCacheName:           {Name: TypeCacheName, Capacity: 5, Count: 10, Enabled: true},
				RecommendationCacheName: {Name: RecommendationCacheName, Capacity: 10, Count: 50, Enabled: true},
			},
		},
		Store: StoreConfig{
			Retry: retry.DefaultConfig(),
		},
		Health: health.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to read config file").
			WithComponent("config").
			WithContext("file", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidConfig, "failed to parse config file").
			WithComponent("config").
			WithContext("file", filename)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		c.Global.Logging.Level = strings.ToUpper(val)
	}
	if val := os.Getenv(envPrefix + "LOG_FORMAT"); val != "" {
		c.Global.Logging.Format = strings.ToLower(val)
	}
	if val := os.Getenv(envPrefix + "LOG_FILE"); val != "" {
		c.Global.Logging.File = val
	}
	if val := os.Getenv(envPrefix + "SEED_CATALOG"); val != "" {
		c.Global.SeedCatalog = strings.ToLower(val) == "true"
	}

	// Server settings
	if val := os.Getenv(envPrefix + "SERVER_ADDRESS"); val != "" {
		c.Server.Address = val
	}
	if val := os.Getenv(envPrefix + "SHUTDOWN_TIMEOUT"); val != "" {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return envError(envPrefix+"SHUTDOWN_TIMEOUT", err)
		}
		c.Server.ShutdownTimeout = duration
	}

	// Metrics settings
	if val := os.Getenv(envPrefix + "METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}

	// Cache settings: PRODUCTCACHE_<NAME>_CAPACITY, _COUNT and _ENABLED,
	// where NAME is the record key upper-cased with dashes as underscores.
	for name, cfg := range c.Cache.SimpleCacheConfigs {
		prefix := envPrefix + envName(name)
		if err := envInt(prefix+"_CAPACITY", &cfg.Capacity); err != nil {
			return err
		}
		envBool(prefix+"_ENABLED", &cfg.Enabled)
		c.Cache.SimpleCacheConfigs[name] = cfg
	}
	for name, cfg := range c.Cache.TypeCacheConfigs {
		prefix := envPrefix + envName(name)
		if err := envInt(prefix+"_CAPACITY", &cfg.Capacity); err != nil {
			return err
		}
		if err := envInt(prefix+"_COUNT", &cfg.Count); err != nil {
			return err
		}
		envBool(prefix+"_ENABLED", &cfg.Enabled)
		c.Cache.TypeCacheConfigs[name] = cfg
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if !contains(validLogLevels, c.Global.Logging.Level) {
		return validationError("invalid log level: %s (must be one of: %s)",
			c.Global.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, c.Global.Logging.Format) {
		return validationError("invalid log format: %s (must be one of: %s)",
			c.Global.Logging.Format, strings.Join(validFormats, ", "))
	}

	if c.Server.Address == "" {
		return validationError("server address cannot be empty")
	}

	if c.Health.CheckInterval <= 0 {
		return validationError("health check interval must be positive, got %s", c.Health.CheckInterval)
	}
	if c.Health.ErrorThreshold < 1 || c.Health.UnavailableThreshold < c.Health.ErrorThreshold {
		return validationError("health thresholds must satisfy 1 <= error_threshold <= unavailable_threshold")
	}

	for _, name := range sortedKeys(c.Cache.SimpleCacheConfigs) {
		if err := c.Cache.SimpleCacheConfigs[name].Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid simple cache config").
				WithComponent("config").
				WithContext("cache", name)
		}
	}
	for _, name := range sortedKeys(c.Cache.TypeCacheConfigs) {
		if err := c.Cache.TypeCacheConfigs[name].Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid type cache config").
				WithComponent("config").
				WithContext("cache", name)
		}
	}

	return nil
}

// Helper functions

func validationError(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeConfigValidation, format, args...).WithComponent("config")
}

func envError(key string, err error) error {
	return errors.Wrap(err, errors.ErrCodeInvalidConfig, "invalid environment variable").
		WithComponent("config").
		WithContext("variable", key)
}

func envName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return envError(key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		*dst = strings.ToLower(val) == "true"
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
