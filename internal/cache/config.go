package cache

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/scttfrdmn/productcache/pkg/errors"
)

// Config governs an LRUCache.
type Config struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Enabled  bool   `yaml:"enabled"`
}

// TypeConfig governs a PartitionedCache. Capacity bounds each partition,
// Count bounds the total across all partitions.
type TypeConfig struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Count    int    `yaml:"count"`
	Enabled  bool   `yaml:"enabled"`
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return errors.Newf(errors.ErrCodeConfigValidation, "capacity must be at least 1, got %d", c.Capacity).
			WithComponent(c.Name)
	}
	return nil
}

// Validate checks the configuration
func (c TypeConfig) Validate() error {
	if c.Capacity < 1 {
		return errors.Newf(errors.ErrCodeConfigValidation, "capacity must be at least 1, got %d", c.Capacity).
			WithComponent(c.Name)
	}
	if c.Count < 1 {
		return errors.Newf(errors.ErrCodeConfigValidation, "count must be at least 1, got %d", c.Count).
			WithComponent(c.Name)
	}
	return nil
}

// EvictionReason says why an entry left a cache.
type EvictionReason string

const (
	// EvictCapacity is an eviction forced by the owning cache or partition being full.
	EvictCapacity EvictionReason = "capacity"

	// EvictGlobal is an eviction forced by the global item budget of a partitioned cache.
	EvictGlobal EvictionReason = "global"
)

// Metrics receives cache events. Implementations must be safe for concurrent use.
type Metrics interface {
	Hit()
	Miss()
	Evicted(reason EvictionReason)
	SizeChanged(size int)
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                   {}
func (NoopMetrics) Miss()                  {}
func (NoopMetrics) Evicted(EvictionReason) {}
func (NoopMetrics) SizeChanged(int)        {}

type options struct {
	logger  *slog.Logger
	metrics Metrics
}

// Option configures a cache at construction.
type Option func(*options)

// WithLogger sets the logger used by the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the sink for cache events.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// events collects what one operation reports to the metrics sink. The sink
// is called only after the cache is consistent again and outside its lock.
type events struct {
	hits              int
	misses            int
	capacityEvictions int
	globalEvictions   int
	size              int
	sizeChanged       bool
}

func (e *events) resize(n int) {
	e.size, e.sizeChanged = n, true
}

// publish hands ev to the sink. A failing sink is logged and never reaches the caller.
func (o options) publish(ev *events) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Cache metrics sink failed", "error", r)
		}
	}()

	for i := 0; i < ev.hits; i++ {
		o.metrics.Hit()
	}
	for i := 0; i < ev.misses; i++ {
		o.metrics.Miss()
	}
	for i := 0; i < ev.capacityEvictions; i++ {
		o.metrics.Evicted(EvictCapacity)
	}
	for i := 0; i < ev.globalEvictions; i++ {
		o.metrics.Evicted(EvictGlobal)
	}
	if ev.sizeChanged {
		o.metrics.SizeChanged(ev.size)
	}
}

func buildOptions(name string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "cache", "cache", name)
	if o.metrics == nil {
		o.metrics = NoopMetrics{}
	}
	return o
}

// isEmpty reports whether v is nil or an empty string.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func invalidArgument(code errors.ErrorCode, name, operation, message string) *errors.AppError {
	return errors.NewError(code, message).WithComponent(name).WithOperation(operation)
}

func panicError(name, operation string, r any) error {
	return errors.NewError(errors.ErrCodeInternalError, "unexpected failure in cache "+operation).
		WithComponent(name).
		WithOperation(operation).
		WithCause(fmt.Errorf("%w: %v", errors.NewError(errors.ErrCodePanicRecovered, "panic"), r)).
		WithStack()
}
