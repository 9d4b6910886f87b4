package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scttfrdmn/productcache/internal/cache"
	"github.com/scttfrdmn/productcache/internal/config"
	"github.com/scttfrdmn/productcache/pkg/errors"
)

// Collector owns a private Prometheus registry with the cache and HTTP metrics
type Collector struct {
	mu       sync.RWMutex
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Prometheus metrics
	cacheRequests   *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	cacheEntries    *prometheus.GaugeVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	errorCounter    *prometheus.CounterVec
	upstreamLookups *prometheus.CounterVec

	// Internal tracking
	routes    map[string]*RouteMetrics
	lastReset time.Time
}

// RouteMetrics tracks request totals for one HTTP route
type RouteMetrics struct {
	Count         int64         `json:"count"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastRequest   time.Time     `json:"last_request"`
}

// NewCollector creates a new metrics collector
func NewCollector(cfg *config.MetricsConfig) (*Collector, error) {
	if cfg == nil {
		cfg = &config.MetricsConfig{
			Enabled:   true,
			Namespace: "productcache",
		}
	}

	if !cfg.Enabled {
		return &Collector{config: cfg}, nil
	}

	collector := &Collector{
		config:    cfg,
		registry:  prometheus.NewRegistry(),
		routes:    make(map[string]*RouteMetrics),
		lastReset: time.Now(),
	}

	collector.initMetrics()
	if err := collector.registerMetrics(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to register metrics").
			WithComponent("metrics")
	}

	return collector, nil
}

// Enabled reports whether metrics are being recorded
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ForCache returns a cache.Metrics that records events under the given cache name
func (c *Collector) ForCache(name string) cache.Metrics {
	if !c.config.Enabled {
		return cache.NoopMetrics{}
	}
	return &cacheMetrics{
		hits:     c.cacheRequests.WithLabelValues(name, "hit"),
		misses:   c.cacheRequests.WithLabelValues(name, "miss"),
		capacity: c.cacheEvictions.WithLabelValues(name, string(cache.EvictCapacity)),
		global:   c.cacheEvictions.WithLabelValues(name, string(cache.EvictGlobal)),
		entries:  c.cacheEntries.WithLabelValues(name),
	}
}

// RecordHTTPRequest records a served request
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	rm, exists := c.routes[route]
	if !exists {
		rm = &RouteMetrics{}
		c.routes[route] = rm
	}
	rm.Count++
	if status >= 500 {
		rm.Errors++
	}
	rm.TotalDuration += duration
	rm.AvgDuration = time.Duration(int64(rm.TotalDuration) / rm.Count)
	rm.LastRequest = time.Now()
}

// RecordUpstreamLookup records a query against the product store
func (c *Collector) RecordUpstreamLookup(operation string, found bool) {
	if !c.config.Enabled {
		return
	}
	result := "found"
	if !found {
		result = "not_found"
	}
	c.upstreamLookups.WithLabelValues(operation, result).Inc()
}

// RecordError records an error under its application error code
func (c *Collector) RecordError(operation string, err error) {
	if !c.config.Enabled || err == nil {
		return
	}
	c.errorCounter.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()
}

// GetRouteMetrics returns a copy of the per-route totals
func (c *Collector) GetRouteMetrics() map[string]RouteMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]RouteMetrics, len(c.routes))
	for k, v := range c.routes {
		out[k] = *v
	}
	return out
}

// Uptime returns the time since the collector was created or last reset
func (c *Collector) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastReset.IsZero() {
		return 0
	}
	return time.Since(c.lastReset)
}

// ResetMetrics resets the per-route totals. Prometheus counters are never reset.
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.routes = make(map[string]*RouteMetrics)
	c.lastReset = time.Now()
}

// Helper methods

func (c *Collector) initMetrics() {
	ns := c.config.Namespace
	labels := prometheus.Labels(c.config.CustomLabels)

	// Cache metrics
	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_requests_total",
			Help:        "Total number of cache fetches by result",
			ConstLabels: labels,
		},
		[]string{"cache", "result"},
	)

	c.cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "cache_evictions_total",
			Help:        "Total number of cache evictions by reason",
			ConstLabels: labels,
		},
		[]string{"cache", "reason"},
	)

	c.cacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "cache_entries",
			Help:        "Current number of entries held by a cache",
			ConstLabels: labels,
		},
		[]string{"cache"},
	)

	// HTTP metrics
	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by route and status",
			ConstLabels: labels,
		},
		[]string{"route", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.0001, 2, 16), // 100µs to ~3s
			ConstLabels: labels,
		},
		[]string{"route"},
	)

	// Store metrics
	c.upstreamLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "store_lookups_total",
			Help:        "Total number of product store lookups",
			ConstLabels: labels,
		},
		[]string{"operation", "result"},
	)

	// Error metrics
	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "errors_total",
			Help:        "Total number of errors by operation and code",
			ConstLabels: labels,
		},
		[]string{"operation", "code"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.cacheRequests,
		c.cacheEvictions,
		c.cacheEntries,
		c.httpRequests,
		c.httpDuration,
		c.upstreamLookups,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// cacheMetrics binds the label values of one cache up front
type cacheMetrics struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	capacity prometheus.Counter
	global   prometheus.Counter
	entries  prometheus.Gauge
}

func (m *cacheMetrics) Hit()  { m.hits.Inc() }
func (m *cacheMetrics) Miss() { m.misses.Inc() }

func (m *cacheMetrics) Evicted(reason cache.EvictionReason) {
	if reason == cache.EvictGlobal {
		m.global.Inc()
		return
	}
	m.capacity.Inc()
}

func (m *cacheMetrics) SizeChanged(size int) { m.entries.Set(float64(size)) }
