/*
Package metrics provides Prometheus metrics for the product cache service.

	┌─────────────┐
	│  Collector  │  ← owns a private registry
	└──────┬──────┘
	       │
	   ┌───┴─────────────────────────┐
	   │                             │
	┌──▼──────────────┐    ┌─────────▼──────┐
	│ cache.Metrics   │    │  HTTP handler  │
	│ (ForCache)      │    │  /metrics      │
	└─────────────────┘    └────────────────┘

# Exported Metrics

	<ns>_cache_requests_total{cache,result}      hit | miss
	<ns>_cache_evictions_total{cache,reason}     capacity | global
	<ns>_cache_entries{cache}                    current entry count
	<ns>_http_requests_total{route,status}
	<ns>_http_request_duration_seconds{route}
	<ns>_store_lookups_total{operation,result}   found | not_found
	<ns>_errors_total{operation,code}            application error code

# Usage

	collector, err := metrics.NewCollector(&cfg.Metrics)
	if err != nil {
		return err
	}

	idCache, err := cache.NewLRUCache[string, types.Product](idCfg,
		cache.WithMetrics(collector.ForCache("id-cache")))

	mux.Handle("/metrics", collector.Handler())

A disabled collector records nothing, hands out cache.NoopMetrics and serves
404 on its handler.
*/
package metrics
