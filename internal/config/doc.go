/*
Package config provides configuration management for the product cache service.

Configuration is assembled from three sources, later sources overriding earlier ones:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (PRODUCTCACHE_*)                  │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Usage Examples

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("/etc/productcache/config.yaml"); err != nil {
		log.Fatal(err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

Configuration file format:

	global:
	  logging:
	    level: INFO
	    format: json
	  seed_catalog: true

	server:
	  address: "localhost:8080"
	  read_timeout: 10s
	  shutdown_timeout: 15s
	  enable_cors: true
	  enable_metrics: true

	metrics:
	  enabled: true
	  namespace: productcache

	cache:
	  simple_cache_configs:
	    id-cache:
	      name: id-cache
	      capacity: 100
	      enabled: true
	  type_cache_configs:
	    type-cache:
	      name: type-cache
	      capacity: 5
	      count: 10
	      enabled: true
	    recommendation-cache:
	      name: recommendation-cache
	      capacity: 10
	      count: 50
	      enabled: true

A cache record in the file replaces the default record of the same name as a
whole; records the file does not mention keep their defaults.

Environment variable mapping:

	PRODUCTCACHE_LOG_LEVEL="DEBUG"
	PRODUCTCACHE_LOG_FORMAT="json"
	PRODUCTCACHE_SERVER_ADDRESS="0.0.0.0:8080"
	PRODUCTCACHE_ID_CACHE_CAPACITY="500"
	PRODUCTCACHE_TYPE_CACHE_COUNT="40"
	PRODUCTCACHE_RECOMMENDATION_CACHE_ENABLED="false"

Per-cache variables are derived from the record key: upper-cased, with dashes
replaced by underscores.
*/
package config
