package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Layer labels used by the cache metrics.
const (
	LayerMemory = "memory"
	LayerRedis  = "redis"
	LayerSQLite = "sqlite"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreboard_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreboard_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"layer"},
	)

	// CacheStores tracks successful writes by layer
	CacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreboard_cache_stores_total",
			Help: "Total number of response cache writes",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreboard_cache_errors_total",
			Help: "Total number of response cache operation errors",
		},
		[]string{"layer", "operation"}, // "lookup", "store", "delete"
	)

	// CacheBodyBytes observes the size of stored response bodies
	CacheBodyBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoreboard_cache_body_bytes",
			Help:    "Size of stored upstream response bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"layer"},
	)
)

func recordStore(layer string, body []byte) {
	CacheStores.WithLabelValues(layer).Inc()
	CacheBodyBytes.WithLabelValues(layer).Observe(float64(len(body)))
}
