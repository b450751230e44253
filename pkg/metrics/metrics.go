// Package metrics provides the Prometheus registry and scrape handler for the
// scoreboard cache. All metrics are defined in their respective packages
// (cache, client, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the scoreboard cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry the scrape handler reads from.
var Gatherer = prometheus.DefaultGatherer

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "scoreboard_build_info",
		Help: "Build information, value is always 1",
	},
	[]string{"version", "cache_backend"},
)

// SetBuildInfo records the running version and configured cache backend.
func SetBuildInfo(version, backend string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, backend).Set(1)
}

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - scoreboard_cache_hits_total{layer} (Counter): Lookups answered by layer (memory, redis, sqlite)
//   - scoreboard_cache_misses_total{layer} (Counter): Lookups that found no entry
//   - scoreboard_cache_stores_total{layer} (Counter): Successful writes
//   - scoreboard_cache_errors_total{layer, operation} (Counter): Persistence errors
//   - scoreboard_cache_body_bytes{layer} (Histogram): Size of stored bodies
//
// Quota Metrics (pkg/ratelimit):
//   - scoreboard_upstream_minute_remaining (Gauge): Requests left in the current minute
//   - scoreboard_upstream_daily_remaining (Gauge): Requests left today
//   - scoreboard_rate_limit_blocks_total (Counter): Requests blocked on an exhausted quota
//   - scoreboard_rate_limit_throttles_total (Counter): Requests delayed on a low quota
//
// Upstream Metrics (pkg/client):
//   - scoreboard_upstream_requests_total{endpoint, status} (Counter): Requests by cache type and HTTP status
//   - scoreboard_upstream_request_duration_seconds{endpoint} (Histogram): Request duration by cache type
//   - scoreboard_upstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - scoreboard_upstream_retries_total{error_class} (Counter): Retry attempts by error class
//   - scoreboard_upstream_retry_backoff_seconds (Histogram): Backoff durations
//   - scoreboard_upstream_retry_exhausted_total (Counter): Requests that exhausted max retries
//   - scoreboard_refresh_shared_total (Counter): Refreshes answered by an in-flight request
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(scoreboard_cache_hits_total[5m])) /
//	(sum(rate(scoreboard_cache_hits_total[5m])) + sum(rate(scoreboard_cache_misses_total{layer!="memory"}[5m])))
//
//	# Quota Status
//	scoreboard_upstream_daily_remaining < 10
//
//	# Persistence Error Rate
//	sum by (layer) (rate(scoreboard_cache_errors_total[5m]))
//
//	# P95 Upstream Latency
//	histogram_quantile(0.95, rate(scoreboard_upstream_request_duration_seconds_bucket[5m]))
