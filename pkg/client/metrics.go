package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoreboard_upstream_requests_total",
		Help: "Total football-data API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scoreboard_upstream_request_duration_seconds",
		Help:    "Football-data API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoreboard_upstream_errors_total",
		Help: "Total football-data API errors by class",
	}, []string{"class"})

	upstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoreboard_upstream_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	upstreamRetryBackoff = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scoreboard_upstream_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	upstreamRetryExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoreboard_upstream_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})

	refreshShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoreboard_refresh_shared_total",
		Help: "Refreshes answered by an in-flight fetch of the same key",
	})
)
