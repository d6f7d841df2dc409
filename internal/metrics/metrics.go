package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// All collectors register with the default registry through promauto

var (
	// ==================== HTTP METRICS ====================

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// ==================== CACHE METRICS ====================

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05},
		},
		[]string{"operation"}, // get, set, delete
	)

	// ==================== RATE LIMITING METRICS ====================

	RateLimitedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"surface"}, // http, bot
	)

	RateLimitAllowedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_allowed_requests_total",
			Help: "Total number of requests allowed by rate limiter",
		},
		[]string{"surface"},
	)

	// ==================== SHORTENING METRICS ====================

	// ShorteningsTotal counts returned records by the provider that produced them,
	// "fallback" included
	ShorteningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortenings_total",
			Help: "Total number of shortened links by provider",
		},
		[]string{"provider"},
	)

	ProviderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_failures_total",
			Help: "Total number of failed provider attempts",
		},
		[]string{"provider"},
	)

	ProviderAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_attempt_duration_seconds",
			Help:    "Duration of provider attempts in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	ProvidersFailed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "providers_failed",
			Help: "Number of providers currently skipped after a failure",
		},
	)

	ClicksRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicks_recorded_total",
			Help: "Total number of click events recorded",
		},
	)

	// ==================== SNAPSHOT METRICS ====================

	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_total",
			Help: "Total number of snapshot operations",
		},
		[]string{"operation", "result"}, // export|import|backup, ok|error
	)

	// ==================== BOT METRICS ====================

	BotCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands handled",
		},
		[]string{"command"},
	)

	// ==================== DATABASE METRICS ====================

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of record store errors",
		},
		[]string{"operation"},
	)
)

func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordShortening counts one returned record
func RecordShortening(provider string) {
	ShorteningsTotal.WithLabelValues(provider).Inc()
}

func RecordProviderFailure(provider string) {
	ProviderFailuresTotal.WithLabelValues(provider).Inc()
}

func RecordClickRecorded() {
	ClicksRecordedTotal.Inc()
}

func RecordStoreError(operation string) {
	DatabaseErrorsTotal.WithLabelValues(operation).Inc()
}

func RecordSnapshot(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SnapshotsTotal.WithLabelValues(operation, result).Inc()
}

func RecordBotCommand(command string) {
	BotCommandsTotal.WithLabelValues(command).Inc()
}

func RecordRateLimited(surface string) {
	RateLimitedRequestsTotal.WithLabelValues(surface).Inc()
}

func RecordRateLimitAllowed(surface string) {
	RateLimitAllowedRequestsTotal.WithLabelValues(surface).Inc()
}
