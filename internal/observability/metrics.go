package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	clipDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_duration_seconds",
			Help:    "Duration of overlay computations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"dataset"},
	)

	datasetLoadDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_load_duration_seconds",
			Help:    "Duration of full dataset loads in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"dataset"},
	)

	resultCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_cache_total",
			Help: "Serialized result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveClip(dataset string, durationSeconds float64) {
	clipDurationSeconds.WithLabelValues(dataset).Observe(durationSeconds)
}

func ObserveDatasetLoad(dataset string, durationSeconds float64) {
	datasetLoadDurationSeconds.WithLabelValues(dataset).Observe(durationSeconds)
}

func ResultCache(outcome string) {
	resultCacheTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry for the optional metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
