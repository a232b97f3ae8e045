// Package metrics provides Prometheus metrics for the vendor dashboard API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueriesTotal counts list queries per view.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vdash",
			Name:      "queries_total",
			Help:      "Total number of list queries",
		},
		[]string{"view", "status"},
	)

	// MatchedRecords observes how many records a query matched.
	MatchedRecords = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vdash",
			Name:      "matched_records",
			Help:      "Distribution of matched record counts per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"view"},
	)

	// ExportsTotal counts rendered CSV exports.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vdash",
			Name:      "exports_total",
			Help:      "Total number of CSV exports",
		},
		[]string{"view"},
	)

	// FetchDuration measures record set fetches from the backend.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vdash",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of backend record fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"resource", "status"},
	)

	// CacheLookups counts record cache hits and misses.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vdash",
			Name:      "cache_lookups_total",
			Help:      "Record cache lookups by result",
		},
		[]string{"result"},
	)

	// HTTPRequests counts served HTTP requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vdash",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPDuration measures HTTP request latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vdash",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordQuery records a list query.
func RecordQuery(view, status string, matched int) {
	QueriesTotal.WithLabelValues(view, status).Inc()
	if status == "ok" {
		MatchedRecords.WithLabelValues(view).Observe(float64(matched))
	}
}

// RecordExport records a rendered export.
func RecordExport(view string) {
	ExportsTotal.WithLabelValues(view).Inc()
}

// RecordFetch records a backend fetch.
func RecordFetch(resource, status string, duration float64) {
	FetchDuration.WithLabelValues(resource, status).Observe(duration)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
