// Package metrics provides Prometheus metrics for the order tracker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results recorded by CacheLookups.
const (
	ResultMemoryHit  = "memory_hit"
	ResultDurableHit = "durable_hit"
	ResultMiss       = "miss"
	ResultError      = "error"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// Cache metrics
	CacheLookups  *prometheus.CounterVec
	CacheWrites   prometheus.Counter
	PurgedRecords prometheus.Counter

	// Upstream API metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the metrics on reg under the given namespace.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"result"}),
		CacheWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Records written to the durable cache",
		}),
		PurgedRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_purged_total",
			Help:      "Expired records removed by purge sweeps",
		}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to upstream APIs by api and outcome",
		}, []string{"api", "outcome"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Upstream API latency in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"api"}),
		gatherer: reg,
	}
}

// NewIsolated returns metrics on a private registry.
func NewIsolated() *Metrics {
	return New("order_tracker", prometheus.NewRegistry())
}

// RecordLookup counts one cache lookup.
func (m *Metrics) RecordLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordUpstream records the outcome and latency of an upstream call.
func (m *Metrics) RecordUpstream(api string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(api, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(api).Observe(d.Seconds())
}

// Handler returns the exposition handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
