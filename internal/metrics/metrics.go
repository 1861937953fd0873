// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	discoveryCyclesTotal        *prometheus.CounterVec
	discoveryLeadsTotal         prometheus.Counter
	discoveryVerifiedPagesTotal prometheus.Counter
	discoveryChunkFailuresTotal prometheus.Counter
	discoverySeedScore          *prometheus.GaugeVec
	discoveryCycleSeconds       *prometheus.HistogramVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		discoveryCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_cycles_total",
				Help: "Total number of orchestrator cycles, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		discoveryLeadsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_leads_total",
				Help: "Total number of candidate company leads submitted for verification.",
			},
		)

		discoveryVerifiedPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_verified_pages_total",
				Help: "Total number of newly accepted careers pages.",
			},
		)

		discoveryChunkFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_chunk_failures_total",
				Help: "Total number of extraction chunks that failed.",
			},
		)

		discoverySeedScore = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "discovery_seed_score",
				Help: "Current score of each seed URL.",
			},
			[]string{"seed"},
		)

		discoveryCycleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_cycle_duration_seconds",
				Help:    "Histogram of full cycle durations, labeled by mode.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"mode"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records a completed cycle and its duration.
func ObserveCycle(mode, outcome string, duration time.Duration) {
	discoveryCyclesTotal.WithLabelValues(mode, outcome).Inc()
	discoveryCycleSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveLeads adds to the processed-lead counter.
func ObserveLeads(n int) {
	if n > 0 {
		discoveryLeadsTotal.Add(float64(n))
	}
}

// ObserveVerifiedPage counts one newly accepted careers page.
func ObserveVerifiedPage() {
	discoveryVerifiedPagesTotal.Inc()
}

// ObserveChunkFailure counts one failed extraction chunk.
func ObserveChunkFailure() {
	discoveryChunkFailuresTotal.Inc()
}

// SetSeedScore reports the current score of a seed.
func SetSeedScore(seed string, score int) {
	discoverySeedScore.WithLabelValues(seed).Set(float64(score))
}

// DeleteSeedScore removes the gauge series for a pruned seed.
func DeleteSeedScore(seed string) {
	discoverySeedScore.DeleteLabelValues(seed)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
