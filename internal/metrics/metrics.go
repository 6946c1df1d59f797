// Package metrics exposes Prometheus collectors for the monitor service.
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
	monitorChecksTotal         *prometheus.CounterVec
	monitorPostsRemovedTotal   prometheus.Counter
	monitorRunDurationSeconds  prometheus.Histogram
	webhookDeliveriesTotal     *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		monitorChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postwatch_checks_total",
				Help: "Total number of post status checks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		monitorPostsRemovedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "postwatch_posts_removed_total",
				Help: "Total number of tracked posts removed after deactivation.",
			},
		)

		monitorRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "postwatch_run_duration_seconds",
				Help:    "Histogram of full scheduler sweep durations.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180},
			},
		)

		webhookDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postwatch_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts, labeled by result.",
			},
			[]string{"result"},
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

// ObserveCheck increments the status check counter for the given outcome.
func ObserveCheck(outcome string) {
	monitorChecksTotal.WithLabelValues(outcome).Inc()
}

// ObservePostRemoved increments the removed-post counter.
func ObservePostRemoved() {
	monitorPostsRemovedTotal.Inc()
}

// ObserveRunDuration records the duration of one scheduler sweep.
func ObserveRunDuration(duration time.Duration) {
	monitorRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveWebhookDelivery increments the delivery counter for the result.
func ObserveWebhookDelivery(result string) {
	webhookDeliveriesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
