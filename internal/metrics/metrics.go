// Package metrics exposes Prometheus counters for HTTP traffic and sign-in outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sign-in outcomes
const (
	AuthSuccess  = "success"
	AuthRejected = "rejected"
	AuthError    = "error"
)

// Recorder is what the HTTP layer reports to.
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordAuth(method, outcome string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	auth     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinboard_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pinboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinboard_auth_attempts_total",
			Help: "Sign-in attempts by method and outcome",
		}, []string{"method", "outcome"}),
	}

	reg.MustRegister(c.requests, c.latency, c.auth)

	return c
}

// RecordRequest records one served request.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuth records a sign-in attempt. method is "register", "password" or "google".
func (c *Collector) RecordAuth(method, outcome string) {
	c.auth.WithLabelValues(method, outcome).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
