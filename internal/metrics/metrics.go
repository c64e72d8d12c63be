// Package metrics provides Prometheus instrumentation for the chat server.
// It exposes a participants gauge, counters for message and eviction throughput,
// and histograms for sweep latency. Every method is safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presencechat"

// Metrics holds the collectors registered for one server instance
type Metrics struct {
	registry *prometheus.Registry

	participants  prometheus.Gauge
	messages      *prometheus.CounterVec
	evictions     prometheus.Counter
	sweepFailures prometheus.Counter
	sweepDuration prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New creates and registers the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Number of active participants after the last presence sweep",
		}),

		// kind = "chat", "private", "status"
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of messages appended to the ledger",
		}, []string{"kind"}),

		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of participants evicted for inactivity",
		}),

		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Total number of presence sweep cycles that failed",
		}),

		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Presence sweep cycle latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		}, []string{"method", "route", "status"}),

		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.participants,
		m.messages,
		m.evictions,
		m.sweepFailures,
		m.sweepDuration,
		m.httpRequests,
		m.httpDurations,
	)
	return m
}

// Registry exposes the underlying registry (for tests)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MessageAppended counts one ledger append
func (m *Metrics) MessageAppended(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

// SweepCompleted records a finished sweep cycle
func (m *Metrics) SweepCompleted(evicted int, took time.Duration) {
	if m == nil {
		return
	}
	m.evictions.Add(float64(evicted))
	m.sweepDuration.Observe(took.Seconds())
}

// ParticipantsActive sets the participants gauge
func (m *Metrics) ParticipantsActive(n int) {
	if m == nil {
		return
	}
	m.participants.Set(float64(n))
}

// SweepFailed counts a failed sweep cycle
func (m *Metrics) SweepFailed() {
	if m == nil {
		return
	}
	m.sweepFailures.Inc()
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(method, route).Observe(took.Seconds())
}
