package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coderoom"

// Collector holds all Prometheus metrics for the service
type Collector struct {
	Registry *prometheus.Registry

	// Pipeline metrics.
	RequestsTotal          *prometheus.CounterVec
	ValidationFailures     *prometheus.CounterVec
	ExecutionsTotal        *prometheus.CounterVec
	ExecutionDuration      *prometheus.HistogramVec
	ActiveExecutions       prometheus.Gauge
	WorkspaceCleanupErrors prometheus.Counter

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Collaboration relay metrics.
	CollabConnections prometheus.Gauge
	CollabEvents      *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered on a private registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total execution requests by language and result.",
		}, []string{"language", "result"}),

		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "validation_failures_total",
			Help:      "Requests rejected by the validator.",
		}, []string{"language"}),

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total sandbox executions by outcome.",
		}, []string{"language", "outcome"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Sandbox execution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"language"}),

		ActiveExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "active_executions",
			Help:      "Executions currently running.",
		}),

		WorkspaceCleanupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "cleanup_errors_total",
			Help:      "Workspaces that could not be removed.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		CollabConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collab",
			Name:      "connections",
			Help:      "Open collaboration sockets.",
		}),

		CollabEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collab",
			Name:      "events_total",
			Help:      "Inbound collaboration events by name.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		c.RequestsTotal,
		c.ValidationFailures,
		c.ExecutionsTotal,
		c.ExecutionDuration,
		c.ActiveExecutions,
		c.WorkspaceCleanupErrors,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		c.CollabConnections,
		c.CollabEvents,
	)

	return c
}

// Handler serves the private registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts a finished pipeline request
func (c *Collector) ObserveRequest(language, result string) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(language, result).Inc()
}

// ObserveValidationFailure counts a request rejected by the validator
func (c *Collector) ObserveValidationFailure(language string) {
	if c == nil {
		return
	}
	c.ValidationFailures.WithLabelValues(language).Inc()
}

// StartExecution marks an execution as running and returns the function that records its end
func (c *Collector) StartExecution(language string) func(outcome string) {
	if c == nil {
		return func(string) {}
	}
	c.ActiveExecutions.Inc()
	start := time.Now()
	return func(outcome string) {
		c.ActiveExecutions.Dec()
		c.ExecutionsTotal.WithLabelValues(language, outcome).Inc()
		c.ExecutionDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
	}
}

// ObserveCleanupError counts a workspace that could not be removed
func (c *Collector) ObserveCleanupError() {
	if c == nil {
		return
	}
	c.WorkspaceCleanupErrors.Inc()
}

// ObserveHTTP records one served HTTP request; route is the matched pattern, not the raw path
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ConnectionOpened increments the open socket gauge
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.CollabConnections.Inc()
}

// ConnectionClosed decrements the open socket gauge
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.CollabConnections.Dec()
}

// ObserveEvent counts an inbound collaboration event
func (c *Collector) ObserveEvent(event string) {
	if c == nil {
		return
	}
	c.CollabEvents.WithLabelValues(event).Inc()
}
