// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector, exported through prometheus/client_golang
// so the endpoint can be scraped like any other service in the stack.
// Generalizes the old map[string]any registry into named collectors
// that line up with the invariants spec §8 cares about: connection
// counts, parse failures, timeout sweeps, request latency.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRegistry wires the endpoint's counters and gauges into a
// dedicated prometheus.Registry rather than the global default, so
// embedding this module never collides with another component's
// metrics namespace.
type MetricsRegistry struct {
	Registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	RequestsTotal     *prometheus.CounterVec
	ParseErrorsTotal  *prometheus.CounterVec
	TimeoutsTotal     prometheus.Counter
	RequestLatency    prometheus.Histogram
}

// NewMetricsRegistry creates and registers every collector.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	mr := &MetricsRegistry{
		Registry: reg,
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nio_endpoint",
			Name:      "connections_active",
			Help:      "Currently open connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nio_endpoint",
			Name:      "connections_total",
			Help:      "Total connections accepted.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nio_endpoint",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed, by status class.",
		}, []string{"status_class"}),
		ParseErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nio_endpoint",
			Name:      "parse_errors_total",
			Help:      "Total request parse failures, by error kind.",
		}, []string{"kind"}),
		TimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nio_endpoint",
			Name:      "timeouts_total",
			Help:      "Total connections closed by the idle/read/write timeout sweep.",
		}),
		RequestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nio_endpoint",
			Name:      "request_latency_seconds",
			Help:      "Request handling latency from parse-complete to response-committed.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		mr.ConnectionsActive,
		mr.ConnectionsTotal,
		mr.RequestsTotal,
		mr.ParseErrorsTotal,
		mr.TimeoutsTotal,
		mr.RequestLatency,
	)
	return mr
}

// ObserveAccepted records a newly accepted connection.
func (mr *MetricsRegistry) ObserveAccepted() {
	mr.ConnectionsActive.Inc()
	mr.ConnectionsTotal.Inc()
}

// ObserveClosed records a connection leaving the endpoint.
func (mr *MetricsRegistry) ObserveClosed() {
	mr.ConnectionsActive.Dec()
}

// ObserveRequest records a completed request by its response status class
// ("2xx", "4xx", "5xx", ...).
func (mr *MetricsRegistry) ObserveRequest(statusClass string) {
	mr.RequestsTotal.WithLabelValues(statusClass).Inc()
}

// ObserveParseError records a request parse failure by a short kind label
// (e.g. "invalid-method", "header-too-large").
func (mr *MetricsRegistry) ObserveParseError(kind string) {
	mr.ParseErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveTimeout records the timeout sweep closing a connection.
func (mr *MetricsRegistry) ObserveTimeout() {
	mr.TimeoutsTotal.Inc()
}
