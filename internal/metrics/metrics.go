// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geld"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RebalanceRuns     *prometheus.CounterVec
	RebalanceDuration *prometheus.HistogramVec
	CascadeTransfers  prometheus.Counter
	SlicesApplied     prometheus.Counter
	StagedCleaned     prometheus.Counter
	DriftingClients   prometheus.Gauge
	BackupUploads     *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RebalanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "runs_total",
			Help:      "Rebalance passes by mode and outcome",
		}, []string{"mode", "outcome"}),
		RebalanceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "duration_seconds",
			Help:      "Rebalance pass duration in seconds, snapshot load included",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"mode"}),
		CascadeTransfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "cascade_transfers_total",
			Help:      "Surplus transfers made by the cascade",
		}),
		SlicesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slices",
			Name:      "applied_total",
			Help:      "Rebalance results persisted into ownership slices",
		}),
		StagedCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staged",
			Name:      "cleaned_total",
			Help:      "Expired staged results removed",
		}),
		DriftingClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slices",
			Name:      "drifting_clients",
			Help:      "Clients whose slices do not sum to 100 in some class",
		}),
		BackupUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "uploads_total",
			Help:      "Database backup uploads by outcome",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RebalanceRuns,
		m.RebalanceDuration,
		m.CascadeTransfers,
		m.SlicesApplied,
		m.StagedCleaned,
		m.DriftingClients,
		m.BackupUploads,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRebalance records one pass
func (m *Metrics) ObserveRebalance(mode string, d time.Duration, transfers int, err error) {
	if m == nil {
		return
	}
	m.RebalanceRuns.WithLabelValues(mode, outcome(err)).Inc()
	m.RebalanceDuration.WithLabelValues(mode).Observe(d.Seconds())
	if transfers > 0 {
		m.CascadeTransfers.Add(float64(transfers))
	}
}

// IncSlicesApplied counts one persisted result
func (m *Metrics) IncSlicesApplied() {
	if m == nil {
		return
	}
	m.SlicesApplied.Inc()
}

// AddStagedCleaned counts removed staged results
func (m *Metrics) AddStagedCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.StagedCleaned.Add(float64(n))
}

// SetDriftingClients sets the drift gauge
func (m *Metrics) SetDriftingClients(n int) {
	if m == nil {
		return
	}
	m.DriftingClients.Set(float64(n))
}

// ObserveBackup records one upload attempt
func (m *Metrics) ObserveBackup(err error) {
	if m == nil {
		return
	}
	m.BackupUploads.WithLabelValues(outcome(err)).Inc()
}

// ObserveHTTP records one request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
