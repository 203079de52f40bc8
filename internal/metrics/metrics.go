// Package metrics provides Prometheus metrics for timegraph
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for timegraph.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreQuadsTotal        *prometheus.GaugeVec

	// Index metrics
	IndexEntries         *prometheus.GaugeVec
	TemporalLookupsTotal *prometheus.CounterVec

	// Propagation metrics
	EventsPropagatedTotal *prometheus.CounterVec

	// Snapshot metrics
	MaterializationsTotal   *prometheus.CounterVec
	MaterializationDuration prometheus.Histogram
	GraphsMerged            prometheus.Histogram
	IncoherenceTotal        prometheus.Counter

	// Journal metrics
	JournalEntriesTotal prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg
// (prometheus.DefaultRegisterer when nil)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegraph_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timegraph_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "timegraph_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Store metrics
	m.StoreOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegraph_store_operations_total",
			Help: "Total number of quad store operations",
		},
		[]string{"role", "operation", "status"},
	)

	m.StoreOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timegraph_store_operation_duration_seconds",
			Help:    "Duration of quad store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"role", "operation"},
	)

	m.StoreQuadsTotal = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timegraph_store_quads_total",
			Help: "Number of quads held by a store",
		},
		[]string{"role"},
	)

	// Index metrics
	m.IndexEntries = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timegraph_index_entries",
			Help: "Number of named graphs in the time index",
		},
		[]string{"role"},
	)

	m.TemporalLookupsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegraph_temporal_lookups_total",
			Help: "Total number of time index lookups",
		},
		[]string{"kind"},
	)

	// Propagation metrics
	m.EventsPropagatedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegraph_events_propagated_total",
			Help: "Total number of change events published to listeners",
		},
		[]string{"kind", "status"},
	)

	// Snapshot metrics
	m.MaterializationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegraph_materializations_total",
			Help: "Total number of snapshot materializations",
		},
		[]string{"status"},
	)

	m.MaterializationDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timegraph_materialization_duration_seconds",
			Help:    "Duration of snapshot materializations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.GraphsMerged = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timegraph_materialization_graphs_merged",
			Help:    "Named graphs merged per snapshot",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	m.IncoherenceTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "timegraph_incoherence_total",
			Help: "Index entries referencing graphs missing from the store",
		},
	)

	m.JournalEntriesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "timegraph_journal_entries_total",
			Help: "Total number of change events written to the journal",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "timegraph_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge until stop is closed
func (m *Metrics) RunUptime(stop <-chan struct{}) {
	if m == nil {
		return
	}
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStoreOperation records a quad store operation
func (m *Metrics) RecordStoreOperation(role, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(role, operation, status(err)).Inc()
	m.StoreOperationDuration.WithLabelValues(role, operation).Observe(duration.Seconds())
}

// UpdateStoreStats updates the size gauges for one store
func (m *Metrics) UpdateStoreStats(role string, quads, indexEntries int) {
	if m == nil {
		return
	}
	m.StoreQuadsTotal.WithLabelValues(role).Set(float64(quads))
	m.IndexEntries.WithLabelValues(role).Set(float64(indexEntries))
}

// RecordLookup counts a time index lookup ("instant", "span" or "exact")
func (m *Metrics) RecordLookup(kind string) {
	if m == nil {
		return
	}
	m.TemporalLookupsTotal.WithLabelValues(kind).Inc()
}

// RecordPropagation counts one published event
func (m *Metrics) RecordPropagation(kind string, err error) {
	if m == nil {
		return
	}
	m.EventsPropagatedTotal.WithLabelValues(kind, status(err)).Inc()
}

// RecordMaterialization records a snapshot build
func (m *Metrics) RecordMaterialization(graphs int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.MaterializationsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.MaterializationDuration.Observe(duration.Seconds())
		m.GraphsMerged.Observe(float64(graphs))
	}
}

// RecordIncoherence counts a detected index/store drift
func (m *Metrics) RecordIncoherence() {
	if m == nil {
		return
	}
	m.IncoherenceTotal.Inc()
}

// RecordJournalEntry counts a journaled event
func (m *Metrics) RecordJournalEntry() {
	if m == nil {
		return
	}
	m.JournalEntriesTotal.Inc()
}
