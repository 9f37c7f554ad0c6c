// Package vfsmetrics holds the Prometheus counters, histograms and gauges
// the service updates directly from each operation: operation counts and
// latency by kind, active watcher count, and write-queue depth.
package vfsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors this package registers.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ActiveWatchers    prometheus.Gauge
	WriteQueueDepth   prometheus.Gauge
}

// New constructs and registers a Metrics set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with other
// registrations in the same process.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vfs_operations_total",
			Help: "Count of VFS operations by kind and result.",
		}, []string{"op", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vfs_operation_duration_seconds",
			Help:    "Latency of VFS operations by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		ActiveWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vfs_active_watchers",
			Help: "Number of distinct (provider, resource, recursive, excludes) watch subscriptions currently open.",
		}),
		WriteQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vfs_write_queue_depth",
			Help: "Number of canonical keys with a non-empty write queue.",
		}),
	}
	reg.MustRegister(m.OperationsTotal, m.OperationDuration, m.ActiveWatchers, m.WriteQueueDepth)
	return m
}

// Observe records one operation's outcome and duration.
func (m *Metrics) Observe(op string, err error, start time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OperationsTotal.WithLabelValues(op, result).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
