// ============================================================================
// eventfold Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose Prometheus metrics for an open EventLog.
//
// Metric Categories:
//
//   1. Log counters - cumulative, monotonically increasing:
//      - eventfold_events_appended_total
//      - eventfold_bytes_appended_total
//      - eventfold_append_conflicts_total
//      - eventfold_rotations_total
//
//   2. View metrics:
//      - eventfold_view_refresh_total{view}
//      - eventfold_view_refresh_duration_seconds{view} (histogram)
//      - eventfold_view_integrity_failures_total{view}
//
//   3. Status gauges:
//      - eventfold_active_log_bytes
//
// HTTP Endpoint:
//   Exposed via /metrics, scraped by Prometheus. See internal/debugserver.
//
// ============================================================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric an EventLog reports.
type Collector struct {
	eventsAppended  prometheus.Counter
	bytesAppended   prometheus.Counter
	appendConflicts prometheus.Counter
	rotations       prometheus.Counter

	viewRefreshes         *prometheus.CounterVec
	viewRefreshDuration   *prometheus.HistogramVec
	viewIntegrityFailures *prometheus.CounterVec

	activeLogBytes prometheus.Gauge
}

// NewCollector builds and registers a Collector against
// prometheus.DefaultRegisterer. A process should construct exactly one.
func NewCollector() *Collector {
	c := &Collector{
		eventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventfold_events_appended_total",
			Help: "Total number of events appended to the active log",
		}),
		bytesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventfold_bytes_appended_total",
			Help: "Total bytes written to the active log, including newlines",
		}),
		appendConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventfold_append_conflicts_total",
			Help: "Total number of rejected conditional appends",
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventfold_rotations_total",
			Help: "Total number of active-log rotations performed",
		}),
		viewRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventfold_view_refresh_total",
			Help: "Total number of view refreshes, per view",
		}, []string{"view"}),
		viewRefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventfold_view_refresh_duration_seconds",
			Help:    "View refresh duration in seconds, per view",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
		viewIntegrityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventfold_view_integrity_failures_total",
			Help: "Total number of snapshot integrity failures triggering a rebuild, per view",
		}, []string{"view"}),
		activeLogBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventfold_active_log_bytes",
			Help: "Current size of the active log in bytes",
		}),
	}

	prometheus.MustRegister(
		c.eventsAppended,
		c.bytesAppended,
		c.appendConflicts,
		c.rotations,
		c.viewRefreshes,
		c.viewRefreshDuration,
		c.viewIntegrityFailures,
		c.activeLogBytes,
	)

	return c
}

// RecordAppend records one successful append of size bytes (the encoded
// line plus its trailing newline).
func (c *Collector) RecordAppend(bytes int) {
	c.eventsAppended.Inc()
	c.bytesAppended.Add(float64(bytes))
}

// RecordConflict records a rejected conditional append.
func (c *Collector) RecordConflict() {
	c.appendConflicts.Inc()
}

// RecordRotation records one completed rotation.
func (c *Collector) RecordRotation() {
	c.rotations.Inc()
}

// RecordViewRefresh records one refresh of the named view taking
// durationSeconds.
func (c *Collector) RecordViewRefresh(viewName string, durationSeconds float64) {
	c.viewRefreshes.WithLabelValues(viewName).Inc()
	c.viewRefreshDuration.WithLabelValues(viewName).Observe(durationSeconds)
}

// RecordIntegrityFailure records a snapshot integrity failure for the
// named view.
func (c *Collector) RecordIntegrityFailure(viewName string) {
	c.viewIntegrityFailures.WithLabelValues(viewName).Inc()
}

// SetActiveLogBytes sets the current active log size gauge.
func (c *Collector) SetActiveLogBytes(bytes uint64) {
	c.activeLogBytes.Set(float64(bytes))
}
