// Package metrics provides Prometheus metrics for ChronoStore
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for ChronoStore
type Metrics struct {
	// Fingerprint index metrics
	FingerprintChecksTotal    prometheus.Counter
	DegradedFingerprintsTotal prometheus.Counter
	DuplicatesDetectedTotal   prometheus.Counter
	SimilarDetectedTotal      prometheus.Counter
	IndexEntriesTotal         prometheus.Gauge
	IndexPersistFailuresTotal prometheus.Counter

	// Object store metrics
	ObjectStoresTotal      *prometheus.CounterVec
	ObjectLoadsTotal       *prometheus.CounterVec
	TraceScansTotal        prometheus.Counter
	TraceSkippedTotal      prometheus.Counter
	StoreOperationDuration *prometheus.HistogramVec

	// Temporal index metrics
	TimelineInsertsTotal prometheus.Counter
	TimelineQueriesTotal *prometheus.CounterVec

	// Scheduler metrics
	SchedulerRunsTotal      prometheus.Counter
	SchedulerLastRunSeconds prometheus.Gauge
	SchedulerAlertsTotal    prometheus.Counter

	// Daemon metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// Fingerprint index metrics
	m.FingerprintChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_fingerprint_checks_total",
			Help: "Total number of duplication checks",
		},
	)

	m.DegradedFingerprintsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_degraded_fingerprints_total",
			Help: "Total number of fingerprints derived from canonicalization errors",
		},
	)

	m.DuplicatesDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_duplicates_detected_total",
			Help: "Total number of exact duplicate findings",
		},
	)

	m.SimilarDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_similar_detected_total",
			Help: "Total number of same-category similarity findings",
		},
	)

	m.IndexEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronostore_index_entries_total",
			Help: "Current number of fingerprint index entries",
		},
	)

	m.IndexPersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_index_persist_failures_total",
			Help: "Total number of swallowed fingerprint index save failures",
		},
	)

	// Object store metrics
	m.ObjectStoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronostore_object_stores_total",
			Help: "Total number of encrypted object store operations",
		},
		[]string{"status"},
	)

	m.ObjectLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronostore_object_loads_total",
			Help: "Total number of encrypted object load operations",
		},
		[]string{"status"},
	)

	m.TraceScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_trace_scans_total",
			Help: "Total number of time-window trace scans",
		},
	)

	m.TraceSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_trace_skipped_objects_total",
			Help: "Total number of objects skipped during trace scans",
		},
	)

	m.StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronostore_store_operation_duration_seconds",
			Help:    "Duration of object store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Temporal index metrics
	m.TimelineInsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_timeline_inserts_total",
			Help: "Total number of version events inserted",
		},
	)

	m.TimelineQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronostore_timeline_queries_total",
			Help: "Total number of temporal index queries",
		},
		[]string{"kind"},
	)

	// Scheduler metrics
	m.SchedulerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_scheduler_runs_total",
			Help: "Total number of deduplication scheduler runs",
		},
	)

	m.SchedulerLastRunSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronostore_scheduler_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed scheduler run",
		},
	)

	m.SchedulerAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chronostore_scheduler_alerts_total",
			Help: "Total number of deduplication alerts sent to owners",
		},
	)

	// Daemon metrics
	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronostore_server_uptime_seconds",
			Help: "Daemon uptime in seconds",
		},
	)

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime periodically updates the daemon uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordCheck records a duplication check and its findings.
// Safe to call on a nil receiver so library consumers can skip metrics.
func (m *Metrics) RecordCheck(hasDuplicate, hasSimilar bool) {
	if m == nil {
		return
	}
	m.FingerprintChecksTotal.Inc()
	if hasDuplicate {
		m.DuplicatesDetectedTotal.Inc()
	}
	if hasSimilar {
		m.SimilarDetectedTotal.Inc()
	}
}

// RecordDegradedFingerprint records an error-derived fingerprint
func (m *Metrics) RecordDegradedFingerprint() {
	if m == nil {
		return
	}
	m.DegradedFingerprintsTotal.Inc()
}

// RecordObjectStore records an encrypted store operation
func (m *Metrics) RecordObjectStore(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ObjectStoresTotal.WithLabelValues(status).Inc()
	m.StoreOperationDuration.WithLabelValues("store").Observe(duration.Seconds())
}

// RecordObjectLoad records an encrypted load operation
func (m *Metrics) RecordObjectLoad(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ObjectLoadsTotal.WithLabelValues(status).Inc()
	m.StoreOperationDuration.WithLabelValues("load").Observe(duration.Seconds())
}

// RecordTrace records a trace scan and how many objects were skipped
func (m *Metrics) RecordTrace(skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.TraceScansTotal.Inc()
	m.TraceSkippedTotal.Add(float64(skipped))
	m.StoreOperationDuration.WithLabelValues("trace").Observe(duration.Seconds())
}

// RecordTimelineInsert records a version event insertion
func (m *Metrics) RecordTimelineInsert() {
	if m == nil {
		return
	}
	m.TimelineInsertsTotal.Inc()
}

// RecordTimelineQuery records a temporal index query by kind
func (m *Metrics) RecordTimelineQuery(kind string) {
	if m == nil {
		return
	}
	m.TimelineQueriesTotal.WithLabelValues(kind).Inc()
}

// RecordSchedulerRun records a completed scheduler run
func (m *Metrics) RecordSchedulerRun(alerts int) {
	if m == nil {
		return
	}
	m.SchedulerRunsTotal.Inc()
	m.SchedulerAlertsTotal.Add(float64(alerts))
	m.SchedulerLastRunSeconds.Set(float64(time.Now().Unix()))
}

// UpdateIndexSize updates the fingerprint index entry gauge
func (m *Metrics) UpdateIndexSize(entries int) {
	if m == nil {
		return
	}
	m.IndexEntriesTotal.Set(float64(entries))
}

// RecordIndexPersistFailure records a swallowed index save failure
func (m *Metrics) RecordIndexPersistFailure() {
	if m == nil {
		return
	}
	m.IndexPersistFailuresTotal.Inc()
}
