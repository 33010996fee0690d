package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncJobMetrics records outcomes and fetch behavior for sync runs.
type SyncJobMetrics struct {
	duration        *prometheus.HistogramVec
	success         *prometheus.CounterVec
	failure         *prometheus.CounterVec
	apiCalls        *prometheus.CounterVec
	rateLimitEvents *prometheus.CounterVec
	fetchedRows     *prometheus.CounterVec
	persistedRows   *prometheus.CounterVec
}

// NewSyncJobMetrics registers the sync run metrics on the provided registerer.
func NewSyncJobMetrics(reg prometheus.Registerer) *SyncJobMetrics {
	if reg == nil {
		return &SyncJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Duration of sync runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job_type"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_run_success",
		Help: "Successful sync runs.",
	}, []string{"job_type"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_run_failure",
		Help: "Failed sync runs by error code.",
	}, []string{"job_type", "code"})
	apiCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_api_calls_total",
		Help: "Platform API calls issued by sync runs.",
	}, []string{"job_type"})
	rateLimitEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_rate_limit_events_total",
		Help: "Throttle events observed during sync runs.",
	}, []string{"job_type"})
	fetchedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_fetched_rows_total",
		Help: "Rows fetched from platform APIs.",
	}, []string{"job_type"})
	persistedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_persisted_rows_total",
		Help: "Fact rows persisted by sync runs.",
	}, []string{"job_type"})
	reg.MustRegister(duration, success, failure, apiCalls, rateLimitEvents, fetchedRows, persistedRows)
	return &SyncJobMetrics{
		duration:        duration,
		success:         success,
		failure:         failure,
		apiCalls:        apiCalls,
		rateLimitEvents: rateLimitEvents,
		fetchedRows:     fetchedRows,
		persistedRows:   persistedRows,
	}
}

// ObserveDuration records the duration for the named job type.
func (m *SyncJobMetrics) ObserveDuration(jobType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(jobType)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job type.
func (m *SyncJobMetrics) IncSuccess(jobType string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(jobType)).Inc()
}

// IncFailure increments the failure counter for the named job type and code.
func (m *SyncJobMetrics) IncFailure(jobType, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(jobType), normalizeLabel(code)).Inc()
}

// RecordFetch accumulates per-run fetch counters.
func (m *SyncJobMetrics) RecordFetch(jobType string, apiCalls, rateLimitEvents, fetchedRows, persistedRows int) {
	if m == nil || m.apiCalls == nil {
		return
	}
	label := normalizeLabel(jobType)
	m.apiCalls.WithLabelValues(label).Add(float64(apiCalls))
	m.rateLimitEvents.WithLabelValues(label).Add(float64(rateLimitEvents))
	m.fetchedRows.WithLabelValues(label).Add(float64(fetchedRows))
	m.persistedRows.WithLabelValues(label).Add(float64(persistedRows))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
