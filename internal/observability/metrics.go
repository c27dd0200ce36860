// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stage metrics
	StageRunsTotal  *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	StageRetries    *prometheus.CounterVec
	QualityWarnings *prometheus.CounterVec

	// Record metrics
	RecordsWritten *prometheus.CounterVec
	RecordsDropped *prometheus.CounterVec

	// Provider metrics
	FetchLatency *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec

	// Run metrics
	TokenRunsTotal    *prometheus.CounterVec
	TokenRunDuration  prometheus.Histogram
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_data_pipeline"
	}

	return &Metrics{
		// Stage metrics
		StageRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total number of stage executions by stage and status",
		}, []string{"stage", "status"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		StageRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_retries_total",
			Help:      "Total number of fetch retries by stage",
		}, []string{"stage"}),
		QualityWarnings: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "quality_warnings_total",
			Help:      "Total number of data quality warnings by stage",
		}, []string{"stage"}),

		// Record metrics
		RecordsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "records_written_total",
			Help:      "Total number of records upserted by entity",
		}, []string{"entity"}),
		RecordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "records_dropped_total",
			Help:      "Total number of records dropped before persistence by entity",
		}, []string{"entity"}),

		// Provider metrics
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_errors_total",
			Help:      "Total number of upstream fetch errors by stage and kind",
		}, []string{"stage", "kind"}),

		// Run metrics
		TokenRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "token_runs_total",
			Help:      "Total number of per-token runs by status",
		}, []string{"status"}),
		TokenRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "token_run_duration_seconds",
			Help:      "Per-token run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last run where every token succeeded",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordStageRun records a stage execution.
func RecordStageRun(stage, status string, durationSeconds float64) {
	DefaultMetrics.StageRunsTotal.WithLabelValues(stage, status).Inc()
	DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageRetries records fetch retries for a stage.
func RecordStageRetries(stage string, retries int) {
	if retries > 0 {
		DefaultMetrics.StageRetries.WithLabelValues(stage).Add(float64(retries))
	}
}

// RecordQualityWarnings records data quality warnings for a stage.
func RecordQualityWarnings(stage string, count int) {
	if count > 0 {
		DefaultMetrics.QualityWarnings.WithLabelValues(stage).Add(float64(count))
	}
}

// RecordRecords records written and dropped counts for an entity.
func RecordRecords(entity string, written, dropped int) {
	if written > 0 {
		DefaultMetrics.RecordsWritten.WithLabelValues(entity).Add(float64(written))
	}
	if dropped > 0 {
		DefaultMetrics.RecordsDropped.WithLabelValues(entity).Add(float64(dropped))
	}
}

// RecordFetch records upstream fetch latency and outcome.
func RecordFetch(stage string, seconds float64, errKind string) {
	DefaultMetrics.FetchLatency.WithLabelValues(stage).Observe(seconds)
	if errKind != "" {
		DefaultMetrics.FetchErrors.WithLabelValues(stage, errKind).Inc()
	}
}

// RecordTokenRun records a per-token run.
func RecordTokenRun(status string, durationSeconds float64) {
	DefaultMetrics.TokenRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.TokenRunDuration.Observe(durationSeconds)
}
