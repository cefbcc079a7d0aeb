package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper aggregation
// service. Metrics are organized by subsystem: imports, full text,
// abstracts, and external sources. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// ImportsStarted counts the total number of CSV import runs started.
	ImportsStarted prometheus.Counter

	// ImportsCompleted counts the total number of CSV import runs that ran to completion.
	ImportsCompleted prometheus.Counter

	// ImportDuration observes the end-to-end duration of import runs in seconds.
	ImportDuration prometheus.Histogram

	// ImportRowsSaved counts CSV rows that were saved successfully.
	ImportRowsSaved prometheus.Counter

	// ImportRowsDuplicate counts CSV rows rejected as already present in the project.
	ImportRowsDuplicate prometheus.Counter

	// ImportRowsFailed counts CSV rows that failed to normalize or save.
	ImportRowsFailed prometheus.Counter

	// ImportRowsPerRun observes the distribution of row counts per import run.
	ImportRowsPerRun prometheus.Histogram

	// AvailabilityChecks counts full-text availability checks by outcome
	// (available, unavailable, error).
	AvailabilityChecks *prometheus.CounterVec

	// FullTextFetches counts full-text fetch attempts by outcome
	// (fetched, unavailable, empty, error).
	FullTextFetches *prometheus.CounterVec

	// AbstractsBackfilled counts abstracts fetched for papers that were imported without one.
	AbstractsBackfilled prometheus.Counter

	// AbstractBackfillsFailed counts abstract backfill attempts that failed.
	AbstractBackfillsFailed prometheus.Counter

	// SourceRequestsTotal counts HTTP requests to external source APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to external source APIs, labeled by source and endpoint.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to external source APIs in seconds.
	SourceRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Imports
		ImportsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_started_total",
			Help:      "Total number of CSV import runs started",
		}),
		ImportsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_completed_total",
			Help:      "Total number of CSV import runs that ran to completion",
		}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of CSV import runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		ImportRowsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_saved_total",
			Help:      "Total number of CSV rows saved successfully",
		}),
		ImportRowsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_duplicate_total",
			Help:      "Total number of CSV rows rejected as duplicates",
		}),
		ImportRowsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_failed_total",
			Help:      "Total number of CSV rows that failed to normalize or save",
		}),
		ImportRowsPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_rows_per_run",
			Help:      "Number of CSV rows processed per import run",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
		}),

		// Full text
		AvailabilityChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Total number of full-text availability checks by outcome",
		}, []string{"outcome"}),
		FullTextFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulltext_fetches_total",
			Help:      "Total number of full-text fetch attempts by outcome",
		}, []string{"outcome"}),

		// Abstracts
		AbstractsBackfilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abstracts_backfilled_total",
			Help:      "Total number of abstracts fetched for papers imported without one",
		}),
		AbstractBackfillsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abstract_backfills_failed_total",
			Help:      "Total number of abstract backfill attempts that failed",
		}),

		// External sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of HTTP requests to external source APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed HTTP requests to external source APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of HTTP requests to external source APIs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "endpoint"}),
	}
}

// RecordSourceRequest records a completed request to an external source API.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to an external source API.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint).Inc()
}

// RecordAbstractBackfilled records one abstract fetched for a paper that
// was imported without one.
func (m *Metrics) RecordAbstractBackfilled() {
	m.AbstractsBackfilled.Inc()
}

// RecordAbstractBackfillFailed records one abstract backfill attempt that failed.
func (m *Metrics) RecordAbstractBackfillFailed() {
	m.AbstractBackfillsFailed.Inc()
}
