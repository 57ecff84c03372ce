package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the deduplication engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Exact-match runs
	HardRunDuration  prometheus.Histogram
	DocumentsFlagged *prometheus.CounterVec
	HardRunFailures  prometheus.Counter

	// Ticket factory and adjudication
	TicketsCreated   *prometheus.CounterVec
	TicketsAttached  *prometheus.CounterVec
	TicketsClosed    *prometheus.CounterVec
	NotificationErrs prometheus.Counter

	// Biometric orchestration
	BatchTransitions     *prometheus.CounterVec
	ExternalCallDuration *prometheus.HistogramVec

	// Job intake
	JobsHandled *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HardRunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hope_dedup_hard_run_duration_seconds",
			Help:    "Duration of exact-match document deduplication runs",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		DocumentsFlagged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hope_dedup_documents_flagged_total",
			Help: "Documents whose status was changed by exact-match deduplication",
		}, []string{"status"}), // status: VALID, NEED_INVESTIGATION
		HardRunFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "hope_dedup_hard_run_failures_total",
			Help: "Exact-match runs rolled back because of an error",
		}),
		TicketsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hope_dedup_tickets_created_total",
			Help: "Adjudication tickets created by issue type",
		}, []string{"issue_type"}),
		TicketsAttached: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hope_dedup_tickets_attached_total",
			Help: "Duplicate groups attached to an existing open ticket",
		}, []string{"issue_type"}),
		TicketsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hope_dedup_tickets_closed_total",
			Help: "Adjudication tickets closed by reviewers",
		}, []string{"issue_type"}),
		NotificationErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "hope_dedup_notification_errors_total",
			Help: "Ticket notifications that could not be published",
		}),
		BatchTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hope_dedup_import_batch_transitions_total",
			Help: "Import batch biometric status transitions",
		}, []string{"status"}),
		ExternalCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hope_dedup_engine_call_duration_seconds",
			Help:    "Duration of biometric engine calls by operation and outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "outcome"}),
		JobsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hope_dedup_jobs_handled_total",
			Help: "Scheduled jobs handled by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) ObserveHardRun(d time.Duration) {
	if m != nil {
		m.HardRunDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementHardRunFailures() {
	if m != nil {
		m.HardRunFailures.Inc()
	}
}

func (m *Metrics) AddDocumentsFlagged(status string, n int) {
	if m != nil && n > 0 {
		m.DocumentsFlagged.WithLabelValues(status).Add(float64(n))
	}
}

func (m *Metrics) AddTicketsCreated(issueType string, n int) {
	if m != nil && n > 0 {
		m.TicketsCreated.WithLabelValues(issueType).Add(float64(n))
	}
}

func (m *Metrics) AddTicketsAttached(issueType string, n int) {
	if m != nil && n > 0 {
		m.TicketsAttached.WithLabelValues(issueType).Add(float64(n))
	}
}

func (m *Metrics) IncrementTicketsClosed(issueType string) {
	if m != nil {
		m.TicketsClosed.WithLabelValues(issueType).Inc()
	}
}

func (m *Metrics) IncrementNotificationErrors() {
	if m != nil {
		m.NotificationErrs.Inc()
	}
}

func (m *Metrics) AddBatchTransitions(status string, n int) {
	if m != nil && n > 0 {
		m.BatchTransitions.WithLabelValues(status).Add(float64(n))
	}
}

// ObserveExternalCall records a biometric engine call.
func (m *Metrics) ObserveExternalCall(operation string, err error, d time.Duration) {
	if m != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.ExternalCallDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementJob(kind, outcome string) {
	if m != nil {
		m.JobsHandled.WithLabelValues(kind, outcome).Inc()
	}
}
