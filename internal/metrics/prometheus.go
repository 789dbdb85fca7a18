// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the KPI review service.
var (
	// Counters.
	WorkflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_workflow_transitions_total",
			Help: "Total number of KPI workflow transitions by outcome",
		},
		[]string{"transition", "outcome"},
	)

	ReminderSweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sweeps_total",
			Help: "Total number of reminder sweeps run",
		},
		[]string{"sweep", "status"},
	)

	RemindersDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_dispatched_total",
			Help: "Total number of reminders claimed and fanned out",
		},
		[]string{"sweep"},
	)

	RemindersDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_duplicate_total",
			Help: "Total number of due reminders skipped because the ledger already had them",
		},
		[]string{"sweep"},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"channel"},
	)

	NotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notification deliveries that failed",
		},
		[]string{"channel", "reason"},
	)

	DocumentsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_generated_total",
			Help: "Total number of review documents generated",
		},
		[]string{"status"},
	)

	// Gauges.
	ReminderSweepLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reminder_sweep_last_run_timestamp",
			Help: "Unix timestamp of the last reminder sweep",
		},
		[]string{"sweep"},
	)

	// Histograms.
	ReminderSweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_sweep_duration_seconds",
			Help:    "Duration of reminder sweeps in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"sweep"},
	)
)

// RecordTransition records a workflow transition outcome.
func RecordTransition(transition, outcome string) {
	WorkflowTransitionsTotal.WithLabelValues(transition, outcome).Inc()
}

// RecordSweep records a finished reminder sweep.
func RecordSweep(sweep, status string, duration time.Duration) {
	ReminderSweepsTotal.WithLabelValues(sweep, status).Inc()
	ReminderSweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
	ReminderSweepLastRun.WithLabelValues(sweep).SetToCurrentTime()
}

// RecordReminderDispatched records a claimed reminder.
func RecordReminderDispatched(sweep string) {
	RemindersDispatchedTotal.WithLabelValues(sweep).Inc()
}

// RecordReminderDuplicate records a reminder skipped by the ledger.
func RecordReminderDuplicate(sweep string) {
	RemindersDuplicateTotal.WithLabelValues(sweep).Inc()
}

// RecordNotificationSent records a delivered notification.
func RecordNotificationSent(channel string) {
	NotificationsSentTotal.WithLabelValues(channel).Inc()
}

// RecordNotificationFailed records a failed notification delivery.
func RecordNotificationFailed(channel, reason string) {
	NotificationsFailedTotal.WithLabelValues(channel, reason).Inc()
}

// RecordDocumentGenerated records the outcome of a review document run.
func RecordDocumentGenerated(status string) {
	DocumentsGeneratedTotal.WithLabelValues(status).Inc()
}
