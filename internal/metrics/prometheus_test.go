package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTransition(t *testing.T) {
	// Reset the counter before test
	WorkflowTransitionsTotal.Reset()

	RecordTransition("acknowledge", "success")
	RecordTransition("acknowledge", "success")
	RecordTransition("acknowledge", "invalid_transition")

	count := testutil.ToFloat64(WorkflowTransitionsTotal.WithLabelValues("acknowledge", "success"))
	if count != 2 {
		t.Errorf("Expected acknowledge success count = 2, got %f", count)
	}

	count = testutil.ToFloat64(WorkflowTransitionsTotal.WithLabelValues("acknowledge", "invalid_transition"))
	if count != 1 {
		t.Errorf("Expected acknowledge invalid_transition count = 1, got %f", count)
	}
}

func TestRecordSweep(t *testing.T) {
	ReminderSweepsTotal.Reset()
	ReminderSweepLastRun.Reset()

	RecordSweep("pre_deadline", "success", 2*time.Second)

	count := testutil.ToFloat64(ReminderSweepsTotal.WithLabelValues("pre_deadline", "success"))
	if count != 1 {
		t.Errorf("Expected sweep count = 1, got %f", count)
	}

	lastRun := testutil.ToFloat64(ReminderSweepLastRun.WithLabelValues("pre_deadline"))
	if lastRun <= 0 {
		t.Errorf("Expected last run timestamp to be set, got %f", lastRun)
	}
}

func TestRecordReminderCounters(t *testing.T) {
	RemindersDispatchedTotal.Reset()
	RemindersDuplicateTotal.Reset()

	RecordReminderDispatched("overdue")
	RecordReminderDuplicate("overdue")
	RecordReminderDuplicate("overdue")

	if got := testutil.ToFloat64(RemindersDispatchedTotal.WithLabelValues("overdue")); got != 1 {
		t.Errorf("Expected dispatched = 1, got %f", got)
	}
	if got := testutil.ToFloat64(RemindersDuplicateTotal.WithLabelValues("overdue")); got != 2 {
		t.Errorf("Expected duplicates = 2, got %f", got)
	}
}

func TestRecordNotificationOutcomes(t *testing.T) {
	NotificationsSentTotal.Reset()
	NotificationsFailedTotal.Reset()

	RecordNotificationSent("email")
	RecordNotificationFailed("webhook", "timeout")

	if got := testutil.ToFloat64(NotificationsSentTotal.WithLabelValues("email")); got != 1 {
		t.Errorf("Expected email sent = 1, got %f", got)
	}
	if got := testutil.ToFloat64(NotificationsFailedTotal.WithLabelValues("webhook", "timeout")); got != 1 {
		t.Errorf("Expected webhook timeout failures = 1, got %f", got)
	}
}

func TestRecordDocumentGenerated(t *testing.T) {
	DocumentsGeneratedTotal.Reset()

	RecordDocumentGenerated("failed")

	if got := testutil.ToFloat64(DocumentsGeneratedTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("Expected failed documents = 1, got %f", got)
	}
}
