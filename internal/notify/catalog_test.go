package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john2100013/kpi-review/internal/models"
)

func TestDefaultCatalog_CoversNotificationTypes(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	for _, typ := range []string{
		models.NotificationKPIAssigned,
		models.NotificationKPIAcknowledged,
		models.NotificationSelfRatingSubmitted,
		models.NotificationManagerReviewSubmitted,
		models.NotificationReviewApproved,
		models.NotificationReviewRejected,
		models.NotificationRejectionResolved,
		models.NotificationKPISettingReminder,
		models.NotificationKPIOverdueReminder,
	} {
		msg, err := catalog.Render(typ, nil)
		require.NoError(t, err, typ)
		assert.NotEmpty(t, msg.Subject, typ)
		assert.NotEmpty(t, msg.Body, typ)
		assert.NotContains(t, msg.Body, "<no value>", typ)
	}
}

func TestCatalog_Render(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	msg, err := catalog.Render(models.NotificationReviewRejected, map[string]string{
		"recipient_name": "Mo",
		"employee_name":  "Ann",
		"kpi_title":      "Sales",
		"period":         "Q1 2026",
		"rejection_note": "Ratings too low",
	})
	require.NoError(t, err)

	assert.Equal(t, "Review rejected: Sales", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Mo,")
	assert.Contains(t, msg.Body, "Reason: Ratings too low")
	assert.Equal(t, `Ann rejected the review of "Sales".`, msg.Notice)
}

func TestCatalog_UnknownTemplate(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	_, err = catalog.Render("nope", nil)
	assert.Error(t, err)
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte("broken:\n  subject: \"{{.x\"\n"))
	assert.Error(t, err)
}
