package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john2100013/kpi-review/internal/clock"
	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/notify"
	"github.com/john2100013/kpi-review/internal/repository"
	"github.com/john2100013/kpi-review/internal/service/workflow"
	"github.com/john2100013/kpi-review/pkg/logger"
	"github.com/john2100013/kpi-review/test/fixtures"
	"github.com/john2100013/kpi-review/test/mocks"
)

type harness struct {
	db      *repository.DB
	svc     *workflow.Service
	sender  *mocks.MockSender
	docs    *mocks.MockDocumentPublisher
	runner  *notify.Runner
	tenant  *fixtures.Tenant
	ctx     context.Context
	manager workflow.Actor
	emp     workflow.Actor
	hr      workflow.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := fixtures.DB(t)
	catalog, err := notify.DefaultCatalog()
	require.NoError(t, err)

	h := &harness{
		db:     db,
		sender: &mocks.MockSender{},
		docs:   &mocks.MockDocumentPublisher{},
		runner: notify.NewRunner(time.Second, logger.Nop()),
		tenant: fixtures.NewTenant(t, db, "acme"),
		ctx:    context.Background(),
	}
	clk := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	h.svc = workflow.NewService(db, catalog, h.sender, h.runner, h.docs, clk, logger.Nop())

	cid := h.tenant.Company.ID
	h.manager = workflow.Actor{UserID: h.tenant.Manager.ID, CompanyID: cid, Role: models.RoleManager}
	h.emp = workflow.Actor{UserID: h.tenant.Employee.ID, CompanyID: cid, Role: models.RoleEmployee}
	h.hr = workflow.Actor{UserID: h.tenant.HR.ID, CompanyID: cid, Role: models.RoleHR}
	return h
}

func (h *harness) createKPI(t *testing.T) *models.KPI {
	t.Helper()
	kpi, err := h.svc.CreateKPI(h.ctx, h.manager, workflow.CreateKPIInput{
		EmployeeID: h.tenant.Employee.ID,
		Title:      "Sales targets",
		PeriodType: models.PeriodAnnual,
		Year:       2026,
		Items: []workflow.ItemInput{
			{Title: "Close deals", Weight: "40%"},
			{Title: ""},
			{Title: "Grow pipeline", Weight: "60%"},
		},
	})
	require.NoError(t, err)
	return kpi
}

func (h *harness) reviewed(t *testing.T) (*models.KPI, *models.KPIReview) {
	t.Helper()
	kpi := h.createKPI(t)
	_, err := h.svc.Acknowledge(h.ctx, h.emp, kpi.ID, workflow.AcknowledgeInput{Signature: "emp-sig"})
	require.NoError(t, err)
	_, err = h.svc.SubmitSelfRating(h.ctx, h.emp, kpi.ID, workflow.SelfRatingInput{Comment: "done"})
	require.NoError(t, err)

	review, err := h.svc.SubmitManagerReview(h.ctx, h.manager, kpi.ID, workflow.ManagerReviewInput{
		Signature: "mgr-sig",
		Items: []workflow.ItemRating{
			{ItemID: kpi.Items[0].ID, Rating: fixtures.Float(4)},
			{ItemID: kpi.Items[1].ID, Rating: fixtures.Float(3)},
		},
	})
	require.NoError(t, err)
	h.runner.Wait()
	return kpi, review
}

func TestService_CreateKPI(t *testing.T) {
	h := newHarness(t)
	kpi := h.createKPI(t)
	h.runner.Wait()

	assert.Equal(t, models.KPIStatusPending, kpi.Status)
	assert.Len(t, kpi.Items, 2)
	assert.Equal(t, h.tenant.Manager.ID, kpi.ManagerID)

	notes, err := h.svc.ListNotifications(h.ctx, h.emp, false, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationKPIAssigned, notes[0].Type)
	assert.NotEmpty(t, notes[0].Message)

	assert.Equal(t, map[string]int{h.tenant.Employee.Email: 1}, h.sender.Addresses(models.NotificationKPIAssigned))
}

func TestService_CreateKPI_RequiresActivePeriod(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateKPI(h.ctx, h.manager, workflow.CreateKPIInput{
		EmployeeID: h.tenant.Employee.ID,
		Title:      "Sales targets",
		PeriodType: models.PeriodQuarterly,
		Quarter:    "Q3",
		Year:       2026,
		Items:      []workflow.ItemInput{{Title: "Close deals"}},
	})
	assert.True(t, workflow.IsValidation(err), "error = %v", err)

	list, err := h.svc.ListVisibleKPIs(h.ctx, h.hr, workflow.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_CreateKPI_ValidatesPayload(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateKPI(h.ctx, h.manager, workflow.CreateKPIInput{
		EmployeeID: h.tenant.Employee.ID,
		PeriodType: "monthly",
		Year:       2026,
	})
	var ve *workflow.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
}

func TestService_AcknowledgeTwiceIsRejected(t *testing.T) {
	h := newHarness(t)
	kpi := h.createKPI(t)

	_, err := h.svc.Acknowledge(h.ctx, h.emp, kpi.ID, workflow.AcknowledgeInput{Signature: "first"})
	require.NoError(t, err)

	_, err = h.svc.Acknowledge(h.ctx, h.emp, kpi.ID, workflow.AcknowledgeInput{Signature: "second"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	detail, err := h.svc.GetKPI(h.ctx, h.emp, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", detail.KPI.EmployeeSignature)
}

func TestService_SelfRatingIsUpsert(t *testing.T) {
	h := newHarness(t)
	kpi := h.createKPI(t)
	_, err := h.svc.Acknowledge(h.ctx, h.emp, kpi.ID, workflow.AcknowledgeInput{Signature: "sig"})
	require.NoError(t, err)

	first, err := h.svc.SubmitSelfRating(h.ctx, h.emp, kpi.ID, workflow.SelfRatingInput{Rating: fixtures.Float(3)})
	require.NoError(t, err)
	second, err := h.svc.SubmitSelfRating(h.ctx, h.emp, kpi.ID, workflow.SelfRatingInput{
		Items: []workflow.ItemRating{{ItemID: kpi.Items[0].ID, Rating: fixtures.Float(5), Comment: "great"}},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.ReviewStatusEmployeeSubmitted, second.ReviewStatus)

	var count int64
	require.NoError(t, h.db.Model(&models.KPIReview{}).Where("kpi_id = ?", kpi.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	detail, err := h.svc.GetKPI(h.ctx, h.manager, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *detail.KPI.Items[0].EmployeeRating)
	assert.Equal(t, "great", detail.KPI.Items[0].EmployeeComment)
}

func TestService_FullReviewCycle(t *testing.T) {
	h := newHarness(t)
	kpi, review := h.reviewed(t)

	assert.Equal(t, models.ReviewStatusAwaitingEmployeeConfirmation, review.ReviewStatus)
	assert.Equal(t, []uint{review.ID}, h.docs.Published())

	score, err := h.svc.Score(h.ctx, h.emp, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.4, score.Final)
	assert.Equal(t, 1.0, score.TotalWeight)

	_, err = h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "rejected"})
	assert.True(t, workflow.IsValidation(err), "reject without note: %v", err)
	_, err = h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "approved"})
	assert.True(t, workflow.IsValidation(err), "approve without signature: %v", err)

	rejected, err := h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "rejected", RejectionNote: "too harsh"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, rejected.ReviewStatus)

	_, err = h.svc.ResolveRejection(h.ctx, h.manager, review.ID, workflow.ResolveInput{Note: "x"})
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	resolved, err := h.svc.ResolveRejection(h.ctx, h.hr, review.ID, workflow.ResolveInput{Note: "met and agreed"})
	require.NoError(t, err)

	reread, err := h.svc.GetReview(h.ctx, h.hr, review.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, reread.ReviewStatus)
	assert.Equal(t, models.RejectionResolved, reread.RejectionResolvedStatus)
	assert.Equal(t, h.tenant.HR.ID, *reread.RejectionResolvedBy)
	assert.Equal(t, "met and agreed", reread.RejectionResolvedNote)
	assert.Equal(t, resolved.ID, reread.ID)

	_, err = h.svc.ResolveRejection(h.ctx, h.hr, review.ID, workflow.ResolveInput{})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestService_ApprovalCompletesKPI(t *testing.T) {
	h := newHarness(t)
	kpi, _ := h.reviewed(t)

	review, err := h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "approved", Signature: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusCompleted, review.ReviewStatus)

	detail, err := h.svc.GetKPI(h.ctx, h.manager, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KPIStatusCompleted, detail.KPI.Status)
}

func TestService_ApprovedReviewCannotBeReopened(t *testing.T) {
	h := newHarness(t)
	kpi, _ := h.reviewed(t)

	_, err := h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "approved", Signature: "ok"})
	require.NoError(t, err)

	_, err = h.svc.SubmitManagerReview(h.ctx, h.manager, kpi.ID, workflow.ManagerReviewInput{Signature: "again"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "rejected", RejectionNote: "changed my mind"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	detail, err := h.svc.GetKPI(h.ctx, h.manager, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KPIStatusCompleted, detail.KPI.Status)
	assert.Equal(t, models.ReviewStatusCompleted, detail.Review.ReviewStatus)
}

func TestService_SelfRatingHRNotificationFollowsCompanySetting(t *testing.T) {
	tests := []struct {
		name    string
		setting *models.CompanySetting
		wantHR  int
	}{
		{name: "no settings row", wantHR: 0},
		{name: "disabled", setting: &models.CompanySetting{HRNotificationsEnabled: false}, wantHR: 0},
		{name: "enabled", setting: &models.CompanySetting{HRNotificationsEnabled: true}, wantHR: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setting != nil {
				tt.setting.CompanyID = h.tenant.Company.ID
				fixtures.Settings(t, h.db, tt.setting)
			}
			kpi := h.createKPI(t)
			_, err := h.svc.Acknowledge(h.ctx, h.emp, kpi.ID, workflow.AcknowledgeInput{Signature: "sig"})
			require.NoError(t, err)

			_, err = h.svc.SubmitSelfRating(h.ctx, h.emp, kpi.ID, workflow.SelfRatingInput{Comment: "done"})
			require.NoError(t, err)
			h.runner.Wait()

			got := h.sender.Addresses(models.NotificationSelfRatingSubmitted)
			assert.Equal(t, 1, got[h.tenant.Manager.Email])
			assert.Equal(t, tt.wantHR, got[h.tenant.HR.Email])

			var rows int64
			require.NoError(t, h.db.Model(&models.Notification{}).
				Where("recipient_id = ? AND type = ?", h.tenant.HR.ID, models.NotificationSelfRatingSubmitted).
				Count(&rows).Error)
			assert.Equal(t, int64(tt.wantHR), rows)
		})
	}
}

func TestService_TransitionsNotifyHRWithoutSettings(t *testing.T) {
	h := newHarness(t)
	kpi, _ := h.reviewed(t)

	_, err := h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "rejected", RejectionNote: "too harsh"})
	require.NoError(t, err)
	h.runner.Wait()

	for _, typ := range []string{
		models.NotificationKPIAcknowledged,
		models.NotificationManagerReviewSubmitted,
		models.NotificationReviewRejected,
	} {
		assert.Equal(t, 1, h.sender.Addresses(typ)[h.tenant.HR.Email], typ)
	}
	assert.Zero(t, h.sender.Addresses(models.NotificationSelfRatingSubmitted)[h.tenant.HR.Email])

	count, err := h.svc.UnreadNotifications(h.ctx, h.hr)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestService_ApprovalNotifiesHRWithoutSettings(t *testing.T) {
	h := newHarness(t)
	kpi, _ := h.reviewed(t)

	_, err := h.svc.ConfirmReview(h.ctx, h.emp, kpi.ID, workflow.ConfirmationInput{Status: "approved", Signature: "ok"})
	require.NoError(t, err)
	h.runner.Wait()

	got := h.sender.Addresses(models.NotificationReviewApproved)
	assert.Equal(t, 1, got[h.tenant.Manager.Email])
	assert.Equal(t, 1, got[h.tenant.HR.Email])
}

func TestService_NotificationFailureKeepsTransition(t *testing.T) {
	h := newHarness(t)
	h.sender.SendFunc = func(ctx context.Context, companyID uint, address, templateType string, vars map[string]string) notify.Result {
		return notify.Result{Err: errors.New("smtp down")}
	}
	h.docs.PublishFunc = func(ctx context.Context, reviewID uint) error {
		panic("renderer crashed")
	}

	kpi, review := h.reviewed(t)
	assert.NotEmpty(t, h.sender.Calls())

	detail, err := h.svc.GetKPI(h.ctx, h.manager, kpi.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KPIStatusAcknowledged, detail.KPI.Status)
	assert.Equal(t, review.ID, detail.Review.ID)
	assert.Equal(t, models.ReviewStatusAwaitingEmployeeConfirmation, detail.Review.ReviewStatus)
}

func TestService_CrossTenantIsolation(t *testing.T) {
	h := newHarness(t)
	kpi := h.createKPI(t)

	other := fixtures.NewTenant(t, h.db, "globex")
	outsider := workflow.Actor{UserID: other.Manager.ID, CompanyID: other.Company.ID, Role: models.RoleManager}
	outsiderHR := workflow.Actor{UserID: other.HR.ID, CompanyID: other.Company.ID, Role: models.RoleHR}

	_, err := h.svc.GetKPI(h.ctx, outsider, kpi.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	_, err = h.svc.Acknowledge(h.ctx, workflow.Actor{UserID: h.tenant.Employee.ID, CompanyID: other.Company.ID, Role: models.RoleEmployee}, kpi.ID, workflow.AcknowledgeInput{Signature: "s"})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	_, err = h.svc.SubmitManagerReview(h.ctx, outsiderHR, kpi.ID, workflow.ManagerReviewInput{Signature: "s"})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	list, err := h.svc.ListVisibleKPIs(h.ctx, outsiderHR, workflow.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// The employee's own manager is visible but another manager of the same company is not.
	peer := fixtures.User(t, h.db, h.tenant.Company.ID, "peer", models.RoleManager, 0)
	_, err = h.svc.GetKPI(h.ctx, workflow.Actor{UserID: peer.ID, CompanyID: h.tenant.Company.ID, Role: models.RoleManager}, kpi.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestService_ListVisibleKPIs(t *testing.T) {
	h := newHarness(t)
	mine := h.createKPI(t)

	peer := fixtures.User(t, h.db, h.tenant.Company.ID, "peer-emp", models.RoleEmployee, h.tenant.Manager.ID)
	_, err := h.svc.CreateKPI(h.ctx, h.hr, workflow.CreateKPIInput{
		EmployeeID: peer.ID,
		Title:      "Support",
		PeriodType: models.PeriodAnnual,
		Year:       2026,
		Items:      []workflow.ItemInput{{Title: "Tickets"}},
	})
	require.NoError(t, err)

	superAdmin := workflow.Actor{UserID: 999, Role: models.RoleSuperAdmin}

	tests := []struct {
		name  string
		actor workflow.Actor
		query workflow.ListQuery
		want  int
	}{
		{name: "employee sees own", actor: h.emp, want: 1},
		{name: "manager sees owned", actor: h.manager, want: 2},
		{name: "hr sees company", actor: h.hr, want: 2},
		{name: "super admin sees all", actor: superAdmin, want: 2},
		{name: "employee cannot widen scope", actor: h.emp, query: workflow.ListQuery{EmployeeID: peer.ID}, want: 1},
		{name: "status filter", actor: h.hr, query: workflow.ListQuery{Status: models.KPIStatusCompleted}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := h.svc.ListVisibleKPIs(h.ctx, tt.actor, tt.query)
			require.NoError(t, err)
			assert.Len(t, list, tt.want)
		})
	}

	list, err := h.svc.ListVisibleKPIs(h.ctx, h.emp, workflow.ListQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)
}

func TestService_MarkNotificationRead(t *testing.T) {
	h := newHarness(t)
	h.createKPI(t)

	notes, err := h.svc.ListNotifications(h.ctx, h.emp, true, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	err = h.svc.MarkNotificationRead(h.ctx, h.manager, notes[0].ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	require.NoError(t, h.svc.MarkNotificationRead(h.ctx, h.emp, notes[0].ID))
	count, err := h.svc.UnreadNotifications(h.ctx, h.emp)
	require.NoError(t, err)
	assert.Zero(t, count)
}
