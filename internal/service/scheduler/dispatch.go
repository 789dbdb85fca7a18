package scheduler

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	prommetrics "github.com/john2100013/kpi-review/internal/metrics"
	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/notify"
	"github.com/john2100013/kpi-review/internal/repository"
)

// tenantPlan is the due set of one company with everything needed to send it.
type tenantPlan struct {
	companyID  uint
	due        []Due
	recipients repository.Recipients
	setting    models.CompanySetting
	people     map[uint]models.User
	existing   map[repository.LedgerKey]bool
}

// recipient is one delivery target. userID is zero for CC addresses, which
// get email only.
type recipient struct {
	userID  uint
	name    string
	address string
}

// attach bulk-loads recipients, settings, KPI parties and ledger rows for all plans.
func (s *Service) attach(ctx context.Context, plans []tenantPlan, dedupDay string) ([]tenantPlan, error) {
	if len(plans) == 0 {
		return nil, nil
	}

	companyIDs := make([]uint, 0, len(plans))
	var kpiIDs, userIDs []uint
	for _, p := range plans {
		companyIDs = append(companyIDs, p.companyID)
		for _, d := range p.due {
			kpiIDs = append(kpiIDs, d.KPI.ID)
			userIDs = append(userIDs, d.KPI.EmployeeID, d.KPI.ManagerID)
		}
	}

	recipients, err := s.directory.RecipientsByCompany(ctx, companyIDs)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.CompanySettings(ctx, companyIDs)
	if err != nil {
		return nil, err
	}
	people, err := s.directory.UsersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	existing, err := s.reminders.ExistingKeys(ctx, kpiIDs, dedupDay)
	if err != nil {
		return nil, err
	}

	for i := range plans {
		id := plans[i].companyID
		plans[i].recipients = recipients[id]
		plans[i].setting = settings[id]
		plans[i].people = people
		plans[i].existing = existing
	}
	return plans, nil
}

// runTenant claims and fans out every due reminder of one tenant. A panic is
// reported as the tenant's error.
func (s *Service) runTenant(ctx context.Context, sweep string, now time.Time, t *tenantPlan, res *SweepResult) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in tenant %d: %v", t.companyID, rec)
		}
	}()

	templateType := models.NotificationKPISettingReminder
	if sweep == SweepOverdue {
		templateType = models.NotificationKPIOverdueReminder
	}

	var rows []models.Notification
	for i := range t.due {
		due := &t.due[i]
		if t.existing[due.Key()] {
			res.Duplicates++
			prommetrics.RecordReminderDuplicate(sweep)
			continue
		}

		claimed, err := s.reminders.Claim(ctx, &models.ReminderTrackingRecord{
			CompanyID:    t.companyID,
			KPIID:        due.KPI.ID,
			ReminderType: due.ReminderType,
			DedupDay:     due.DedupDay,
			SentAt:       now,
		})
		if err != nil {
			res.Errors++
			s.log.Tenant(t.companyID).Error().Err(err).Str("sweep", sweep).Uint("kpi_id", due.KPI.ID).Msg("Failed to claim reminder")
			continue
		}
		if !claimed {
			res.Duplicates++
			prommetrics.RecordReminderDuplicate(sweep)
			continue
		}

		to := s.audience(sweep, t, due)
		vars := s.reminderVars(t, due)
		delivered, failed := s.fanOut(ctx, t.companyID, templateType, to, vars)
		res.Dispatched++
		res.Delivered += delivered
		res.Failed += failed
		prommetrics.RecordReminderDispatched(sweep)

		rows = append(rows, s.inApp(t.companyID, due, templateType, to, vars)...)

		s.log.Tenant(t.companyID).Debug().
			Str("sweep", sweep).
			Uint("kpi_id", due.KPI.ID).
			Str("reminder_type", due.ReminderType).
			Int("recipients", len(to)).
			Int("failed", failed).
			Msg("Reminder dispatched")
	}

	return s.notifications.CreateBatch(ctx, rows)
}

// audience resolves the recipients of a due reminder. Pre-deadline reminders
// go to every manager and employee of the tenant, and to HR when the tenant
// enables HR notifications. Overdue reminders go to the KPI's employee and
// manager, every HR user and the tenant's CC list.
func (s *Service) audience(sweep string, t *tenantPlan, due *Due) []recipient {
	var out []recipient
	seen := make(map[string]bool)
	add := func(userID uint, name, address string) {
		key := strings.ToLower(strings.TrimSpace(address))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, recipient{userID: userID, name: name, address: address})
	}
	addUser := func(u models.User) {
		if u.HasContactAddress() {
			add(u.ID, u.Name, u.Email)
		}
	}

	if sweep == SweepOverdue {
		addUser(t.people[due.KPI.EmployeeID])
		addUser(t.people[due.KPI.ManagerID])
		for _, u := range t.recipients.HR {
			addUser(u)
		}
		for _, cc := range t.setting.CCAddresses() {
			add(0, "", cc)
		}
		return out
	}

	for _, u := range t.recipients.Managers {
		addUser(u)
	}
	for _, u := range t.recipients.Employees {
		addUser(u)
	}
	if t.setting.HRNotificationsEnabled {
		for _, u := range t.recipients.HR {
			addUser(u)
		}
	}
	return out
}

func (s *Service) reminderVars(t *tenantPlan, due *Due) map[string]string {
	kpi := &due.KPI
	vars := map[string]string{
		"kpi_title":      kpi.Title,
		"period":         periodName(kpi),
		"status":         kpi.Status,
		"employee_name":  t.people[kpi.EmployeeID].Name,
		"manager_name":   t.people[kpi.ManagerID].Name,
		"reminder_label": due.Label,
	}
	if kpi.MeetingDate != nil {
		vars["meeting_date"] = kpi.MeetingDate.Format(DayKeyLayout)
	}
	if !due.PeriodEnd.IsZero() {
		vars["period_end"] = due.PeriodEnd.Format(DayKeyLayout)
		vars["days_overdue"] = strconv.Itoa(due.DaysOverdue)
	}
	return vars
}

// fanOut sends to every recipient concurrently. A failed delivery never
// affects the others.
func (s *Service) fanOut(ctx context.Context, companyID uint, templateType string, to []recipient, vars map[string]string) (delivered, failed int) {
	limit := s.config.DispatchConcurrency
	if limit <= 0 {
		limit = defaultDispatchConcurrency
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, r := range to {
		r := r
		g.Go(func() error {
			var res notify.Result
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						res = notify.Result{Err: fmt.Errorf("send panic: %v", rec)}
					}
				}()
				v := maps.Clone(vars)
				v["recipient_name"] = r.name
				res = s.sender.Send(ctx, companyID, r.address, templateType, v)
			}()

			mu.Lock()
			defer mu.Unlock()
			if res.Success {
				delivered++
				return nil
			}
			failed++
			s.log.Warn().Err(res.Err).Str("template", templateType).Str("to", r.address).Msg("Reminder delivery failed")
			return nil
		})
	}
	_ = g.Wait()
	return delivered, failed
}

// inApp builds the in-app notification rows of a dispatched reminder.
func (s *Service) inApp(companyID uint, due *Due, templateType string, to []recipient, vars map[string]string) []models.Notification {
	rows := make([]models.Notification, 0, len(to))
	for _, r := range to {
		if r.userID == 0 {
			continue
		}
		v := maps.Clone(vars)
		v["recipient_name"] = r.name

		kpiID := due.KPI.ID
		n := models.Notification{
			CompanyID:   companyID,
			RecipientID: r.userID,
			Type:        templateType,
			Title:       templateType,
			KPIID:       &kpiID,
		}
		if msg, err := s.catalog.Render(templateType, v); err == nil {
			n.Title = msg.Subject
			n.Message = msg.Notice
		} else {
			s.log.Warn().Err(err).Str("template", templateType).Msg("Failed to render in-app reminder")
		}
		rows = append(rows, n)
	}
	return rows
}
