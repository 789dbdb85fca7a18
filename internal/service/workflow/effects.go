package workflow

import (
	"context"
	"maps"

	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/notify"
)

// applyEffects writes the in-app notifications of an outcome through r and
// returns the jobs to run after commit.
func (s *Service) applyEffects(ctx context.Context, r repos, out *Outcome) ([]notify.Job, error) {
	kpi := out.KPI
	var rows []models.Notification
	var jobs []notify.Job

	var people map[uint]models.User
	var hr []models.User
	hrLoaded := false
	hrOptional, optionalLoaded := false, false

	for _, effect := range out.Effects {
		switch e := effect.(type) {
		case Notify:
			if people == nil {
				var err error
				people, err = r.directory.UsersByID(ctx, []uint{kpi.EmployeeID, kpi.ManagerID})
				if err != nil {
					return nil, err
				}
			}
			if !hrLoaded && wantsHR(e) {
				var err error
				if hr, err = r.directory.HRUsers(ctx, kpi.CompanyID); err != nil {
					return nil, err
				}
				hrLoaded = true
			}
			if !optionalLoaded && wantsOptionalHR(e) {
				setting, err := r.settings.GetCompanySetting(ctx, kpi.CompanyID)
				if err != nil {
					return nil, err
				}
				hrOptional = setting.HRNotificationsEnabled
				optionalLoaded = true
			}

			base := s.templateVars(kpi, people)
			maps.Copy(base, e.Vars)
			for _, user := range recipients(e, kpi, people, hr, hrOptional) {
				vars := maps.Clone(base)
				vars["recipient_name"] = user.Name

				rows = append(rows, s.inApp(kpi, out.Review, user.ID, e.Type, vars))
				if user.HasContactAddress() {
					jobs = append(jobs, notify.SendJob(s.sender, kpi.CompanyID, user.Email, e.Type, vars))
				}
			}

		case GenerateDocument:
			if s.documents == nil || out.Review == nil {
				continue
			}
			reviewID := out.Review.ID
			jobs = append(jobs, notify.Func("document:review", func(ctx context.Context) error {
				return s.documents.Publish(ctx, reviewID)
			}))
		}
	}

	if err := r.notifications.CreateBatch(ctx, rows); err != nil {
		return nil, err
	}
	return jobs, nil
}

func wantsHR(n Notify) bool {
	for _, a := range n.To {
		if a == AudienceHR || a == AudienceHROptional {
			return true
		}
	}
	return false
}

func wantsOptionalHR(n Notify) bool {
	for _, a := range n.To {
		if a == AudienceHROptional {
			return true
		}
	}
	return false
}

// recipients resolves the audiences of n to distinct users. Optional HR
// recipients are included only when hrOptional is set.
func recipients(n Notify, kpi *models.KPI, people map[uint]models.User, hr []models.User, hrOptional bool) []models.User {
	seen := make(map[uint]bool)
	var out []models.User
	add := func(u models.User) {
		if u.ID == 0 || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		out = append(out, u)
	}

	for _, a := range n.To {
		switch a {
		case AudienceEmployee:
			add(people[kpi.EmployeeID])
		case AudienceManager:
			add(people[kpi.ManagerID])
		case AudienceHR:
			for _, u := range hr {
				add(u)
			}
		case AudienceHROptional:
			if !hrOptional {
				continue
			}
			for _, u := range hr {
				add(u)
			}
		}
	}
	return out
}

func (s *Service) templateVars(kpi *models.KPI, people map[uint]models.User) map[string]string {
	vars := map[string]string{
		"kpi_title":     kpi.Title,
		"period":        periodLabel(kpi),
		"employee_name": people[kpi.EmployeeID].Name,
		"manager_name":  people[kpi.ManagerID].Name,
	}
	if kpi.MeetingDate != nil {
		vars["meeting_date"] = kpi.MeetingDate.Format("2006-01-02")
	}
	return vars
}

func (s *Service) inApp(kpi *models.KPI, review *models.KPIReview, recipientID uint, typ string, vars map[string]string) models.Notification {
	n := models.Notification{
		CompanyID:   kpi.CompanyID,
		RecipientID: recipientID,
		Type:        typ,
		Title:       typ,
	}
	kpiID := kpi.ID
	n.KPIID = &kpiID
	if review != nil && review.ID != 0 {
		reviewID := review.ID
		n.ReviewID = &reviewID
	}

	msg, err := s.catalog.Render(typ, vars)
	if err != nil {
		s.log.Warn().Err(err).Str("template", typ).Msg("Failed to render in-app notification")
		return n
	}
	n.Title = msg.Subject
	n.Message = msg.Notice
	return n
}
