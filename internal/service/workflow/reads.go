package workflow

import (
	"context"

	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/repository"
	"github.com/john2100013/kpi-review/internal/service/rating"
)

// ListQuery holds the optional KPI listing filters.
type ListQuery struct {
	Status       string
	PeriodType   string
	Quarter      string
	Year         int
	EmployeeID   uint
	DepartmentID uint
}

func (q ListQuery) filters() *repository.Filters {
	f := repository.NewFilters()
	if q.Status != "" {
		f.WithStatuses(q.Status)
	}
	if q.PeriodType != "" {
		f.With(repository.FilterPeriodType, q.PeriodType)
	}
	if q.Quarter != "" {
		f.With(repository.FilterQuarter, q.Quarter)
	}
	if q.Year != 0 {
		f.With(repository.FilterYear, q.Year)
	}
	if q.EmployeeID != 0 {
		f.With(repository.FilterEmployee, q.EmployeeID)
	}
	if q.DepartmentID != 0 {
		f.With(repository.FilterDepartment, q.DepartmentID)
	}
	return f
}

// KPIDetail is a KPI with its review and current manager score.
type KPIDetail struct {
	KPI    *models.KPI       `json:"kpi"`
	Review *models.KPIReview `json:"review,omitempty"`
	Score  rating.Score      `json:"score"`
}

// ListVisibleKPIs lists the KPIs the actor's view allows.
func (s *Service) ListVisibleKPIs(ctx context.Context, actor Actor, q ListQuery) ([]models.KPI, error) {
	view, err := ViewFor(actor)
	if err != nil {
		return nil, err
	}
	return newRepos(s.db).kpis.List(ctx, view.Scope(q.filters()))
}

// GetKPI returns one KPI the actor may see.
func (s *Service) GetKPI(ctx context.Context, actor Actor, id uint) (*KPIDetail, error) {
	r := newRepos(s.db)
	kpi, err := s.visibleKPI(ctx, r, actor, id)
	if err != nil {
		return nil, err
	}
	review, err := r.reviews.FindByKPI(ctx, kpi.ID)
	if err != nil {
		return nil, err
	}
	return &KPIDetail{KPI: kpi, Review: review, Score: rating.ManagerScore(kpi.Items)}, nil
}

// GetReview returns one review the actor may see.
func (s *Service) GetReview(ctx context.Context, actor Actor, id uint) (*models.KPIReview, error) {
	r := newRepos(s.db)
	review, err := s.loadReview(ctx, r, actor, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleKPI(ctx, r, actor, review.KPIID); err != nil {
		return nil, err
	}
	return review, nil
}

// Score computes the weighted manager score of a KPI.
func (s *Service) Score(ctx context.Context, actor Actor, kpiID uint) (rating.Score, error) {
	kpi, err := s.visibleKPI(ctx, newRepos(s.db), actor, kpiID)
	if err != nil {
		return rating.Score{}, err
	}
	return rating.ManagerScore(kpi.Items), nil
}

func (s *Service) visibleKPI(ctx context.Context, r repos, actor Actor, id uint) (*models.KPI, error) {
	view, err := ViewFor(actor)
	if err != nil {
		return nil, err
	}
	kpi, err := s.loadKPI(ctx, r, actor, id)
	if err != nil {
		return nil, err
	}
	if !view.CanSee(kpi) {
		return nil, forbidden("user %d cannot see kpi %d", actor.UserID, id)
	}
	return kpi, nil
}

// ListNotifications lists the actor's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, actor Actor, unreadOnly bool, limit int) ([]models.Notification, error) {
	return newRepos(s.db).notifications.ListForRecipient(ctx, actor.CompanyID, actor.UserID, unreadOnly, limit)
}

// UnreadNotifications counts the actor's unread notifications.
func (s *Service) UnreadNotifications(ctx context.Context, actor Actor) (int64, error) {
	return newRepos(s.db).notifications.UnreadCount(ctx, actor.CompanyID, actor.UserID)
}

// MarkNotificationRead marks one of the actor's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, actor Actor, id uint) error {
	if err := newRepos(s.db).notifications.MarkRead(ctx, actor.CompanyID, actor.UserID, id); err != nil {
		return notFound(err, "notification", id)
	}
	return nil
}
