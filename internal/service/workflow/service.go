// Package workflow implements the KPI review lifecycle: creation,
// acknowledgement, self-rating, manager review, employee confirmation and
// HR resolution of rejected reviews.
package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/john2100013/kpi-review/internal/clock"
	"github.com/john2100013/kpi-review/internal/metrics"
	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/notify"
	"github.com/john2100013/kpi-review/internal/repository"
	"github.com/john2100013/kpi-review/pkg/logger"
)

// DocumentPublisher renders and stores the review document.
type DocumentPublisher interface {
	Publish(ctx context.Context, reviewID uint) error
}

// Service runs workflow transitions against the database.
type Service struct {
	db        *repository.DB
	catalog   *notify.Catalog
	sender    notify.Sender
	runner    *notify.Runner
	documents DocumentPublisher
	clock     clock.Clock
	validate  *validator.Validate
	log       *logger.Logger
}

// NewService creates a new workflow service. documents may be nil when
// review documents are disabled.
func NewService(
	db *repository.DB,
	catalog *notify.Catalog,
	sender notify.Sender,
	runner *notify.Runner,
	documents DocumentPublisher,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		db:        db,
		catalog:   catalog,
		sender:    sender,
		runner:    runner,
		documents: documents,
		clock:     clk,
		validate:  newValidator(),
		log:       log.Component("workflow"),
	}
}

// repos bundles the repositories bound to one database handle.
type repos struct {
	kpis          *repository.KPIRepository
	reviews       *repository.ReviewRepository
	notifications *repository.NotificationRepository
	directory     *repository.DirectoryRepository
	settings      *repository.SettingsRepository
}

func newRepos(db *repository.DB) repos {
	return repos{
		kpis:          repository.NewKPIRepository(db),
		reviews:       repository.NewReviewRepository(db),
		notifications: repository.NewNotificationRepository(db),
		directory:     repository.NewDirectoryRepository(db),
		settings:      repository.NewSettingsRepository(db),
	}
}

// run executes step inside one transaction together with the in-app
// notification rows, then starts the detached effects.
func (s *Service) run(ctx context.Context, name string, actor Actor, step func(r repos, now time.Time) (*Outcome, error)) (out *Outcome, err error) {
	defer func() {
		metrics.RecordTransition(name, outcome(err))
	}()

	var jobs []notify.Job
	err = s.db.Transaction(ctx, func(tx *repository.DB) error {
		r := newRepos(tx)
		o, err := step(r, s.clock.Now())
		if err != nil {
			return err
		}
		j, err := s.applyEffects(ctx, r, o)
		if err != nil {
			return err
		}
		out, jobs = o, j
		return nil
	})
	if err != nil {
		s.log.Debug().Err(err).Str("transition", name).Uint("actor_id", actor.UserID).Msg("Transition rejected")
		return nil, err
	}

	s.runner.Go(ctx, jobs...)

	evt := s.log.Info().
		Str("transition", name).
		Uint("actor_id", actor.UserID).
		Uint("company_id", out.KPI.CompanyID).
		Uint("kpi_id", out.KPI.ID)
	if out.Review != nil {
		evt = evt.Uint("review_id", out.Review.ID).Str("review_status", out.Review.ReviewStatus)
	}
	evt.Int("effects", len(jobs)).Msg("Transition applied")

	return out, nil
}

func (s *Service) loadKPI(ctx context.Context, r repos, actor Actor, id uint) (*models.KPI, error) {
	var kpi *models.KPI
	var err error
	if actor.CompanyID == 0 && actor.Role == models.RoleSuperAdmin {
		kpi, err = r.kpis.GetByID(ctx, id)
	} else {
		kpi, err = r.kpis.GetInCompany(ctx, actor.CompanyID, id)
	}
	if err != nil {
		return nil, notFound(err, "kpi", id)
	}
	return kpi, nil
}

func (s *Service) loadReview(ctx context.Context, r repos, actor Actor, id uint) (*models.KPIReview, error) {
	var review *models.KPIReview
	var err error
	if actor.CompanyID == 0 && actor.Role == models.RoleSuperAdmin {
		review, err = r.reviews.GetByID(ctx, id)
	} else {
		review, err = r.reviews.GetInCompany(ctx, actor.CompanyID, id)
	}
	if err != nil {
		return nil, notFound(err, "review", id)
	}
	return review, nil
}

// CreateKPI creates a pending KPI for an employee who reports to the actor.
func (s *Service) CreateKPI(ctx context.Context, actor Actor, in CreateKPIInput) (*models.KPI, error) {
	if err := validateStruct(s.validate, in); err != nil {
		metrics.RecordTransition("create_kpi", outcome(err))
		return nil, err
	}

	out, err := s.run(ctx, "create_kpi", actor, func(r repos, now time.Time) (*Outcome, error) {
		var employee *models.User
		var err error
		if actor.CompanyID == 0 && actor.Role == models.RoleSuperAdmin {
			employee, err = r.directory.GetUser(ctx, in.EmployeeID)
		} else {
			employee, err = r.directory.GetUserInCompany(ctx, actor.CompanyID, in.EmployeeID)
		}
		if err != nil {
			return nil, notFound(err, "employee", in.EmployeeID)
		}

		out, err := CreateKPI(now, actor, employee, in)
		if err != nil {
			return nil, err
		}
		kpi := out.KPI

		period, err := r.settings.FindActivePeriod(ctx, kpi.CompanyID, kpi.PeriodType, kpi.Quarter, kpi.Year)
		if err != nil {
			return nil, err
		}
		if period == nil {
			return nil, invalid("period", fmt.Sprintf("no active %s period for %s", kpi.PeriodType, periodLabel(kpi)))
		}

		ok, err := r.directory.IsValidManager(ctx, kpi.CompanyID, kpi.ManagerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, invalid("manager_id", "employee's manager must be a manager or HR user of the company")
		}

		if err := r.kpis.Create(ctx, kpi); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return out.KPI, nil
}

// Acknowledge signs a pending KPI as its employee.
func (s *Service) Acknowledge(ctx context.Context, actor Actor, kpiID uint, in AcknowledgeInput) (*models.KPI, error) {
	out, err := s.run(ctx, "acknowledge", actor, func(r repos, now time.Time) (*Outcome, error) {
		kpi, err := s.loadKPI(ctx, r, actor, kpiID)
		if err != nil {
			return nil, err
		}
		out, err := Acknowledge(now, actor, kpi, in)
		if err != nil {
			return nil, err
		}
		if err := r.kpis.Update(ctx, out.KPI); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return out.KPI, nil
}

// SubmitSelfRating creates or updates the KPI's review with the employee's ratings.
func (s *Service) SubmitSelfRating(ctx context.Context, actor Actor, kpiID uint, in SelfRatingInput) (*models.KPIReview, error) {
	if err := validateStruct(s.validate, in); err != nil {
		metrics.RecordTransition("self_rating", outcome(err))
		return nil, err
	}

	out, err := s.run(ctx, "self_rating", actor, func(r repos, now time.Time) (*Outcome, error) {
		kpi, err := s.loadKPI(ctx, r, actor, kpiID)
		if err != nil {
			return nil, err
		}
		existing, err := r.reviews.FindByKPI(ctx, kpi.ID)
		if err != nil {
			return nil, err
		}
		out, err := SubmitSelfRating(now, actor, kpi, existing, in)
		if err != nil {
			return nil, err
		}
		if err := r.kpis.UpdateItems(ctx, out.Items); err != nil {
			return nil, err
		}
		if err := r.reviews.Save(ctx, out.Review); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return out.Review, nil
}

// SubmitManagerReview records the manager's ratings on the KPI's review.
func (s *Service) SubmitManagerReview(ctx context.Context, actor Actor, kpiID uint, in ManagerReviewInput) (*models.KPIReview, error) {
	if err := validateStruct(s.validate, in); err != nil {
		metrics.RecordTransition("manager_review", outcome(err))
		return nil, err
	}

	out, err := s.run(ctx, "manager_review", actor, func(r repos, now time.Time) (*Outcome, error) {
		kpi, err := s.loadKPI(ctx, r, actor, kpiID)
		if err != nil {
			return nil, err
		}
		review, err := r.reviews.FindByKPI(ctx, kpi.ID)
		if err != nil {
			return nil, err
		}
		out, err := SubmitManagerReview(now, actor, kpi, review, in)
		if err != nil {
			return nil, err
		}
		if err := r.kpis.UpdateItems(ctx, out.Items); err != nil {
			return nil, err
		}
		if err := r.reviews.Save(ctx, out.Review); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return out.Review, nil
}

// ConfirmReview approves or rejects the manager's rating as the employee.
func (s *Service) ConfirmReview(ctx context.Context, actor Actor, kpiID uint, in ConfirmationInput) (*models.KPIReview, error) {
	out, err := s.run(ctx, "confirmation", actor, func(r repos, now time.Time) (*Outcome, error) {
		kpi, err := s.loadKPI(ctx, r, actor, kpiID)
		if err != nil {
			return nil, err
		}
		review, err := r.reviews.FindByKPI(ctx, kpi.ID)
		if err != nil {
			return nil, err
		}
		out, err := ConfirmReview(now, actor, kpi, review, in)
		if err != nil {
			return nil, err
		}
		if err := r.reviews.Save(ctx, out.Review); err != nil {
			return nil, err
		}
		if err := r.kpis.Update(ctx, out.KPI); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return out.Review, nil
}

// ResolveRejection marks a rejected review as resolved. Only HR may do this.
func (s *Service) ResolveRejection(ctx context.Context, actor Actor, reviewID uint, in ResolveInput) (*models.KPIReview, error) {
	out, err := s.run(ctx, "resolve_rejection", actor, func(r repos, now time.Time) (*Outcome, error) {
		review, err := s.loadReview(ctx, r, actor, reviewID)
		if err != nil {
			return nil, err
		}
		kpi, err := r.kpis.GetByID(ctx, review.KPIID)
		if err != nil {
			return nil, notFound(err, "kpi", review.KPIID)
		}
		out, err := ResolveRejection(now, actor, kpi, review, in)
		if err != nil {
			return nil, err
		}
		if err := r.reviews.Save(ctx, out.Review); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return out.Review, nil
}

// periodLabel renders the KPI period for messages, e.g. "Q1 2026".
func periodLabel(kpi *models.KPI) string {
	if kpi.PeriodType == models.PeriodQuarterly && kpi.Quarter != "" {
		return kpi.Quarter + " " + strconv.Itoa(kpi.Year)
	}
	return "Annual " + strconv.Itoa(kpi.Year)
}
