// Package scheduler runs the daily KPI reminder sweeps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/john2100013/kpi-review/internal/cache"
	"github.com/john2100013/kpi-review/internal/clock"
	"github.com/john2100013/kpi-review/internal/config"
	prommetrics "github.com/john2100013/kpi-review/internal/metrics"
	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/notify"
	"github.com/john2100013/kpi-review/internal/repository"
	"github.com/john2100013/kpi-review/pkg/logger"
)

// Sweep names, used for locks, metrics and logs.
const (
	SweepPreDeadline = "pre_deadline"
	SweepOverdue     = "overdue"
)

const defaultDispatchConcurrency = 8

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Sweep      string
	Tenants    int // tenants with at least one due reminder
	Due        int
	Dispatched int // reminders claimed and fanned out
	Duplicates int // reminders already in the ledger
	Delivered  int
	Failed     int // failed recipient deliveries
	Errors     int // tenants or ledger writes that failed
}

// Service schedules and runs the reminder sweeps.
type Service struct {
	config        *config.SchedulerConfig
	kpis          *repository.KPIRepository
	settings      *repository.SettingsRepository
	directory     *repository.DirectoryRepository
	reminders     *repository.ReminderRepository
	notifications *repository.NotificationRepository
	catalog       *notify.Catalog
	sender        notify.Sender
	locker        cache.Locker
	clock         clock.Clock
	log           *logger.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
	ctx    context.Context
}

// NewService creates a new scheduler service. A nil locker disables
// cross-instance locking; the ledger still prevents duplicate sends.
func NewService(
	cfg *config.SchedulerConfig,
	db *repository.DB,
	catalog *notify.Catalog,
	sender notify.Sender,
	locker cache.Locker,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	return &Service{
		config:        cfg,
		kpis:          repository.NewKPIRepository(db),
		settings:      repository.NewSettingsRepository(db),
		directory:     repository.NewDirectoryRepository(db),
		reminders:     repository.NewReminderRepository(db),
		notifications: repository.NewNotificationRepository(db),
		catalog:       catalog,
		sender:        sender,
		locker:        locker,
		clock:         clk,
		log:           log.Component("scheduler"),
		ctx:           context.Background(),
	}
}

// Start registers both sweeps and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	preExpr, err := s.buildCronExpression(s.config.Time)
	if err != nil {
		return fmt.Errorf("failed to build pre-deadline cron expression: %w", err)
	}
	overdueExpr, err := s.buildCronExpression(s.config.OverdueTime)
	if err != nil {
		return fmt.Errorf("failed to build overdue cron expression: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.Recover(cronLogger{log: s.log})),
	)

	if _, err := s.cron.AddFunc(preExpr, func() {
		_, _ = s.RunPreDeadlineSweep(s.ctx)
	}); err != nil {
		return fmt.Errorf("failed to register pre-deadline sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(overdueExpr, func() {
		_, _ = s.RunOverdueSweep(s.ctx)
	}); err != nil {
		return fmt.Errorf("failed to register overdue sweep: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("pre_deadline_schedule", preExpr).
		Str("overdue_schedule", overdueExpr).
		Str("timezone", location.String()).
		Bool("skip_weekends", s.config.SkipWeekends).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop cancels running sweeps after their current tenant and waits for them.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// buildCronExpression turns an HH:MM time into a daily, or weekday, cron spec.
func (s *Service) buildCronExpression(at string) (string, error) {
	hour, minute, err := config.ParseClock(at)
	if err != nil {
		return "", err
	}

	// Format: "minute hour day month weekday"
	if s.config.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// RunPreDeadlineSweep sends the reminders whose rule offset matches the days
// left until each KPI meeting.
func (s *Service) RunPreDeadlineSweep(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, SweepPreDeadline, s.planPreDeadline)
}

// RunOverdueSweep sends today's reminders for KPIs still open after their
// period ended.
func (s *Service) RunOverdueSweep(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, SweepOverdue, s.planOverdue)
}

type planFunc func(ctx context.Context, now time.Time, loc *time.Location) ([]tenantPlan, error)

func (s *Service) run(ctx context.Context, sweep string, plan planFunc) (res SweepResult, err error) {
	start := time.Now()
	res.Sweep = sweep

	lock, lockErr := s.locker.Acquire(ctx, "sweep:"+sweep, s.config.LockTTL)
	switch {
	case errors.Is(lockErr, cache.ErrLockHeld):
		s.log.Info().Str("sweep", sweep).Msg("Sweep is running on another instance, skipped")
		prommetrics.RecordSweep(sweep, "skipped", time.Since(start))
		return res, nil
	case lockErr != nil:
		s.log.Warn().Err(lockErr).Str("sweep", sweep).Msg("Failed to acquire sweep lock, relying on the ledger")
	default:
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Str("sweep", sweep).Msg("Failed to release sweep lock")
			}
		}()
	}

	defer func() {
		status := "success"
		switch {
		case err != nil:
			status = "error"
		case res.Errors > 0:
			status = "partial"
		}
		prommetrics.RecordSweep(sweep, status, time.Since(start))

		evt := s.log.Info()
		if err != nil {
			evt = s.log.Error().Err(err)
		}
		evt.Str("sweep", sweep).
			Int("tenants", res.Tenants).
			Int("due", res.Due).
			Int("dispatched", res.Dispatched).
			Int("duplicates", res.Duplicates).
			Int("delivered", res.Delivered).
			Int("failed", res.Failed).
			Int("errors", res.Errors).
			Dur("duration", time.Since(start)).
			Msg("Reminder sweep finished")
	}()

	loc, err := s.config.GetLocation()
	if err != nil {
		return res, fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	now := s.clock.Now()
	plans, err := plan(ctx, now, loc)
	if err != nil {
		return res, err
	}

	for i := range plans {
		if err := ctx.Err(); err != nil {
			s.log.Info().Str("sweep", sweep).Int("remaining_tenants", len(plans)-i).Msg("Sweep canceled before next tenant")
			return res, err
		}
		res.Tenants++
		res.Due += len(plans[i].due)
		// A started tenant runs to completion.
		if err := s.runTenant(context.WithoutCancel(ctx), sweep, now, &plans[i], &res); err != nil {
			res.Errors++
			s.log.Error().Err(err).Str("sweep", sweep).Uint("company_id", plans[i].companyID).Msg("Tenant sweep failed")
		}
	}
	return res, nil
}

func (s *Service) planPreDeadline(ctx context.Context, now time.Time, loc *time.Location) ([]tenantPlan, error) {
	ids, err := s.companyIDs(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := s.settings.ActiveReminderRules(ctx, ids, models.ReminderTypeKPISetting)
	if err != nil {
		return nil, err
	}

	withRules := make([]uint, 0, len(rules))
	for _, id := range ids {
		if len(rules[id]) > 0 {
			withRules = append(withRules, id)
		}
	}
	kpis, err := s.kpis.ListOpenWithMeeting(ctx, withRules)
	if err != nil {
		return nil, err
	}
	byCompany := groupByCompany(kpis)

	var plans []tenantPlan
	for _, id := range withRules {
		if due := PlanPreDeadline(now, loc, byCompany[id], rules[id]); len(due) > 0 {
			plans = append(plans, tenantPlan{companyID: id, due: due})
		}
	}
	return s.attach(ctx, plans, "")
}

func (s *Service) planOverdue(ctx context.Context, now time.Time, loc *time.Location) ([]tenantPlan, error) {
	ids, err := s.companyIDs(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.CompanySettings(ctx, ids)
	if err != nil {
		return nil, err
	}

	var enabled []uint
	for _, id := range ids {
		if st, ok := settings[id]; ok && st.DailyRemindersEnabled && st.DailyReminderDays != nil {
			enabled = append(enabled, id)
		}
	}
	periods, err := s.settings.ActivePeriods(ctx, enabled)
	if err != nil {
		return nil, err
	}
	kpis, err := s.kpis.ListOpen(ctx, enabled)
	if err != nil {
		return nil, err
	}
	byCompany := groupByCompany(kpis)

	var plans []tenantPlan
	for _, id := range enabled {
		setting := settings[id]
		if due := PlanOverdue(now, loc, &setting, periods[id], byCompany[id]); len(due) > 0 {
			plans = append(plans, tenantPlan{companyID: id, due: due})
		}
	}
	return s.attach(ctx, plans, midnight(now, loc).Format(DayKeyLayout))
}

func (s *Service) companyIDs(ctx context.Context) ([]uint, error) {
	companies, err := s.directory.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(companies))
	for _, c := range companies {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func groupByCompany(kpis []models.KPI) map[uint][]models.KPI {
	out := make(map[uint][]models.KPI)
	for _, k := range kpis {
		out[k.CompanyID] = append(out[k.CompanyID], k)
	}
	return out
}

// periodName renders a KPI period for messages, e.g. "Q1 2026".
func periodName(kpi *models.KPI) string {
	if kpi.PeriodType == models.PeriodQuarterly && kpi.Quarter != "" {
		return kpi.Quarter + " " + strconv.Itoa(kpi.Year)
	}
	return "Annual " + strconv.Itoa(kpi.Year)
}

// cronLogger adapts the service logger to cron's logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
