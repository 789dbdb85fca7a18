package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/repository"
)

// DayKeyLayout formats the ledger day of daily reminders.
const DayKeyLayout = "2006-01-02"

var reminderTags = map[int]string{
	30: "1_month",
	21: "3_weeks",
	14: "2_weeks",
	7:  "1_week",
	3:  "3_days",
	2:  "2_days",
	1:  "1_day",
	0:  "same_day",
}

// ReminderTag maps a rule's day offset to the tag stored in the ledger.
func ReminderTag(days int) string {
	if tag, ok := reminderTags[days]; ok {
		return tag
	}
	return fmt.Sprintf("custom_%d_days", days)
}

// reminderLabel renders a day offset for messages.
func reminderLabel(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

// midnight returns the start of t's day in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// calendarDate returns the stored date's own year, month and day at midnight
// in loc. Dates are persisted as calendar days, so converting them to loc
// first would move a date-only value onto the previous day west of UTC.
func calendarDate(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayDiff returns the number of calendar days from today in loc to the
// stored date, negative when the date has passed. Rounding absorbs DST shifts.
func DayDiff(now, date time.Time, loc *time.Location) int {
	hours := calendarDate(date, loc).Sub(midnight(now, loc)).Hours()
	return int(math.Round(hours / 24))
}

// Due is one reminder to fan out for one KPI.
type Due struct {
	KPI          models.KPI
	ReminderType string
	DedupDay     string
	Label        string
	DaysOverdue  int
	PeriodEnd    time.Time
}

// Key returns the ledger key of the reminder.
func (d *Due) Key() repository.LedgerKey {
	return repository.LedgerKey{KPIID: d.KPI.ID, ReminderType: d.ReminderType, DedupDay: d.DedupDay}
}

// PlanPreDeadline returns the reminders due today for KPIs with a meeting
// date. A KPI matching several rules with the same offset is due once.
func PlanPreDeadline(now time.Time, loc *time.Location, kpis []models.KPI, rules []models.ReminderSetting) []Due {
	var due []Due
	for _, kpi := range kpis {
		if kpi.MeetingDate == nil || !isOpen(kpi.Status) {
			continue
		}
		days := DayDiff(now, *kpi.MeetingDate, loc)
		seen := make(map[string]bool)
		for i := range rules {
			rule := &rules[i]
			if rule.DaysBefore != days || !rule.MatchesPeriod(kpi.PeriodType) {
				continue
			}
			tag := ReminderTag(rule.DaysBefore)
			if seen[tag] {
				continue
			}
			seen[tag] = true

			label := rule.Label
			if label == "" {
				label = reminderLabel(days)
			}
			due = append(due, Due{KPI: kpi, ReminderType: tag, Label: label})
		}
	}
	return due
}

// PlanOverdue returns today's overdue reminders of one company: open KPIs of
// every active period that ended at least the configured number of days ago.
func PlanOverdue(now time.Time, loc *time.Location, setting *models.CompanySetting, periods []models.KPIPeriodSetting, kpis []models.KPI) []Due {
	if setting == nil || !setting.DailyRemindersEnabled || setting.DailyReminderDays == nil {
		return nil
	}
	delay := *setting.DailyReminderDays
	day := midnight(now, loc).Format(DayKeyLayout)

	var due []Due
	for _, period := range periods {
		if !period.IsActive {
			continue
		}
		overdue := -DayDiff(now, period.EndDate, loc)
		if overdue < delay {
			continue
		}
		for _, kpi := range kpis {
			if !isOpen(kpi.Status) || !inPeriod(&kpi, &period) {
				continue
			}
			due = append(due, Due{
				KPI:          kpi,
				ReminderType: models.ReminderTypeDailyOverdue,
				DedupDay:     day,
				DaysOverdue:  overdue,
				PeriodEnd:    period.EndDate,
			})
		}
	}
	return due
}

func inPeriod(kpi *models.KPI, period *models.KPIPeriodSetting) bool {
	if kpi.PeriodType != period.PeriodType || kpi.Year != period.Year {
		return false
	}
	return kpi.PeriodType != models.PeriodQuarterly || kpi.Quarter == period.Quarter
}

func isOpen(status string) bool {
	for _, s := range models.OpenKPIStatuses {
		if s == status {
			return true
		}
	}
	return false
}
