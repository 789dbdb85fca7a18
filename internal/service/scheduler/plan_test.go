package scheduler

import (
	"testing"
	"time"

	"github.com/john2100013/kpi-review/internal/models"
)

func TestReminderTag(t *testing.T) {
	tests := map[int]string{
		30: "1_month",
		21: "3_weeks",
		14: "2_weeks",
		7:  "1_week",
		3:  "3_days",
		2:  "2_days",
		1:  "1_day",
		0:  "same_day",
		5:  "custom_5_days",
		45: "custom_45_days",
	}
	for days, want := range tests {
		if got := ReminderTag(days); got != want {
			t.Errorf("ReminderTag(%d) = %q, want %q", days, got, want)
		}
	}
}

func TestDayDiff(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	pacific := time.FixedZone("UTC-8", -8*60*60)

	tests := []struct {
		name     string
		from, to time.Time
		loc      *time.Location
		want     int
	}{
		{
			name: "same day",
			from: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			to:   time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 0,
		},
		{
			name: "late evening to next morning",
			from: time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC),
			to:   time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 1,
		},
		{
			name: "one week across DST start",
			from: time.Date(2026, 3, 5, 9, 0, 0, 0, ny),
			to:   time.Date(2026, 3, 12, 9, 0, 0, 0, ny),
			loc:  ny,
			want: 7,
		},
		{
			name: "past dates are negative",
			from: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			to:   time.Date(2026, 3, 7, 8, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: -3,
		},
		{
			name: "local midnight decides the day",
			from: time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), // 23:00 on the 9th in New York
			to:   time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
			loc:  ny,
			want: 1,
		},
		{
			name: "date-only value west of UTC keeps its day",
			from: time.Date(2026, 3, 10, 9, 0, 0, 0, pacific),
			to:   time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC),
			loc:  pacific,
			want: 7,
		},
		{
			name: "date-only value east of UTC keeps its day",
			from: time.Date(2026, 3, 10, 9, 0, 0, 0, time.FixedZone("UTC+10", 10*60*60)),
			to:   time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC),
			loc:  time.FixedZone("UTC+10", 10*60*60),
			want: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayDiff(tt.from, tt.to, tt.loc); got != tt.want {
				t.Errorf("DayDiff() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPlanPreDeadline(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	inDays := func(d int) *time.Time {
		m := now.AddDate(0, 0, d).Add(2 * time.Hour)
		return &m
	}

	kpis := []models.KPI{
		{ID: 1, PeriodType: models.PeriodAnnual, Status: models.KPIStatusPending, MeetingDate: inDays(7)},
		{ID: 2, PeriodType: models.PeriodQuarterly, Status: models.KPIStatusAcknowledged, MeetingDate: inDays(7)},
		{ID: 3, PeriodType: models.PeriodAnnual, Status: models.KPIStatusCompleted, MeetingDate: inDays(7)},
		{ID: 4, PeriodType: models.PeriodAnnual, Status: models.KPIStatusPending, MeetingDate: inDays(5)},
		{ID: 5, PeriodType: models.PeriodAnnual, Status: models.KPIStatusPending},
		{ID: 6, PeriodType: models.PeriodAnnual, Status: models.KPIStatusPending, MeetingDate: inDays(6)},
	}
	rules := []models.ReminderSetting{
		{DaysBefore: 7, PeriodType: "all", IsActive: true, Label: "in one week"},
		{DaysBefore: 7, PeriodType: models.PeriodAnnual, IsActive: true},
		{DaysBefore: 5, PeriodType: models.PeriodAnnual, IsActive: true},
		{DaysBefore: 6, PeriodType: models.PeriodQuarterly, IsActive: true},
	}

	due := PlanPreDeadline(now, time.UTC, kpis, rules)

	got := make(map[uint]string)
	for _, d := range due {
		if _, dup := got[d.KPI.ID]; dup {
			t.Errorf("kpi %d planned twice", d.KPI.ID)
		}
		got[d.KPI.ID] = d.ReminderType
		if d.DedupDay != "" {
			t.Errorf("pre-deadline DedupDay = %q, want empty", d.DedupDay)
		}
	}
	want := map[uint]string{1: "1_week", 2: "1_week", 4: "custom_5_days"}
	if len(got) != len(want) {
		t.Fatalf("planned %v, want %v", got, want)
	}
	for id, tag := range want {
		if got[id] != tag {
			t.Errorf("kpi %d tag = %q, want %q", id, got[id], tag)
		}
	}
	if due[0].Label != "in one week" {
		t.Errorf("Label = %q, want the rule label", due[0].Label)
	}
}

func TestPlanPreDeadline_DateOnlyMeetingWestOfUTC(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	meeting := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	kpis := []models.KPI{{ID: 1, PeriodType: models.PeriodAnnual, Status: models.KPIStatusPending, MeetingDate: &meeting}}
	rules := []models.ReminderSetting{
		{DaysBefore: 6, PeriodType: "all", IsActive: true},
		{DaysBefore: 7, PeriodType: "all", IsActive: true},
	}

	due := PlanPreDeadline(now, loc, kpis, rules)
	if len(due) != 1 {
		t.Fatalf("PlanPreDeadline() = %d reminders, want 1", len(due))
	}
	if due[0].ReminderType != "1_week" {
		t.Errorf("ReminderType = %q, want 1_week", due[0].ReminderType)
	}
}

func TestPlanOverdue(t *testing.T) {
	now := time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC)
	three := 3
	five := 5
	six := 6

	periods := []models.KPIPeriodSetting{
		{PeriodType: models.PeriodQuarterly, Quarter: "Q1", Year: 2026, EndDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), IsActive: true},
		{PeriodType: models.PeriodQuarterly, Quarter: "Q2", Year: 2026, EndDate: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), IsActive: true},
	}
	kpis := []models.KPI{
		{ID: 1, PeriodType: models.PeriodQuarterly, Quarter: "Q1", Year: 2026, Status: models.KPIStatusPending},
		{ID: 2, PeriodType: models.PeriodQuarterly, Quarter: "Q2", Year: 2026, Status: models.KPIStatusPending},
		{ID: 3, PeriodType: models.PeriodQuarterly, Quarter: "Q1", Year: 2026, Status: models.KPIStatusCompleted},
		{ID: 4, PeriodType: models.PeriodAnnual, Year: 2026, Status: models.KPIStatusPending},
	}

	tests := []struct {
		name    string
		setting *models.CompanySetting
		want    []uint
	}{
		{name: "disabled", setting: &models.CompanySetting{DailyReminderDays: &three}},
		{name: "no delay configured", setting: &models.CompanySetting{DailyRemindersEnabled: true}},
		{name: "delay not reached", setting: &models.CompanySetting{DailyRemindersEnabled: true, DailyReminderDays: &six}},
		{name: "delay reached today", setting: &models.CompanySetting{DailyRemindersEnabled: true, DailyReminderDays: &five}, want: []uint{1}},
		{name: "overdue", setting: &models.CompanySetting{DailyRemindersEnabled: true, DailyReminderDays: &three}, want: []uint{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := PlanOverdue(now, time.UTC, tt.setting, periods, kpis)
			if len(due) != len(tt.want) {
				t.Fatalf("PlanOverdue() = %d reminders, want %d", len(due), len(tt.want))
			}
			for i, d := range due {
				if d.KPI.ID != tt.want[i] {
					t.Errorf("due[%d].KPI.ID = %d, want %d", i, d.KPI.ID, tt.want[i])
				}
				if d.DedupDay != "2026-04-05" || d.ReminderType != models.ReminderTypeDailyOverdue {
					t.Errorf("due[%d] key = %s/%s, want daily_overdue/2026-04-05", i, d.ReminderType, d.DedupDay)
				}
				if d.DaysOverdue != 5 {
					t.Errorf("due[%d].DaysOverdue = %d, want 5", i, d.DaysOverdue)
				}
			}
		})
	}
}

func TestPlanOverdue_DateOnlyEndWestOfUTC(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	now := time.Date(2026, 4, 5, 9, 0, 0, 0, loc)
	days := 5
	setting := &models.CompanySetting{DailyRemindersEnabled: true, DailyReminderDays: &days}
	periods := []models.KPIPeriodSetting{
		{PeriodType: models.PeriodQuarterly, Quarter: "Q1", Year: 2026, EndDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), IsActive: true},
	}
	kpis := []models.KPI{{ID: 1, PeriodType: models.PeriodQuarterly, Quarter: "Q1", Year: 2026, Status: models.KPIStatusPending}}

	due := PlanOverdue(now, loc, setting, periods, kpis)
	if len(due) != 1 {
		t.Fatalf("PlanOverdue() = %d reminders, want 1", len(due))
	}
	if due[0].DaysOverdue != 5 {
		t.Errorf("DaysOverdue = %d, want 5", due[0].DaysOverdue)
	}
	if due[0].DedupDay != "2026-04-05" {
		t.Errorf("DedupDay = %q, want 2026-04-05", due[0].DedupDay)
	}
}
