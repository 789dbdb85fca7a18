package models

import "time"

// ReminderSetting is a tenant rule: remind N days before the KPI meeting date.
type ReminderSetting struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;index" json:"company_id"`
	ReminderType string    `gorm:"size:50;not null;index" json:"reminder_type"` // 'kpi_setting'
	DaysBefore   int       `gorm:"not null" json:"days_before"`
	PeriodType   string    `gorm:"size:20" json:"period_type"` // empty or 'all' matches every period
	Label        string    `gorm:"size:100" json:"label"`
	IsActive     bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for ReminderSetting model.
func (ReminderSetting) TableName() string {
	return "reminder_settings"
}

// MatchesPeriod reports whether the rule applies to KPIs of the given period type.
func (r *ReminderSetting) MatchesPeriod(periodType string) bool {
	return r.PeriodType == "" || r.PeriodType == "all" || r.PeriodType == periodType
}

// ReminderTypeKPISetting is the reminder rule type used by the pre-deadline sweep.
const ReminderTypeKPISetting = "kpi_setting"

// KPIPeriodSetting is a review window configured by HR.
type KPIPeriodSetting struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CompanyID  uint      `gorm:"not null;index" json:"company_id"`
	PeriodType string    `gorm:"size:20;not null" json:"period_type"`
	Quarter    string    `gorm:"size:2" json:"quarter"`
	Year       int       `gorm:"not null" json:"year"`
	StartDate  time.Time `gorm:"not null" json:"start_date"`
	EndDate    time.Time `gorm:"not null" json:"end_date"`
	IsActive   bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for KPIPeriodSetting model.
func (KPIPeriodSetting) TableName() string {
	return "kpi_period_settings"
}

// ReminderTrackingRecord is the dedup ledger. The unique index makes a second
// insert of the same (kpi, reminder type, day) a no-op.
type ReminderTrackingRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;index" json:"company_id"`
	KPIID        uint      `gorm:"not null;uniqueIndex:idx_kpi_reminder_dedup" json:"kpi_id"`
	ReminderType string    `gorm:"size:50;not null;uniqueIndex:idx_kpi_reminder_dedup" json:"reminder_type"`
	DedupDay     string    `gorm:"size:10;not null;default:'';uniqueIndex:idx_kpi_reminder_dedup" json:"dedup_day"` // '' or YYYY-MM-DD
	SentAt       time.Time `gorm:"not null" json:"sent_at"`
}

// TableName specifies the table name for ReminderTrackingRecord model.
func (ReminderTrackingRecord) TableName() string {
	return "kpi_setting_reminders"
}

// ReminderTypeDailyOverdue tags daily overdue reminders in the ledger.
const ReminderTypeDailyOverdue = "daily_overdue"
