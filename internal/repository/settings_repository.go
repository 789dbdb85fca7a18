package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/john2100013/kpi-review/internal/models"
)

// SettingsRepository reads and writes tenant policy: review periods,
// reminder rules and company notification settings.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// CreatePeriod creates a review period setting.
func (r *SettingsRepository) CreatePeriod(ctx context.Context, period *models.KPIPeriodSetting) error {
	if err := r.db.WithContext(ctx).Create(period).Error; err != nil {
		return fmt.Errorf("failed to create period setting: %w", err)
	}
	return nil
}

// CreateReminderRule creates a reminder rule.
func (r *SettingsRepository) CreateReminderRule(ctx context.Context, rule *models.ReminderSetting) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create reminder setting: %w", err)
	}
	return nil
}

// SaveCompanySetting creates or replaces the settings of a company.
func (r *SettingsRepository) SaveCompanySetting(ctx context.Context, setting *models.CompanySetting) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hr_notifications_enabled", "daily_reminders_enabled", "daily_reminder_days", "cc_emails", "updated_at"}),
	}).Create(setting).Error
	if err != nil {
		return fmt.Errorf("failed to save settings for company %d: %w", setting.CompanyID, err)
	}
	return nil
}

// GetCompanySetting retrieves the settings of a company. A company without a
// settings row gets the zero value, which disables every optional feature.
func (r *SettingsRepository) GetCompanySetting(ctx context.Context, companyID uint) (*models.CompanySetting, error) {
	var setting models.CompanySetting
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.CompanySetting{CompanyID: companyID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for company %d: %w", companyID, err)
	}
	return &setting, nil
}

// FindActivePeriod returns the active period setting matching the KPI period,
// or nil when there is none.
func (r *SettingsRepository) FindActivePeriod(ctx context.Context, companyID uint, periodType, quarter string, year int) (*models.KPIPeriodSetting, error) {
	query := r.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ? AND period_type = ? AND year = ?", companyID, true, periodType, year)
	if periodType == models.PeriodQuarterly {
		query = query.Where("quarter = ?", quarter)
	}

	var period models.KPIPeriodSetting
	err := query.Order("id").First(&period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active period for company %d: %w", companyID, err)
	}
	return &period, nil
}

// ActiveReminderRules loads the active rules of a reminder type for every company.
func (r *SettingsRepository) ActiveReminderRules(ctx context.Context, companyIDs []uint, reminderType string) (map[uint][]models.ReminderSetting, error) {
	out := make(map[uint][]models.ReminderSetting)
	if len(companyIDs) == 0 {
		return out, nil
	}
	var rules []models.ReminderSetting
	err := r.db.WithContext(ctx).
		Where("company_id IN ? AND reminder_type = ? AND is_active = ?", companyIDs, reminderType, true).
		Order("company_id, days_before DESC, id").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder settings: %w", err)
	}
	for _, rule := range rules {
		out[rule.CompanyID] = append(out[rule.CompanyID], rule)
	}
	return out, nil
}

// CompanySettings loads the settings rows of every company that has one.
func (r *SettingsRepository) CompanySettings(ctx context.Context, companyIDs []uint) (map[uint]models.CompanySetting, error) {
	out := make(map[uint]models.CompanySetting)
	if len(companyIDs) == 0 {
		return out, nil
	}
	var settings []models.CompanySetting
	if err := r.db.WithContext(ctx).Where("company_id IN ?", companyIDs).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to load company settings: %w", err)
	}
	for _, s := range settings {
		out[s.CompanyID] = s
	}
	return out, nil
}

// ActivePeriods loads the active period settings of every company.
func (r *SettingsRepository) ActivePeriods(ctx context.Context, companyIDs []uint) (map[uint][]models.KPIPeriodSetting, error) {
	out := make(map[uint][]models.KPIPeriodSetting)
	if len(companyIDs) == 0 {
		return out, nil
	}
	var periods []models.KPIPeriodSetting
	err := r.db.WithContext(ctx).
		Where("company_id IN ? AND is_active = ?", companyIDs, true).
		Order("company_id, id").
		Find(&periods).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load period settings: %w", err)
	}
	for _, p := range periods {
		out[p.CompanyID] = append(out[p.CompanyID], p)
	}
	return out, nil
}
