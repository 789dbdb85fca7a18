package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/john2100013/kpi-review/internal/models"
)

// KPIRepository handles KPI and KPI item database operations.
type KPIRepository struct {
	db *DB
}

// NewKPIRepository creates a new KPI repository.
func NewKPIRepository(db *DB) *KPIRepository {
	return &KPIRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("item_order, id")
}

// Create creates a KPI together with its items.
func (r *KPIRepository) Create(ctx context.Context, kpi *models.KPI) error {
	if err := r.db.WithContext(ctx).Create(kpi).Error; err != nil {
		return fmt.Errorf("failed to create kpi: %w", err)
	}
	return nil
}

// GetByID retrieves a KPI with its items.
func (r *KPIRepository) GetByID(ctx context.Context, id uint) (*models.KPI, error) {
	var kpi models.KPI
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		First(&kpi, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get kpi by id %d: %w", id, err)
	}
	return &kpi, nil
}

// GetInCompany retrieves a KPI only if it belongs to the company.
func (r *KPIRepository) GetInCompany(ctx context.Context, companyID, id uint) (*models.KPI, error) {
	var kpi models.KPI
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("company_id = ?", companyID).
		First(&kpi, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get kpi %d in company %d: %w", id, companyID, err)
	}
	return &kpi, nil
}

// List retrieves KPIs matching the filters, newest first.
func (r *KPIRepository) List(ctx context.Context, filters *Filters) ([]models.KPI, error) {
	query, err := filters.Apply(r.db.WithContext(ctx).Model(&models.KPI{}))
	if err != nil {
		return nil, fmt.Errorf("failed to build kpi filters: %w", err)
	}

	var kpis []models.KPI
	if err := query.Preload("Items", orderedItems).Order("kpis.created_at DESC, kpis.id DESC").Find(&kpis).Error; err != nil {
		return nil, fmt.Errorf("failed to list kpis: %w", err)
	}
	return kpis, nil
}

// Update saves the KPI columns. Items are saved separately with UpdateItems.
func (r *KPIRepository) Update(ctx context.Context, kpi *models.KPI) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(kpi).Error; err != nil {
		return fmt.Errorf("failed to update kpi %d: %w", kpi.ID, err)
	}
	return nil
}

// UpdateItems saves the given KPI items.
func (r *KPIRepository) UpdateItems(ctx context.Context, items []models.KPIItem) error {
	for i := range items {
		if err := r.db.WithContext(ctx).Save(&items[i]).Error; err != nil {
			return fmt.Errorf("failed to update kpi item %d: %w", items[i].ID, err)
		}
	}
	return nil
}

// ListOpen retrieves all pending or acknowledged KPIs of the companies.
func (r *KPIRepository) ListOpen(ctx context.Context, companyIDs []uint) ([]models.KPI, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}
	var kpis []models.KPI
	err := r.db.WithContext(ctx).
		Where("company_id IN ? AND status IN ?", companyIDs, models.OpenKPIStatuses).
		Order("company_id, id").
		Find(&kpis).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open kpis: %w", err)
	}
	return kpis, nil
}

// ListOpenWithMeeting retrieves open KPIs that have a meeting date.
func (r *KPIRepository) ListOpenWithMeeting(ctx context.Context, companyIDs []uint) ([]models.KPI, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}
	var kpis []models.KPI
	err := r.db.WithContext(ctx).
		Where("company_id IN ? AND status IN ? AND meeting_date IS NOT NULL", companyIDs, models.OpenKPIStatuses).
		Order("company_id, id").
		Find(&kpis).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open kpis with meeting dates: %w", err)
	}
	return kpis, nil
}
