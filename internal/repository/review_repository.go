package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/john2100013/kpi-review/internal/models"
)

// ReviewRepository handles KPI review database operations.
type ReviewRepository struct {
	db *DB
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// GetByID retrieves a review by ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id uint) (*models.KPIReview, error) {
	var review models.KPIReview
	if err := r.db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get review by id %d: %w", id, err)
	}
	return &review, nil
}

// GetInCompany retrieves a review only if it belongs to the company.
func (r *ReviewRepository) GetInCompany(ctx context.Context, companyID, id uint) (*models.KPIReview, error) {
	var review models.KPIReview
	if err := r.db.WithContext(ctx).Where("company_id = ?", companyID).First(&review, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get review %d in company %d: %w", id, companyID, err)
	}
	return &review, nil
}

// FindByKPI retrieves the review of a KPI. It returns nil without an error
// when the KPI has no review yet.
func (r *ReviewRepository) FindByKPI(ctx context.Context, kpiID uint) (*models.KPIReview, error) {
	var review models.KPIReview
	err := r.db.WithContext(ctx).Where("kpi_id = ?", kpiID).First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review for kpi %d: %w", kpiID, err)
	}
	return &review, nil
}

// Save creates the review or updates it when it already has an ID.
func (r *ReviewRepository) Save(ctx context.Context, review *models.KPIReview) error {
	if err := r.db.WithContext(ctx).Save(review).Error; err != nil {
		return fmt.Errorf("failed to save review for kpi %d: %w", review.KPIID, err)
	}
	return nil
}

// SetPDFPath records where the review document was stored.
func (r *ReviewRepository) SetPDFPath(ctx context.Context, id uint, path string) error {
	err := r.db.WithContext(ctx).Model(&models.KPIReview{}).
		Where("id = ?", id).
		Update("pdf_path", path).Error
	if err != nil {
		return fmt.Errorf("failed to set pdf path for review %d: %w", id, err)
	}
	return nil
}
