package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/john2100013/kpi-review/internal/models"
)

// LedgerKey identifies one reminder in the dedup ledger.
type LedgerKey struct {
	KPIID        uint
	ReminderType string
	DedupDay     string
}

// Key returns the ledger key of a tracking record.
func Key(rec *models.ReminderTrackingRecord) LedgerKey {
	return LedgerKey{KPIID: rec.KPIID, ReminderType: rec.ReminderType, DedupDay: rec.DedupDay}
}

// ReminderRepository is the reminder dedup ledger.
type ReminderRepository struct {
	db *DB
}

// NewReminderRepository creates a new reminder ledger repository.
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// ExistingKeys returns the ledger keys already recorded for the KPIs and day.
func (r *ReminderRepository) ExistingKeys(ctx context.Context, kpiIDs []uint, dedupDay string) (map[LedgerKey]bool, error) {
	out := make(map[LedgerKey]bool)
	if len(kpiIDs) == 0 {
		return out, nil
	}
	var records []models.ReminderTrackingRecord
	err := r.db.WithContext(ctx).
		Where("kpi_id IN ? AND dedup_day = ?", kpiIDs, dedupDay).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder ledger: %w", err)
	}
	for i := range records {
		out[Key(&records[i])] = true
	}
	return out, nil
}

// Claim inserts the tracking record unless its key is already present.
// It returns true only for the caller whose insert created the row, so
// concurrent sweeps racing on the same key dispatch exactly once.
func (r *ReminderRepository) Claim(ctx context.Context, rec *models.ReminderTrackingRecord) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "kpi_id"},
			{Name: "reminder_type"},
			{Name: "dedup_day"},
		},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		if IsUniqueViolation(result.Error) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim reminder %s for kpi %d: %w", rec.ReminderType, rec.KPIID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Count returns the number of ledger rows of a KPI.
func (r *ReminderRepository) Count(ctx context.Context, kpiID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReminderTrackingRecord{}).
		Where("kpi_id = ?", kpiID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count reminder ledger for kpi %d: %w", kpiID, err)
	}
	return count, nil
}

// IsUniqueViolation reports whether err is a duplicate key error.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
