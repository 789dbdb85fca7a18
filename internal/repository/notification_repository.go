package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/john2100013/kpi-review/internal/models"
)

const notificationBatchSize = 200

// NotificationRepository handles in-app notification rows.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts notifications with multi-row inserts.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(notifications, notificationBatchSize).Error; err != nil {
		return fmt.Errorf("failed to create %d notifications: %w", len(notifications), err)
	}
	return nil
}

// ListForRecipient retrieves a user's notifications in a company, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, companyID, recipientID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("company_id = ? AND recipient_id = ?", companyID, recipientID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", recipientID, err)
	}
	return notifications, nil
}

// UnreadCount counts a user's unread notifications in a company.
func (r *NotificationRepository) UnreadCount(ctx context.Context, companyID, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("company_id = ? AND recipient_id = ? AND is_read = ?", companyID, recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for user %d: %w", recipientID, err)
	}
	return count, nil
}

// MarkRead sets the read flag on one of the recipient's notifications.
func (r *NotificationRepository) MarkRead(ctx context.Context, companyID, recipientID, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND company_id = ? AND recipient_id = ?", id, companyID, recipientID).
		Update("is_read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to mark notification %d read: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// CountByType counts notifications of a type linked to a KPI.
func (r *NotificationRepository) CountByType(ctx context.Context, kpiID uint, notificationType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("kpi_id = ? AND type = ?", kpiID, notificationType).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications for kpi %d: %w", kpiID, err)
	}
	return count, nil
}
