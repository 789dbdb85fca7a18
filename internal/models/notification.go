package models

import "time"

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CompanyID   uint      `gorm:"not null;index" json:"company_id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	Type        string    `gorm:"size:50;not null;index" json:"type"`
	Title       string    `gorm:"size:255" json:"title"`
	Message     string    `gorm:"type:text" json:"message"`
	KPIID       *uint     `gorm:"index" json:"kpi_id"`
	ReviewID    *uint     `gorm:"index" json:"review_id"`
	Read        bool      `gorm:"column:is_read;default:false;index" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for Notification model.
func (Notification) TableName() string {
	return "notifications"
}

// Notification types. The same names key the message template catalog.
const (
	NotificationKPIAssigned            = "kpi_assigned"
	NotificationKPIAcknowledged        = "kpi_acknowledged"
	NotificationSelfRatingSubmitted    = "self_rating_submitted"
	NotificationManagerReviewSubmitted = "manager_review_submitted"
	NotificationReviewApproved         = "review_approved"
	NotificationReviewRejected         = "review_rejected"
	NotificationRejectionResolved      = "rejection_resolved"
	NotificationKPISettingReminder     = "kpi_setting_reminder"
	NotificationKPIOverdueReminder     = "kpi_overdue_reminder"
)
