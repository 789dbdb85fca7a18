package models

import (
	"time"
)

// KPI represents one employee's KPI form for a review period.
type KPI struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CompanyID         uint       `gorm:"not null;index" json:"company_id"`
	EmployeeID        uint       `gorm:"not null;index" json:"employee_id"`
	Employee          *User      `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	ManagerID         uint       `gorm:"not null;index" json:"manager_id"`
	Manager           *User      `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Description       string     `gorm:"type:text" json:"description"`
	PeriodType        string     `gorm:"size:20;not null" json:"period_type"` // 'annual' or 'quarterly'
	Quarter           string     `gorm:"size:2" json:"quarter"`               // Q1..Q4 for quarterly periods
	Year              int        `gorm:"not null;index" json:"year"`
	MeetingDate       *time.Time `json:"meeting_date"`
	Status            string     `gorm:"size:50;index;not null" json:"status"` // 'pending', 'acknowledged', 'completed'
	ManagerSignature  string     `gorm:"type:text" json:"manager_signature,omitempty"`
	ManagerSignedAt   *time.Time `json:"manager_signed_at"`
	EmployeeSignature string     `gorm:"type:text" json:"employee_signature,omitempty"`
	EmployeeSignedAt  *time.Time `json:"employee_signed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Items []KPIItem `gorm:"foreignKey:KPIID" json:"items,omitempty"`
}

// TableName specifies the table name for KPI model.
func (KPI) TableName() string {
	return "kpis"
}

// KPIItem is one weighted goal within a KPI form.
type KPIItem struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	KPIID             uint      `gorm:"not null;index" json:"kpi_id"`
	Title             string    `gorm:"size:255;not null" json:"title"`
	Description       string    `gorm:"type:text" json:"description"`
	TargetValue       string    `gorm:"size:255" json:"target_value"`
	MeasureUnit       string    `gorm:"size:100" json:"measure_unit"`
	Weight            string    `gorm:"size:20" json:"weight"` // raw input: "40%", "0.4" or "40"
	IsQualitative     bool      `gorm:"default:false" json:"is_qualitative"`
	QualitativeRating string    `gorm:"size:100" json:"qualitative_rating,omitempty"`
	EmployeeRating    *float64  `json:"employee_rating"`
	EmployeeComment   string    `gorm:"type:text" json:"employee_comment,omitempty"`
	ManagerRating     *float64  `json:"manager_rating"`
	ManagerComment    string    `gorm:"type:text" json:"manager_comment,omitempty"`
	ItemOrder         int       `gorm:"default:0" json:"item_order"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for KPIItem model.
func (KPIItem) TableName() string {
	return "kpi_items"
}

// KPIReview carries the self-rating, manager review and confirmation of a KPI.
type KPIReview struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	KPIID        uint   `gorm:"uniqueIndex;not null" json:"kpi_id"`
	CompanyID    uint   `gorm:"not null;index" json:"company_id"`
	EmployeeID   uint   `gorm:"not null;index" json:"employee_id"`
	ManagerID    uint   `gorm:"not null;index" json:"manager_id"`
	ReviewStatus string `gorm:"size:50;index;not null" json:"review_status"`

	EmployeeRating      *float64   `json:"employee_rating"`
	EmployeeComment     string     `gorm:"type:text" json:"employee_comment,omitempty"`
	EmployeeSignature   string     `gorm:"type:text" json:"employee_signature,omitempty"`
	EmployeeSubmittedAt *time.Time `json:"employee_submitted_at"`

	ManagerRating     *float64   `json:"manager_rating"`
	ManagerComment    string     `gorm:"type:text" json:"manager_comment,omitempty"`
	ManagerSignature  string     `gorm:"type:text" json:"manager_signature,omitempty"`
	ManagerReviewedAt *time.Time `json:"manager_reviewed_at"`

	EmployeeConfirmationStatus    string     `gorm:"size:20" json:"employee_confirmation_status,omitempty"` // 'approved' or 'rejected'
	EmployeeRejectionNote         string     `gorm:"type:text" json:"employee_rejection_note,omitempty"`
	EmployeeConfirmationSignature string     `gorm:"type:text" json:"employee_confirmation_signature,omitempty"`
	EmployeeConfirmedAt           *time.Time `json:"employee_confirmed_at"`

	RejectionResolvedStatus string     `gorm:"size:20" json:"rejection_resolved_status,omitempty"`
	RejectionResolvedBy     *uint      `json:"rejection_resolved_by"`
	RejectionResolvedAt     *time.Time `json:"rejection_resolved_at"`
	RejectionResolvedNote   string     `gorm:"type:text" json:"rejection_resolved_note,omitempty"`

	PDFPath   string    `gorm:"type:text" json:"pdf_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for KPIReview model.
func (KPIReview) TableName() string {
	return "kpi_reviews"
}

// KPI status constants.
const (
	KPIStatusPending      = "pending"
	KPIStatusAcknowledged = "acknowledged"
	KPIStatusCompleted    = "completed"
)

// Review status constants.
const (
	ReviewStatusNone                         = "no_review"
	ReviewStatusEmployeeSubmitted            = "employee_submitted"
	ReviewStatusAwaitingEmployeeConfirmation = "awaiting_employee_confirmation"
	ReviewStatusCompleted                    = "completed"
	ReviewStatusRejected                     = "rejected"
)

// Employee confirmation outcomes.
const (
	ConfirmationApproved = "approved"
	ConfirmationRejected = "rejected"
)

// RejectionResolved marks an HR-resolved rejection.
const RejectionResolved = "resolved"

// Period types.
const (
	PeriodAnnual    = "annual"
	PeriodQuarterly = "quarterly"
)

// OpenKPIStatuses are the statuses the reminder sweeps consider outstanding.
var OpenKPIStatuses = []string{KPIStatusPending, KPIStatusAcknowledged}
