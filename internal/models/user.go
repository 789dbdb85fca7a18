// Package models defines the persisted entities of the KPI review system.
package models

import (
	"strings"
	"time"
)

// Role constants.
const (
	RoleEmployee   = "employee"
	RoleManager    = "manager"
	RoleHR         = "hr"
	RoleSuperAdmin = "super_admin"
)

// Company is the tenant boundary.
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Company model.
func (Company) TableName() string {
	return "companies"
}

// User is an employee, manager, HR user or super admin.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         string    `gorm:"size:255;index" json:"email"`
	PayrollNumber string    `gorm:"size:100" json:"payroll_number"`
	Role          string    `gorm:"size:50;index;not null" json:"role"`
	CompanyID     *uint     `gorm:"index" json:"company_id"` // nil for super_admin
	ManagerID     *uint     `gorm:"index" json:"manager_id"`
	DepartmentID  *uint     `gorm:"index" json:"department_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// HasContactAddress reports whether the user can receive email.
func (u *User) HasContactAddress() bool {
	email := strings.TrimSpace(u.Email)
	return email != "" && strings.Contains(email, "@")
}

// UserCompany links a user to additional companies.
type UserCompany struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	CompanyID uint      `gorm:"primaryKey" json:"company_id"`
	IsPrimary bool      `gorm:"default:false" json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for UserCompany model.
func (UserCompany) TableName() string {
	return "user_companies"
}

// Department groups employees inside a company.
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"not null;index" json:"company_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Department model.
func (Department) TableName() string {
	return "departments"
}

// CompanySetting holds per-tenant notification policy.
type CompanySetting struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	CompanyID              uint      `gorm:"uniqueIndex;not null" json:"company_id"`
	HRNotificationsEnabled bool      `gorm:"default:false" json:"hr_notifications_enabled"`
	DailyRemindersEnabled  bool      `gorm:"default:false" json:"daily_reminders_enabled"`
	DailyReminderDays      *int      `json:"daily_reminder_days"` // days after period end before overdue reminders start
	CCEmails               string    `gorm:"type:text" json:"cc_emails"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// TableName specifies the table name for CompanySetting model.
func (CompanySetting) TableName() string {
	return "company_settings"
}

// CCAddresses splits the configured CC list, dropping blanks and invalid entries.
func (s *CompanySetting) CCAddresses() []string {
	if s == nil || s.CCEmails == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(s.CCEmails, func(r rune) bool { return r == ',' || r == ';' }) {
		addr := strings.TrimSpace(part)
		if addr != "" && strings.Contains(addr, "@") {
			out = append(out, addr)
		}
	}
	return out
}
