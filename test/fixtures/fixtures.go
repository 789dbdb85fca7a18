// Package fixtures seeds test databases with tenants, users and KPIs.
package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/repository"
)

// DB opens a migrated in-memory database closed at test cleanup.
func DB(t *testing.T) *repository.DB {
	t.Helper()

	db, err := repository.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

// Tenant is a seeded company with one manager, one employee and one HR user.
type Tenant struct {
	Company  *models.Company
	Manager  *models.User
	Employee *models.User
	HR       *models.User
}

// Company creates a company.
func Company(t *testing.T, db *repository.DB, name string) *models.Company {
	t.Helper()
	company := &models.Company{Name: name}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}
	return company
}

// User creates a user in the company. managerID may be zero.
func User(t *testing.T, db *repository.DB, companyID uint, name, role string, managerID uint) *models.User {
	t.Helper()
	user := &models.User{
		Name:          name,
		Email:         name + "@example.com",
		PayrollNumber: "PN-" + name,
		Role:          role,
		CompanyID:     &companyID,
	}
	if managerID != 0 {
		user.ManagerID = &managerID
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// NewTenant seeds a company with an employee reporting to a manager, an HR
// user and an active annual period for 2026.
func NewTenant(t *testing.T, db *repository.DB, name string) *Tenant {
	t.Helper()
	company := Company(t, db, name)
	manager := User(t, db, company.ID, name+"-mgr", models.RoleManager, 0)
	employee := User(t, db, company.ID, name+"-emp", models.RoleEmployee, manager.ID)
	hr := User(t, db, company.ID, name+"-hr", models.RoleHR, 0)

	Period(t, db, company.ID, models.PeriodAnnual, "", 2026,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))

	return &Tenant{Company: company, Manager: manager, Employee: employee, HR: hr}
}

// Period creates an active period setting.
func Period(t *testing.T, db *repository.DB, companyID uint, periodType, quarter string, year int, start, end time.Time) *models.KPIPeriodSetting {
	t.Helper()
	period := &models.KPIPeriodSetting{
		CompanyID:  companyID,
		PeriodType: periodType,
		Quarter:    quarter,
		Year:       year,
		StartDate:  start,
		EndDate:    end,
		IsActive:   true,
	}
	if err := repository.NewSettingsRepository(db).CreatePeriod(context.Background(), period); err != nil {
		t.Fatalf("Failed to create period: %v", err)
	}
	return period
}

// KPI creates a KPI with two weighted items.
func KPI(t *testing.T, db *repository.DB, tenant *Tenant, status string, meeting *time.Time) *models.KPI {
	t.Helper()
	kpi := &models.KPI{
		CompanyID:   tenant.Company.ID,
		EmployeeID:  tenant.Employee.ID,
		ManagerID:   tenant.Manager.ID,
		Title:       "Sales targets",
		PeriodType:  models.PeriodAnnual,
		Year:        2026,
		MeetingDate: meeting,
		Status:      status,
		Items: []models.KPIItem{
			{Title: "Close deals", Weight: "40%", ItemOrder: 1},
			{Title: "Grow pipeline", Weight: "60%", ItemOrder: 2},
		},
	}
	if err := repository.NewKPIRepository(db).Create(context.Background(), kpi); err != nil {
		t.Fatalf("Failed to create kpi: %v", err)
	}
	return kpi
}

// Settings stores the company notification settings.
func Settings(t *testing.T, db *repository.DB, setting *models.CompanySetting) {
	t.Helper()
	if err := repository.NewSettingsRepository(db).SaveCompanySetting(context.Background(), setting); err != nil {
		t.Fatalf("Failed to save company setting: %v", err)
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
