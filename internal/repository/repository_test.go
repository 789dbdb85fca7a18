package repository

import (
	"context"
	"testing"

	"github.com/john2100013/kpi-review/internal/models"
)

// setupTestDB creates a migrated in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenInMemory()
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

func createTestCompany(t *testing.T, db *DB, name string) *models.Company {
	t.Helper()
	company := &models.Company{Name: name}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}
	return company
}

func createTestUser(t *testing.T, db *DB, companyID uint, name, role string) *models.User {
	t.Helper()
	user := &models.User{
		Name:      name,
		Email:     name + "@example.com",
		Role:      role,
		CompanyID: &companyID,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func createTestKPI(t *testing.T, db *DB, companyID, employeeID, managerID uint, status string) *models.KPI {
	t.Helper()
	kpi := &models.KPI{
		CompanyID:  companyID,
		EmployeeID: employeeID,
		ManagerID:  managerID,
		Title:      "Sales targets",
		PeriodType: models.PeriodAnnual,
		Year:       2026,
		Status:     status,
		Items: []models.KPIItem{
			{Title: "Close deals", Weight: "60%", ItemOrder: 1},
			{Title: "Grow pipeline", Weight: "40%", ItemOrder: 2},
		},
	}
	if err := NewKPIRepository(db).Create(context.Background(), kpi); err != nil {
		t.Fatalf("Failed to create kpi: %v", err)
	}
	return kpi
}
