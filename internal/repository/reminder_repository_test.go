package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/john2100013/kpi-review/internal/models"
)

func TestReminderRepository_Claim(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReminderRepository(db)
	ctx := context.Background()

	company := createTestCompany(t, db, "Acme")
	manager := createTestUser(t, db, company.ID, "mgr", models.RoleManager)
	employee := createTestUser(t, db, company.ID, "emp", models.RoleEmployee)
	kpi := createTestKPI(t, db, company.ID, employee.ID, manager.ID, models.KPIStatusPending)

	record := func(reminderType, day string) *models.ReminderTrackingRecord {
		return &models.ReminderTrackingRecord{
			CompanyID:    company.ID,
			KPIID:        kpi.ID,
			ReminderType: reminderType,
			DedupDay:     day,
			SentAt:       time.Now(),
		}
	}

	claimed, err := repo.Claim(ctx, record("1_week", ""))
	if err != nil || !claimed {
		t.Fatalf("first Claim() = %v, %v; want true, nil", claimed, err)
	}

	claimed, err = repo.Claim(ctx, record("1_week", ""))
	if err != nil {
		t.Fatalf("second Claim() error = %v, want nil", err)
	}
	if claimed {
		t.Error("second Claim() = true, want false")
	}

	// Daily overdue reminders are keyed by day
	for _, day := range []string{"2026-03-01", "2026-03-02", "2026-03-02"} {
		if _, err := repo.Claim(ctx, record(models.ReminderTypeDailyOverdue, day)); err != nil {
			t.Fatalf("Claim(%s) error = %v", day, err)
		}
	}

	count, err := repo.Count(ctx, kpi.ID)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	keys, err := repo.ExistingKeys(ctx, []uint{kpi.ID}, "2026-03-02")
	if err != nil {
		t.Fatalf("ExistingKeys() error = %v", err)
	}
	want := LedgerKey{KPIID: kpi.ID, ReminderType: models.ReminderTypeDailyOverdue, DedupDay: "2026-03-02"}
	if len(keys) != 1 || !keys[want] {
		t.Errorf("ExistingKeys() = %v, want only %v", keys, want)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"gorm duplicated key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other error", &pgconn.PgError{Code: "40001"}, false},
		{"plain error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
