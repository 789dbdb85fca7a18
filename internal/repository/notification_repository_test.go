package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/john2100013/kpi-review/internal/models"
)

func TestNotificationRepository_ReadFlow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	company := createTestCompany(t, db, "Acme")
	alice := createTestUser(t, db, company.ID, "alice", models.RoleEmployee)
	bob := createTestUser(t, db, company.ID, "bob", models.RoleManager)

	batch := []models.Notification{
		{CompanyID: company.ID, RecipientID: alice.ID, Type: models.NotificationKPIAssigned, Title: "one"},
		{CompanyID: company.ID, RecipientID: alice.ID, Type: models.NotificationKPIAssigned, Title: "two"},
		{CompanyID: company.ID, RecipientID: bob.ID, Type: models.NotificationKPIAcknowledged, Title: "three"},
	}
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	unread, err := repo.UnreadCount(ctx, company.ID, alice.ID)
	if err != nil || unread != 2 {
		t.Fatalf("UnreadCount() = %d, %v; want 2", unread, err)
	}

	if err := repo.MarkRead(ctx, company.ID, bob.ID, batch[0].ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("MarkRead() by other user error = %v, want ErrRecordNotFound", err)
	}
	if err := repo.MarkRead(ctx, company.ID, alice.ID, batch[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}

	list, err := repo.ListForRecipient(ctx, company.ID, alice.ID, true, 0)
	if err != nil {
		t.Fatalf("ListForRecipient() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != batch[1].ID {
		t.Errorf("ListForRecipient(unread) = %+v", list)
	}
}
