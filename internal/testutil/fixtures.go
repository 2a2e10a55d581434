package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"loanflow/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a borrower with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithRole(t, db, email, models.RoleBorrower)
}

// CreateTestOpsUser creates an active ops user with a unique email.
func CreateTestOpsUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("ops%d@test.com", nextID())
	return CreateTestUserWithRole(t, db, email, models.RoleOps)
}

// CreateTestUserWithRole creates a user with the given email and role.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestLoan creates a loan request in new_request with an eligible
// financial snapshot and its initial history entry.
func CreateTestLoan(t *testing.T, db *gorm.DB, borrowerID uint) *models.LoanRequest {
	t.Helper()

	loan := &models.LoanRequest{
		BorrowerID:              borrowerID,
		ReferenceNumber:         fmt.Sprintf("LN-TEST-%06d", nextID()),
		Status:                  models.StatusNewRequest,
		Step:                    models.StatusSteps[models.StatusNewRequest],
		PropertyType:            "multi_family",
		RequestType:             "purchase",
		PropertyValue:           750000,
		RequestedLTV:            75,
		DocumentationType:       models.DocTypeFullDoc,
		AnnualRentalIncome:      96000,
		AnnualOperatingExpenses: 24000,
		AnnualLoanPayments:      58500,
	}
	if err := db.Create(loan).Error; err != nil {
		t.Fatalf("failed to create test loan: %v", err)
	}

	entry := &models.StatusHistoryEntry{
		LoanRequestID: loan.ID,
		Status:        loan.Status,
		Step:          loan.Step,
		ActorID:       &borrowerID,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to create initial history entry: %v", err)
	}
	return loan
}

// CreateTestNeedsItem creates a required needs-list item for the loan.
func CreateTestNeedsItem(t *testing.T, db *gorm.DB, loanID uint, folderName string) *models.NeedsListItem {
	t.Helper()

	item := &models.NeedsListItem{
		LoanRequestID: loanID,
		FolderName:    folderName,
		DocumentType:  "PDF",
		Category:      models.CategoryGeneral,
		Required:      true,
		Status:        models.NeedsItemPending,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test needs item: %v", err)
	}
	return item
}

// CreateTestDocument creates a document uploaded at the given time, linked
// to a needs-list item when itemID is non-nil.
func CreateTestDocument(t *testing.T, db *gorm.DB, loanID, uploaderID uint, itemID *uint, uploadedAt time.Time) *models.Document {
	t.Helper()

	n := nextID()
	doc := &models.Document{
		LoanRequestID:   loanID,
		NeedsListItemID: itemID,
		UploaderID:      uploaderID,
		FolderName:      "Application",
		FileName:        fmt.Sprintf("test-doc-%d.pdf", n),
		StorageKey:      fmt.Sprintf("key-%d", n),
		UploadedAt:      uploadedAt,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("failed to create test document: %v", err)
	}
	return doc
}
