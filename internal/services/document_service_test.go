package services

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"loanflow/internal/models"
	"loanflow/internal/testutil"
)

// memoryStore keeps uploads in a map so tests never touch the filesystem.
type memoryStore struct {
	files  map[string][]byte
	nextID int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (m *memoryStore) Save(fileName string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	m.nextID++
	key := fmt.Sprintf("mem/%d-%s", m.nextID, fileName)
	m.files[key] = data
	return key, nil
}

func (m *memoryStore) Remove(storageKey string) error {
	delete(m.files, storageKey)
	return nil
}

func newTestDocumentService(db *gorm.DB) (DocumentServicer, *memoryStore) {
	store := newMemoryStore()
	notifier := NewNotificationService(db, &recordingEmailQueue{})
	return NewDocumentService(db, store, notifier), store
}

func TestUpload(t *testing.T) {
	t.Run("links_item_and_flips_status", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, store := newTestDocumentService(db)
		user := testutil.CreateTestUser(t, db)
		loan := testutil.CreateTestLoan(t, db, user.ID)
		item := testutil.CreateTestNeedsItem(t, db, loan.ID, "Rent Roll & Leases")

		doc, err := svc.Upload(loan.ID, borrowerActor(user), &item.ID, "", "rent-roll.pdf", strings.NewReader("contents"))
		testutil.AssertNoError(t, err)

		if doc.FolderName != "Rent Roll & Leases" {
			t.Errorf("expected folder inherited from the item, got %q", doc.FolderName)
		}
		if _, ok := store.files[doc.StorageKey]; !ok {
			t.Error("expected the file in the store")
		}

		var reloaded models.NeedsListItem
		if err := db.First(&reloaded, item.ID).Error; err != nil {
			t.Fatalf("failed to reload item: %v", err)
		}
		if reloaded.Status != models.NeedsItemUploaded {
			t.Errorf("expected uploaded status, got %s", reloaded.Status)
		}
		if reloaded.LastUploadAt == nil {
			t.Error("expected last_upload_at to be stamped")
		}
	})

	t.Run("review_decision_sticks", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestDocumentService(db)
		user := testutil.CreateTestUser(t, db)
		loan := testutil.CreateTestLoan(t, db, user.ID)
		item := testutil.CreateTestNeedsItem(t, db, loan.ID, "Insurance")
		if err := db.Model(item).Update("status", models.NeedsItemReviewed).Error; err != nil {
			t.Fatalf("failed to mark reviewed: %v", err)
		}

		_, err := svc.Upload(loan.ID, borrowerActor(user), &item.ID, "", "policy.pdf", strings.NewReader("x"))
		testutil.AssertNoError(t, err)

		var reloaded models.NeedsListItem
		if err := db.First(&reloaded, item.ID).Error; err != nil {
			t.Fatalf("failed to reload item: %v", err)
		}
		if reloaded.Status != models.NeedsItemReviewed {
			t.Errorf("reviewed items must not revert, got %s", reloaded.Status)
		}
	})

	t.Run("unlinked_upload", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestDocumentService(db)
		user := testutil.CreateTestUser(t, db)
		loan := testutil.CreateTestLoan(t, db, user.ID)

		doc, err := svc.Upload(loan.ID, borrowerActor(user), nil, "Misc", "note.txt", strings.NewReader("x"))
		testutil.AssertNoError(t, err)
		if doc.NeedsListItemID != nil {
			t.Error("expected no item linkage")
		}
		if doc.FolderName != "Misc" {
			t.Errorf("expected explicit folder name, got %q", doc.FolderName)
		}
	})

	t.Run("foreign_loan_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestDocumentService(db)
		owner := testutil.CreateTestUser(t, db)
		stranger := testutil.CreateTestUser(t, db)
		loan := testutil.CreateTestLoan(t, db, owner.ID)

		_, err := svc.Upload(loan.ID, borrowerActor(stranger), nil, "Misc", "x.txt", strings.NewReader("x"))
		testutil.AssertAppError(t, err, "LOAN_NOT_FOUND")
	})

	t.Run("item_must_belong_to_loan", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestDocumentService(db)
		user := testutil.CreateTestUser(t, db)
		loan := testutil.CreateTestLoan(t, db, user.ID)
		other := testutil.CreateTestLoan(t, db, user.ID)
		foreignItem := testutil.CreateTestNeedsItem(t, db, other.ID, "Application")

		_, err := svc.Upload(loan.ID, borrowerActor(user), &foreignItem.ID, "", "x.pdf", strings.NewReader("x"))
		testutil.AssertAppError(t, err, "NEEDS_LIST_ITEM_NOT_FOUND")
	})
}

func TestGetLoanDocuments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc, _ := newTestDocumentService(db)
	user := testutil.CreateTestUser(t, db)
	loan := testutil.CreateTestLoan(t, db, user.ID)

	testutil.CreateTestDocument(t, db, loan.ID, user.ID, nil, time.Now().Add(-2*time.Hour))
	newest := testutil.CreateTestDocument(t, db, loan.ID, user.ID, nil, time.Now())

	docs, err := svc.GetLoanDocuments(loan.ID)
	testutil.AssertNoError(t, err)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != newest.ID {
		t.Error("expected newest upload first")
	}
}

func TestDeleteDocument(t *testing.T) {
	t.Run("uploader_can_delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, store := newTestDocumentService(db)
		user := testutil.CreateTestUser(t, db)
		loan := testutil.CreateTestLoan(t, db, user.ID)

		doc, err := svc.Upload(loan.ID, borrowerActor(user), nil, "Misc", "x.txt", strings.NewReader("x"))
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.Delete(doc.ID, borrowerActor(user)))
		if _, ok := store.files[doc.StorageKey]; ok {
			t.Error("expected the stored file to be removed")
		}

		var count int64
		if err := db.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&count).Error; err != nil {
			t.Fatalf("failed to count documents: %v", err)
		}
		if count != 0 {
			t.Error("expected the row to be gone")
		}
	})

	t.Run("other_borrower_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestDocumentService(db)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		loan := testutil.CreateTestLoan(t, db, user.ID)
		doc := testutil.CreateTestDocument(t, db, loan.ID, user.ID, nil, time.Now())

		err := svc.Delete(doc.ID, borrowerActor(other))
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("staff_can_delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestDocumentService(db)
		user := testutil.CreateTestUser(t, db)
		ops := testutil.CreateTestOpsUser(t, db)
		loan := testutil.CreateTestLoan(t, db, user.ID)
		doc := testutil.CreateTestDocument(t, db, loan.ID, user.ID, nil, time.Now())

		err := svc.Delete(doc.ID, Actor{ID: ops.ID, Role: ops.Role})
		testutil.AssertNoError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestDocumentService(db)
		ops := testutil.CreateTestOpsUser(t, db)

		err := svc.Delete(999999, Actor{ID: ops.ID, Role: ops.Role})
		testutil.AssertAppError(t, err, "DOCUMENT_NOT_FOUND")
	})
}
