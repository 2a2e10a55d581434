package services

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/logger"
	"loanflow/internal/models"
)

// documentService handles uploaded files and their needs-list linkage.
type documentService struct {
	db       *gorm.DB
	store    DocumentStore
	notifier NotificationServicer
}

// NewDocumentService creates a new DocumentServicer.
func NewDocumentService(db *gorm.DB, store DocumentStore, notifier NotificationServicer) DocumentServicer {
	return &documentService{db: db, store: store, notifier: notifier}
}

// Upload stores the file, records the document row, and flips the linked
// needs-list item to uploaded, all in one database transaction. Ops are
// notified best-effort afterwards.
func (s *documentService) Upload(loanID uint, actor Actor, itemID *uint, folderName, fileName string, content io.Reader) (*models.Document, error) {
	if fileName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "file name is required")
	}

	loan, err := getLoan(s.db, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.Staff() && loan.BorrowerID != actor.ID {
		return nil, apperrors.ErrLoanNotFound
	}

	var item *models.NeedsListItem
	if itemID != nil {
		var found models.NeedsListItem
		if err := s.db.Where("id = ? AND loan_request_id = ?", *itemID, loanID).First(&found).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrNeedsListItemNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		item = &found
		if folderName == "" {
			folderName = found.FolderName
		}
	}

	storageKey, err := s.store.Save(fileName, content)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := time.Now()
	document := &models.Document{
		LoanRequestID:   loanID,
		NeedsListItemID: itemID,
		UploaderID:      actor.ID,
		FolderName:      folderName,
		FileName:        fileName,
		StorageKey:      storageKey,
		UploadedAt:      now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(document).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if item != nil {
			updates := map[string]interface{}{"last_upload_at": now}
			// Review decisions stick; only pending items flip to uploaded.
			if item.Status == models.NeedsItemPending {
				updates["status"] = models.NeedsItemUploaded
			}
			if err := tx.Model(item).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		// The row never landed; drop the orphaned file.
		if removeErr := s.store.Remove(storageKey); removeErr != nil {
			logger.Get().Warnw("failed to remove orphaned upload",
				"storage_key", storageKey,
				"error", removeErr,
			)
		}
		return nil, err
	}

	s.notifier.NotifyOps(loan, models.NotificationDocumentUploaded,
		"Document uploaded",
		fmt.Sprintf("A document was uploaded to %q on loan %s.", folderName, loan.ReferenceNumber))

	return document, nil
}

// GetLoanDocuments returns a loan's documents, newest upload first.
func (s *documentService) GetLoanDocuments(loanID uint) ([]models.Document, error) {
	if _, err := getLoan(s.db, loanID); err != nil {
		return nil, err
	}

	var documents []models.Document
	if err := s.db.Where("loan_request_id = ?", loanID).
		Order("uploaded_at DESC").
		Find(&documents).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return documents, nil
}

// Delete hard-removes a document row and its stored file. Only the uploader
// or staff may delete.
func (s *documentService) Delete(documentID uint, actor Actor) error {
	var document models.Document
	if err := s.db.First(&document, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrDocumentNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !actor.Staff() && document.UploaderID != actor.ID {
		return apperrors.ErrForbidden
	}

	if err := s.db.Delete(&document).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.store.Remove(document.StorageKey); err != nil {
		logger.Get().Warnw("failed to remove stored file",
			"storage_key", document.StorageKey,
			"error", err,
		)
	}
	return nil
}
