package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/models"
)

// folderCatalogEntry is one folder in the fixed bootstrap catalog.
type folderCatalogEntry struct {
	FolderName   string
	DocumentType string
	Description  string
}

// folderCatalog is the fixed set of required document folders materialized
// for every loan entering document collection.
var folderCatalog = []folderCatalogEntry{
	{"Application", "application", "Completed and signed loan application"},
	{"Entity Documents", "entity_documents", "Formation documents, operating agreement, EIN letter"},
	{"Insurance", "insurance", "Evidence of property and liability insurance"},
	{"Personal Financial Statement", "personal_financial_statement", "Current personal financial statement for all guarantors"},
	{"Property Financial Statements", "property_financial_statements", "Trailing 12-month operating statements for the property"},
	{"Rent Roll & Leases", "rent_roll_leases", "Current rent roll and copies of all leases"},
}

// deriveCategory keyword-matches a folder name to a display category.
// Order matters: "Property Financial Statements" is financial, not property.
func deriveCategory(folderName string) models.DocumentCategory {
	name := strings.ToLower(folderName)
	switch {
	case strings.Contains(name, "financial") || strings.Contains(name, "statement") || strings.Contains(name, "bank"):
		return models.CategoryFinancial
	case strings.Contains(name, "property") || strings.Contains(name, "rent") ||
		strings.Contains(name, "lease") || strings.Contains(name, "insurance") ||
		strings.Contains(name, "appraisal"):
		return models.CategoryProperty
	case strings.Contains(name, "entity") || strings.Contains(name, "identity") ||
		strings.Contains(name, "license"):
		return models.CategoryIdentity
	default:
		return models.CategoryGeneral
	}
}

// needsListService generates and tracks the required-document set per loan.
type needsListService struct {
	db *gorm.DB
}

// NewNeedsListService creates a new NeedsListServicer.
func NewNeedsListService(db *gorm.DB) NeedsListServicer {
	return &needsListService{db: db}
}

// Generate materializes the folder catalog for a loan. The insert is
// conflict-tolerant on the (loan, folder) unique index, so repeated or
// concurrent first-calls never create duplicate rows and ops-added items
// are never disturbed.
func (s *needsListService) Generate(loanID uint, requestedBy *uint) error {
	if _, err := getLoan(s.db, loanID); err != nil {
		return err
	}

	items := make([]models.NeedsListItem, 0, len(folderCatalog))
	for _, entry := range folderCatalog {
		items = append(items, models.NeedsListItem{
			LoanRequestID: loanID,
			FolderName:    entry.FolderName,
			DocumentType:  entry.DocumentType,
			Description:   entry.Description,
			Category:      deriveCategory(entry.FolderName),
			Required:      true,
			Status:        models.NeedsItemPending,
			RequestedByID: requestedBy,
		})
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "loan_request_id"}, {Name: "folder_name"}},
		DoNothing: true,
	}).Create(&items).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// AddItem merges an ad-hoc ops request into the loan's list.
func (s *needsListService) AddItem(loanID uint, actor Actor, folderName, documentType, description string, required bool) (*models.NeedsListItem, error) {
	if folderName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "folder name is required")
	}
	if _, err := getLoan(s.db, loanID); err != nil {
		return nil, err
	}

	if documentType == "" {
		documentType = strings.ReplaceAll(strings.ToLower(folderName), " ", "_")
	}

	actorID := actor.ID
	item := &models.NeedsListItem{
		LoanRequestID: loanID,
		FolderName:    folderName,
		DocumentType:  documentType,
		Description:   description,
		Category:      deriveCategory(folderName),
		Required:      required,
		Status:        models.NeedsItemPending,
		RequestedByID: &actorID,
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "loan_request_id"}, {Name: "folder_name"}},
		DoNothing: true,
	}).Create(item)
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrConflict, "a folder with this name already exists for the loan")
	}
	return item, nil
}

// GetItems returns the loan's needs-list items.
func (s *needsListService) GetItems(loanID uint) ([]models.NeedsListItem, error) {
	if _, err := getLoan(s.db, loanID); err != nil {
		return nil, err
	}

	var items []models.NeedsListItem
	if err := s.db.Where("loan_request_id = ?", loanID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return items, nil
}

// recentUploadWindow is the recency threshold for the red folder color.
const recentUploadWindow = 24 * time.Hour

// FolderStatuses derives the visual status for each folder from upload
// counts and timestamps. Recomputed on every fetch, never persisted, and
// never authoritative: completion lives on the item's Status field.
func (s *needsListService) FolderStatuses(loanID uint, now time.Time) ([]FolderStatus, error) {
	items, err := s.GetItems(loanID)
	if err != nil {
		return nil, err
	}

	statuses := make([]FolderStatus, 0, len(items))
	for _, item := range items {
		var docs []models.Document
		if err := s.db.Where("needs_list_item_id = ?", item.ID).Find(&docs).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		status := FolderStatus{Item: item, DocumentCount: len(docs), Color: FolderTan}
		for i := range docs {
			if status.LastUploadAt == nil || docs[i].UploadedAt.After(*status.LastUploadAt) {
				t := docs[i].UploadedAt
				status.LastUploadAt = &t
			}
		}
		if status.LastUploadAt != nil {
			if now.Sub(*status.LastUploadAt) <= recentUploadWindow {
				status.Color = FolderRed
			} else {
				status.Color = FolderBlue
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ReviewItem records an ops review decision.
func (s *needsListService) ReviewItem(itemID uint, reviewer Actor, approve bool) (*models.NeedsListItem, error) {
	var item models.NeedsListItem
	if err := s.db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNeedsListItemNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	reviewerID := reviewer.ID
	item.ReviewedByID = &reviewerID
	if approve {
		item.Status = models.NeedsItemReviewed
	} else {
		item.Status = models.NeedsItemRejected
	}

	if err := s.db.Save(&item).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &item, nil
}

// AllRequiredSatisfied reports whether every required item has at least one
// linked document.
func (s *needsListService) AllRequiredSatisfied(loanID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.NeedsListItem{}).
		Where("loan_request_id = ? AND required = ?", loanID, true).
		Where("NOT EXISTS (SELECT 1 FROM documents WHERE documents.needs_list_item_id = needs_list_items.id)").
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count == 0, nil
}
