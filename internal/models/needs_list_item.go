package models

import "time"

// NeedsItemStatus is the authoritative completion state of a required
// document, mutated on upload and review. The folder color derived at read
// time is presentational only and never replaces this field.
type NeedsItemStatus string

const (
	NeedsItemPending  NeedsItemStatus = "pending"
	NeedsItemUploaded NeedsItemStatus = "uploaded"
	NeedsItemReviewed NeedsItemStatus = "reviewed"
	NeedsItemRejected NeedsItemStatus = "rejected"
)

// DocumentCategory groups needs-list folders for the borrower view.
type DocumentCategory string

const (
	CategoryFinancial DocumentCategory = "financial"
	CategoryProperty  DocumentCategory = "property"
	CategoryIdentity  DocumentCategory = "identity"
	CategoryGeneral   DocumentCategory = "general"
)

// NeedsListItem is one required document category for a loan. The unique
// index on (loan_request_id, folder_name) backs the generator's
// conflict-tolerant bootstrap insert. Items are never deleted once uploads
// exist.
type NeedsListItem struct {
	Base
	LoanRequestID uint             `gorm:"not null;uniqueIndex:ux_needs_items_loan_folder" json:"loan_request_id"`
	FolderName    string           `gorm:"not null;uniqueIndex:ux_needs_items_loan_folder" json:"folder_name"`
	DocumentType  string           `gorm:"not null" json:"document_type"`
	Description   string           `json:"description"`
	Category      DocumentCategory `gorm:"not null;default:'general'" json:"category"`
	Required      bool             `gorm:"default:true" json:"required"`
	Status        NeedsItemStatus  `gorm:"not null;default:'pending'" json:"status"`
	RequestedByID *uint            `json:"requested_by_id,omitempty"`
	ReviewedByID  *uint            `json:"reviewed_by_id,omitempty"`
	LastUploadAt  *time.Time       `json:"last_upload_at,omitempty"`

	Documents []Document `gorm:"foreignKey:NeedsListItemID" json:"documents,omitempty"`
}
