package models

import "time"

// Document is one uploaded file. Immutable after creation except for hard
// deletion; the storage key is the stable locator returned by the document
// store.
type Document struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	LoanRequestID   uint      `gorm:"not null;index" json:"loan_request_id"`
	NeedsListItemID *uint     `gorm:"index" json:"needs_list_item_id,omitempty"`
	UploaderID      uint      `gorm:"not null" json:"uploader_id"`
	FolderName      string    `json:"folder_name"`
	FileName        string    `gorm:"not null" json:"file_name"`
	StorageKey      string    `gorm:"not null;uniqueIndex" json:"storage_key"`
	UploadedAt      time.Time `gorm:"not null;index" json:"uploaded_at"`
	CreatedAt       time.Time `json:"created_at"`
}
