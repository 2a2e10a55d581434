package models

import "time"

// NotificationType identifies the event a notification was dispatched for.
type NotificationType string

const (
	NotificationQuoteRequested    NotificationType = "quote_requested"
	NotificationQuoteApproved     NotificationType = "quote_approved"
	NotificationQuoteDeclined     NotificationType = "quote_declined"
	NotificationDocumentUploaded  NotificationType = "document_uploaded"
	NotificationCommitmentIssued  NotificationType = "commitment_issued"
	NotificationClosingScheduled  NotificationType = "closing_scheduled"
	NotificationFunded            NotificationType = "funded"
	NotificationStatusChanged     NotificationType = "status_changed"
	NotificationNeedsListComplete NotificationType = "needs_list_complete"
)

// Notification is one row per (recipient, event), created by the dispatcher
// fan-out and mutated only by the recipient marking it read.
type Notification struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	RecipientID   uint             `gorm:"not null;index" json:"recipient_id"`
	LoanRequestID *uint            `gorm:"index" json:"loan_request_id,omitempty"`
	Type          NotificationType `gorm:"not null" json:"type"`
	Title         string           `gorm:"not null" json:"title"`
	Message       string           `json:"message"`
	Read          bool             `gorm:"default:false" json:"read"`
	CreatedAt     time.Time        `json:"created_at"`
}
