package models

import "time"

// StatusHistoryEntry is an append-only log row recording a loan's status at
// the time of a transition. Entries are immutable once written; the loan's
// current status must always equal the status of its most recent entry.
// Readers order by created_at, not insertion order.
type StatusHistoryEntry struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	LoanRequestID uint       `gorm:"not null;index" json:"loan_request_id"`
	Status        LoanStatus `gorm:"not null" json:"status"`
	Step          int        `gorm:"not null" json:"step"`
	ActorID       *uint      `json:"actor_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}
