package models

import "gorm.io/gorm"

// LoanStatus is the lifecycle status of a loan request. Each status carries a
// fixed step number; see StatusSteps.
type LoanStatus string

const (
	StatusNewRequest                  LoanStatus = "new_request"
	StatusQuoteRequested              LoanStatus = "quote_requested"
	StatusSoftQuoteIssued             LoanStatus = "soft_quote_issued"
	StatusTermSheetSigned             LoanStatus = "term_sheet_signed"
	StatusNeedsListSent               LoanStatus = "needs_list_sent"
	StatusNeedsListComplete           LoanStatus = "needs_list_complete"
	StatusSubmittedToUnderwriting     LoanStatus = "submitted_to_underwriting"
	StatusAppraisalOrdered            LoanStatus = "appraisal_ordered"
	StatusAppraisalReceived           LoanStatus = "appraisal_received"
	StatusConditionallyApproved       LoanStatus = "conditionally_approved"
	StatusConditionalItemsNeeded      LoanStatus = "conditional_items_needed"
	StatusConditionalCommitmentIssued LoanStatus = "conditional_commitment_issued"
	StatusClearToClose                LoanStatus = "clear_to_close"
	StatusClosingScheduled            LoanStatus = "closing_scheduled"
	StatusFunded                      LoanStatus = "funded"

	// StatusDeclined is terminal and absorbing. It carries no step of its
	// own; a declined loan keeps the step it had.
	StatusDeclined LoanStatus = "declined"
)

// StatusSteps maps each pipeline status to its step number (1-15).
var StatusSteps = map[LoanStatus]int{
	StatusNewRequest:                  1,
	StatusQuoteRequested:              2,
	StatusSoftQuoteIssued:             3,
	StatusTermSheetSigned:             4,
	StatusNeedsListSent:               5,
	StatusNeedsListComplete:           6,
	StatusSubmittedToUnderwriting:     7,
	StatusAppraisalOrdered:            8,
	StatusAppraisalReceived:           9,
	StatusConditionallyApproved:       10,
	StatusConditionalItemsNeeded:      11,
	StatusConditionalCommitmentIssued: 12,
	StatusClearToClose:                13,
	StatusClosingScheduled:            14,
	StatusFunded:                      15,
}

// IsValidStatus reports whether s is a known loan status.
func IsValidStatus(s LoanStatus) bool {
	if s == StatusDeclined {
		return true
	}
	_, ok := StatusSteps[s]
	return ok
}

// DocumentationType describes how a loan's income is documented.
type DocumentationType string

const (
	DocTypeFullDoc       DocumentationType = "full_doc"
	DocTypeLightDoc      DocumentationType = "light_doc"
	DocTypeBankStatement DocumentationType = "bank_statement"
	DocTypeNoDoc         DocumentationType = "no_doc"
)

// LoanRequest is one financing application. It is mutated by every workflow
// transition and never hard-deleted; the status history log is the audit
// source of truth for its lifecycle.
type LoanRequest struct {
	Base
	BorrowerID      uint       `gorm:"not null;index" json:"borrower_id"`
	ReferenceNumber string     `gorm:"size:36;uniqueIndex" json:"reference_number"`
	Status          LoanStatus `gorm:"not null;default:'new_request'" json:"status"`
	Step            int        `gorm:"not null;default:1" json:"step"`

	// Financial snapshot
	PropertyType            string            `json:"property_type"`
	RequestType             string            `json:"request_type"`
	PropertyValue           float64           `json:"property_value"`
	RequestedLTV            float64           `json:"requested_ltv"`
	LoanAmount              float64           `json:"loan_amount"`
	DocumentationType       DocumentationType `json:"documentation_type"`
	CreditScore             *int              `json:"credit_score,omitempty"`
	AnnualRentalIncome      float64           `json:"annual_rental_income"`
	AnnualOperatingExpenses float64           `json:"annual_operating_expenses"`
	AnnualLoanPayments      float64           `json:"annual_loan_payments"`
	DSCR                    *float64          `json:"dscr,omitempty"`

	// Quote snapshot
	QuoteGenerated          bool    `gorm:"default:false" json:"quote_generated"`
	RateRange               string  `json:"rate_range,omitempty"`
	InterestRateMin         float64 `json:"interest_rate_min,omitempty"`
	InterestRateMax         float64 `json:"interest_rate_max,omitempty"`
	EstimatedMonthlyPayment float64 `json:"estimated_monthly_payment,omitempty"`
	TotalClosingCosts       float64 `json:"total_closing_costs,omitempty"`
	DeclineReason           string  `json:"decline_reason,omitempty"`

	// Workflow flags
	CreditAuthorized     bool `gorm:"default:false" json:"credit_authorized"`
	TermSheetSigned      bool `gorm:"default:false" json:"term_sheet_signed"`
	AppraisalPaid        bool `gorm:"default:false" json:"appraisal_paid"`
	ApplicationCompleted bool `gorm:"default:false" json:"application_completed"`

	// Relationships
	StatusHistory []StatusHistoryEntry `gorm:"foreignKey:LoanRequestID" json:"status_history,omitempty"`
	NeedsList     []NeedsListItem      `gorm:"foreignKey:LoanRequestID" json:"needs_list,omitempty"`
	Documents     []Document           `gorm:"foreignKey:LoanRequestID" json:"documents,omitempty"`
}

// BeforeSave keeps the loan amount consistent with the property value and
// requested LTV whenever both inputs are present.
func (l *LoanRequest) BeforeSave(tx *gorm.DB) error {
	if l.PropertyValue > 0 && l.RequestedLTV > 0 {
		l.LoanAmount = l.PropertyValue * l.RequestedLTV / 100
	}
	return nil
}
