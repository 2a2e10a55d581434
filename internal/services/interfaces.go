package services

import (
	"io"
	"time"

	"gorm.io/gorm"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/models"
	"loanflow/internal/pagination"
)

// Actor identifies who is performing a workflow operation. Staff actors
// (ops/admin) bypass ownership scoping and borrower-only transition guards.
type Actor struct {
	ID   uint
	Role models.Role
}

// Staff reports whether the actor has pipeline-wide access.
func (a Actor) Staff() bool { return a.Role.IsStaff() }

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string, role models.Role) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID uint, tokenHash string) error
	GetRefreshTokenHash(userID uint) (string, error)
}

// StatusServicer is the loan status state machine: it validates and applies
// transitions, appends history, and derives step numbers. Guarded
// borrower-driven transitions go through Transition; ops corrections go
// through SetStatus, which is unconditional.
type StatusServicer interface {
	// StepFor returns the step number for a status, or fallback when the
	// status carries no step of its own (declined).
	StepFor(status models.LoanStatus, fallback int) int

	// Transition applies a borrower-driven transition inside the given
	// transaction handle: status update plus history append in one logical
	// operation, with the step clamped monotonically non-decreasing.
	// Transitioning to the loan's current status is a no-op and appends no
	// duplicate history row.
	Transition(tx *gorm.DB, loan *models.LoanRequest, target models.LoanStatus, actorID *uint, notes string) error

	// TransitionByID loads the loan and runs Transition in its own
	// database transaction.
	TransitionByID(loanID uint, target models.LoanStatus, actorID *uint, notes string) (*models.LoanRequest, error)

	// SetStatus is the ops override: any target status, step set verbatim
	// from the status table, history appended, borrower notified.
	SetStatus(loanID uint, target models.LoanStatus, actor Actor, notes string) (*models.LoanRequest, error)

	// GetHistory returns the loan's history entries ordered by creation
	// time.
	GetHistory(loanID uint) ([]models.StatusHistoryEntry, error)
}

// EligibilityResult is the outcome of the pre-submission eligibility check.
// Violations are returned as a list so the caller can render all of them at
// once; ineligibility is not an error.
type EligibilityResult struct {
	Eligible bool                   `json:"eligible"`
	Errors   []apperrors.FieldError `json:"errors"`
}

// QuoteResult is the outcome of the quote function. A decline is a
// successful-path business decision and always carries a human-readable
// reason.
type QuoteResult struct {
	Approved                bool     `json:"approved"`
	DeclineReason           string   `json:"decline_reason,omitempty"`
	RateRange               string   `json:"rate_range,omitempty"`
	InterestRateMin         float64  `json:"interest_rate_min,omitempty"`
	InterestRateMax         float64  `json:"interest_rate_max,omitempty"`
	EstimatedMonthlyPayment float64  `json:"estimated_monthly_payment,omitempty"`
	TotalClosingCosts       float64  `json:"total_closing_costs,omitempty"`
	DSCR                    *float64 `json:"dscr,omitempty"`
}

// EligibilityServicer is a pure computation over a loan's financial
// snapshot; it never touches the database.
type EligibilityServicer interface {
	CheckEligibility(loan *models.LoanRequest) EligibilityResult
	ComputeDSCR(loan *models.LoanRequest) *float64
	GenerateQuote(loan *models.LoanRequest) QuoteResult
}

// FolderColor is the derived, presentational upload-recency indicator for a
// needs-list folder. It is recomputed on every fetch and never persisted;
// authoritative completion is the item's Status field.
type FolderColor string

const (
	FolderTan  FolderColor = "tan"  // no documents
	FolderBlue FolderColor = "blue" // documents, none within the last 24h
	FolderRed  FolderColor = "red"  // a document uploaded within the last 24h
)

// FolderStatus pairs a needs-list item with its derived upload state.
type FolderStatus struct {
	Item          models.NeedsListItem `json:"item"`
	DocumentCount int                  `json:"document_count"`
	LastUploadAt  *time.Time           `json:"last_upload_at,omitempty"`
	Color         FolderColor          `json:"color"`
}

// NeedsListServicer generates and tracks the required-document set for a
// loan.
type NeedsListServicer interface {
	// Generate materializes the fixed folder catalog for the loan.
	// Idempotent: concurrent or repeated calls never create duplicates.
	Generate(loanID uint, requestedBy *uint) error

	// AddItem merges an ops-requested ad-hoc document into the loan's list.
	AddItem(loanID uint, actor Actor, folderName, documentType, description string, required bool) (*models.NeedsListItem, error)

	GetItems(loanID uint) ([]models.NeedsListItem, error)

	// FolderStatuses derives the per-folder visual status as of now.
	FolderStatuses(loanID uint, now time.Time) ([]FolderStatus, error)

	// ReviewItem records an ops review decision (reviewed or rejected).
	ReviewItem(itemID uint, reviewer Actor, approve bool) (*models.NeedsListItem, error)

	// AllRequiredSatisfied reports whether every required item has at
	// least one linked document.
	AllRequiredSatisfied(loanID uint) (bool, error)
}

// DocumentServicer handles uploaded files and their needs-list linkage.
type DocumentServicer interface {
	Upload(loanID uint, actor Actor, itemID *uint, folderName, fileName string, content io.Reader) (*models.Document, error)
	GetLoanDocuments(loanID uint) ([]models.Document, error)
	Delete(documentID uint, actor Actor) error
}

// NotificationServicer fans out user-facing notices on selected
// transitions. Dispatch is best effort: failures are logged and never
// propagate to the triggering operation.
type NotificationServicer interface {
	NotifyBorrower(loan *models.LoanRequest, typ models.NotificationType, title, message string)
	NotifyOps(loan *models.LoanRequest, typ models.NotificationType, title, message string)
	GetUserNotifications(userID uint, page pagination.PageRequest, unreadOnly bool) (*pagination.PageResponse[models.Notification], error)
	MarkRead(userID, notificationID uint) (*models.Notification, error)
}

// CreateLoanInput holds the financial snapshot supplied at loan creation.
type CreateLoanInput struct {
	PropertyType            string
	RequestType             string
	PropertyValue           float64
	RequestedLTV            float64
	DocumentationType       models.DocumentationType
	CreditScore             *int
	AnnualRentalIncome      float64
	AnnualOperatingExpenses float64
	AnnualLoanPayments      float64
}

// SubmitResult reports the outcome of a submission: either the loan moved to
// quote_requested, or it was auto-declined, or the eligibility pre-check
// rejected it without mutating anything.
type SubmitResult struct {
	Loan        *models.LoanRequest `json:"loan"`
	Declined    bool                `json:"declined"`
	Reason      string              `json:"reason,omitempty"`
	Eligibility EligibilityResult   `json:"eligibility"`
}

// QuoteOutcome reports the outcome of the ops quote approval action.
type QuoteOutcome struct {
	Loan  *models.LoanRequest `json:"loan"`
	Quote QuoteResult         `json:"quote"`
}

// LoanServicer composes the workflow engine: eligibility, state machine,
// needs-list generation, and notification fan-out behind the action
// operations.
type LoanServicer interface {
	CreateLoan(borrowerID uint, in CreateLoanInput) (*models.LoanRequest, error)
	UpdateFinancials(loanID uint, actor Actor, in CreateLoanInput) (*models.LoanRequest, error)
	GetLoan(loanID uint, actor Actor) (*models.LoanRequest, error)
	GetBorrowerLoans(borrowerID uint, page pagination.PageRequest) (*pagination.PageResponse[models.LoanRequest], error)
	GetPipeline(page pagination.PageRequest, status *models.LoanStatus) (*pagination.PageResponse[models.LoanRequest], error)

	Submit(loanID uint, actor Actor) (*SubmitResult, error)
	AuthorizeCredit(loanID uint, actor Actor, consent bool) (*models.LoanRequest, error)
	ApproveQuote(loanID uint, actor Actor) (*QuoteOutcome, error)
	SignTermSheet(loanID uint, actor Actor) (*models.LoanRequest, error)
	CompleteNeedsList(loanID uint, actor Actor) (*models.LoanRequest, error)

	RenderTermSheet(loanID uint, actor Actor) (string, error)
	GetHistory(loanID uint, actor Actor) ([]models.StatusHistoryEntry, error)
}

// PaymentServicer handles appraisal payments through the gateway
// collaborator.
type PaymentServicer interface {
	CreateAppraisalIntent(loanID uint, actor Actor) (*PaymentIntent, error)
	HandleCompletion(intentID string) (*models.LoanRequest, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]interface{})
}
