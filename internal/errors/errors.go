// Package errors provides custom error types for the LoanFlow API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
//
// A loan decline is deliberately NOT an error: it is a business decision
// returned as structured quote data on the success path.
package errors

import "net/http"

// FieldError describes a single field-level validation violation. Eligibility
// checks return all violations at once so the caller can render the full
// list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Fields     []FieldError `json:"fields,omitempty"`
	StatusCode int          `json:"-"`
	Internal   error        `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WithFields creates a new AppError carrying a field-level violation list.
func WithFields(sentinel *AppError, fields []FieldError) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Fields:     fields,
		StatusCode: sentinel.StatusCode,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Workflow errors.
var (
	// ErrValidationFailed carries a field-level list of eligibility
	// violations; use WithFields to attach them.
	ErrValidationFailed = &AppError{Code: "VALIDATION_FAILED", Message: "One or more fields failed validation", StatusCode: http.StatusBadRequest}

	// ErrPreconditionFailed signals that a required prior workflow step is
	// missing. Guard failures never mutate state.
	ErrPreconditionFailed = &AppError{Code: "PRECONDITION_FAILED", Message: "A required prior step has not been completed", StatusCode: http.StatusPreconditionFailed}

	// ErrConflict signals an idempotent-insert collision. The needs-list
	// generator swallows it; other callers surface it.
	ErrConflict = &AppError{Code: "CONFLICT", Message: "The resource already exists", StatusCode: http.StatusConflict}

	ErrInvalidStatus = &AppError{Code: "INVALID_STATUS", Message: "Unknown loan status", StatusCode: http.StatusBadRequest}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Loan errors.
var (
	ErrLoanNotFound          = &AppError{Code: "LOAN_NOT_FOUND", Message: "Loan request not found", StatusCode: http.StatusNotFound}
	ErrNeedsListItemNotFound = &AppError{Code: "NEEDS_LIST_ITEM_NOT_FOUND", Message: "Needs list item not found", StatusCode: http.StatusNotFound}
	ErrDocumentNotFound      = &AppError{Code: "DOCUMENT_NOT_FOUND", Message: "Document not found", StatusCode: http.StatusNotFound}
	ErrNotificationNotFound  = &AppError{Code: "NOTIFICATION_NOT_FOUND", Message: "Notification not found", StatusCode: http.StatusNotFound}
)
