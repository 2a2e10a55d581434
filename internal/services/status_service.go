package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/models"
)

// statusService is the loan status state machine. Every transition updates
// the loan's status/step and appends a history entry in the same database
// transaction, so the loan row stays a materialized view over the history
// log.
type statusService struct {
	db       *gorm.DB
	notifier NotificationServicer
}

// NewStatusService creates a new StatusServicer.
func NewStatusService(db *gorm.DB, notifier NotificationServicer) StatusServicer {
	return &statusService{db: db, notifier: notifier}
}

// StepFor returns the step for a status, falling back when the status is
// unmapped. Declined carries no step of its own: a declined loan keeps its
// place in the pipeline.
func (s *statusService) StepFor(status models.LoanStatus, fallback int) int {
	if step, ok := models.StatusSteps[status]; ok {
		return step
	}
	return fallback
}

// getLoan loads a loan through the given handle.
func getLoan(tx *gorm.DB, loanID uint) (*models.LoanRequest, error) {
	var loan models.LoanRequest
	if err := tx.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLoanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &loan, nil
}

// Transition applies a borrower-driven transition. The step only ever moves
// forward: declines and other unmapped statuses keep the loan's current
// step, and a target behind the current step is clamped to it.
func (s *statusService) Transition(tx *gorm.DB, loan *models.LoanRequest, target models.LoanStatus, actorID *uint, notes string) error {
	if !models.IsValidStatus(target) {
		return apperrors.WithMessage(apperrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", target))
	}

	// Re-entrant call: the loan is already there. True no-op, no
	// duplicate history row.
	if loan.Status == target {
		return nil
	}

	step := s.StepFor(target, loan.Step)
	if step < loan.Step {
		step = loan.Step
	}

	return s.apply(tx, loan, target, step, actorID, notes)
}

// apply writes the status/step pair and the matching history entry.
func (s *statusService) apply(tx *gorm.DB, loan *models.LoanRequest, target models.LoanStatus, step int, actorID *uint, notes string) error {
	loan.Status = target
	loan.Step = step

	if err := tx.Model(loan).Updates(map[string]interface{}{
		"status": target,
		"step":   step,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entry := &models.StatusHistoryEntry{
		LoanRequestID: loan.ID,
		Status:        target,
		Step:          step,
		ActorID:       actorID,
		Notes:         notes,
	}
	if err := tx.Create(entry).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// TransitionByID loads the loan and runs the transition in its own database
// transaction.
func (s *statusService) TransitionByID(loanID uint, target models.LoanStatus, actorID *uint, notes string) (*models.LoanRequest, error) {
	var loan *models.LoanRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		loan, txErr = getLoan(tx, loanID)
		if txErr != nil {
			return txErr
		}
		return s.Transition(tx, loan, target, actorID, notes)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// SetStatus is the unconditional ops override. Unlike Transition it writes
// the mapped status/step pair verbatim, so records can be corrected
// backwards. The borrower is notified best-effort.
func (s *statusService) SetStatus(loanID uint, target models.LoanStatus, actor Actor, notes string) (*models.LoanRequest, error) {
	if !models.IsValidStatus(target) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", target))
	}

	var loan *models.LoanRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		loan, txErr = getLoan(tx, loanID)
		if txErr != nil {
			return txErr
		}

		if loan.Status == target {
			return nil
		}

		actorID := actor.ID
		return s.apply(tx, loan, target, s.StepFor(target, loan.Step), &actorID, notes)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBorrower(loan, notificationTypeFor(target),
		"Loan status updated",
		fmt.Sprintf("Your loan %s is now %s.", loan.ReferenceNumber, target))

	return loan, nil
}

// notificationTypeFor maps a status to the notification type the borrower
// receives when ops moves the loan there.
func notificationTypeFor(status models.LoanStatus) models.NotificationType {
	switch status {
	case models.StatusFunded:
		return models.NotificationFunded
	case models.StatusClosingScheduled:
		return models.NotificationClosingScheduled
	case models.StatusConditionalCommitmentIssued:
		return models.NotificationCommitmentIssued
	case models.StatusDeclined:
		return models.NotificationQuoteDeclined
	default:
		return models.NotificationStatusChanged
	}
}

// GetHistory returns history entries ordered by creation time. Concurrent
// requests can interleave appends, so readers must sort by timestamp rather
// than assume insertion order.
func (s *statusService) GetHistory(loanID uint) ([]models.StatusHistoryEntry, error) {
	if _, err := getLoan(s.db, loanID); err != nil {
		return nil, err
	}

	var entries []models.StatusHistoryEntry
	if err := s.db.Where("loan_request_id = ?", loanID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entries, nil
}
