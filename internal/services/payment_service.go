package services

import (
	"fmt"

	"gorm.io/gorm"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/models"
)

// appraisalFee is a flat fee charged before an appraisal is ordered.
const appraisalFee = 550.00

type paymentService struct {
	db       *gorm.DB
	gateway  PaymentGateway
	status   StatusServicer
	notifier NotificationServicer
}

// NewPaymentService creates a new PaymentServicer.
func NewPaymentService(db *gorm.DB, gateway PaymentGateway, status StatusServicer, notifier NotificationServicer) PaymentServicer {
	return &paymentService{db: db, gateway: gateway, status: status, notifier: notifier}
}

// CreateAppraisalIntent opens a payment intent for the appraisal fee. The
// term sheet has to be signed first; paying twice is rejected.
func (s *paymentService) CreateAppraisalIntent(loanID uint, actor Actor) (*PaymentIntent, error) {
	loan, err := getLoan(s.db, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.Staff() && loan.BorrowerID != actor.ID {
		return nil, apperrors.ErrLoanNotFound
	}
	if !loan.TermSheetSigned {
		return nil, apperrors.WithMessage(apperrors.ErrPreconditionFailed, "the term sheet must be signed before the appraisal fee is due")
	}
	if loan.AppraisalPaid {
		return nil, apperrors.WithMessage(apperrors.ErrPreconditionFailed, "the appraisal fee has already been paid")
	}

	intent, err := s.gateway.CreateIntent(loan.ID, appraisalFee)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return intent, nil
}

// HandleCompletion processes a gateway completion callback: it marks the
// appraisal fee as paid and, when the needs list is already complete, moves
// the loan forward to appraisal_ordered. The callback carries no actor, so
// the history entry is recorded without one.
func (s *paymentService) HandleCompletion(intentID string) (*models.LoanRequest, error) {
	intent, err := s.gateway.ResolveIntent(intentID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	var loan *models.LoanRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		loan, txErr = getLoan(tx, intent.LoanID)
		if txErr != nil {
			return txErr
		}
		if loan.AppraisalPaid {
			// Gateways retry callbacks; a replay changes nothing.
			return nil
		}

		loan.AppraisalPaid = true
		if err := tx.Model(loan).Update("appraisal_paid", true).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if loan.Status == models.StatusNeedsListComplete || loan.Status == models.StatusSubmittedToUnderwriting {
			return s.status.Transition(tx, loan, models.StatusAppraisalOrdered, nil, "Appraisal fee received")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyBorrower(loan, models.NotificationStatusChanged,
		"Appraisal fee received",
		fmt.Sprintf("The appraisal fee for loan %s has been received.", loan.ReferenceNumber))

	return loan, nil
}
