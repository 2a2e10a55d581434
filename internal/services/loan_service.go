package services

import (
	"fmt"

	"gorm.io/gorm"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/logger"
	"loanflow/internal/models"
	"loanflow/internal/pagination"
	"loanflow/internal/uuid"
)

// logFailedSideEffect records a post-commit side effect that could not run.
// The transition itself has already committed, so the failure is logged and
// the request still succeeds.
func logFailedSideEffect(what string, loan *models.LoanRequest, err error) {
	logger.Get().Errorw("post-commit side effect failed",
		"side_effect", what,
		"loan_id", loan.ID,
		"error", err,
	)
}

// loanService composes the workflow engine behind the loan action
// operations: eligibility checks, status transitions, needs-list
// generation, and notification fan-out. Each operation runs inside a single
// request; the database is the only shared state.
type loanService struct {
	db          *gorm.DB
	status      StatusServicer
	eligibility EligibilityServicer
	needsList   NeedsListServicer
	notifier    NotificationServicer
	renderer    TermSheetRenderer
}

// NewLoanService creates a new LoanServicer.
func NewLoanService(
	db *gorm.DB,
	status StatusServicer,
	eligibility EligibilityServicer,
	needsList NeedsListServicer,
	notifier NotificationServicer,
	renderer TermSheetRenderer,
) LoanServicer {
	return &loanService{
		db:          db,
		status:      status,
		eligibility: eligibility,
		needsList:   needsList,
		notifier:    notifier,
		renderer:    renderer,
	}
}

// CreateLoan registers a new financing request in new_request with its
// initial history entry, so the current status always matches the most
// recent history row from the very first read.
func (s *loanService) CreateLoan(borrowerID uint, in CreateLoanInput) (*models.LoanRequest, error) {
	if in.RequestedLTV < 0 || in.RequestedLTV > 100 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "requested LTV must be between 0 and 100")
	}

	loan := &models.LoanRequest{
		BorrowerID:              borrowerID,
		ReferenceNumber:         uuid.New(),
		Status:                  models.StatusNewRequest,
		Step:                    models.StatusSteps[models.StatusNewRequest],
		PropertyType:            in.PropertyType,
		RequestType:             in.RequestType,
		PropertyValue:           in.PropertyValue,
		RequestedLTV:            in.RequestedLTV,
		DocumentationType:       in.DocumentationType,
		CreditScore:             in.CreditScore,
		AnnualRentalIncome:      in.AnnualRentalIncome,
		AnnualOperatingExpenses: in.AnnualOperatingExpenses,
		AnnualLoanPayments:      in.AnnualLoanPayments,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(loan).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		entry := &models.StatusHistoryEntry{
			LoanRequestID: loan.ID,
			Status:        loan.Status,
			Step:          loan.Step,
			ActorID:       &borrowerID,
			Notes:         "Loan request created",
		}
		if err := tx.Create(entry).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// getScopedLoan loads a loan the actor is allowed to see. Borrowers only
// see their own loans; missing and foreign loans are indistinguishable.
func (s *loanService) getScopedLoan(tx *gorm.DB, loanID uint, actor Actor) (*models.LoanRequest, error) {
	loan, err := getLoan(tx, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.Staff() && loan.BorrowerID != actor.ID {
		return nil, apperrors.ErrLoanNotFound
	}
	return loan, nil
}

// GetLoan retrieves a loan for the actor.
func (s *loanService) GetLoan(loanID uint, actor Actor) (*models.LoanRequest, error) {
	return s.getScopedLoan(s.db, loanID, actor)
}

// UpdateFinancials updates the financial snapshot. Borrowers may only edit
// before submission; ops may correct the snapshot at any time.
func (s *loanService) UpdateFinancials(loanID uint, actor Actor, in CreateLoanInput) (*models.LoanRequest, error) {
	loan, err := s.getScopedLoan(s.db, loanID, actor)
	if err != nil {
		return nil, err
	}
	if !actor.Staff() && loan.Status != models.StatusNewRequest {
		return nil, apperrors.WithMessage(apperrors.ErrPreconditionFailed, "the loan has already been submitted")
	}
	if in.RequestedLTV < 0 || in.RequestedLTV > 100 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "requested LTV must be between 0 and 100")
	}

	loan.PropertyType = in.PropertyType
	loan.RequestType = in.RequestType
	loan.PropertyValue = in.PropertyValue
	loan.RequestedLTV = in.RequestedLTV
	loan.DocumentationType = in.DocumentationType
	loan.CreditScore = in.CreditScore
	loan.AnnualRentalIncome = in.AnnualRentalIncome
	loan.AnnualOperatingExpenses = in.AnnualOperatingExpenses
	loan.AnnualLoanPayments = in.AnnualLoanPayments

	if err := s.db.Save(loan).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return loan, nil
}

// GetBorrowerLoans lists the borrower's own loans.
func (s *loanService) GetBorrowerLoans(borrowerID uint, page pagination.PageRequest) (*pagination.PageResponse[models.LoanRequest], error) {
	page.Defaults()

	base := s.db.Model(&models.LoanRequest{}).Where("borrower_id = ?", borrowerID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var loans []models.LoanRequest
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&loans).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(loans, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPipeline lists all loans for the ops pipeline view, optionally
// filtered by status.
func (s *loanService) GetPipeline(page pagination.PageRequest, status *models.LoanStatus) (*pagination.PageResponse[models.LoanRequest], error) {
	page.Defaults()

	base := s.db.Model(&models.LoanRequest{})
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var loans []models.LoanRequest
	if err := base.Scopes(pagination.Paginate(page)).
		Order("step ASC, created_at ASC").
		Find(&loans).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(loans, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// Submit runs the eligibility pre-check and the DSCR auto-decline, then
// moves the loan to quote_requested or declined. A failed pre-check mutates
// nothing.
func (s *loanService) Submit(loanID uint, actor Actor) (*SubmitResult, error) {
	var (
		loan     *models.LoanRequest
		declined bool
		reason   string
	)

	precheck := EligibilityResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		loan, txErr = s.getScopedLoan(tx, loanID, actor)
		if txErr != nil {
			return txErr
		}

		precheck = s.eligibility.CheckEligibility(loan)
		if !precheck.Eligible {
			return apperrors.WithFields(apperrors.ErrValidationFailed, precheck.Errors)
		}

		dscr := s.eligibility.ComputeDSCR(loan)
		loan.DSCR = dscr
		loan.ApplicationCompleted = true

		quote := s.eligibility.GenerateQuote(loan)
		target := models.StatusQuoteRequested
		notes := "Submitted for quote"
		if !quote.Approved {
			declined = true
			reason = quote.DeclineReason
			loan.DeclineReason = reason
			target = models.StatusDeclined
			notes = reason
		}

		if err := tx.Model(loan).Updates(map[string]interface{}{
			"dscr":                  loan.DSCR,
			"application_completed": true,
			"decline_reason":        loan.DeclineReason,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		actorID := actor.ID
		return s.status.Transition(tx, loan, target, &actorID, notes)
	})
	if err != nil {
		return nil, err
	}

	if declined {
		s.notifier.NotifyBorrower(loan, models.NotificationQuoteDeclined,
			"Loan request declined", reason)
	} else {
		s.notifier.NotifyOps(loan, models.NotificationQuoteRequested,
			"New quote request",
			fmt.Sprintf("Loan %s was submitted for a quote.", loan.ReferenceNumber))
	}

	return &SubmitResult{Loan: loan, Declined: declined, Reason: reason, Eligibility: precheck}, nil
}

// AuthorizeCredit records the borrower's credit-pull consent. It does not
// change the loan's status; the ops quote approval drives the next
// transition.
func (s *loanService) AuthorizeCredit(loanID uint, actor Actor, consent bool) (*models.LoanRequest, error) {
	if !consent {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "explicit consent is required to authorize a credit pull")
	}

	loan, err := s.getScopedLoan(s.db, loanID, actor)
	if err != nil {
		return nil, err
	}
	if loan.CreditAuthorized {
		return nil, apperrors.WithMessage(apperrors.ErrPreconditionFailed, "credit has already been authorized for this loan")
	}

	if err := s.db.Model(loan).Update("credit_authorized", true).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	loan.CreditAuthorized = true
	return loan, nil
}

// ApproveQuote runs the quote function. Approval issues the soft quote,
// bootstraps the needs list, and notifies the borrower; a decline records
// the reason and moves the loan to declined. Requires prior credit
// authorization.
func (s *loanService) ApproveQuote(loanID uint, actor Actor) (*QuoteOutcome, error) {
	var (
		loan  *models.LoanRequest
		quote QuoteResult
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		loan, txErr = s.getScopedLoan(tx, loanID, actor)
		if txErr != nil {
			return txErr
		}
		if !loan.CreditAuthorized {
			return apperrors.WithMessage(apperrors.ErrPreconditionFailed, "credit authorization is required before a quote can be issued")
		}

		quote = s.eligibility.GenerateQuote(loan)
		actorID := actor.ID

		if !quote.Approved {
			loan.DeclineReason = quote.DeclineReason
			loan.DSCR = quote.DSCR
			if err := tx.Model(loan).Updates(map[string]interface{}{
				"decline_reason": quote.DeclineReason,
				"dscr":           quote.DSCR,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return s.status.Transition(tx, loan, models.StatusDeclined, &actorID, quote.DeclineReason)
		}

		loan.QuoteGenerated = true
		loan.RateRange = quote.RateRange
		loan.InterestRateMin = quote.InterestRateMin
		loan.InterestRateMax = quote.InterestRateMax
		loan.EstimatedMonthlyPayment = quote.EstimatedMonthlyPayment
		loan.TotalClosingCosts = quote.TotalClosingCosts
		loan.DSCR = quote.DSCR

		if err := tx.Model(loan).Updates(map[string]interface{}{
			"quote_generated":           true,
			"rate_range":                quote.RateRange,
			"interest_rate_min":         quote.InterestRateMin,
			"interest_rate_max":         quote.InterestRateMax,
			"estimated_monthly_payment": quote.EstimatedMonthlyPayment,
			"total_closing_costs":       quote.TotalClosingCosts,
			"dscr":                      quote.DSCR,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.status.Transition(tx, loan, models.StatusSoftQuoteIssued, &actorID, "Soft quote issued")
	})
	if err != nil {
		return nil, err
	}

	if quote.Approved {
		// Needs-list bootstrap and notices are side effects of the
		// committed transition; neither can undo it.
		actorID := actor.ID
		if err := s.needsList.Generate(loan.ID, &actorID); err != nil {
			logFailedSideEffect("needs list generation", loan, err)
		}
		s.notifier.NotifyBorrower(loan, models.NotificationQuoteApproved,
			"Soft quote issued",
			fmt.Sprintf("Your loan %s received an indicative rate range of %s.", loan.ReferenceNumber, quote.RateRange))
	} else {
		s.notifier.NotifyBorrower(loan, models.NotificationQuoteDeclined,
			"Loan request declined", quote.DeclineReason)
	}

	return &QuoteOutcome{Loan: loan, Quote: quote}, nil
}

// SignTermSheet records the borrower's signature and advances the loan
// through term_sheet_signed into needs_list_sent. Requires a generated
// quote.
func (s *loanService) SignTermSheet(loanID uint, actor Actor) (*models.LoanRequest, error) {
	var loan *models.LoanRequest

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		loan, txErr = s.getScopedLoan(tx, loanID, actor)
		if txErr != nil {
			return txErr
		}
		if !loan.QuoteGenerated {
			return apperrors.WithMessage(apperrors.ErrPreconditionFailed, "a quote must be generated before the term sheet can be signed")
		}

		loan.TermSheetSigned = true
		if err := tx.Model(loan).Update("term_sheet_signed", true).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		actorID := actor.ID
		if err := s.status.Transition(tx, loan, models.StatusTermSheetSigned, &actorID, "Term sheet signed"); err != nil {
			return err
		}
		return s.status.Transition(tx, loan, models.StatusNeedsListSent, &actorID, "Needs list sent")
	})
	if err != nil {
		return nil, err
	}

	actorID := actor.ID
	if err := s.needsList.Generate(loan.ID, &actorID); err != nil {
		logFailedSideEffect("needs list generation", loan, err)
	}

	return loan, nil
}

// CompleteNeedsList transitions to needs_list_complete once every required
// item has at least one linked document.
func (s *loanService) CompleteNeedsList(loanID uint, actor Actor) (*models.LoanRequest, error) {
	var loan *models.LoanRequest

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		loan, txErr = s.getScopedLoan(tx, loanID, actor)
		if txErr != nil {
			return txErr
		}

		satisfied, txErr := s.needsList.AllRequiredSatisfied(loanID)
		if txErr != nil {
			return txErr
		}
		if !satisfied {
			return apperrors.WithMessage(apperrors.ErrPreconditionFailed, "every required document folder needs at least one upload")
		}

		actorID := actor.ID
		return s.status.Transition(tx, loan, models.StatusNeedsListComplete, &actorID, "Needs list complete")
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyOps(loan, models.NotificationNeedsListComplete,
		"Needs list complete",
		fmt.Sprintf("All required documents are in for loan %s.", loan.ReferenceNumber))

	return loan, nil
}

// RenderTermSheet renders the loan's quote snapshot through the term-sheet
// collaborator and returns the document locator.
func (s *loanService) RenderTermSheet(loanID uint, actor Actor) (string, error) {
	loan, err := s.getScopedLoan(s.db, loanID, actor)
	if err != nil {
		return "", err
	}
	if !loan.QuoteGenerated {
		return "", apperrors.WithMessage(apperrors.ErrPreconditionFailed, "a quote must be generated before a term sheet can be rendered")
	}

	key, err := s.renderer.Render(loan)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return key, nil
}

// GetHistory returns the loan's full status history for the actor.
func (s *loanService) GetHistory(loanID uint, actor Actor) ([]models.StatusHistoryEntry, error) {
	if _, err := s.getScopedLoan(s.db, loanID, actor); err != nil {
		return nil, err
	}
	return s.status.GetHistory(loanID)
}
