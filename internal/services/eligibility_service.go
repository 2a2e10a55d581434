package services

import (
	"fmt"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/models"
)

// dscrExemptDocTypes lists documentation types that skip the DSCR decline
// rule. Fixed business policy, not configuration.
var dscrExemptDocTypes = map[models.DocumentationType]bool{
	models.DocTypeLightDoc:      true,
	models.DocTypeBankStatement: true,
	models.DocTypeNoDoc:         true,
}

// minDSCR is the underwriting threshold below which a non-exempt loan is
// declined.
const minDSCR = 1.0

// eligibilityService implements the underwriting eligibility and quote
// decisions as pure computations over the loan's financial snapshot.
type eligibilityService struct {
	rates RateStrategy
}

// NewEligibilityService creates a new EligibilityServicer using the given
// pricing strategy.
func NewEligibilityService(rates RateStrategy) EligibilityServicer {
	if rates == nil {
		rates = DefaultRateTable{}
	}
	return &eligibilityService{rates: rates}
}

// CheckEligibility validates the mandatory fields required before
// submission. All violations are collected and returned together so the
// borrower sees the full list at once; ineligibility is data, not an error.
func (s *eligibilityService) CheckEligibility(loan *models.LoanRequest) EligibilityResult {
	var errs []apperrors.FieldError

	if loan.PropertyType == "" {
		errs = append(errs, apperrors.FieldError{Field: "property_type", Message: "property type is required"})
	}
	if loan.RequestType == "" {
		errs = append(errs, apperrors.FieldError{Field: "request_type", Message: "request type is required"})
	}
	if loan.PropertyValue <= 0 {
		errs = append(errs, apperrors.FieldError{Field: "property_value", Message: "property value must be greater than zero"})
	}

	return EligibilityResult{Eligible: len(errs) == 0, Errors: errs}
}

// ComputeDSCR returns NOI / annual loan payments, or nil when annual loan
// payments are not positive. DSCR is undefined in that case, never zero.
func (s *eligibilityService) ComputeDSCR(loan *models.LoanRequest) *float64 {
	if loan.AnnualLoanPayments <= 0 {
		return nil
	}
	noi := loan.AnnualRentalIncome - loan.AnnualOperatingExpenses
	dscr := noi / loan.AnnualLoanPayments
	return &dscr
}

// GenerateQuote runs the decline rule and, when the loan proceeds, prices it
// through the rate strategy. A decline is returned as approved=false with a
// reason; the caller records it.
func (s *eligibilityService) GenerateQuote(loan *models.LoanRequest) QuoteResult {
	dscr := s.ComputeDSCR(loan)

	if dscr != nil && *dscr < minDSCR && !dscrExemptDocTypes[loan.DocumentationType] {
		return QuoteResult{
			Approved: false,
			DeclineReason: fmt.Sprintf(
				"DSCR of %.2f is below the minimum of %.2f for %s documentation",
				*dscr, minDSCR, loan.DocumentationType),
			DSCR: dscr,
		}
	}

	tier := s.rates.RateFor(loan.RequestedLTV, loan.CreditScore, dscr)

	return QuoteResult{
		Approved:                true,
		RateRange:               tier.Label,
		InterestRateMin:         tier.Min,
		InterestRateMax:         tier.Max,
		EstimatedMonthlyPayment: monthlyPayment(loan.LoanAmount, tier.Max),
		TotalClosingCosts:       closingCosts(loan.LoanAmount),
		DSCR:                    dscr,
	}
}
