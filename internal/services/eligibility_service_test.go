package services

import (
	"math"
	"strings"
	"testing"

	"loanflow/internal/models"
)

func eligibleLoan() *models.LoanRequest {
	return &models.LoanRequest{
		PropertyType:            "multi_family",
		RequestType:             "purchase",
		PropertyValue:           750000,
		RequestedLTV:            75,
		LoanAmount:              562500,
		DocumentationType:       models.DocTypeFullDoc,
		AnnualRentalIncome:      96000,
		AnnualOperatingExpenses: 24000,
		AnnualLoanPayments:      58500,
	}
}

func TestCheckEligibility(t *testing.T) {
	svc := NewEligibilityService(nil)

	t.Run("eligible", func(t *testing.T) {
		result := svc.CheckEligibility(eligibleLoan())
		if !result.Eligible {
			t.Fatalf("expected eligible, got violations: %v", result.Errors)
		}
	})

	t.Run("collects_all_violations", func(t *testing.T) {
		loan := &models.LoanRequest{}
		result := svc.CheckEligibility(loan)
		if result.Eligible {
			t.Fatal("expected ineligible")
		}
		if len(result.Errors) != 3 {
			t.Fatalf("expected 3 violations, got %d: %v", len(result.Errors), result.Errors)
		}
		fields := map[string]bool{}
		for _, fe := range result.Errors {
			fields[fe.Field] = true
		}
		for _, want := range []string{"property_type", "request_type", "property_value"} {
			if !fields[want] {
				t.Errorf("expected a violation for %s", want)
			}
		}
	})
}

func TestComputeDSCR(t *testing.T) {
	svc := NewEligibilityService(nil)

	t.Run("standard", func(t *testing.T) {
		dscr := svc.ComputeDSCR(eligibleLoan())
		if dscr == nil {
			t.Fatal("expected a DSCR value")
		}
		// (96000 - 24000) / 58500
		want := 72000.0 / 58500.0
		if math.Abs(*dscr-want) > 1e-9 {
			t.Errorf("expected DSCR %.4f, got %.4f", want, *dscr)
		}
	})

	t.Run("undefined_without_loan_payments", func(t *testing.T) {
		loan := eligibleLoan()
		loan.AnnualLoanPayments = 0
		if dscr := svc.ComputeDSCR(loan); dscr != nil {
			t.Errorf("expected undefined DSCR, got %.4f", *dscr)
		}
	})

	t.Run("negative_noi_is_defined", func(t *testing.T) {
		loan := eligibleLoan()
		loan.AnnualOperatingExpenses = 120000
		dscr := svc.ComputeDSCR(loan)
		if dscr == nil {
			t.Fatal("expected a DSCR value")
		}
		if *dscr >= 0 {
			t.Errorf("expected negative DSCR, got %.4f", *dscr)
		}
	})
}

func TestGenerateQuote(t *testing.T) {
	svc := NewEligibilityService(nil)

	t.Run("approves_adequate_coverage", func(t *testing.T) {
		quote := svc.GenerateQuote(eligibleLoan())
		if !quote.Approved {
			t.Fatalf("expected approval, got decline: %s", quote.DeclineReason)
		}
		// LTV 75 band with DSCR ~1.23; no adjustments apply.
		if quote.InterestRateMin != 6.99 || quote.InterestRateMax != 7.75 {
			t.Errorf("expected 6.99-7.75, got %.2f-%.2f", quote.InterestRateMin, quote.InterestRateMax)
		}
		if quote.RateRange != "6.99% - 7.75%" {
			t.Errorf("unexpected rate range label %q", quote.RateRange)
		}
		if quote.EstimatedMonthlyPayment <= 0 {
			t.Error("expected a positive estimated payment")
		}
		if quote.TotalClosingCosts != 16875 {
			t.Errorf("expected closing costs 16875, got %.2f", quote.TotalClosingCosts)
		}
	})

	t.Run("declines_low_dscr_full_doc", func(t *testing.T) {
		loan := eligibleLoan()
		loan.AnnualLoanPayments = 75789.47 // DSCR ~0.95
		quote := svc.GenerateQuote(loan)
		if quote.Approved {
			t.Fatal("expected decline")
		}
		if !strings.Contains(quote.DeclineReason, "DSCR of 0.95") {
			t.Errorf("unexpected decline reason %q", quote.DeclineReason)
		}
		if !strings.Contains(quote.DeclineReason, "full_doc") {
			t.Errorf("decline reason should name the documentation type, got %q", quote.DeclineReason)
		}
	})

	t.Run("low_dscr_light_doc_proceeds", func(t *testing.T) {
		loan := eligibleLoan()
		loan.AnnualLoanPayments = 75789.47 // DSCR ~0.95
		loan.DocumentationType = models.DocTypeLightDoc
		quote := svc.GenerateQuote(loan)
		if !quote.Approved {
			t.Fatalf("light_doc should bypass the DSCR rule, got decline: %s", quote.DeclineReason)
		}
		// Thin coverage still prices up within the band.
		if quote.InterestRateMin != 7.24 || quote.InterestRateMax != 8.00 {
			t.Errorf("expected 7.24-8.00, got %.2f-%.2f", quote.InterestRateMin, quote.InterestRateMax)
		}
	})

	t.Run("undefined_dscr_proceeds", func(t *testing.T) {
		loan := eligibleLoan()
		loan.AnnualLoanPayments = 0
		quote := svc.GenerateQuote(loan)
		if !quote.Approved {
			t.Fatalf("undefined DSCR must not decline, got: %s", quote.DeclineReason)
		}
		if quote.DSCR != nil {
			t.Error("expected nil DSCR in the quote")
		}
	})
}

func TestDefaultRateTable(t *testing.T) {
	table := DefaultRateTable{}

	t.Run("ltv_bands", func(t *testing.T) {
		cases := []struct {
			ltv      float64
			min, max float64
		}{
			{50, 6.25, 6.99},
			{55, 6.25, 6.99},
			{65, 6.50, 7.25},
			{75, 6.99, 7.75},
			{80, 7.50, 8.50},
		}
		for _, tc := range cases {
			tier := table.RateFor(tc.ltv, nil, nil)
			if tier.Min != tc.min || tier.Max != tc.max {
				t.Errorf("LTV %.0f: expected %.2f-%.2f, got %.2f-%.2f", tc.ltv, tc.min, tc.max, tier.Min, tier.Max)
			}
		}
	})

	t.Run("credit_adjustments", func(t *testing.T) {
		strong := 780
		tier := table.RateFor(60, &strong, nil)
		if tier.Min != 6.25 || tier.Max != 7.00 {
			t.Errorf("strong credit: expected 6.25-7.00, got %.2f-%.2f", tier.Min, tier.Max)
		}

		weak := 650
		tier = table.RateFor(60, &weak, nil)
		if tier.Min != 7.00 || tier.Max != 7.75 {
			t.Errorf("weak credit: expected 7.00-7.75, got %.2f-%.2f", tier.Min, tier.Max)
		}
	})

	t.Run("dscr_adjustments", func(t *testing.T) {
		strong := 1.6
		tier := table.RateFor(60, nil, &strong)
		if tier.Min != 6.375 || tier.Max != 7.125 {
			t.Errorf("strong coverage: expected 6.375-7.125, got %.3f-%.3f", tier.Min, tier.Max)
		}

		thin := 1.05
		tier = table.RateFor(60, nil, &thin)
		if tier.Min != 6.75 || tier.Max != 7.50 {
			t.Errorf("thin coverage: expected 6.75-7.50, got %.2f-%.2f", tier.Min, tier.Max)
		}
	})
}

func TestMonthlyPayment(t *testing.T) {
	// 562500 at 7.75% over 30 years.
	got := monthlyPayment(562500, 7.75)
	if math.Abs(got-4029.76) > 1.0 {
		t.Errorf("expected roughly 4029.76, got %.2f", got)
	}

	if monthlyPayment(0, 7.75) != 0 {
		t.Error("zero principal should cost nothing")
	}
	if monthlyPayment(100000, 0) != 0 {
		t.Error("zero rate falls back to zero, not a division by zero")
	}
}
