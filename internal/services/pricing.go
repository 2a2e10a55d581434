package services

import (
	"fmt"
	"math"
)

// RateTier is one row of the pricing table: a labelled indicative rate
// range.
type RateTier struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// RateStrategy selects a rate tier for a loan. The tier boundaries are a
// business policy input, so the strategy is replaceable; the default is a
// deterministic lookup table, not a continuous formula.
type RateStrategy interface {
	RateFor(ltv float64, creditScore *int, dscr *float64) RateTier
}

// DefaultRateTable is the standard tiered pricing: a base tier keyed by LTV
// band, adjusted by credit-score band and DSCR band.
type DefaultRateTable struct{}

// RateFor implements RateStrategy.
func (DefaultRateTable) RateFor(ltv float64, creditScore *int, dscr *float64) RateTier {
	var tier RateTier
	switch {
	case ltv <= 55:
		tier = RateTier{Min: 6.25, Max: 6.99}
	case ltv <= 65:
		tier = RateTier{Min: 6.50, Max: 7.25}
	case ltv <= 75:
		tier = RateTier{Min: 6.99, Max: 7.75}
	default:
		tier = RateTier{Min: 7.50, Max: 8.50}
	}

	// Credit-score band adjustment, applied only when a score is on file.
	if creditScore != nil {
		switch {
		case *creditScore >= 760:
			tier.Min -= 0.25
			tier.Max -= 0.25
		case *creditScore < 680:
			tier.Min += 0.50
			tier.Max += 0.50
		}
	}

	// Strong coverage earns the bottom of the band; thin coverage pays up.
	if dscr != nil {
		switch {
		case *dscr >= 1.5:
			tier.Min -= 0.125
			tier.Max -= 0.125
		case *dscr < 1.1:
			tier.Min += 0.25
			tier.Max += 0.25
		}
	}

	tier.Label = rateRangeLabel(tier)
	return tier
}

func rateRangeLabel(t RateTier) string {
	return fmt.Sprintf("%.2f%% - %.2f%%", t.Min, t.Max)
}

// amortizationYears is the term used for the indicative payment estimate on
// a soft quote.
const amortizationYears = 30

// closingCostRate estimates total closing costs as a share of the loan
// amount.
const closingCostRate = 0.03

// monthlyPayment returns the fully amortized monthly payment at the given
// annual rate (in percent) over the standard term.
func monthlyPayment(loanAmount, annualRatePct float64) float64 {
	if loanAmount <= 0 || annualRatePct <= 0 {
		return 0
	}
	r := annualRatePct / 100 / 12
	n := float64(amortizationYears * 12)
	payment := loanAmount * r * math.Pow(1+r, n) / (math.Pow(1+r, n) - 1)
	return math.Round(payment*100) / 100
}

// closingCosts estimates total closing costs for the quote snapshot.
func closingCosts(loanAmount float64) float64 {
	if loanAmount <= 0 {
		return 0
	}
	return math.Round(loanAmount*closingCostRate*100) / 100
}
