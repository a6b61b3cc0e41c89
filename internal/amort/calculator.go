// Package amort implements the fixed-rate reducing-balance amortization
// math shared by every caller that needs a schedule or an
// interest/principal split. It is pure computation: no state, no storage.
package amort

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidScheduleInput = errors.New("invalid schedule input")
	ErrDegenerateSchedule   = errors.New("degenerate schedule: monthly payment must be positive")
)

var (
	rateDivisor    = decimal.NewFromInt(1200) // percent -> monthly fraction
	maxRatePercent = decimal.NewFromInt(100)
)

// ScheduleSummary holds the monetary outputs of a schedule computation,
// each rounded to 2 decimal places.
type ScheduleSummary struct {
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayment   decimal.Decimal `json:"total_payment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
}

// Period is one row of a full amortization breakdown.
type Period struct {
	Number           int             `json:"number"`
	DueDate          time.Time       `json:"due_date"`
	Payment          decimal.Decimal `json:"payment"`
	Interest         decimal.Decimal `json:"interest"`
	Principal        decimal.Decimal `json:"principal"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// ComputeSchedule derives the scheduled monthly payment and totals for a
// fixed-rate reducing-balance loan.
//
//	monthlyRate    = annualRatePercent / 100 / 12
//	monthlyPayment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate degenerates to an even split of the principal. Intermediate
// computation runs at full precision; outputs are rounded to 2 decimal
// places, half up.
func ComputeSchedule(principal, annualRatePercent decimal.Decimal, termMonths int) (ScheduleSummary, error) {
	if err := validateInput(principal, annualRatePercent, termMonths); err != nil {
		return ScheduleSummary{}, err
	}

	monthlyPayment := monthlyPayment(principal, annualRatePercent, termMonths)
	totalPayment := monthlyPayment.Mul(decimal.NewFromInt(int64(termMonths))).Round(2)
	totalInterest := totalPayment.Sub(principal).Round(2)
	if totalInterest.IsNegative() {
		// Rounding on a zero-rate schedule can land a fraction of a cent
		// under the principal; the interest owed is still zero.
		totalInterest = decimal.Zero
	}

	return ScheduleSummary{
		MonthlyPayment: monthlyPayment,
		TotalPayment:   totalPayment,
		TotalInterest:  totalInterest,
	}, nil
}

// Breakdown expands a schedule into its per-period rows. The final period
// absorbs accumulated rounding so the remaining balance lands exactly on
// zero.
func Breakdown(principal, annualRatePercent decimal.Decimal, termMonths int, startDate time.Time) ([]Period, error) {
	if err := validateInput(principal, annualRatePercent, termMonths); err != nil {
		return nil, err
	}

	payment := monthlyPayment(principal, annualRatePercent, termMonths)
	monthlyRate := annualRatePercent.Div(rateDivisor)

	periods := make([]Period, 0, termMonths)
	remaining := principal
	for n := 1; n <= termMonths; n++ {
		interest := remaining.Mul(monthlyRate).Round(2)
		principalPart := payment.Sub(interest)
		periodPayment := payment
		if n == termMonths {
			principalPart = remaining
			periodPayment = principalPart.Add(interest)
		}
		remaining = remaining.Sub(principalPart)
		periods = append(periods, Period{
			Number:           n,
			DueDate:          startDate.AddDate(0, n, 0),
			Payment:          periodPayment.Round(2),
			Interest:         interest,
			Principal:        principalPart.Round(2),
			RemainingBalance: remaining.Round(2),
		})
	}

	return periods, nil
}

// MonthlyInterest is one month's interest on the given balance, rounded to
// 2 decimal places.
func MonthlyInterest(balance, annualRatePercent decimal.Decimal) decimal.Decimal {
	return balance.Mul(annualRatePercent).Div(rateDivisor).Round(2)
}

// SplitRepayment allocates a repayment between interest and principal.
// Interest comes first: one month's interest on the balance immediately
// prior to the payment. A payment that does not cover the interest due is
// an interest-only payment and carries zero principal. The two components
// always sum to the amount.
func SplitRepayment(balanceBefore, annualRatePercent, amount decimal.Decimal) (interest, principal decimal.Decimal) {
	interestDue := MonthlyInterest(balanceBefore, annualRatePercent)
	if amount.LessThan(interestDue) {
		return amount, decimal.Zero
	}

	principal = amount.Sub(interestDue)
	if principal.GreaterThan(balanceBefore) {
		principal = balanceBefore
	}
	return interestDue, principal.Round(2)
}

// RemainingPayments is the number of scheduled payments left to clear the
// given balance: ceil(remainingBalance / monthlyPayment).
func RemainingPayments(remainingBalance, monthlyPayment decimal.Decimal) (int64, error) {
	if monthlyPayment.LessThanOrEqual(decimal.Zero) {
		return 0, ErrDegenerateSchedule
	}
	if remainingBalance.LessThanOrEqual(decimal.Zero) {
		return 0, nil
	}
	return remainingBalance.Div(monthlyPayment).Ceil().IntPart(), nil
}

func validateInput(principal, annualRatePercent decimal.Decimal, termMonths int) error {
	if principal.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidScheduleInput
	}
	if termMonths <= 0 {
		return ErrInvalidScheduleInput
	}
	if annualRatePercent.IsNegative() || annualRatePercent.GreaterThan(maxRatePercent) {
		return ErrInvalidScheduleInput
	}
	return nil
}

// monthlyPayment assumes validated input. The power term is evaluated in
// float64 (the closed form has no exact decimal representation) and the
// result converted back for monetary rounding.
func monthlyPayment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	if annualRatePercent.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2)
	}

	monthlyRate, _ := annualRatePercent.Div(rateDivisor).Float64()
	factor := math.Pow(1+monthlyRate, float64(termMonths))
	payment := principal.InexactFloat64() * monthlyRate * factor / (factor - 1)
	return decimal.NewFromFloat(payment).Round(2)
}
