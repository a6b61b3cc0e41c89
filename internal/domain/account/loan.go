package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNonPositiveAmount       = errors.New("amount must be positive")
	ErrExceedsRemainingBalance = errors.New("repayment exceeds remaining balance")
	ErrInsufficientFunds       = errors.New("insufficient funds for withdrawal")
	ErrInvalidStateTransition  = errors.New("invalid account state transition")
	ErrAccountInactive         = errors.New("account is not active")
	ErrInvalidPrincipal        = errors.New("principal must be positive")
	ErrInvalidInterestRate     = errors.New("annual interest rate must be greater than 0 and at most 100")
	ErrInvalidTerm             = errors.New("term must be a positive number of months")
)

// LoanStatus defines the loan account lifecycle states
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "PENDING"
	LoanStatusActive    LoanStatus = "ACTIVE"
	LoanStatusCompleted LoanStatus = "COMPLETED"
	LoanStatusRejected  LoanStatus = "REJECTED"
)

// LoanAccount represents one member's loan. It guards its own invariants:
// the remaining balance never exceeds the principal, a zero remaining
// balance means COMPLETED, and an ACTIVE loan always has a positive
// remaining balance. Balances are mutated only through ApplyRepayment;
// status changes only through Approve, Reject and the completion
// transition inside ApplyRepayment. Loans are never deleted, only
// superseded by status.
type LoanAccount struct {
	ID                uuid.UUID       `json:"id"`
	MemberID          uuid.UUID       `json:"member_id"`
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
	TermMonths        int             `json:"term_months"`
	MonthlyPayment    decimal.Decimal `json:"monthly_payment"` // set on approval
	Status            LoanStatus      `json:"status"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	DateIssued        *time.Time      `json:"date_issued,omitempty"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	LastSequence      int64           `json:"last_sequence"`
	Version           int             `json:"version"` // For optimistic locking
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewLoanAccount creates a loan application in PENDING state. The full
// principal is outstanding until repayments post after approval.
func NewLoanAccount(memberID uuid.UUID, principal, annualRatePercent decimal.Decimal, termMonths int) (*LoanAccount, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidPrincipal
	}
	if annualRatePercent.LessThanOrEqual(decimal.Zero) || annualRatePercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidInterestRate
	}
	if termMonths <= 0 {
		return nil, ErrInvalidTerm
	}

	now := time.Now()
	return &LoanAccount{
		ID:                uuid.New(),
		MemberID:          memberID,
		Principal:         principal,
		AnnualRatePercent: annualRatePercent,
		TermMonths:        termMonths,
		Status:            LoanStatusPending,
		RemainingBalance:  principal,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Approve transitions a PENDING application to ACTIVE, stamping the issue
// date and the due date (issue date plus the term) and recording the
// scheduled monthly payment. Any other starting state fails with
// ErrInvalidStateTransition.
func (a *LoanAccount) Approve(issued time.Time, monthlyPayment decimal.Decimal) error {
	if a.Status != LoanStatusPending {
		return ErrInvalidStateTransition
	}

	due := issued.AddDate(0, a.TermMonths, 0)
	a.Status = LoanStatusActive
	a.DateIssued = &issued
	a.DueDate = &due
	a.MonthlyPayment = monthlyPayment
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// Reject transitions a PENDING application to REJECTED
func (a *LoanAccount) Reject() error {
	if a.Status != LoanStatusPending {
		return ErrInvalidStateTransition
	}

	a.Status = LoanStatusRejected
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// ValidateRepayment checks a proposed repayment amount against the loan's
// current state. Overpayment is rejected, never silently capped.
func (a *LoanAccount) ValidateRepayment(amount decimal.Decimal) error {
	if a.Status != LoanStatusActive {
		return ErrAccountInactive
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}
	if amount.GreaterThan(a.RemainingBalance) {
		return ErrExceedsRemainingBalance
	}
	return nil
}

// ApplyRepayment reduces the remaining balance by the principal component
// of an allocated repayment and advances the ledger sequence. When the
// balance reaches zero the loan completes in the same mutation.
func (a *LoanAccount) ApplyRepayment(principalComponent decimal.Decimal) {
	a.RemainingBalance = a.RemainingBalance.Sub(principalComponent).Round(2)
	if a.RemainingBalance.IsZero() {
		a.Status = LoanStatusCompleted
	}
	a.LastSequence++
	a.UpdatedAt = time.Now()
	a.Version++
}

// ProgressPercent reports how much of the principal has been repaid,
// 0-100, rounded to 2 decimal places.
func (a *LoanAccount) ProgressPercent() decimal.Decimal {
	if a.RemainingBalance.IsZero() || a.Principal.IsZero() {
		return decimal.NewFromInt(100)
	}
	repaid := a.Principal.Sub(a.RemainingBalance)
	return repaid.Div(a.Principal).Mul(decimal.NewFromInt(100)).Round(2)
}
