package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavingsStatus defines the savings account lifecycle states
type SavingsStatus string

const (
	SavingsStatusActive   SavingsStatus = "ACTIVE"
	SavingsStatusInactive SavingsStatus = "INACTIVE"
)

// SavingsAccount represents one member's savings. The balance is never
// negative and must always equal the sum of all completed deposit entries
// minus all completed withdrawal entries for the account. Accounts are
// deactivated on member exit, never deleted.
type SavingsAccount struct {
	ID            uuid.UUID       `json:"id"`
	MemberID      uuid.UUID       `json:"member_id"`
	Balance       decimal.Decimal `json:"balance"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"` // recurring contribution for group runs
	Status        SavingsStatus   `json:"status"`
	LastSequence  int64           `json:"last_sequence"`
	Version       int             `json:"version"` // For optimistic locking
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewSavingsAccount creates an ACTIVE savings account with a zero balance.
// The mandatory opening deposit posts through the allocator like any other
// deposit, so the ledger stays the single source of balance truth.
func NewSavingsAccount(memberID uuid.UUID, monthlyAmount decimal.Decimal) (*SavingsAccount, error) {
	if monthlyAmount.IsNegative() {
		return nil, ErrNonPositiveAmount
	}

	now := time.Now()
	return &SavingsAccount{
		ID:            uuid.New(),
		MemberID:      memberID,
		Balance:       decimal.Zero,
		MonthlyAmount: monthlyAmount,
		Status:        SavingsStatusActive,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ValidateDeposit checks a proposed deposit amount
func (a *SavingsAccount) ValidateDeposit(amount decimal.Decimal) error {
	if a.Status != SavingsStatusActive {
		return ErrAccountInactive
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}
	return nil
}

// ValidateWithdrawal checks a proposed withdrawal amount against the
// current balance
func (a *SavingsAccount) ValidateWithdrawal(amount decimal.Decimal) error {
	if a.Status != SavingsStatusActive {
		return ErrAccountInactive
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrNonPositiveAmount
	}
	if amount.GreaterThan(a.Balance) {
		return ErrInsufficientFunds
	}
	return nil
}

// ApplyDeposit adds the amount to the balance and advances the ledger
// sequence
func (a *SavingsAccount) ApplyDeposit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount).Round(2)
	a.LastSequence++
	a.UpdatedAt = time.Now()
	a.Version++
}

// ApplyWithdrawal subtracts the amount from the balance and advances the
// ledger sequence
func (a *SavingsAccount) ApplyWithdrawal(amount decimal.Decimal) {
	a.Balance = a.Balance.Sub(amount).Round(2)
	a.LastSequence++
	a.UpdatedAt = time.Now()
	a.Version++
}

// Deactivate marks the account INACTIVE on member exit. Deactivating an
// already inactive account fails with ErrInvalidStateTransition.
func (a *SavingsAccount) Deactivate() error {
	if a.Status != SavingsStatusActive {
		return ErrInvalidStateTransition
	}

	a.Status = SavingsStatusInactive
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}
