package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoanRepository defines loan account persistence operations
type LoanRepository interface {
	Create(ctx context.Context, loan *LoanAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*LoanAccount, error)
	ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*LoanAccount, error)

	// ListActive enumerates the accounts eligible for group runs
	ListActive(ctx context.Context) ([]*LoanAccount, error)

	Update(ctx context.Context, loan *LoanAccount) error

	// LockForUpdate acquires the per-account exclusive lock for the
	// duration of one allocation
	LockForUpdate(ctx context.Context, id uuid.UUID) (*LoanAccount, error)
	WithTx(tx pgx.Tx) LoanRepository
}

// SavingsRepository defines savings account persistence operations
type SavingsRepository interface {
	Create(ctx context.Context, savings *SavingsAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*SavingsAccount, error)
	GetByMemberID(ctx context.Context, memberID uuid.UUID) (*SavingsAccount, error)
	ListActive(ctx context.Context) ([]*SavingsAccount, error)
	Update(ctx context.Context, savings *SavingsAccount) error
	LockForUpdate(ctx context.Context, id uuid.UUID) (*SavingsAccount, error)
	WithTx(tx pgx.Tx) SavingsRepository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.AccountID.String()
}

// ErrLoanNotFound indicates a missing loan account
type ErrLoanNotFound struct {
	AccountID uuid.UUID
}

func (e ErrLoanNotFound) Error() string {
	return "loan account not found: " + e.AccountID.String()
}

// Is matches any ErrLoanNotFound when the target carries a nil ID
func (e ErrLoanNotFound) Is(target error) bool {
	t, ok := target.(ErrLoanNotFound)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrSavingsNotFound indicates a missing savings account
type ErrSavingsNotFound struct {
	AccountID uuid.UUID
}

func (e ErrSavingsNotFound) Error() string {
	return "savings account not found: " + e.AccountID.String()
}

// Is matches any ErrSavingsNotFound when the target carries a nil ID
func (e ErrSavingsNotFound) Is(target error) bool {
	t, ok := target.(ErrSavingsNotFound)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrDuplicateSavings indicates the member already has a savings account
type ErrDuplicateSavings struct {
	MemberID uuid.UUID
}

func (e ErrDuplicateSavings) Error() string {
	return "savings account already exists for member: " + e.MemberID.String()
}
