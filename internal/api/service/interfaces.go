package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/amort"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
	"github.com/welfare-savings-ledger/internal/engine/allocator"
	"github.com/welfare-savings-ledger/internal/engine/history"
)

// SavingsService defines member savings account operations
type SavingsService interface {
	// RegisterMember opens the member's savings account and posts the
	// mandatory opening deposit through the ledger.
	// Returns ErrDuplicateSavings if the member already has an account.
	RegisterMember(ctx context.Context, memberID uuid.UUID, monthlyAmount, openingDeposit decimal.Decimal) (*account.SavingsAccount, *ledger.Entry, error)

	GetByID(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error)
	GetByMemberID(ctx context.Context, memberID uuid.UUID) (*account.SavingsAccount, error)

	// Deactivate marks the account inactive on member exit; accounts are
	// never deleted
	Deactivate(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error)
}

// LoanService defines loan lifecycle operations
type LoanService interface {
	// Apply creates a PENDING application and returns the computed
	// amortization summary and per-period breakdown
	Apply(ctx context.Context, memberID uuid.UUID, principal, annualRatePercent decimal.Decimal, termMonths int) (*account.LoanAccount, amort.ScheduleSummary, []amort.Period, error)

	// Approve transitions a PENDING application to ACTIVE
	Approve(ctx context.Context, loanID uuid.UUID) (*account.LoanAccount, error)

	// Reject transitions a PENDING application to REJECTED
	Reject(ctx context.Context, loanID uuid.UUID) (*account.LoanAccount, error)

	GetByID(ctx context.Context, loanID uuid.UUID) (*account.LoanAccount, error)
	ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*account.LoanAccount, error)

	// Schedule returns the per-period amortization breakdown, cached
	Schedule(ctx context.Context, loanID uuid.UUID) ([]amort.Period, error)
}

// PostingService defines individual transaction operations. Postings apply
// synchronously so the caller receives the precise validation error.
type PostingService interface {
	Post(ctx context.Context, req *shared.PostingRequest) (*ledger.Entry, error)

	// GetEntry retrieves a ledger entry by its ID. Returns nil if not found
	GetEntry(ctx context.Context, entryID uuid.UUID) (*ledger.Entry, error)

	// ListEntries retrieves a page of entries for an account, newest first,
	// with the total count
	ListEntries(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error)
}

// RunService triggers ad-hoc group runs over the run topic
type RunService interface {
	Trigger(ctx context.Context, kind shared.EntryKind, amount *decimal.Decimal, notes, correlationID string) (uuid.UUID, error)
}

// HistoryService exposes balance replay and export; satisfied by the
// history engine service
type HistoryService interface {
	ReconstructBalanceAt(ctx context.Context, accountID uuid.UUID, maxSequence int64) (decimal.Decimal, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) error
	Export(ctx context.Context, accountID uuid.UUID) (*history.Snapshot, error)
	CachedExport(ctx context.Context, exportID uuid.UUID) ([]byte, bool)
}

// Poster applies one posting atomically; satisfied by the allocator
type Poster interface {
	Post(ctx context.Context, req *shared.PostingRequest) (*allocator.Result, error)
}

// ScheduleCache caches computed amortization breakdowns; satisfied by the
// Redis cache. A miss is never an error.
type ScheduleCache interface {
	GetSchedule(ctx context.Context, loanID uuid.UUID) ([]amort.Period, bool)
	SetSchedule(ctx context.Context, loanID uuid.UUID, periods []amort.Period) error
	InvalidateSchedule(ctx context.Context, loanID uuid.UUID) error
}
