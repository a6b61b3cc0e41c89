// Package allocator posts individual transactions against accounts. Each
// posting runs in a single database transaction holding the account's row
// lock: validate, allocate, mutate the balance, advance the sequence and
// stage the ledger entry in the outbox. Either everything commits or
// nothing does, so a ledger entry can never exist without its balance
// mutation.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/amort"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/outbox"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// TxRunner executes a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Result is the outcome of one successful posting. Loan is set for
// repayments, Savings for deposits and withdrawals.
type Result struct {
	Entry   *ledger.Entry
	Loan    *account.LoanAccount
	Savings *account.SavingsAccount
}

// Allocator validates and applies postings atomically
type Allocator struct {
	txRunner    TxRunner
	loanRepo    account.LoanRepository
	savingsRepo account.SavingsRepository
	outboxRepo  outbox.Repository
	logger      *slog.Logger
}

func NewAllocator(
	logger *slog.Logger,
	txRunner TxRunner,
	loanRepo account.LoanRepository,
	savingsRepo account.SavingsRepository,
	outboxRepo outbox.Repository,
) *Allocator {
	return &Allocator{
		txRunner:    txRunner,
		loanRepo:    loanRepo,
		savingsRepo: savingsRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
	}
}

// Post applies one posting request. Validation failures return the domain
// error unwrapped so callers can map it to a failure reason; nothing is
// persisted on any error.
func (a *Allocator) Post(ctx context.Context, req *shared.PostingRequest) (*Result, error) {
	if !req.Kind.Valid() {
		return nil, shared.ErrInvalidEntryKind
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, account.ErrNonPositiveAmount
	}
	if req.EntryID == uuid.Nil {
		req.EntryID = uuid.New()
	}

	var result *Result
	err := a.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		switch req.Kind {
		case shared.EntryKindRepayment:
			result, txErr = a.postRepayment(ctx, tx, req)
		default:
			result, txErr = a.postSavings(ctx, tx, req)
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Posted ledger entry",
		"entry_id", result.Entry.EntryID.String(),
		"account_id", req.AccountID.String(),
		"kind", string(req.Kind),
		"sequence_number", result.Entry.SequenceNumber,
	)
	return result, nil
}

// postRepayment allocates a loan repayment interest-first and reduces the
// remaining balance by the principal component only.
func (a *Allocator) postRepayment(ctx context.Context, tx pgx.Tx, req *shared.PostingRequest) (*Result, error) {
	loan, err := a.loanRepo.WithTx(tx).LockForUpdate(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount.Round(2)
	if err := loan.ValidateRepayment(amount); err != nil {
		return nil, err
	}

	interest, principal := amort.SplitRepayment(loan.RemainingBalance, loan.AnnualRatePercent, amount)
	loan.ApplyRepayment(principal)

	entry := a.buildEntry(req, loan.LastSequence, amount, principal, interest, loan.RemainingBalance)

	if err := a.loanRepo.WithTx(tx).Update(ctx, loan); err != nil {
		return nil, err
	}
	if err := a.stageEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	return &Result{Entry: entry, Loan: loan}, nil
}

// postSavings applies a deposit or withdrawal to a savings account
func (a *Allocator) postSavings(ctx context.Context, tx pgx.Tx, req *shared.PostingRequest) (*Result, error) {
	savings, err := a.savingsRepo.WithTx(tx).LockForUpdate(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount.Round(2)
	if req.Kind == shared.EntryKindDeposit {
		if err := savings.ValidateDeposit(amount); err != nil {
			return nil, err
		}
		savings.ApplyDeposit(amount)
	} else {
		if err := savings.ValidateWithdrawal(amount); err != nil {
			return nil, err
		}
		savings.ApplyWithdrawal(amount)
	}

	// Principal and interest components only apply to loan repayments
	entry := a.buildEntry(req, savings.LastSequence, amount, decimal.Zero, decimal.Zero, savings.Balance)

	if err := a.savingsRepo.WithTx(tx).Update(ctx, savings); err != nil {
		return nil, err
	}
	if err := a.stageEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	return &Result{Entry: entry, Savings: savings}, nil
}

func (a *Allocator) buildEntry(req *shared.PostingRequest, sequence int64, amount, principal, interest, balanceAfter decimal.Decimal) *ledger.Entry {
	now := time.Now()
	entry := &ledger.Entry{
		EntryID:            req.EntryID,
		AccountID:          req.AccountID,
		SequenceNumber:     sequence,
		Kind:               req.Kind,
		Amount:             amount,
		PrincipalComponent: principal,
		InterestComponent:  interest,
		BalanceAfter:       balanceAfter,
		OccurredAt:         req.OccurredAt,
		Notes:              req.Notes,
		Status:             shared.EntryStatusCompleted,
		RunID:              req.RunID,
		CorrelationID:      req.CorrelationID,
		CreatedAt:          now,
		ProcessedAt:        &now,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = now
	}
	return entry
}

func (a *Allocator) stageEntry(ctx context.Context, tx pgx.Tx, entry *ledger.Entry) error {
	message, err := outbox.NewMessage(entry)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return a.outboxRepo.WithTx(tx).Create(ctx, message)
}

// FailureReasonForError maps an allocation error to the failure category
// surfaced in bulk run results and FAILED ledger entries.
func FailureReasonForError(err error) shared.FailureReason {
	switch {
	case errors.Is(err, account.ErrNonPositiveAmount):
		return shared.FailureReasonNonPositiveAmount
	case errors.Is(err, account.ErrExceedsRemainingBalance):
		return shared.FailureReasonExceedsRemainingBalance
	case errors.Is(err, account.ErrInsufficientFunds):
		return shared.FailureReasonInsufficientFunds
	case errors.Is(err, account.ErrLoanNotFound{}), errors.Is(err, account.ErrSavingsNotFound{}):
		return shared.FailureReasonAccountNotFound
	case errors.Is(err, account.ErrAccountInactive):
		return shared.FailureReasonAccountInactive
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return shared.FailureReasonCancelled
	default:
		return shared.FailureReasonUnknownError
	}
}
