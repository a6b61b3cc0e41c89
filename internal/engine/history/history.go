// Package history reconstructs account balances by replaying the
// append-only ledger and produces exportable snapshots. Replay is the
// audit check for the whole engine: the stored balance on any entry must
// equal the balance obtained by replaying completed entries from the
// beginning.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// ErrSequenceGap indicates the completed entries for an account do not
// form the gapless run 1..N that replay requires.
type ErrSequenceGap struct {
	AccountID uuid.UUID
	Expected  int64
	Found     int64
}

func (e ErrSequenceGap) Error() string {
	return fmt.Sprintf("sequence gap for account %s: expected %d, found %d", e.AccountID, e.Expected, e.Found)
}

// Is matches any ErrSequenceGap when the target carries a nil ID
func (e ErrSequenceGap) Is(target error) bool {
	t, ok := target.(ErrSequenceGap)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrBalanceMismatch indicates a stored BalanceAfter that replay cannot
// reproduce.
type ErrBalanceMismatch struct {
	AccountID      uuid.UUID
	SequenceNumber int64
	Stored         decimal.Decimal
	Replayed       decimal.Decimal
}

func (e ErrBalanceMismatch) Error() string {
	return fmt.Sprintf("balance mismatch for account %s at sequence %d: stored %s, replayed %s",
		e.AccountID, e.SequenceNumber, e.Stored, e.Replayed)
}

// Is matches any ErrBalanceMismatch when the target carries a nil ID
func (e ErrBalanceMismatch) Is(target error) bool {
	t, ok := target.(ErrBalanceMismatch)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ExportCache stores marshaled snapshots for later download. Caching is
// best effort; snapshots always recompute from the ledger on a miss.
type ExportCache interface {
	GetExport(ctx context.Context, exportID uuid.UUID) ([]byte, bool)
	SetExport(ctx context.Context, exportID uuid.UUID, snapshot []byte) error
}

// Snapshot is a point-in-time serializable view of one account and its
// full entry history, oldest first. Producing it has no side effects on
// any balance or entry.
type Snapshot struct {
	ExportID       uuid.UUID       `json:"export_id"`
	AccountID      uuid.UUID       `json:"account_id"`
	AccountDetails interface{}     `json:"account_details"`
	Entries        []*ledger.Entry `json:"entries"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Service replays and exports ledger history
type Service struct {
	loanRepo    account.LoanRepository
	savingsRepo account.SavingsRepository
	ledgerRepo  ledger.Repository
	cache       ExportCache
	logger      *slog.Logger
}

func NewService(
	logger *slog.Logger,
	loanRepo account.LoanRepository,
	savingsRepo account.SavingsRepository,
	ledgerRepo ledger.Repository,
	cache ExportCache,
) *Service {
	return &Service{
		loanRepo:    loanRepo,
		savingsRepo: savingsRepo,
		ledgerRepo:  ledgerRepo,
		cache:       cache,
		logger:      logger,
	}
}

// resolved carries the replay starting point for an account: loans open at
// the full principal, savings at zero.
type resolved struct {
	loan    *account.LoanAccount
	savings *account.SavingsAccount
}

func (r resolved) openingBalance() decimal.Decimal {
	if r.loan != nil {
		return r.loan.Principal
	}
	return decimal.Zero
}

func (r resolved) details() interface{} {
	if r.loan != nil {
		return r.loan
	}
	return r.savings
}

func (r resolved) lastSequence() int64 {
	if r.loan != nil {
		return r.loan.LastSequence
	}
	return r.savings.LastSequence
}

func (s *Service) resolve(ctx context.Context, accountID uuid.UUID) (resolved, error) {
	loan, err := s.loanRepo.GetByID(ctx, accountID)
	if err == nil {
		return resolved{loan: loan}, nil
	}
	if !errors.Is(err, account.ErrLoanNotFound{}) {
		return resolved{}, err
	}

	savings, err := s.savingsRepo.GetByID(ctx, accountID)
	if err != nil {
		return resolved{}, err
	}
	return resolved{savings: savings}, nil
}

// ReconstructBalanceAt replays completed entries 1..maxSequence and
// returns the resulting balance. For loans only the principal component of
// each repayment reduces the balance; for savings, deposits add and
// withdrawals subtract the full amount.
func (s *Service) ReconstructBalanceAt(ctx context.Context, accountID uuid.UUID, maxSequence int64) (decimal.Decimal, error) {
	acct, err := s.resolve(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.replay(ctx, accountID, acct.openingBalance(), maxSequence, false)
}

// Reconcile replays the account's entire completed history and verifies
// every stored BalanceAfter against the replayed running balance. It
// returns the first ErrSequenceGap or ErrBalanceMismatch found, or nil
// when the history is internally consistent.
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID) error {
	acct, err := s.resolve(ctx, accountID)
	if err != nil {
		return err
	}

	_, err = s.replay(ctx, accountID, acct.openingBalance(), acct.lastSequence(), true)
	return err
}

func (s *Service) replay(ctx context.Context, accountID uuid.UUID, opening decimal.Decimal, maxSequence int64, verify bool) (decimal.Decimal, error) {
	entries, err := s.ledgerRepo.ListByAccountIDUpTo(ctx, accountID, maxSequence)
	if err != nil {
		return decimal.Zero, err
	}

	balance := opening
	var expected int64 = 1
	for _, entry := range entries {
		if entry.SequenceNumber != expected {
			return decimal.Zero, ErrSequenceGap{AccountID: accountID, Expected: expected, Found: entry.SequenceNumber}
		}
		expected++

		switch entry.Kind {
		case shared.EntryKindRepayment:
			balance = balance.Sub(entry.PrincipalComponent)
		case shared.EntryKindDeposit:
			balance = balance.Add(entry.Amount)
		case shared.EntryKindWithdrawal:
			balance = balance.Sub(entry.Amount)
		}
		balance = balance.Round(2)

		if verify && !balance.Equal(entry.BalanceAfter) {
			return decimal.Zero, ErrBalanceMismatch{
				AccountID:      accountID,
				SequenceNumber: entry.SequenceNumber,
				Stored:         entry.BalanceAfter,
				Replayed:       balance,
			}
		}
	}

	if expected != maxSequence+1 {
		return decimal.Zero, ErrSequenceGap{AccountID: accountID, Expected: expected, Found: maxSequence}
	}

	return balance, nil
}

// Export builds a snapshot of the account and its full entry history,
// oldest first, and caches the marshaled form under a fresh export ID for
// later download. Cache failures are logged, never surfaced.
func (s *Service) Export(ctx context.Context, accountID uuid.UUID) (*Snapshot, error) {
	acct, err := s.resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	count, err := s.ledgerRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var entries []*ledger.Entry
	if count > 0 {
		entries, err = s.ledgerRepo.ListByAccountID(ctx, accountID, int(count), 0)
		if err != nil {
			return nil, err
		}
		// ListByAccountID returns newest first; exports read oldest first
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	snapshot := &Snapshot{
		ExportID:       uuid.New(),
		AccountID:      accountID,
		AccountDetails: acct.details(),
		Entries:        entries,
		GeneratedAt:    time.Now(),
	}

	s.cacheSnapshot(ctx, snapshot)

	return snapshot, nil
}

// CachedExport retrieves a previously generated snapshot by export ID
func (s *Service) CachedExport(ctx context.Context, exportID uuid.UUID) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.GetExport(ctx, exportID)
}

func (s *Service) cacheSnapshot(ctx context.Context, snapshot *Snapshot) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Warn("Failed to encode export snapshot",
			"export_id", snapshot.ExportID.String(),
			"error", err,
		)
		return
	}
	if err := s.cache.SetExport(ctx, snapshot.ExportID, raw); err != nil {
		s.logger.Warn("Failed to cache export snapshot",
			"export_id", snapshot.ExportID.String(),
			"error", err,
		)
	}
}
