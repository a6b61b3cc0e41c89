// Package bulk fans a group transaction out across every eligible account.
// Per-account failures are isolated: each account's posting is its own unit
// of work, and one failure never rolls back or aborts the others.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/shared"
	"github.com/welfare-savings-ledger/internal/engine/allocator"
)

// ErrEligibilitySourceUnavailable indicates the eligible account set could
// not be enumerated. This aborts the whole run before any posting applies;
// it is never recorded as per-account failures.
var ErrEligibilitySourceUnavailable = errors.New("eligibility source unavailable")

// Poster applies one posting request atomically
type Poster interface {
	Post(ctx context.Context, req *shared.PostingRequest) (*allocator.Result, error)
}

// FailureRecorder persists a FAILED ledger entry for a scheduled posting
// attempt that could not apply. Failed entries carry no sequence number and
// never affect a balance.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, req *shared.PostingRequest, reason shared.FailureReason) error
}

// AccountFailure is one account's failure within a run
type AccountFailure struct {
	AccountID uuid.UUID            `json:"account_id"`
	Reason    shared.FailureReason `json:"reason"`
}

// RunResult summarizes a group run: per-account outcomes plus counts.
// Safe for concurrent recording by pool workers.
type RunResult struct {
	RunID      uuid.UUID        `json:"run_id"`
	Kind       shared.EntryKind `json:"kind"`
	Attempted  int              `json:"attempted"`
	Succeeded  int              `json:"succeeded"`
	Failed     []AccountFailure `json:"failed"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`

	mu sync.Mutex
}

func (r *RunResult) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Succeeded++
}

func (r *RunResult) recordFailure(accountID uuid.UUID, reason shared.FailureReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, AccountFailure{AccountID: accountID, Reason: reason})
}

// target is one account's resolved posting within a run
type target struct {
	accountID uuid.UUID
	amount    decimal.Decimal
	noDefault bool
}

// Processor executes group runs over a bounded worker pool
type Processor struct {
	poster      Poster
	loanRepo    account.LoanRepository
	savingsRepo account.SavingsRepository
	recorder    FailureRecorder
	pool        *ants.Pool
	logger      *slog.Logger
}

func NewProcessor(
	logger *slog.Logger,
	poster Poster,
	loanRepo account.LoanRepository,
	savingsRepo account.SavingsRepository,
	recorder FailureRecorder,
	poolSize int,
) (*Processor, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Processor{
		poster:      poster,
		loanRepo:    loanRepo,
		savingsRepo: savingsRepo,
		recorder:    recorder,
		pool:        pool,
		logger:      logger,
	}, nil
}

// Run fans the group request out across every eligible account and waits
// for all postings to settle. Accounts not yet attempted when the context
// is cancelled fail with the Cancelled reason; postings already applied
// stay applied.
func (p *Processor) Run(ctx context.Context, req *shared.GroupRunRequest) (*RunResult, error) {
	if !req.Kind.Valid() {
		return nil, shared.ErrInvalidEntryKind
	}

	targets, err := p.enumerate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEligibilitySourceUnavailable, err)
	}

	result := &RunResult{
		RunID:     req.RunID,
		Kind:      req.Kind,
		Attempted: len(targets),
		StartedAt: time.Now(),
	}

	p.logger.Info("Starting group run",
		"run_id", req.RunID.String(),
		"kind", string(req.Kind),
		"accounts", len(targets),
	)

	var wg sync.WaitGroup
	for _, tgt := range targets {
		tgt := tgt

		if ctx.Err() != nil {
			p.fail(ctx, req, tgt, shared.FailureReasonCancelled, result)
			continue
		}
		if tgt.noDefault {
			p.fail(ctx, req, tgt, shared.FailureReasonNoDefaultAmount, result)
			continue
		}

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			p.process(ctx, req, tgt, result)
		})
		if submitErr != nil {
			wg.Done()
			p.fail(ctx, req, tgt, shared.FailureReasonUnknownError, result)
		}
	}
	wg.Wait()

	result.FinishedAt = time.Now()

	p.logger.Info("Group run finished",
		"run_id", req.RunID.String(),
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", len(result.Failed),
	)
	return result, nil
}

// Shutdown releases the worker pool
func (p *Processor) Shutdown() {
	p.logger.Info("Shutting down group run worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

func (p *Processor) process(ctx context.Context, req *shared.GroupRunRequest, tgt target, result *RunResult) {
	runID := req.RunID
	posting := &shared.PostingRequest{
		EntryID:       uuid.New(),
		AccountID:     tgt.accountID,
		Kind:          req.Kind,
		Amount:        tgt.amount,
		OccurredAt:    req.OccurredAt,
		Notes:         req.Notes,
		RunID:         &runID,
		CorrelationID: req.CorrelationID,
	}

	if _, err := p.poster.Post(ctx, posting); err != nil {
		reason := allocator.FailureReasonForError(err)
		p.logger.Warn("Group run posting failed",
			"run_id", req.RunID.String(),
			"account_id", tgt.accountID.String(),
			"reason", string(reason),
			"error", err,
		)
		p.record(ctx, posting, reason)
		result.recordFailure(tgt.accountID, reason)
		return
	}

	result.recordSuccess()
}

func (p *Processor) fail(ctx context.Context, req *shared.GroupRunRequest, tgt target, reason shared.FailureReason, result *RunResult) {
	runID := req.RunID
	posting := &shared.PostingRequest{
		EntryID:       uuid.New(),
		AccountID:     tgt.accountID,
		Kind:          req.Kind,
		Amount:        tgt.amount,
		OccurredAt:    req.OccurredAt,
		Notes:         req.Notes,
		RunID:         &runID,
		CorrelationID: req.CorrelationID,
	}
	p.record(ctx, posting, reason)
	result.recordFailure(tgt.accountID, reason)
}

func (p *Processor) record(ctx context.Context, posting *shared.PostingRequest, reason shared.FailureReason) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordFailure(ctx, posting, reason); err != nil {
		p.logger.Error("Failed to record failed posting",
			"entry_id", posting.EntryID.String(),
			"account_id", posting.AccountID.String(),
			"error", err,
		)
	}
}

// enumerate resolves the eligible account set and each account's posting
// amount. An explicit run amount applies to every account; otherwise each
// account's own recurring amount is used, and accounts without one are
// marked for a NoDefaultAmount failure.
func (p *Processor) enumerate(ctx context.Context, req *shared.GroupRunRequest) ([]target, error) {
	if req.Kind == shared.EntryKindRepayment {
		loans, err := p.loanRepo.ListActive(ctx)
		if err != nil {
			return nil, err
		}

		targets := make([]target, 0, len(loans))
		for _, loan := range loans {
			tgt := target{accountID: loan.ID}
			switch {
			case req.Amount != nil:
				tgt.amount = *req.Amount
			case loan.MonthlyPayment.GreaterThan(decimal.Zero):
				// The default deduction is the scheduled installment, capped
				// at the outstanding balance so the final installment clears
				// the loan instead of overshooting it.
				tgt.amount = loan.MonthlyPayment
				if tgt.amount.GreaterThan(loan.RemainingBalance) {
					tgt.amount = loan.RemainingBalance
				}
			default:
				tgt.noDefault = true
			}
			targets = append(targets, tgt)
		}
		return targets, nil
	}

	savings, err := p.savingsRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	targets := make([]target, 0, len(savings))
	for _, acct := range savings {
		tgt := target{accountID: acct.ID}
		switch {
		case req.Amount != nil:
			tgt.amount = *req.Amount
		case acct.MonthlyAmount.GreaterThan(decimal.Zero):
			tgt.amount = acct.MonthlyAmount
		default:
			tgt.noDefault = true
		}
		targets = append(targets, tgt)
	}
	return targets, nil
}
