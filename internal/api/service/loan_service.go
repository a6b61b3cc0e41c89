package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/amort"
	"github.com/welfare-savings-ledger/internal/domain/account"
)

// LoanServiceImpl implements the LoanService interface
type LoanServiceImpl struct {
	loanRepo account.LoanRepository
	cache    ScheduleCache
	logger   *slog.Logger
}

// NewLoanService creates a new loan service
func NewLoanService(logger *slog.Logger, loanRepo account.LoanRepository, cache ScheduleCache) LoanService {
	return &LoanServiceImpl{
		loanRepo: loanRepo,
		cache:    cache,
		logger:   logger,
	}
}

// Apply creates a PENDING loan application and returns the amortization
// summary and per-period breakdown the approval screen shows. The
// breakdown is provisional until approval anchors it to the issue date.
func (s *LoanServiceImpl) Apply(ctx context.Context, memberID uuid.UUID, principal, annualRatePercent decimal.Decimal, termMonths int) (*account.LoanAccount, amort.ScheduleSummary, []amort.Period, error) {
	loan, err := account.NewLoanAccount(memberID, principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, amort.ScheduleSummary{}, nil, err
	}

	summary, err := amort.ComputeSchedule(principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, amort.ScheduleSummary{}, nil, err
	}

	breakdown, err := amort.Breakdown(principal, annualRatePercent, termMonths, time.Now())
	if err != nil {
		return nil, amort.ScheduleSummary{}, nil, err
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, amort.ScheduleSummary{}, nil, err
	}

	s.cacheSchedule(ctx, loan.ID, breakdown)

	s.logger.Info("Created loan application",
		"loan_id", loan.ID.String(),
		"member_id", memberID.String(),
		"principal", principal.StringFixed(2),
		"term_months", termMonths,
	)
	return loan, summary, breakdown, nil
}

// Approve transitions a PENDING application to ACTIVE, stamping the issue
// date and the scheduled monthly payment
func (s *LoanServiceImpl) Approve(ctx context.Context, loanID uuid.UUID) (*account.LoanAccount, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	summary, err := amort.ComputeSchedule(loan.Principal, loan.AnnualRatePercent, loan.TermMonths)
	if err != nil {
		return nil, err
	}

	if err := loan.Approve(time.Now(), summary.MonthlyPayment); err != nil {
		return nil, err
	}

	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	// The cached breakdown anchored to the application date; the issue
	// date is now authoritative.
	s.invalidateSchedule(ctx, loanID)

	s.logger.Info("Approved loan",
		"loan_id", loanID.String(),
		"monthly_payment", summary.MonthlyPayment.StringFixed(2),
	)
	return loan, nil
}

// Reject transitions a PENDING application to REJECTED
func (s *LoanServiceImpl) Reject(ctx context.Context, loanID uuid.UUID) (*account.LoanAccount, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := loan.Reject(); err != nil {
		return nil, err
	}

	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.logger.Info("Rejected loan application", "loan_id", loanID.String())
	return loan, nil
}

// GetByID retrieves a loan by its ID
func (s *LoanServiceImpl) GetByID(ctx context.Context, loanID uuid.UUID) (*account.LoanAccount, error) {
	return s.loanRepo.GetByID(ctx, loanID)
}

// ListByMemberID retrieves a member's loans, newest first
func (s *LoanServiceImpl) ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*account.LoanAccount, error) {
	return s.loanRepo.ListByMemberID(ctx, memberID)
}

// Schedule returns the loan's amortization breakdown, from cache when
// available. Approved loans anchor the schedule to the issue date.
func (s *LoanServiceImpl) Schedule(ctx context.Context, loanID uuid.UUID) ([]amort.Period, error) {
	if s.cache != nil {
		if periods, ok := s.cache.GetSchedule(ctx, loanID); ok {
			return periods, nil
		}
	}

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	start := loan.CreatedAt
	if loan.DateIssued != nil {
		start = *loan.DateIssued
	}

	breakdown, err := amort.Breakdown(loan.Principal, loan.AnnualRatePercent, loan.TermMonths, start)
	if err != nil {
		return nil, err
	}

	s.cacheSchedule(ctx, loanID, breakdown)
	return breakdown, nil
}

func (s *LoanServiceImpl) cacheSchedule(ctx context.Context, loanID uuid.UUID, periods []amort.Period) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetSchedule(ctx, loanID, periods); err != nil {
		s.logger.Warn("Failed to cache schedule", "loan_id", loanID.String(), "error", err)
	}
}

func (s *LoanServiceImpl) invalidateSchedule(ctx context.Context, loanID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSchedule(ctx, loanID); err != nil {
		s.logger.Warn("Failed to invalidate cached schedule", "loan_id", loanID.String(), "error", err)
	}
}
