package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// SavingsServiceImpl implements the SavingsService interface
type SavingsServiceImpl struct {
	savingsRepo account.SavingsRepository
	poster      Poster
	logger      *slog.Logger
}

// NewSavingsService creates a new savings service
func NewSavingsService(logger *slog.Logger, savingsRepo account.SavingsRepository, poster Poster) SavingsService {
	return &SavingsServiceImpl{
		savingsRepo: savingsRepo,
		poster:      poster,
		logger:      logger,
	}
}

// RegisterMember opens the member's savings account and posts the mandatory
// opening deposit. The account starts at zero and the deposit goes through
// the allocator like any other posting, so the ledger stays the single
// source of balance truth.
func (s *SavingsServiceImpl) RegisterMember(ctx context.Context, memberID uuid.UUID, monthlyAmount, openingDeposit decimal.Decimal) (*account.SavingsAccount, *ledger.Entry, error) {
	if openingDeposit.LessThanOrEqual(decimal.Zero) {
		return nil, nil, account.ErrNonPositiveAmount
	}

	existing, err := s.savingsRepo.GetByMemberID(ctx, memberID)
	if err != nil && !errors.Is(err, account.ErrSavingsNotFound{}) {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, account.ErrDuplicateSavings{MemberID: memberID}
	}

	acct, err := account.NewSavingsAccount(memberID, monthlyAmount)
	if err != nil {
		return nil, nil, err
	}

	if err := s.savingsRepo.Create(ctx, acct); err != nil {
		return nil, nil, err
	}

	result, err := s.poster.Post(ctx, &shared.PostingRequest{
		AccountID: acct.ID,
		Kind:      shared.EntryKindDeposit,
		Amount:    openingDeposit,
		Notes:     "opening deposit",
	})
	if err != nil {
		s.logger.Error("Failed to post opening deposit",
			"member_id", memberID.String(),
			"account_id", acct.ID.String(),
			"error", err,
		)
		return nil, nil, err
	}

	s.logger.Info("Registered member savings account",
		"member_id", memberID.String(),
		"account_id", acct.ID.String(),
	)
	return result.Savings, result.Entry, nil
}

// GetByID retrieves a savings account by its ID
func (s *SavingsServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error) {
	return s.savingsRepo.GetByID(ctx, id)
}

// GetByMemberID retrieves a member's savings account
func (s *SavingsServiceImpl) GetByMemberID(ctx context.Context, memberID uuid.UUID) (*account.SavingsAccount, error) {
	return s.savingsRepo.GetByMemberID(ctx, memberID)
}

// Deactivate marks the account inactive on member exit
func (s *SavingsServiceImpl) Deactivate(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error) {
	acct, err := s.savingsRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := acct.Deactivate(); err != nil {
		return nil, err
	}

	if err := s.savingsRepo.Update(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("Deactivated savings account", "account_id", id.String())
	return acct, nil
}
