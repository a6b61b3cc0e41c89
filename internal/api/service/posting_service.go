package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// PostingServiceImpl implements the PostingService interface
type PostingServiceImpl struct {
	poster     Poster
	ledgerRepo ledger.Repository
	cache      ScheduleCache
	logger     *slog.Logger
}

// NewPostingService creates a new posting service
func NewPostingService(logger *slog.Logger, poster Poster, ledgerRepo ledger.Repository, cache ScheduleCache) PostingService {
	return &PostingServiceImpl{
		poster:     poster,
		ledgerRepo: ledgerRepo,
		cache:      cache,
		logger:     logger,
	}
}

// Post applies one posting synchronously so the caller receives the precise
// validation error. A repayment invalidates the loan's cached schedule
// because the remaining balance changed.
func (s *PostingServiceImpl) Post(ctx context.Context, req *shared.PostingRequest) (*ledger.Entry, error) {
	result, err := s.poster.Post(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Kind == shared.EntryKindRepayment && s.cache != nil {
		if cacheErr := s.cache.InvalidateSchedule(ctx, req.AccountID); cacheErr != nil {
			s.logger.Warn("Failed to invalidate cached schedule after repayment",
				"account_id", req.AccountID.String(),
				"error", cacheErr,
			)
		}
	}

	return result.Entry, nil
}

// GetEntry retrieves a ledger entry by its ID. Returns nil if not found
func (s *PostingServiceImpl) GetEntry(ctx context.Context, entryID uuid.UUID) (*ledger.Entry, error) {
	entry, err := s.ledgerRepo.GetByEntryID(ctx, entryID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			s.logger.Info("Ledger entry not found", "entry_id", entryID.String())
			return nil, nil
		}
		s.logger.Error("Failed to get ledger entry", "entry_id", entryID.String(), "error", err)
		return nil, err
	}
	return entry, nil
}

// ListEntries retrieves a page of entries for an account, newest first,
// with the total count
func (s *PostingServiceImpl) ListEntries(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.ledgerRepo.ListByAccountID(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledgerRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
