package components

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
	"github.com/welfare-savings-ledger/internal/engine/bulk"
)

// FailureRecorderImpl writes FAILED ledger entries straight to the ledger
// store. A failed posting mutated no balance, so there is no database
// transaction to stage an outbox message in; the entry carries no sequence
// number and never affects a replay.
type FailureRecorderImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

func NewFailureRecorder(ledgerRepo ledger.Repository, logger *slog.Logger) bulk.FailureRecorder {
	return &FailureRecorderImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// RecordFailure records a failed posting attempt in the ledger
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, req *shared.PostingRequest, reason shared.FailureReason) error {
	logger := r.logger
	if req.CorrelationID != "" {
		logger = r.logger.With("correlation_id", req.CorrelationID)
	}

	logger.Info("Recording failed posting",
		"entry_id", req.EntryID.String(),
		"account_id", req.AccountID.String(),
		"reason", string(reason),
	)

	now := time.Now()
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	entry := &ledger.Entry{
		EntryID:       req.EntryID,
		AccountID:     req.AccountID,
		Kind:          req.Kind,
		Amount:        req.Amount,
		OccurredAt:    occurredAt,
		Notes:         req.Notes,
		Status:        shared.EntryStatusFailed,
		FailureReason: string(reason),
		RunID:         req.RunID,
		CorrelationID: req.CorrelationID,
		CreatedAt:     now,
		ProcessedAt:   &now,
	}

	existing, err := r.ledgerRepo.GetByEntryID(ctx, req.EntryID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		logger.Error("Failed to check existing ledger entry for failed posting",
			"entry_id", req.EntryID.String(), "error", err)
	}

	if existing != nil {
		// Entries only move PENDING -> COMPLETED or PENDING -> FAILED. A
		// COMPLETED entry stays completed even if a failure report arrives
		// for the same entry ID.
		if existing.Status == shared.EntryStatusPending {
			if updateErr := r.ledgerRepo.UpdateStatus(ctx, req.EntryID, shared.EntryStatusFailed, string(reason)); updateErr != nil {
				logger.Error("Failed to update ledger entry to FAILED",
					"entry_id", req.EntryID.String(), "error", updateErr)
				return updateErr
			}
			logger.Info("Updated existing ledger entry to FAILED", "entry_id", req.EntryID.String())
			return nil
		}
		logger.Info("Ledger entry already finalized, skipping failure record",
			"entry_id", req.EntryID.String(),
			"status", string(existing.Status),
		)
		return nil
	}

	if createErr := r.ledgerRepo.Create(ctx, entry); createErr != nil {
		logger.Error("Failed to create FAILED ledger entry",
			"entry_id", req.EntryID.String(), "error", createErr)
		return createErr
	}
	logger.Info("Created FAILED ledger entry", "entry_id", req.EntryID.String())
	return nil
}
