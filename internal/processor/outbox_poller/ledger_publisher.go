package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/outbox"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// LedgerPublisher projects outbox messages into the ledger store
type LedgerPublisher interface {
	PublishToLedger(ctx context.Context, message *outbox.Message) error
}

// LedgerPublisherImpl implements LedgerPublisher
type LedgerPublisherImpl struct {
	outboxRepo outbox.Repository
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewLedgerPublisher creates a new publisher
func NewLedgerPublisher(
	outboxRepo outbox.Repository,
	ledgerRepo ledger.Repository,
	logger *slog.Logger,
) LedgerPublisher {
	return &LedgerPublisherImpl{
		outboxRepo: outboxRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// PublishToLedger writes one staged entry to the ledger store and marks the
// outbox message PROCESSED. The entry committed alongside its balance
// mutation, so the write is idempotent on the entry ID.
func (p *LedgerPublisherImpl) PublishToLedger(ctx context.Context, message *outbox.Message) error {
	var entry ledger.Entry
	if err := json.Unmarshal(message.Payload, &entry); err != nil {
		p.logger.Error("Failed to unmarshal ledger entry from outbox payload",
			"outbox_id", message.ID, "entry_id", message.EntryID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if entry.CorrelationID != "" {
		logger = p.logger.With("correlation_id", entry.CorrelationID)
	}

	logger.Info("Publishing outbox message to ledger", "outbox_id", message.ID, "entry_id", entry.EntryID.String())

	if entry.ProcessedAt == nil {
		now := time.Now().UTC()
		entry.ProcessedAt = &now
	}

	existing, err := p.ledgerRepo.GetByEntryID(ctx, entry.EntryID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		logger.Error("Failed to check existing ledger entry before publishing", "entry_id", entry.EntryID.String(), "error", err)
		return fmt.Errorf("failed to check existing ledger entry %s: %w", entry.EntryID.String(), err)
	}

	if existing != nil {
		if existing.Status == shared.EntryStatusCompleted {
			logger.Info("Ledger entry already COMPLETED", "entry_id", entry.EntryID.String())
		} else {
			if err := p.ledgerRepo.UpdateStatus(ctx, entry.EntryID, shared.EntryStatusCompleted, ""); err != nil {
				logger.Error("Failed to update existing ledger entry to COMPLETED", "entry_id", entry.EntryID.String(), "error", err)
				return fmt.Errorf("failed to update ledger entry %s to COMPLETED: %w", entry.EntryID.String(), err)
			}
			logger.Info("Updated existing ledger entry to COMPLETED", "entry_id", entry.EntryID.String())
		}
	} else {
		if err := p.ledgerRepo.Create(ctx, &entry); err != nil {
			logger.Error("Failed to create ledger entry", "entry_id", entry.EntryID.String(), "error", err)
			return fmt.Errorf("failed to create ledger entry %s: %w", entry.EntryID.String(), err)
		}
		logger.Info("Created ledger entry", "entry_id", entry.EntryID.String())
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "entry_id", entry.EntryID.String(), "error", err,
		)
		return fmt.Errorf("ledger write for %s OK, but failed to mark outbox %d as PROCESSED: %w", entry.EntryID.String(), message.ID, err)
	}

	logger.Info("Outbox message processed", "outbox_id", message.ID, "entry_id", entry.EntryID.String())
	return nil
}
