package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/domain/shared"
	"github.com/welfare-savings-ledger/internal/platform/messaging/producers"
)

// RunServiceImpl implements the RunService interface. Group runs are batch
// work with partial-failure reporting, so they travel over the run topic to
// the processor rather than applying synchronously.
type RunServiceImpl struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
}

// NewRunService creates a new group run service
func NewRunService(logger *slog.Logger, producer producers.MessagePublisher) RunService {
	return &RunServiceImpl{
		producer: producer,
		logger:   logger,
	}
}

// Trigger publishes an ad-hoc group run and returns its run ID. The run ID
// keys the Kafka message so re-delivery is detectable downstream.
func (s *RunServiceImpl) Trigger(ctx context.Context, kind shared.EntryKind, amount *decimal.Decimal, notes, correlationID string) (uuid.UUID, error) {
	if !kind.Valid() {
		return uuid.Nil, shared.ErrInvalidEntryKind
	}

	now := time.Now()
	run := &shared.GroupRunRequest{
		RunID:         uuid.New(),
		Kind:          kind,
		Amount:        amount,
		OccurredAt:    now,
		Notes:         notes,
		CorrelationID: correlationID,
		Timestamp:     now,
	}

	if err := s.producer.Publish(ctx, run.RunID.String(), run); err != nil {
		s.logger.Error("Failed to publish group run",
			"run_id", run.RunID.String(),
			"kind", string(kind),
			"error", err,
		)
		return uuid.Nil, err
	}

	s.logger.Info("Group run published",
		"run_id", run.RunID.String(),
		"kind", string(kind),
	)
	return run.RunID, nil
}
