package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/outbox"
	"github.com/welfare-savings-ledger/internal/domain/shared"
	"github.com/welfare-savings-ledger/internal/engine/bulk"
	"github.com/welfare-savings-ledger/internal/platform/messaging/producers"
)

// RunProcessor executes one group run to completion
type RunProcessor interface {
	Run(ctx context.Context, req *shared.GroupRunRequest) (*bulk.RunResult, error)
}

// RunEventHandler handles incoming group-run request messages from Kafka.
// A run that already staged outbox messages or produced ledger entries is
// skipped rather than re-executed, so a re-delivered message never posts
// an account twice.
type RunEventHandler struct {
	processor      RunProcessor
	outboxRepo     outbox.Repository
	ledgerRepo     ledger.Repository
	resultProducer producers.MessagePublisher
	dlqProducer    producers.DeadLetterPublisher
	logger         *slog.Logger
}

// NewRunEventHandler creates a new handler
func NewRunEventHandler(
	logger *slog.Logger,
	processor RunProcessor,
	outboxRepo outbox.Repository,
	ledgerRepo ledger.Repository,
	resultProducer producers.MessagePublisher,
	dlqProducer producers.DeadLetterPublisher,
) *RunEventHandler {
	return &RunEventHandler{
		processor:      processor,
		outboxRepo:     outboxRepo,
		ledgerRepo:     ledgerRepo,
		resultProducer: resultProducer,
		dlqProducer:    dlqProducer,
		logger:         logger,
	}
}

// HandleMessage processes Kafka messages
func (h *RunEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.GroupRunRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal group run request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.dlqProducer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.dlqProducer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received group run request",
		"run_id", request.RunID.String(),
		"kind", string(request.Kind),
	)

	// Re-delivered runs are detected by their footprint. The outbox count
	// is authoritative: it is written in the same database transaction as
	// each balance mutation, so it is non-zero from the moment the run's
	// first posting commits, even before the poller projects anything.
	staged, err := h.outboxRepo.CountByRunID(ctx, request.RunID)
	if err != nil {
		logger.Error("Failed to check run for staged postings",
			"run_id", request.RunID.String(), "error", err)
		return fmt.Errorf("checking run %s for staged postings failed: %w", request.RunID.String(), err)
	}
	if staged > 0 {
		logger.Warn("Group run already executed, skipping",
			"run_id", request.RunID.String(),
			"staged_messages", staged,
		)
		return nil
	}

	// FAILED entries bypass the outbox, so a run where every posting
	// failed leaves only a ledger footprint.
	failed, err := h.ledgerRepo.CountByRunID(ctx, request.RunID)
	if err != nil {
		logger.Error("Failed to check run for prior execution",
			"run_id", request.RunID.String(), "error", err)
		return fmt.Errorf("checking run %s for prior execution failed: %w", request.RunID.String(), err)
	}
	if failed > 0 {
		logger.Warn("Group run already executed, skipping",
			"run_id", request.RunID.String(),
			"existing_entries", failed,
		)
		return nil
	}

	result, err := h.processor.Run(ctx, &request)
	if err != nil {
		logger.Error("Failed to execute group run",
			"run_id", request.RunID.String(),
			"error", err,
		)
		return fmt.Errorf("executing group run %s failed: %w", request.RunID.String(), err)
	}

	if h.resultProducer != nil {
		if pubErr := h.resultProducer.Publish(ctx, result.RunID.String(), result); pubErr != nil {
			// The run itself applied; losing the summary must not trigger a
			// redelivery that would re-run it.
			logger.Error("Failed to publish run result",
				"run_id", result.RunID.String(),
				"error", pubErr,
			)
		}
	}

	logger.Info("Group run executed",
		"run_id", result.RunID.String(),
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", len(result.Failed),
	)
	return nil
}
