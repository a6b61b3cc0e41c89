package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/api/middleware"
	"github.com/welfare-savings-ledger/internal/api/service"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// RunHandler handles HTTP requests for ad-hoc group runs
type RunHandler struct {
	runService service.RunService
	logger     *slog.Logger
}

// NewRunHandler creates a new group run handler
func NewRunHandler(logger *slog.Logger, runService service.RunService) *RunHandler {
	return &RunHandler{
		runService: runService,
		logger:     logger,
	}
}

// Trigger accepts a group run and publishes it for asynchronous processing.
// The response is a 202 with the run ID; per-account results arrive on the
// result topic once the processor finishes.
func (h *RunHandler) Trigger(c *gin.Context) {
	var req TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	var amount *decimal.Decimal
	if req.Amount != nil {
		parsed, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			RespondBadRequest(c, "Invalid amount")
			return
		}
		if parsed.LessThanOrEqual(decimal.Zero) {
			RespondBadRequest(c, "Amount must be positive")
			return
		}
		amount = &parsed
	}

	runID, err := h.runService.Trigger(
		c.Request.Context(),
		shared.EntryKind(req.Kind),
		amount,
		req.Notes,
		middleware.GetCorrelationID(c),
	)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidEntryKind) {
			RespondBadRequest(c, "Invalid entry kind")
			return
		}
		h.logger.Error("Failed to trigger group run", "kind", req.Kind, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, RunAcceptedResponse{RunID: runID.String()})
}
