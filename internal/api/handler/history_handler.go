package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/welfare-savings-ledger/internal/api/service"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/engine/history"
)

// HistoryHandler handles HTTP requests for balance replay and exports
type HistoryHandler struct {
	historyService service.HistoryService
	logger         *slog.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(logger *slog.Logger, historyService service.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
		logger:         logger,
	}
}

// BalanceAt replays the account's ledger up to the given sequence number
// and returns the reconstructed balance
func (h *HistoryHandler) BalanceAt(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	sequence, err := strconv.ParseInt(c.Query("sequence"), 10, 64)
	if err != nil || sequence < 0 {
		RespondBadRequest(c, "Invalid sequence, expected a non-negative integer")
		return
	}

	balance, err := h.historyService.ReconstructBalanceAt(c.Request.Context(), accountID, sequence)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrLoanNotFound{}), errors.Is(err, account.ErrSavingsNotFound{}):
			RespondNotFound(c, "Account not found")
		case errors.Is(err, history.ErrSequenceGap{}):
			RespondUnprocessable(c, "SEQUENCE_GAP", err.Error())
		default:
			h.logger.Error("Failed to replay balance", "account_id", accountID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, BalanceAtResponse{
		AccountID:      accountID.String(),
		SequenceNumber: sequence,
		Balance:        balance.StringFixed(2),
	})
}

// Reconcile replays the account's full history and reports whether every
// stored balance matches. An inconsistency is a 200 with consistent=false;
// the caller asked a question and got its answer.
func (h *HistoryHandler) Reconcile(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	err = h.historyService.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrLoanNotFound{}), errors.Is(err, account.ErrSavingsNotFound{}):
			RespondNotFound(c, "Account not found")
		case errors.Is(err, history.ErrBalanceMismatch{}), errors.Is(err, history.ErrSequenceGap{}):
			h.logger.Warn("Reconciliation found an inconsistency",
				"account_id", accountID.String(),
				"detail", err.Error(),
			)
			RespondOK(c, ReconciliationResponse{
				AccountID:  accountID.String(),
				Consistent: false,
				Detail:     err.Error(),
			})
		default:
			h.logger.Error("Failed to reconcile account", "account_id", accountID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, ReconciliationResponse{
		AccountID:  accountID.String(),
		Consistent: true,
	})
}

// Export generates a snapshot of the account and its full history and
// streams it as a JSON download
func (h *HistoryHandler) Export(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	snapshot, err := h.historyService.Export(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, account.ErrLoanNotFound{}) || errors.Is(err, account.ErrSavingsNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to export history", "account_id", accountID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger-%s.json"`, accountID))
	c.JSON(http.StatusOK, snapshot)
}

// Download serves a previously generated export snapshot by its export ID
func (h *HistoryHandler) Download(c *gin.Context) {
	exportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid export ID")
		return
	}

	raw, ok := h.historyService.CachedExport(c.Request.Context(), exportID)
	if !ok {
		RespondNotFound(c, "Export not found or expired")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="export-%s.json"`, exportID))
	c.Data(http.StatusOK, "application/json", raw)
}
