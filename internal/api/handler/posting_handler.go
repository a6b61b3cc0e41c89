package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/api/middleware"
	"github.com/welfare-savings-ledger/internal/api/service"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// PostingHandler handles HTTP requests for individual transactions
type PostingHandler struct {
	postingService service.PostingService
	logger         *slog.Logger
}

// NewPostingHandler creates a new posting handler
func NewPostingHandler(logger *slog.Logger, postingService service.PostingService) *PostingHandler {
	return &PostingHandler{
		postingService: postingService,
		logger:         logger,
	}
}

// Create applies a posting synchronously and returns the resulting ledger
// entry. Business rule violations come back as 422 with a stable error
// code; nothing is persisted on any rejection.
func (h *PostingHandler) Create(c *gin.Context) {
	var req CreatePostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondBadRequest(c, "Invalid amount")
		return
	}

	var occurredAt time.Time
	if req.OccurredAt != "" {
		occurredAt, err = time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			RespondBadRequest(c, "Invalid occurred_at, expected RFC 3339")
			return
		}
	}

	posting := &shared.PostingRequest{
		EntryID:       uuid.New(),
		AccountID:     accountID,
		Kind:          shared.EntryKind(req.Kind),
		Amount:        amount,
		OccurredAt:    occurredAt,
		Notes:         req.Notes,
		CorrelationID: middleware.GetCorrelationID(c),
	}

	entry, err := h.postingService.Post(c.Request.Context(), posting)
	if err != nil {
		h.respondPostingError(c, accountID, err)
		return
	}

	RespondCreated(c, mapEntryToResponse(entry))
}

func (h *PostingHandler) respondPostingError(c *gin.Context, accountID uuid.UUID, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidEntryKind):
		RespondBadRequest(c, "Invalid entry kind")
	case errors.Is(err, account.ErrNonPositiveAmount):
		RespondUnprocessable(c, "NON_POSITIVE_AMOUNT", "Amount must be positive")
	case errors.Is(err, account.ErrExceedsRemainingBalance):
		RespondUnprocessable(c, "EXCEEDS_REMAINING_BALANCE", "Repayment exceeds the remaining balance")
	case errors.Is(err, account.ErrInsufficientFunds):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", "Withdrawal exceeds the available balance")
	case errors.Is(err, account.ErrAccountInactive):
		RespondUnprocessable(c, "ACCOUNT_INACTIVE", "Account is not active")
	case errors.Is(err, account.ErrLoanNotFound{}), errors.Is(err, account.ErrSavingsNotFound{}):
		RespondNotFound(c, "Account not found")
	default:
		var concurrent account.ErrConcurrentModification
		if errors.As(err, &concurrent) {
			RespondConflict(c, "Account was modified concurrently, retry the posting")
			return
		}
		h.logger.Error("Failed to apply posting", "account_id", accountID.String(), "error", err)
		RespondInternalError(c)
	}
}

// GetByID retrieves a ledger entry by its ID, returning 404 if not found
func (h *PostingHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid entry ID")
		return
	}

	entry, err := h.postingService.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get ledger entry", "entry_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}
	if entry == nil {
		RespondNotFound(c, "Ledger entry not found")
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

// ListByAccount retrieves a page of an account's entries, newest first
func (h *PostingHandler) ListByAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, total, err := h.postingService.ListEntries(c.Request.Context(), accountID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list entries", "account_id", accountID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, EntryListResponse{Entries: responses}, params.Page, params.PerPage, int(total))
}
