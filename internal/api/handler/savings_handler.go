package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/api/service"
	"github.com/welfare-savings-ledger/internal/domain/account"
)

// SavingsHandler handles HTTP requests for member savings accounts
type SavingsHandler struct {
	savingsService service.SavingsService
	logger         *slog.Logger
}

// NewSavingsHandler creates a new savings handler
func NewSavingsHandler(logger *slog.Logger, savingsService service.SavingsService) *SavingsHandler {
	return &SavingsHandler{
		savingsService: savingsService,
		logger:         logger,
	}
}

// Register handles member registration: opens the savings account and posts
// the mandatory opening deposit
func (h *SavingsHandler) Register(c *gin.Context) {
	var req RegisterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		RespondBadRequest(c, "Invalid member ID")
		return
	}
	monthlyAmount, err := decimal.NewFromString(req.MonthlyAmount)
	if err != nil {
		RespondBadRequest(c, "Invalid monthly amount")
		return
	}
	openingDeposit, err := decimal.NewFromString(req.OpeningDeposit)
	if err != nil {
		RespondBadRequest(c, "Invalid opening deposit")
		return
	}

	acct, entry, err := h.savingsService.RegisterMember(c.Request.Context(), memberID, monthlyAmount, openingDeposit)
	if err != nil {
		var duplicate account.ErrDuplicateSavings
		switch {
		case errors.As(err, &duplicate):
			h.logger.Warn("Member already has a savings account", "member_id", memberID.String())
			RespondConflict(c, "Member already has a savings account")
		case errors.Is(err, account.ErrNonPositiveAmount):
			RespondBadRequest(c, "Opening deposit must be positive")
		default:
			h.logger.Error("Failed to register member", "member_id", memberID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, RegisterMemberResponse{
		Account:        mapSavingsToResponse(acct),
		OpeningDeposit: mapEntryToResponse(entry),
	})
}

// GetByID retrieves a savings account by its ID, returning 404 if not found
func (h *SavingsHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acct, err := h.savingsService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrSavingsNotFound{}) {
			RespondNotFound(c, "Savings account not found")
			return
		}
		h.logger.Error("Failed to get savings account", "account_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapSavingsToResponse(acct))
}

// GetByMember retrieves a member's savings account
func (h *SavingsHandler) GetByMember(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("member_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid member ID")
		return
	}

	acct, err := h.savingsService.GetByMemberID(c.Request.Context(), memberID)
	if err != nil {
		if errors.Is(err, account.ErrSavingsNotFound{}) {
			RespondNotFound(c, "Savings account not found")
			return
		}
		h.logger.Error("Failed to get savings account", "member_id", memberID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapSavingsToResponse(acct))
}

// Deactivate marks a savings account inactive on member exit
func (h *SavingsHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acct, err := h.savingsService.Deactivate(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrSavingsNotFound{}):
			RespondNotFound(c, "Savings account not found")
		case errors.Is(err, account.ErrInvalidStateTransition):
			RespondConflict(c, "Savings account is not active")
		default:
			h.logger.Error("Failed to deactivate savings account", "account_id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapSavingsToResponse(acct))
}
