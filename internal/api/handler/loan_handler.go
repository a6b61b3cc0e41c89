package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/welfare-savings-ledger/internal/amort"
	"github.com/welfare-savings-ledger/internal/api/service"
	"github.com/welfare-savings-ledger/internal/domain/account"
)

// LoanHandler handles HTTP requests for the loan lifecycle
type LoanHandler struct {
	loanService service.LoanService
	logger      *slog.Logger
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(logger *slog.Logger, loanService service.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
		logger:      logger,
	}
}

// Apply handles a loan application, returning the created application with
// its computed amortization summary and breakdown
func (h *LoanHandler) Apply(c *gin.Context) {
	var req LoanApplicationRequest
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
	principal, err := decimal.NewFromString(req.Principal)
	if err != nil {
		RespondBadRequest(c, "Invalid principal")
		return
	}
	rate, err := decimal.NewFromString(req.AnnualRatePercent)
	if err != nil {
		RespondBadRequest(c, "Invalid annual rate")
		return
	}

	loan, summary, breakdown, err := h.loanService.Apply(c.Request.Context(), memberID, principal, rate, req.TermMonths)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidPrincipal),
			errors.Is(err, account.ErrInvalidInterestRate),
			errors.Is(err, account.ErrInvalidTerm),
			errors.Is(err, amort.ErrInvalidScheduleInput):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Error("Failed to create loan application", "member_id", memberID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, LoanApplicationResponse{
		Loan:      mapLoanToResponse(loan),
		Schedule:  mapScheduleToResponse(summary),
		Breakdown: mapPeriodsToResponse(breakdown),
	})
}

// Approve transitions a pending application to active
func (h *LoanHandler) Approve(c *gin.Context) {
	h.transition(c, "approve", h.loanService.Approve)
}

// Reject transitions a pending application to rejected
func (h *LoanHandler) Reject(c *gin.Context) {
	h.transition(c, "reject", h.loanService.Reject)
}

func (h *LoanHandler) transition(c *gin.Context, action string, op func(ctx context.Context, loanID uuid.UUID) (*account.LoanAccount, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid loan ID")
		return
	}

	loan, err := op(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrLoanNotFound{}):
			RespondNotFound(c, "Loan not found")
		case errors.Is(err, account.ErrInvalidStateTransition):
			RespondConflict(c, "Loan is not pending approval")
		default:
			h.logger.Error("Failed to "+action+" loan", "loan_id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapLoanToResponse(loan))
}

// GetByID retrieves a loan by its ID, returning 404 if not found
func (h *LoanHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid loan ID")
		return
	}

	loan, err := h.loanService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrLoanNotFound{}) {
			RespondNotFound(c, "Loan not found")
			return
		}
		h.logger.Error("Failed to get loan", "loan_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapLoanToResponse(loan))
}

// ListByMember retrieves a member's loans, newest first
func (h *LoanHandler) ListByMember(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("member_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid member ID")
		return
	}

	loans, err := h.loanService.ListByMemberID(c.Request.Context(), memberID)
	if err != nil {
		h.logger.Error("Failed to list member loans", "member_id", memberID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]LoanResponse, 0, len(loans))
	for _, loan := range loans {
		responses = append(responses, mapLoanToResponse(loan))
	}
	RespondOK(c, responses)
}

// Schedule returns the loan's per-period amortization breakdown
func (h *LoanHandler) Schedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid loan ID")
		return
	}

	breakdown, err := h.loanService.Schedule(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrLoanNotFound{}) {
			RespondNotFound(c, "Loan not found")
			return
		}
		h.logger.Error("Failed to compute schedule", "loan_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapPeriodsToResponse(breakdown))
}
