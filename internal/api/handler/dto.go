package handler

import (
	"time"

	"github.com/welfare-savings-ledger/internal/amort"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/ledger"
)

// Monetary amounts travel as decimal strings on the wire so values like
// "150.75" survive without binary floating point on either side.

// RegisterMemberRequest opens a member's savings account with its
// mandatory opening deposit
type RegisterMemberRequest struct {
	MemberID       string `json:"member_id" binding:"required,uuid"`
	MonthlyAmount  string `json:"monthly_amount" binding:"required"`
	OpeningDeposit string `json:"opening_deposit" binding:"required"`
}

// SavingsResponse represents a savings account in API responses
type SavingsResponse struct {
	ID            string `json:"id"`
	MemberID      string `json:"member_id"`
	Balance       string `json:"balance"`
	MonthlyAmount string `json:"monthly_amount"`
	Status        string `json:"status"`
	LastSequence  int64  `json:"last_sequence"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// RegisterMemberResponse carries the new account and its opening entry
type RegisterMemberResponse struct {
	Account        SavingsResponse `json:"account"`
	OpeningDeposit EntryResponse   `json:"opening_deposit"`
}

// LoanApplicationRequest represents a loan application
type LoanApplicationRequest struct {
	MemberID          string `json:"member_id" binding:"required,uuid"`
	Principal         string `json:"principal" binding:"required"`
	AnnualRatePercent string `json:"annual_rate_percent" binding:"required"`
	TermMonths        int    `json:"term_months" binding:"required,gt=0"`
}

// LoanResponse represents a loan account in API responses
type LoanResponse struct {
	ID                string `json:"id"`
	MemberID          string `json:"member_id"`
	Principal         string `json:"principal"`
	AnnualRatePercent string `json:"annual_rate_percent"`
	TermMonths        int    `json:"term_months"`
	MonthlyPayment    string `json:"monthly_payment"`
	Status            string `json:"status"`
	RemainingBalance  string `json:"remaining_balance"`
	ProgressPercent   string `json:"progress_percent"`
	DateIssued        string `json:"date_issued,omitempty"`
	DueDate           string `json:"due_date,omitempty"`
	LastSequence      int64  `json:"last_sequence"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// ScheduleSummaryResponse represents computed amortization totals
type ScheduleSummaryResponse struct {
	MonthlyPayment string `json:"monthly_payment"`
	TotalPayment   string `json:"total_payment"`
	TotalInterest  string `json:"total_interest"`
}

// PeriodResponse represents one row of an amortization breakdown
type PeriodResponse struct {
	Number           int    `json:"number"`
	DueDate          string `json:"due_date"`
	Payment          string `json:"payment"`
	Interest         string `json:"interest"`
	Principal        string `json:"principal"`
	RemainingBalance string `json:"remaining_balance"`
}

// LoanApplicationResponse carries the created application together with
// its computed schedule
type LoanApplicationResponse struct {
	Loan      LoanResponse            `json:"loan"`
	Schedule  ScheduleSummaryResponse `json:"schedule"`
	Breakdown []PeriodResponse        `json:"breakdown"`
}

// CreatePostingRequest represents an individual transaction against one
// account
type CreatePostingRequest struct {
	AccountID  string `json:"account_id" binding:"required,uuid"`
	Kind       string `json:"kind" binding:"required,oneof=DEPOSIT WITHDRAWAL REPAYMENT"`
	Amount     string `json:"amount" binding:"required"`
	OccurredAt string `json:"occurred_at,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	EntryID            string `json:"entry_id"`
	AccountID          string `json:"account_id"`
	SequenceNumber     int64  `json:"sequence_number"`
	Kind               string `json:"kind"`
	Amount             string `json:"amount"`
	PrincipalComponent string `json:"principal_component"`
	InterestComponent  string `json:"interest_component"`
	BalanceAfter       string `json:"balance_after"`
	OccurredAt         string `json:"occurred_at"`
	Notes              string `json:"notes,omitempty"`
	Status             string `json:"status"`
	FailureReason      string `json:"failure_reason,omitempty"`
	RunID              string `json:"run_id,omitempty"`
	CreatedAt          string `json:"created_at"`
	ProcessedAt        string `json:"processed_at,omitempty"`
}

// EntryListResponse represents a page of ledger entries
type EntryListResponse struct {
	Entries []EntryResponse `json:"entries"`
}

// TriggerRunRequest represents an ad-hoc group run trigger. A nil amount
// means each account's recurring amount applies.
type TriggerRunRequest struct {
	Kind   string  `json:"kind" binding:"required,oneof=DEPOSIT WITHDRAWAL REPAYMENT"`
	Amount *string `json:"amount,omitempty"`
	Notes  string  `json:"notes,omitempty"`
}

// RunAcceptedResponse acknowledges an accepted group run
type RunAcceptedResponse struct {
	RunID string `json:"run_id"`
}

// BalanceAtResponse is a replayed balance at a given sequence number
type BalanceAtResponse struct {
	AccountID      string `json:"account_id"`
	SequenceNumber int64  `json:"sequence_number"`
	Balance        string `json:"balance"`
}

// ReconciliationResponse reports whether the stored balances replay
// cleanly from the ledger
type ReconciliationResponse struct {
	AccountID  string `json:"account_id"`
	Consistent bool   `json:"consistent"`
	Detail     string `json:"detail,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// mapSavingsToResponse maps a savings account entity to its response DTO
func mapSavingsToResponse(acct *account.SavingsAccount) SavingsResponse {
	return SavingsResponse{
		ID:            acct.ID.String(),
		MemberID:      acct.MemberID.String(),
		Balance:       acct.Balance.StringFixed(2),
		MonthlyAmount: acct.MonthlyAmount.StringFixed(2),
		Status:        string(acct.Status),
		LastSequence:  acct.LastSequence,
		CreatedAt:     acct.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     acct.UpdatedAt.Format(time.RFC3339),
	}
}

// mapLoanToResponse maps a loan account entity to its response DTO
func mapLoanToResponse(loan *account.LoanAccount) LoanResponse {
	resp := LoanResponse{
		ID:                loan.ID.String(),
		MemberID:          loan.MemberID.String(),
		Principal:         loan.Principal.StringFixed(2),
		AnnualRatePercent: loan.AnnualRatePercent.String(),
		TermMonths:        loan.TermMonths,
		MonthlyPayment:    loan.MonthlyPayment.StringFixed(2),
		Status:            string(loan.Status),
		RemainingBalance:  loan.RemainingBalance.StringFixed(2),
		ProgressPercent:   loan.ProgressPercent().String(),
		LastSequence:      loan.LastSequence,
		CreatedAt:         loan.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         loan.UpdatedAt.Format(time.RFC3339),
	}
	if loan.DateIssued != nil {
		resp.DateIssued = loan.DateIssued.Format(time.RFC3339)
	}
	if loan.DueDate != nil {
		resp.DueDate = loan.DueDate.Format(time.RFC3339)
	}
	return resp
}

// mapEntryToResponse maps a ledger entry to its response DTO
func mapEntryToResponse(entry *ledger.Entry) EntryResponse {
	resp := EntryResponse{
		EntryID:            entry.EntryID.String(),
		AccountID:          entry.AccountID.String(),
		SequenceNumber:     entry.SequenceNumber,
		Kind:               string(entry.Kind),
		Amount:             entry.Amount.StringFixed(2),
		PrincipalComponent: entry.PrincipalComponent.StringFixed(2),
		InterestComponent:  entry.InterestComponent.StringFixed(2),
		BalanceAfter:       entry.BalanceAfter.StringFixed(2),
		OccurredAt:         entry.OccurredAt.Format(time.RFC3339),
		Notes:              entry.Notes,
		Status:             string(entry.Status),
		FailureReason:      entry.FailureReason,
		CreatedAt:          entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.RunID != nil {
		resp.RunID = entry.RunID.String()
	}
	if entry.ProcessedAt != nil {
		resp.ProcessedAt = entry.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

// mapScheduleToResponse maps computed amortization totals to the wire form
func mapScheduleToResponse(summary amort.ScheduleSummary) ScheduleSummaryResponse {
	return ScheduleSummaryResponse{
		MonthlyPayment: summary.MonthlyPayment.StringFixed(2),
		TotalPayment:   summary.TotalPayment.StringFixed(2),
		TotalInterest:  summary.TotalInterest.StringFixed(2),
	}
}

// mapPeriodsToResponse maps a breakdown to the wire form
func mapPeriodsToResponse(periods []amort.Period) []PeriodResponse {
	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, PeriodResponse{
			Number:           p.Number,
			DueDate:          p.DueDate.Format(time.RFC3339),
			Payment:          p.Payment.StringFixed(2),
			Interest:         p.Interest.StringFixed(2),
			Principal:        p.Principal.StringFixed(2),
			RemainingBalance: p.RemainingBalance.StringFixed(2),
		})
	}
	return out
}
