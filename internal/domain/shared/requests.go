package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostingRequest describes one transaction against one account: a deposit
// or withdrawal on a savings account, or a repayment on a loan. It is the
// allocator's sole input for individual operations and for each account of
// a group run.
type PostingRequest struct {
	EntryID       uuid.UUID       `json:"entry_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Kind          EntryKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Notes         string          `json:"notes,omitempty"`
	RunID         *uuid.UUID      `json:"run_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// GroupRunRequest describes one logical group transaction (a monthly
// contribution or payroll-style deduction) to be fanned out across every
// eligible account. When Amount is nil, each account's configured
// recurring amount applies instead.
type GroupRunRequest struct {
	RunID         uuid.UUID        `json:"run_id"`
	Kind          EntryKind        `json:"kind"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
	Notes         string           `json:"notes,omitempty"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}
