package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// Entry is one immutable row of an account's append-only history. Entries
// are never mutated or reordered after creation; only the status may move
// PENDING -> COMPLETED or PENDING -> FAILED. SequenceNumber increases
// monotonically per account with no gaps, and BalanceAfter must equal the
// balance obtained by replaying completed entries 1..SequenceNumber.
// FAILED entries carry no sequence number and never affect a balance.
type Entry struct {
	EntryID            uuid.UUID          `json:"entry_id"`
	AccountID          uuid.UUID          `json:"account_id"`
	SequenceNumber     int64              `json:"sequence_number"`
	Kind               shared.EntryKind   `json:"kind"`
	Amount             decimal.Decimal    `json:"amount"` // always positive; direction comes from Kind
	PrincipalComponent decimal.Decimal    `json:"principal_component"`
	InterestComponent  decimal.Decimal    `json:"interest_component"`
	BalanceAfter       decimal.Decimal    `json:"balance_after"`
	OccurredAt         time.Time          `json:"occurred_at"`
	Notes              string             `json:"notes,omitempty"`
	Status             shared.EntryStatus `json:"status"`
	FailureReason      string             `json:"failure_reason,omitempty"`
	RunID              *uuid.UUID         `json:"run_id,omitempty"` // group run provenance
	CorrelationID      string             `json:"correlation_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	ProcessedAt        *time.Time         `json:"processed_at,omitempty"`
}
