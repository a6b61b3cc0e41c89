package shared

import "errors"

var (
	ErrInvalidEntryKind = errors.New("invalid ledger entry kind")
)

// EntryKind defines the possible ledger entry operations. Direction is
// encoded by the kind, never by the sign of the amount.
type EntryKind string

const (
	EntryKindDeposit    EntryKind = "DEPOSIT"
	EntryKindWithdrawal EntryKind = "WITHDRAWAL"
	EntryKindRepayment  EntryKind = "REPAYMENT"
)

// Valid reports whether the kind is one of the known entry kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindDeposit, EntryKindWithdrawal, EntryKindRepayment:
		return true
	}
	return false
}

// EntryStatus defines ledger entry processing states. An entry may only
// move PENDING -> COMPLETED or PENDING -> FAILED, never back.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
)

// FailureReason defines per-account failure categories surfaced in bulk
// run results and on FAILED ledger entries.
type FailureReason string

const (
	FailureReasonNonPositiveAmount       FailureReason = "NON_POSITIVE_AMOUNT"
	FailureReasonExceedsRemainingBalance FailureReason = "EXCEEDS_REMAINING_BALANCE"
	FailureReasonInsufficientFunds       FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonAccountNotFound         FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonAccountInactive         FailureReason = "ACCOUNT_INACTIVE"
	FailureReasonNoDefaultAmount         FailureReason = "NO_DEFAULT_AMOUNT"
	FailureReasonCancelled               FailureReason = "CANCELLED"
	FailureReasonUnknownError            FailureReason = "UNKNOWN_ERROR"
)

// OutboxStatus defines outbox message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
