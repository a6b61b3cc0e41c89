package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

// Repository manages ledger entry persistence. Entries append; they are
// never updated except for the PENDING -> terminal status transition.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByEntryID(ctx context.Context, entryID uuid.UUID) (*Entry, error)

	// GetBySequence retrieves the entry holding the given per-account
	// sequence number
	GetBySequence(ctx context.Context, accountID uuid.UUID, sequenceNumber int64) (*Entry, error)

	// ListByAccountID retrieves paginated entries for an account, newest
	// first
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)

	// ListByAccountIDUpTo retrieves completed entries with sequence numbers
	// 1..maxSequence in ascending sequence order, for balance replay
	ListByAccountIDUpTo(ctx context.Context, accountID uuid.UUID, maxSequence int64) ([]*Entry, error)

	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)

	// CountByRunID counts entries produced by a group run, used for run
	// idempotency checks
	CountByRunID(ctx context.Context, runID uuid.UUID) (int64, error)

	UpdateStatus(ctx context.Context, entryID uuid.UUID, status shared.EntryStatus, reason string) error
}

// ErrEntryNotFound indicates a missing ledger entry
type ErrEntryNotFound struct {
	EntryID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.EntryID.String()
}

// Is matches any ErrEntryNotFound when the target carries a nil ID
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	return t.EntryID == uuid.Nil || e.EntryID == t.EntryID
}

// ErrDuplicateEntry indicates entry uniqueness violation
type ErrDuplicateEntry struct {
	EntryID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.EntryID.String()
}

// Is matches any ErrDuplicateEntry when the target carries a nil ID
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	return t.EntryID == uuid.Nil || e.EntryID == t.EntryID
}
