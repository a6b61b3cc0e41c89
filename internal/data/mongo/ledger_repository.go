// Package mongo provides the MongoDB implementation of the ledger entry
// repository. The collection is the queryable projection of the append-only
// ledger; entries arrive through the outbox poller after their balance
// mutation has committed in PostgreSQL.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

const (
	// LedgerCollectionName is the name of the ledger collection in MongoDB
	LedgerCollectionName = "ledger_entries"
)

// entryDocument is the BSON shape of a ledger entry. Decimal amounts are
// stored as strings to keep exact precision, and UUIDs as their canonical
// string form.
type entryDocument struct {
	EntryID            string     `bson:"entry_id"`
	AccountID          string     `bson:"account_id"`
	SequenceNumber     int64      `bson:"sequence_number"`
	Kind               string     `bson:"kind"`
	Amount             string     `bson:"amount"`
	PrincipalComponent string     `bson:"principal_component"`
	InterestComponent  string     `bson:"interest_component"`
	BalanceAfter       string     `bson:"balance_after"`
	OccurredAt         time.Time  `bson:"occurred_at"`
	Notes              string     `bson:"notes,omitempty"`
	Status             string     `bson:"status"`
	FailureReason      string     `bson:"failure_reason,omitempty"`
	RunID              *string    `bson:"run_id,omitempty"`
	CorrelationID      string     `bson:"correlation_id,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
	ProcessedAt        *time.Time `bson:"processed_at,omitempty"`
}

func toDocument(entry *ledger.Entry) *entryDocument {
	doc := &entryDocument{
		EntryID:            entry.EntryID.String(),
		AccountID:          entry.AccountID.String(),
		SequenceNumber:     entry.SequenceNumber,
		Kind:               string(entry.Kind),
		Amount:             entry.Amount.String(),
		PrincipalComponent: entry.PrincipalComponent.String(),
		InterestComponent:  entry.InterestComponent.String(),
		BalanceAfter:       entry.BalanceAfter.String(),
		OccurredAt:         entry.OccurredAt,
		Notes:              entry.Notes,
		Status:             string(entry.Status),
		FailureReason:      entry.FailureReason,
		CorrelationID:      entry.CorrelationID,
		CreatedAt:          entry.CreatedAt,
		ProcessedAt:        entry.ProcessedAt,
	}
	if entry.RunID != nil {
		runID := entry.RunID.String()
		doc.RunID = &runID
	}
	return doc
}

func (d *entryDocument) toEntry() (*ledger.Entry, error) {
	entryID, err := uuid.Parse(d.EntryID)
	if err != nil {
		return nil, fmt.Errorf("invalid entry ID %q: %w", d.EntryID, err)
	}
	accountID, err := uuid.Parse(d.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account ID %q: %w", d.AccountID, err)
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", d.Amount, err)
	}
	principal, err := decimal.NewFromString(d.PrincipalComponent)
	if err != nil {
		return nil, fmt.Errorf("invalid principal component %q: %w", d.PrincipalComponent, err)
	}
	interest, err := decimal.NewFromString(d.InterestComponent)
	if err != nil {
		return nil, fmt.Errorf("invalid interest component %q: %w", d.InterestComponent, err)
	}
	balanceAfter, err := decimal.NewFromString(d.BalanceAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", d.BalanceAfter, err)
	}

	entry := &ledger.Entry{
		EntryID:            entryID,
		AccountID:          accountID,
		SequenceNumber:     d.SequenceNumber,
		Kind:               shared.EntryKind(d.Kind),
		Amount:             amount,
		PrincipalComponent: principal,
		InterestComponent:  interest,
		BalanceAfter:       balanceAfter,
		OccurredAt:         d.OccurredAt,
		Notes:              d.Notes,
		Status:             shared.EntryStatus(d.Status),
		FailureReason:      d.FailureReason,
		CorrelationID:      d.CorrelationID,
		CreatedAt:          d.CreatedAt,
		ProcessedAt:        d.ProcessedAt,
	}
	if d.RunID != nil {
		runID, err := uuid.Parse(*d.RunID)
		if err != nil {
			return nil, fmt.Errorf("invalid run ID %q: %w", *d.RunID, err)
		}
		entry.RunID = &runID
	}
	return entry, nil
}

// LedgerRepository implements the ledger.Repository interface for MongoDB
type LedgerRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewLedgerRepository creates a new MongoDB ledger repository
func NewLedgerRepository(logger *slog.Logger, db *mongo.Database) ledger.Repository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new ledger entry after checking for duplicates.
// Returns ErrDuplicateEntry if an entry with the same entry ID exists.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	collection := r.db.Collection(LedgerCollectionName)

	// Check if entry already exists
	existingEntry, err := r.GetByEntryID(ctx, entry.EntryID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		r.logger.Error("Failed to check for existing ledger entry",
			"entry_id", entry.EntryID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing ledger entry: %w", err)
	}

	if existingEntry != nil {
		return ledger.ErrDuplicateEntry{EntryID: entry.EntryID}
	}

	_, err = collection.InsertOne(ctx, toDocument(entry))
	if err != nil {
		r.logger.Error("Failed to create ledger entry",
			"entry_id", entry.EntryID.String(),
			"error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByEntryID retrieves a ledger entry by its entry ID.
// Returns ErrEntryNotFound if no entry exists.
func (r *LedgerRepository) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"entry_id": entryID.String()}
	var doc entryDocument
	err := collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{EntryID: entryID}
		}
		r.logger.Error("Failed to get ledger entry",
			"entry_id", entryID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return doc.toEntry()
}

// GetBySequence retrieves the entry holding the given per-account sequence
// number. Failed entries never carry a sequence number so only posted
// history is addressable this way.
func (r *LedgerRepository) GetBySequence(ctx context.Context, accountID uuid.UUID, sequenceNumber int64) (*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{
		"account_id":      accountID.String(),
		"sequence_number": sequenceNumber,
		"status":          string(shared.EntryStatusCompleted),
	}
	var doc entryDocument
	err := collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{}
		}
		r.logger.Error("Failed to get ledger entry by sequence",
			"account_id", accountID.String(),
			"sequence_number", sequenceNumber,
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entry by sequence: %w", err)
	}

	return doc.toEntry()
}

// ListByAccountID retrieves paginated ledger entries for an account.
// Results are sorted by creation time in descending order (newest first).
func (r *LedgerRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"account_id": accountID.String()}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}). // Sort by created_at in descending order
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	return r.find(ctx, collection, filter, opts)
}

// ListByAccountIDUpTo retrieves the completed entries with sequence numbers
// 1..maxSequence in ascending sequence order. This is the replay input for
// balance reconstruction.
func (r *LedgerRepository) ListByAccountIDUpTo(ctx context.Context, accountID uuid.UUID, maxSequence int64) ([]*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{
		"account_id": accountID.String(),
		"status":     string(shared.EntryStatusCompleted),
		"sequence_number": bson.M{
			"$gte": int64(1),
			"$lte": maxSequence,
		},
	}
	opts := options.Find().SetSort(bson.M{"sequence_number": 1})

	return r.find(ctx, collection, filter, opts)
}

func (r *LedgerRepository) find(ctx context.Context, collection *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]*ledger.Entry, error) {
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []entryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode ledger entries", "error", err)
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	entries := make([]*ledger.Entry, 0, len(docs))
	for i := range docs {
		entry, err := docs[i].toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// CountByAccountID counts the total number of ledger entries for an account
func (r *LedgerRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"account_id": accountID.String()}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

// CountByRunID counts the entries produced by a group run. A non-zero count
// means the run already executed, so a redelivered run message is a no-op.
func (r *LedgerRepository) CountByRunID(ctx context.Context, runID uuid.UUID) (int64, error) {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"run_id": runID.String()}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count ledger entries by run",
			"run_id", runID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count ledger entries by run: %w", err)
	}

	return count, nil
}

// UpdateStatus updates the entry's status, failure reason, and processed timestamp.
// Returns ErrEntryNotFound if the entry doesn't exist.
func (r *LedgerRepository) UpdateStatus(ctx context.Context, entryID uuid.UUID, status shared.EntryStatus, reason string) error {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{"entry_id": entryID.String()}
	update := bson.M{
		"$set": bson.M{
			"status":         string(status),
			"failure_reason": reason,
			"processed_at":   time.Now(),
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update ledger entry status",
			"entry_id", entryID.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}

	if result.MatchedCount == 0 {
		return ledger.ErrEntryNotFound{EntryID: entryID}
	}

	return nil
}
