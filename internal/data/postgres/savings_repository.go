package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/platform/persistence"
)

// SavingsRepository implements the account.SavingsRepository interface for PostgreSQL
type SavingsRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewSavingsRepository creates a new PostgreSQL savings account repository
func NewSavingsRepository(logger *slog.Logger, db *persistence.PostgresDB) account.SavingsRepository {
	return &SavingsRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so that balance mutation,
// sequence advance and outbox insert commit or roll back together
func (r *SavingsRepository) WithTx(tx pgx.Tx) account.SavingsRepository {
	return &SavingsRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const savingsColumns = `id, member_id, balance, monthly_amount, status,
		last_sequence, version, created_at, updated_at`

// Create stores a new savings account. A member may hold at most one savings
// account, enforced by a unique constraint on member_id.
func (r *SavingsRepository) Create(ctx context.Context, savings *account.SavingsAccount) error {
	query := `
		INSERT INTO savings_accounts (` + savingsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		savings.ID,
		savings.MemberID,
		savings.Balance,
		savings.MonthlyAmount,
		savings.Status,
		savings.LastSequence,
		savings.Version,
		savings.CreatedAt,
		savings.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return account.ErrDuplicateSavings{MemberID: savings.MemberID}
		}
		r.logger.Error("Failed to create savings account", "error", err)
		return fmt.Errorf("failed to create savings account: %w", err)
	}

	return nil
}

func (r *SavingsRepository) scanSavings(row pgx.Row) (*account.SavingsAccount, error) {
	var savings account.SavingsAccount
	err := row.Scan(
		&savings.ID,
		&savings.MemberID,
		&savings.Balance,
		&savings.MonthlyAmount,
		&savings.Status,
		&savings.LastSequence,
		&savings.Version,
		&savings.CreatedAt,
		&savings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &savings, nil
}

// GetByID retrieves a savings account by its ID
func (r *SavingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error) {
	query := `
		SELECT ` + savingsColumns + `
		FROM savings_accounts
		WHERE id = $1
	`

	savings, err := r.scanSavings(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrSavingsNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get savings account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get savings account: %w", err)
	}

	return savings, nil
}

// GetByMemberID retrieves the savings account belonging to a member
func (r *SavingsRepository) GetByMemberID(ctx context.Context, memberID uuid.UUID) (*account.SavingsAccount, error) {
	query := `
		SELECT ` + savingsColumns + `
		FROM savings_accounts
		WHERE member_id = $1
	`

	savings, err := r.scanSavings(r.querier.QueryRow(ctx, query, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrSavingsNotFound{}
		}
		r.logger.Error("Failed to get savings account by member", "memberID", memberID.String(), "error", err)
		return nil, fmt.Errorf("failed to get savings account by member: %w", err)
	}

	return savings, nil
}

// ListActive enumerates ACTIVE savings accounts, the population eligible for
// scheduled contribution runs
func (r *SavingsRepository) ListActive(ctx context.Context) ([]*account.SavingsAccount, error) {
	query := `
		SELECT ` + savingsColumns + `
		FROM savings_accounts
		WHERE status = $1
		ORDER BY created_at
	`

	rows, err := r.querier.Query(ctx, query, account.SavingsStatusActive)
	if err != nil {
		r.logger.Error("Failed to list active savings accounts", "error", err)
		return nil, fmt.Errorf("failed to list active savings accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.SavingsAccount
	for rows.Next() {
		savings, err := r.scanSavings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan savings account: %w", err)
		}
		accounts = append(accounts, savings)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read savings accounts: %w", err)
	}

	return accounts, nil
}

// Update updates an existing savings account using optimistic locking.
// Returns ErrConcurrentModification if the account was modified between
// read and update.
func (r *SavingsRepository) Update(ctx context.Context, savings *account.SavingsAccount) error {
	query := `
		UPDATE savings_accounts
		SET balance = $1, monthly_amount = $2, status = $3,
			last_sequence = $4, version = $5, updated_at = $6
		WHERE id = $7 AND version = $8
	`

	result, err := r.querier.Exec(ctx, query,
		savings.Balance,
		savings.MonthlyAmount,
		savings.Status,
		savings.LastSequence,
		savings.Version,
		savings.UpdatedAt,
		savings.ID,
		savings.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update savings account", "id", savings.ID.String(), "error", err)
		return fmt.Errorf("failed to update savings account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: savings.ID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the savings account and returns
// its current state. This must be used within a transaction.
func (r *SavingsRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error) {
	query := `
		SELECT ` + savingsColumns + `
		FROM savings_accounts
		WHERE id = $1
		FOR UPDATE
	`

	savings, err := r.scanSavings(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrSavingsNotFound{AccountID: id}
		}
		r.logger.Error("Failed to lock savings account for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock savings account for update: %w", err)
	}

	return savings, nil
}
