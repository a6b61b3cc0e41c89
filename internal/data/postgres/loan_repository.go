// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the welfare ledger system.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/platform/persistence"
)

// LoanRepository implements the account.LoanRepository interface for PostgreSQL
type LoanRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewLoanRepository creates a new PostgreSQL loan account repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewLoanRepository(logger *slog.Logger, db *persistence.PostgresDB) account.LoanRepository {
	return &LoanRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls. The returned repository will use the provided
// transaction for all database operations.
func (r *LoanRepository) WithTx(tx pgx.Tx) account.LoanRepository {
	return &LoanRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const loanColumns = `id, member_id, principal, annual_rate_percent, term_months,
		monthly_payment, status, remaining_balance, date_issued, due_date,
		last_sequence, version, created_at, updated_at`

// Create stores a new loan account in the database
func (r *LoanRepository) Create(ctx context.Context, loan *account.LoanAccount) error {
	query := `
		INSERT INTO loan_accounts (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		loan.ID,
		loan.MemberID,
		loan.Principal,
		loan.AnnualRatePercent,
		loan.TermMonths,
		loan.MonthlyPayment,
		loan.Status,
		loan.RemainingBalance,
		loan.DateIssued,
		loan.DueDate,
		loan.LastSequence,
		loan.Version,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create loan account", "error", err)
		return fmt.Errorf("failed to create loan account: %w", err)
	}

	return nil
}

func (r *LoanRepository) scanLoan(row pgx.Row) (*account.LoanAccount, error) {
	var loan account.LoanAccount
	err := row.Scan(
		&loan.ID,
		&loan.MemberID,
		&loan.Principal,
		&loan.AnnualRatePercent,
		&loan.TermMonths,
		&loan.MonthlyPayment,
		&loan.Status,
		&loan.RemainingBalance,
		&loan.DateIssued,
		&loan.DueDate,
		&loan.LastSequence,
		&loan.Version,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetByID retrieves a loan account by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.LoanAccount, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loan_accounts
		WHERE id = $1
	`

	loan, err := r.scanLoan(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrLoanNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get loan account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get loan account: %w", err)
	}

	return loan, nil
}

// ListByMemberID retrieves all loan accounts belonging to a member, newest first
func (r *LoanRepository) ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*account.LoanAccount, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loan_accounts
		WHERE member_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.querier.Query(ctx, query, memberID)
	if err != nil {
		r.logger.Error("Failed to list loan accounts by member", "memberID", memberID.String(), "error", err)
		return nil, fmt.Errorf("failed to list loan accounts: %w", err)
	}
	defer rows.Close()

	return r.collectLoans(rows)
}

// ListActive enumerates ACTIVE loan accounts, the population eligible for
// scheduled deduction runs
func (r *LoanRepository) ListActive(ctx context.Context) ([]*account.LoanAccount, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loan_accounts
		WHERE status = $1
		ORDER BY created_at
	`

	rows, err := r.querier.Query(ctx, query, account.LoanStatusActive)
	if err != nil {
		r.logger.Error("Failed to list active loan accounts", "error", err)
		return nil, fmt.Errorf("failed to list active loan accounts: %w", err)
	}
	defer rows.Close()

	return r.collectLoans(rows)
}

func (r *LoanRepository) collectLoans(rows pgx.Rows) ([]*account.LoanAccount, error) {
	var loans []*account.LoanAccount
	for rows.Next() {
		loan, err := r.scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan account: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read loan accounts: %w", err)
	}
	return loans, nil
}

// Update updates an existing loan account using optimistic locking.
// Returns ErrConcurrentModification if the account was modified between
// read and update.
func (r *LoanRepository) Update(ctx context.Context, loan *account.LoanAccount) error {
	query := `
		UPDATE loan_accounts
		SET monthly_payment = $1, status = $2, remaining_balance = $3,
			date_issued = $4, due_date = $5, last_sequence = $6,
			version = $7, updated_at = $8
		WHERE id = $9 AND version = $10
	`

	result, err := r.querier.Exec(ctx, query,
		loan.MonthlyPayment,
		loan.Status,
		loan.RemainingBalance,
		loan.DateIssued,
		loan.DueDate,
		loan.LastSequence,
		loan.Version,
		loan.UpdatedAt,
		loan.ID,
		loan.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update loan account", "id", loan.ID.String(), "error", err)
		return fmt.Errorf("failed to update loan account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: loan.ID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the loan account and returns its
// current state. This must be used within a transaction; it serializes all
// allocations against the account for the transaction's duration.
func (r *LoanRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.LoanAccount, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loan_accounts
		WHERE id = $1
		FOR UPDATE
	`

	loan, err := r.scanLoan(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrLoanNotFound{AccountID: id}
		}
		r.logger.Error("Failed to lock loan account for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock loan account for update: %w", err)
	}

	return loan, nil
}
