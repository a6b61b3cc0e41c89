package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welfare-savings-ledger/internal/domain/account"
)

var savingsColumnNames = []string{
	"id", "member_id", "balance", "monthly_amount", "status",
	"last_sequence", "version", "created_at", "updated_at",
}

func testSavings() *account.SavingsAccount {
	now := time.Now()
	return &account.SavingsAccount{
		ID:            uuid.New(),
		MemberID:      uuid.New(),
		Balance:       decimal.NewFromInt(750),
		MonthlyAmount: decimal.NewFromInt(50),
		Status:        account.SavingsStatusActive,
		LastSequence:  15,
		Version:       16,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func savingsRows(savings *account.SavingsAccount) *pgxmock.Rows {
	return pgxmock.NewRows(savingsColumnNames).AddRow(
		savings.ID, savings.MemberID, savings.Balance, savings.MonthlyAmount, savings.Status,
		savings.LastSequence, savings.Version, savings.CreatedAt, savings.UpdatedAt,
	)
}

func TestSavingsRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SavingsRepository{querier: mock, logger: logger}
	savings := testSavings()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO savings_accounts`).
			WithArgs(savings.ID, savings.MemberID, savings.Balance, savings.MonthlyAmount, savings.Status,
				savings.LastSequence, savings.Version, savings.CreatedAt, savings.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, savings)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(`INSERT INTO savings_accounts`).
			WithArgs(savings.ID, savings.MemberID, savings.Balance, savings.MonthlyAmount, savings.Status,
				savings.LastSequence, savings.Version, savings.CreatedAt, savings.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, savings)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create savings account")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSavingsRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SavingsRepository{querier: mock, logger: logger}
	expectedSavings := testSavings()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM savings_accounts WHERE id = \$1`).
			WithArgs(expectedSavings.ID).
			WillReturnRows(savingsRows(expectedSavings))

		savings, err := repo.GetByID(ctx, expectedSavings.ID)
		assert.NoError(t, err)
		assert.Equal(t, expectedSavings, savings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM savings_accounts WHERE id = \$1`).
			WithArgs(expectedSavings.ID).
			WillReturnError(pgx.ErrNoRows)

		savings, err := repo.GetByID(ctx, expectedSavings.ID)
		assert.Error(t, err)
		assert.Nil(t, savings)
		var notFoundErr account.ErrSavingsNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, expectedSavings.ID, notFoundErr.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSavingsRepository_GetByMemberID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SavingsRepository{querier: mock, logger: logger}
	expectedSavings := testSavings()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM savings_accounts WHERE member_id = \$1`).
			WithArgs(expectedSavings.MemberID).
			WillReturnRows(savingsRows(expectedSavings))

		savings, err := repo.GetByMemberID(ctx, expectedSavings.MemberID)
		assert.NoError(t, err)
		assert.Equal(t, expectedSavings, savings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM savings_accounts WHERE member_id = \$1`).
			WithArgs(expectedSavings.MemberID).
			WillReturnError(pgx.ErrNoRows)

		savings, err := repo.GetByMemberID(ctx, expectedSavings.MemberID)
		assert.Error(t, err)
		assert.Nil(t, savings)
		assert.ErrorIs(t, err, account.ErrSavingsNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSavingsRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SavingsRepository{querier: mock, logger: logger}
	first := testSavings()
	second := testSavings()

	rows := pgxmock.NewRows(savingsColumnNames).
		AddRow(first.ID, first.MemberID, first.Balance, first.MonthlyAmount, first.Status,
			first.LastSequence, first.Version, first.CreatedAt, first.UpdatedAt).
		AddRow(second.ID, second.MemberID, second.Balance, second.MonthlyAmount, second.Status,
			second.LastSequence, second.Version, second.CreatedAt, second.UpdatedAt)

	mock.ExpectQuery(`SELECT (.+) FROM savings_accounts WHERE status = \$1`).
		WithArgs(account.SavingsStatusActive).
		WillReturnRows(rows)

	accounts, err := repo.ListActive(ctx)
	assert.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, first.ID, accounts[0].ID)
	assert.Equal(t, second.ID, accounts[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavingsRepository_Update(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SavingsRepository{querier: mock, logger: logger}
	savings := testSavings()
	previousVersion := savings.Version - 1

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE savings_accounts`).
			WithArgs(savings.Balance, savings.MonthlyAmount, savings.Status,
				savings.LastSequence, savings.Version, savings.UpdatedAt, savings.ID, previousVersion).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, savings)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent modification", func(t *testing.T) {
		mock.ExpectExec(`UPDATE savings_accounts`).
			WithArgs(savings.Balance, savings.MonthlyAmount, savings.Status,
				savings.LastSequence, savings.Version, savings.UpdatedAt, savings.ID, previousVersion).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, savings)
		assert.Error(t, err)
		var concurrentModErr account.ErrConcurrentModification
		assert.ErrorAs(t, err, &concurrentModErr)
		assert.Equal(t, savings.ID, concurrentModErr.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSavingsRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SavingsRepository{querier: mock, logger: logger}
	expectedSavings := testSavings()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
			WithArgs(expectedSavings.ID).
			WillReturnRows(savingsRows(expectedSavings))

		savings, err := repo.LockForUpdate(ctx, expectedSavings.ID)
		assert.NoError(t, err)
		assert.Equal(t, expectedSavings, savings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE`).
			WithArgs(expectedSavings.ID).
			WillReturnError(pgx.ErrNoRows)

		savings, err := repo.LockForUpdate(ctx, expectedSavings.ID)
		assert.Error(t, err)
		assert.Nil(t, savings)
		var notFoundErr account.ErrSavingsNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
