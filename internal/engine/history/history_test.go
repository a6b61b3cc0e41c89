package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *account.LoanAccount) error {
	return m.Called(ctx, loan).Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.LoanAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.LoanAccount), args.Error(1)
}

func (m *MockLoanRepository) ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]*account.LoanAccount, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.LoanAccount), args.Error(1)
}

func (m *MockLoanRepository) ListActive(ctx context.Context) ([]*account.LoanAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.LoanAccount), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *account.LoanAccount) error {
	return m.Called(ctx, loan).Error(0)
}

func (m *MockLoanRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.LoanAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.LoanAccount), args.Error(1)
}

func (m *MockLoanRepository) WithTx(tx pgx.Tx) account.LoanRepository {
	m.Called(tx)
	return m
}

type MockSavingsRepository struct {
	mock.Mock
}

func (m *MockSavingsRepository) Create(ctx context.Context, savings *account.SavingsAccount) error {
	return m.Called(ctx, savings).Error(0)
}

func (m *MockSavingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.SavingsAccount), args.Error(1)
}

func (m *MockSavingsRepository) GetByMemberID(ctx context.Context, memberID uuid.UUID) (*account.SavingsAccount, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.SavingsAccount), args.Error(1)
}

func (m *MockSavingsRepository) ListActive(ctx context.Context) ([]*account.SavingsAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.SavingsAccount), args.Error(1)
}

func (m *MockSavingsRepository) Update(ctx context.Context, savings *account.SavingsAccount) error {
	return m.Called(ctx, savings).Error(0)
}

func (m *MockSavingsRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.SavingsAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.SavingsAccount), args.Error(1)
}

func (m *MockSavingsRepository) WithTx(tx pgx.Tx) account.SavingsRepository {
	m.Called(tx)
	return m
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockLedgerRepository) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetBySequence(ctx context.Context, accountID uuid.UUID, sequenceNumber int64) (*ledger.Entry, error) {
	args := m.Called(ctx, accountID, sequenceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) ListByAccountIDUpTo(ctx context.Context, accountID uuid.UUID, maxSequence int64) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, maxSequence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) CountByRunID(ctx context.Context, runID uuid.UUID) (int64, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) UpdateStatus(ctx context.Context, entryID uuid.UUID, status shared.EntryStatus, reason string) error {
	return m.Called(ctx, entryID, status, reason).Error(0)
}

type MockExportCache struct {
	mock.Mock
}

func (m *MockExportCache) GetExport(ctx context.Context, exportID uuid.UUID) ([]byte, bool) {
	args := m.Called(ctx, exportID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]byte), args.Bool(1)
}

func (m *MockExportCache) SetExport(ctx context.Context, exportID uuid.UUID, snapshot []byte) error {
	return m.Called(ctx, exportID, snapshot).Error(0)
}

func newTestService(loans *MockLoanRepository, savings *MockSavingsRepository, entries *MockLedgerRepository, cache ExportCache) *Service {
	return NewService(newTestLogger(), loans, savings, entries, cache)
}

func repaymentEntry(accountID uuid.UUID, seq int64, amount, principal, interest, balanceAfter string) *ledger.Entry {
	return &ledger.Entry{
		EntryID:            uuid.New(),
		AccountID:          accountID,
		SequenceNumber:     seq,
		Kind:               shared.EntryKindRepayment,
		Amount:             decimal.RequireFromString(amount),
		PrincipalComponent: decimal.RequireFromString(principal),
		InterestComponent:  decimal.RequireFromString(interest),
		BalanceAfter:       decimal.RequireFromString(balanceAfter),
		Status:             shared.EntryStatusCompleted,
		OccurredAt:         time.Now(),
		CreatedAt:          time.Now(),
	}
}

func savingsEntry(accountID uuid.UUID, seq int64, kind shared.EntryKind, amount, balanceAfter string) *ledger.Entry {
	return &ledger.Entry{
		EntryID:            uuid.New(),
		AccountID:          accountID,
		SequenceNumber:     seq,
		Kind:               kind,
		Amount:             decimal.RequireFromString(amount),
		PrincipalComponent: decimal.Zero,
		InterestComponent:  decimal.Zero,
		BalanceAfter:       decimal.RequireFromString(balanceAfter),
		Status:             shared.EntryStatusCompleted,
		OccurredAt:         time.Now(),
		CreatedAt:          time.Now(),
	}
}

func TestService_ReconstructBalanceAt_Loan(t *testing.T) {
	loans := new(MockLoanRepository)
	savings := new(MockSavingsRepository)
	entries := new(MockLedgerRepository)
	service := newTestService(loans, savings, entries, nil)

	loan := &account.LoanAccount{
		ID:               uuid.New(),
		Principal:        decimal.NewFromInt(10000),
		RemainingBalance: decimal.RequireFromString("9300.00"),
		Status:           account.LoanStatusActive,
		LastSequence:     2,
	}
	loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
	entries.On("ListByAccountIDUpTo", mock.Anything, loan.ID, int64(2)).Return([]*ledger.Entry{
		repaymentEntry(loan.ID, 1, "400.00", "300.00", "100.00", "9700.00"),
		repaymentEntry(loan.ID, 2, "497.00", "400.00", "97.00", "9300.00"),
	}, nil)

	balance, err := service.ReconstructBalanceAt(context.Background(), loan.ID, 2)

	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("9300.00")),
		"expected 9300.00, got %s", balance)
	savings.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_ReconstructBalanceAt_Savings(t *testing.T) {
	loans := new(MockLoanRepository)
	savings := new(MockSavingsRepository)
	entries := new(MockLedgerRepository)
	service := newTestService(loans, savings, entries, nil)

	acct := &account.SavingsAccount{
		ID:           uuid.New(),
		Balance:      decimal.RequireFromString("120.00"),
		Status:       account.SavingsStatusActive,
		LastSequence: 3,
	}
	loans.On("GetByID", mock.Anything, acct.ID).Return(nil, account.ErrLoanNotFound{AccountID: acct.ID})
	savings.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	entries.On("ListByAccountIDUpTo", mock.Anything, acct.ID, int64(3)).Return([]*ledger.Entry{
		savingsEntry(acct.ID, 1, shared.EntryKindDeposit, "100.00", "100.00"),
		savingsEntry(acct.ID, 2, shared.EntryKindDeposit, "50.00", "150.00"),
		savingsEntry(acct.ID, 3, shared.EntryKindWithdrawal, "30.00", "120.00"),
	}, nil)

	balance, err := service.ReconstructBalanceAt(context.Background(), acct.ID, 3)

	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("120.00")),
		"expected 120.00, got %s", balance)
}

func TestService_ReconstructBalanceAt_SequenceGap(t *testing.T) {
	loans := new(MockLoanRepository)
	savings := new(MockSavingsRepository)
	entries := new(MockLedgerRepository)
	service := newTestService(loans, savings, entries, nil)

	acct := &account.SavingsAccount{ID: uuid.New(), LastSequence: 3}
	loans.On("GetByID", mock.Anything, acct.ID).Return(nil, account.ErrLoanNotFound{AccountID: acct.ID})
	savings.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	entries.On("ListByAccountIDUpTo", mock.Anything, acct.ID, int64(3)).Return([]*ledger.Entry{
		savingsEntry(acct.ID, 1, shared.EntryKindDeposit, "100.00", "100.00"),
		savingsEntry(acct.ID, 3, shared.EntryKindWithdrawal, "30.00", "70.00"),
	}, nil)

	_, err := service.ReconstructBalanceAt(context.Background(), acct.ID, 3)

	require.Error(t, err)
	var gap ErrSequenceGap
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, int64(2), gap.Expected)
	assert.Equal(t, int64(3), gap.Found)
}

func TestService_ReconstructBalanceAt_UnknownAccount(t *testing.T) {
	loans := new(MockLoanRepository)
	savings := new(MockSavingsRepository)
	entries := new(MockLedgerRepository)
	service := newTestService(loans, savings, entries, nil)

	id := uuid.New()
	loans.On("GetByID", mock.Anything, id).Return(nil, account.ErrLoanNotFound{AccountID: id})
	savings.On("GetByID", mock.Anything, id).Return(nil, account.ErrSavingsNotFound{AccountID: id})

	_, err := service.ReconstructBalanceAt(context.Background(), id, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrSavingsNotFound{})
	entries.AssertNotCalled(t, "ListByAccountIDUpTo", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Reconcile(t *testing.T) {
	t.Run("ConsistentHistory", func(t *testing.T) {
		loans := new(MockLoanRepository)
		savings := new(MockSavingsRepository)
		entries := new(MockLedgerRepository)
		service := newTestService(loans, savings, entries, nil)

		loan := &account.LoanAccount{
			ID:           uuid.New(),
			Principal:    decimal.NewFromInt(10000),
			LastSequence: 2,
		}
		loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
		entries.On("ListByAccountIDUpTo", mock.Anything, loan.ID, int64(2)).Return([]*ledger.Entry{
			repaymentEntry(loan.ID, 1, "400.00", "300.00", "100.00", "9700.00"),
			repaymentEntry(loan.ID, 2, "497.00", "400.00", "97.00", "9300.00"),
		}, nil)

		require.NoError(t, service.Reconcile(context.Background(), loan.ID))
	})

	t.Run("BalanceMismatch", func(t *testing.T) {
		loans := new(MockLoanRepository)
		savings := new(MockSavingsRepository)
		entries := new(MockLedgerRepository)
		service := newTestService(loans, savings, entries, nil)

		loan := &account.LoanAccount{
			ID:           uuid.New(),
			Principal:    decimal.NewFromInt(10000),
			LastSequence: 2,
		}
		loans.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
		entries.On("ListByAccountIDUpTo", mock.Anything, loan.ID, int64(2)).Return([]*ledger.Entry{
			repaymentEntry(loan.ID, 1, "400.00", "300.00", "100.00", "9700.00"),
			repaymentEntry(loan.ID, 2, "497.00", "400.00", "97.00", "9250.00"),
		}, nil)

		err := service.Reconcile(context.Background(), loan.ID)

		require.Error(t, err)
		var mismatch ErrBalanceMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, int64(2), mismatch.SequenceNumber)
		assert.True(t, mismatch.Stored.Equal(decimal.RequireFromString("9250.00")))
		assert.True(t, mismatch.Replayed.Equal(decimal.RequireFromString("9300.00")))
	})
}

func TestService_Export(t *testing.T) {
	loans := new(MockLoanRepository)
	savings := new(MockSavingsRepository)
	entries := new(MockLedgerRepository)
	cache := new(MockExportCache)
	service := newTestService(loans, savings, entries, cache)

	acct := &account.SavingsAccount{
		ID:           uuid.New(),
		Balance:      decimal.RequireFromString("150.00"),
		Status:       account.SavingsStatusActive,
		LastSequence: 2,
	}
	newest := savingsEntry(acct.ID, 2, shared.EntryKindDeposit, "50.00", "150.00")
	oldest := savingsEntry(acct.ID, 1, shared.EntryKindDeposit, "100.00", "100.00")

	loans.On("GetByID", mock.Anything, acct.ID).Return(nil, account.ErrLoanNotFound{AccountID: acct.ID})
	savings.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	entries.On("CountByAccountID", mock.Anything, acct.ID).Return(int64(2), nil)
	entries.On("ListByAccountID", mock.Anything, acct.ID, 2, 0).Return([]*ledger.Entry{newest, oldest}, nil)

	var cached []byte
	cache.On("SetExport", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.Anything).
		Run(func(args mock.Arguments) {
			cached = args.Get(2).([]byte)
		}).
		Return(nil).Once()

	snapshot, err := service.Export(context.Background(), acct.ID)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, snapshot.ExportID)
	assert.Equal(t, acct.ID, snapshot.AccountID)
	require.Len(t, snapshot.Entries, 2)
	assert.Equal(t, int64(1), snapshot.Entries[0].SequenceNumber, "entries should be oldest first")
	assert.Equal(t, int64(2), snapshot.Entries[1].SequenceNumber)

	cache.AssertExpectations(t)
	require.NotEmpty(t, cached)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(cached, &decoded))
	assert.Equal(t, snapshot.ExportID, decoded.ExportID)
}

func TestService_Export_EmptyHistory(t *testing.T) {
	loans := new(MockLoanRepository)
	savings := new(MockSavingsRepository)
	entries := new(MockLedgerRepository)
	service := newTestService(loans, savings, entries, nil)

	acct := &account.SavingsAccount{ID: uuid.New(), Status: account.SavingsStatusActive}
	loans.On("GetByID", mock.Anything, acct.ID).Return(nil, account.ErrLoanNotFound{AccountID: acct.ID})
	savings.On("GetByID", mock.Anything, acct.ID).Return(acct, nil)
	entries.On("CountByAccountID", mock.Anything, acct.ID).Return(int64(0), nil)

	snapshot, err := service.Export(context.Background(), acct.ID)

	require.NoError(t, err)
	assert.Empty(t, snapshot.Entries)
	entries.AssertNotCalled(t, "ListByAccountID", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CachedExport(t *testing.T) {
	cache := new(MockExportCache)
	service := newTestService(new(MockLoanRepository), new(MockSavingsRepository), new(MockLedgerRepository), cache)

	exportID := uuid.New()
	cache.On("GetExport", mock.Anything, exportID).Return([]byte(`{"export_id":"x"}`), true)

	raw, ok := service.CachedExport(context.Background(), exportID)

	require.True(t, ok)
	assert.NotEmpty(t, raw)
}
