package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/welfare-savings-ledger/internal/amort"
	"github.com/welfare-savings-ledger/internal/domain/account"
	"github.com/welfare-savings-ledger/internal/domain/ledger"
	"github.com/welfare-savings-ledger/internal/domain/shared"
	"github.com/welfare-savings-ledger/internal/engine/allocator"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type MockPoster struct {
	mock.Mock
}

func (m *MockPoster) Post(ctx context.Context, req *shared.PostingRequest) (*allocator.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*allocator.Result), args.Error(1)
}

type MockScheduleCache struct {
	mock.Mock
}

func (m *MockScheduleCache) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]amort.Period, bool) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]amort.Period), args.Bool(1)
}

func (m *MockScheduleCache) SetSchedule(ctx context.Context, loanID uuid.UUID, periods []amort.Period) error {
	return m.Called(ctx, loanID, periods).Error(0)
}

func (m *MockScheduleCache) InvalidateSchedule(ctx context.Context, loanID uuid.UUID) error {
	return m.Called(ctx, loanID).Error(0)
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

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockMessagePublisher) Close() error {
	return m.Called().Error(0)
}
