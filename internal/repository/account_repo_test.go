package repository

import (
	"context"
	"testing"

	"aurumvault/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.Account{}))
	return db
}

func seedRepoAccount(t *testing.T, db *gorm.DB, balance string) *model.Account {
	t.Helper()
	account := &model.Account{
		AccountNo:    "ACC-TEST-1",
		UserID:       1,
		Currency:     "CNY",
		Balance:      decimal.RequireFromString(balance),
		Status:       model.AccountStatusActive,
		DailyLimit:   decimal.NewFromInt(50000),
		MonthlyLimit: decimal.NewFromInt(500000),
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestDebitHappyPath(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewAccountRepository(db)
	account := seedRepoAccount(t, db, "1000")

	require.NoError(t, repo.Debit(context.Background(), nil, account.ID, decimal.NewFromInt(300), account.Version))

	reloaded, err := repo.GetByAccountNo(context.Background(), account.AccountNo)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.NewFromInt(700)))
	assert.Equal(t, account.Version+1, reloaded.Version)
}

func TestDebitDiagnosesInsufficientBalance(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewAccountRepository(db)
	account := seedRepoAccount(t, db, "100")

	err := repo.Debit(context.Background(), nil, account.ID, decimal.NewFromInt(300), account.Version)
	assert.ErrorIs(t, err, ErrBalanceNotEnough)
}

func TestDebitDiagnosesStaleVersion(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewAccountRepository(db)
	account := seedRepoAccount(t, db, "1000")

	// 余额充足但版本号过期：是乐观锁冲突而不是余额不足
	err := repo.Debit(context.Background(), nil, account.ID, decimal.NewFromInt(300), account.Version+7)
	assert.ErrorIs(t, err, ErrOptimisticLock)
}

func TestDebitMissingAccount(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewAccountRepository(db)

	err := repo.Debit(context.Background(), nil, 999, decimal.NewFromInt(1), 0)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCreditBumpsVersion(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewAccountRepository(db)
	account := seedRepoAccount(t, db, "0")

	require.NoError(t, repo.Credit(context.Background(), nil, account.ID, decimal.NewFromInt(250)))

	reloaded, err := repo.GetByAccountNo(context.Background(), account.AccountNo)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, account.Version+1, reloaded.Version)

	assert.ErrorIs(t, repo.Credit(context.Background(), nil, 999, decimal.NewFromInt(1)), ErrAccountNotFound)
}

func TestGetOwnedHidesForeignAccounts(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewAccountRepository(db)
	account := seedRepoAccount(t, db, "0")

	owned, err := repo.GetOwned(context.Background(), account.AccountNo, 1)
	require.NoError(t, err)
	assert.Equal(t, account.ID, owned.ID)

	_, err = repo.GetOwned(context.Background(), account.AccountNo, 2)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
