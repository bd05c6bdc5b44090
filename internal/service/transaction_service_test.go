package service

import (
	"context"
	"testing"

	"aurumvault/internal/model"
	"aurumvault/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAccountDefaults(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())

	account, err := svc.OpenAccount(context.Background(), 1, "")
	require.NoError(t, err)

	assert.NotEmpty(t, account.AccountNo)
	assert.Equal(t, "CNY", account.Currency)
	assert.Equal(t, model.AccountStatusActive, account.Status)
	assert.True(t, account.Balance.IsZero())
	assert.True(t, account.DailyLimit.Equal(decimal.NewFromInt(50000)))
}

func TestDepositThenWithdraw(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	ctx := context.Background()
	account := seedAccount(t, db, 1, "0")

	dep, err := svc.Deposit(ctx, 1, account.AccountNo, decimal.NewFromInt(1000), "工资")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionTypeDeposit, dep.Type)
	assert.Equal(t, model.TransactionStatusCompleted, dep.Status)
	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.NewFromInt(1000)))

	wd, err := svc.Withdraw(ctx, 1, account.AccountNo, decimal.NewFromInt(100), "")
	require.NoError(t, err)

	// 出账流水金额为负，且带有交易前后余额快照
	assert.Equal(t, model.TransactionTypeWithdrawal, wd.Type)
	assert.Equal(t, model.TransactionStatusCompleted, wd.Status)
	assert.True(t, wd.Amount.Equal(decimal.NewFromInt(-100)))
	assert.True(t, wd.BalanceBefore.Equal(decimal.NewFromInt(1000)))
	assert.True(t, wd.BalanceAfter.Equal(decimal.NewFromInt(900)))
	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.NewFromInt(900)))
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	account := seedAccount(t, db, 1, "0")

	_, err := svc.Deposit(context.Background(), 1, account.AccountNo, decimal.Zero, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Deposit(context.Background(), 1, account.AccountNo, decimal.NewFromInt(-5), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	account := seedAccount(t, db, 1, "50")

	_, err := svc.Withdraw(context.Background(), 1, account.AccountNo, decimal.NewFromInt(100), "")
	assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)

	// 失败的取款不留任何流水
	assert.EqualValues(t, 0, countRows(t, db, &model.Transaction{}, "account_id = ?", account.ID))
	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.NewFromInt(50)))
}

func TestWithdrawInactiveAccount(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	account := seedAccount(t, db, 1, "1000")
	require.NoError(t, db.Model(&model.Account{}).Where("id = ?", account.ID).
		Update("status", model.AccountStatusSuspended).Error)

	_, err := svc.Withdraw(context.Background(), 1, account.AccountNo, decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, repository.ErrAccountInactive)
}

func TestWithdrawOwnershipHidden(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	account := seedAccount(t, db, 1, "1000")

	// 他人账户表现为"不存在"
	_, err := svc.Withdraw(context.Background(), 2, account.AccountNo, decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestWithdrawDailyLimit(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	ctx := context.Background()
	account := seedAccount(t, db, 1, "10000")
	require.NoError(t, db.Model(&model.Account{}).Where("id = ?", account.ID).
		Update("daily_limit", decimal.NewFromInt(500)).Error)

	_, err := svc.Withdraw(ctx, 1, account.AccountNo, decimal.NewFromInt(300), "")
	require.NoError(t, err)

	// 300 + 250 > 500：拒绝，余额不动
	_, err = svc.Withdraw(ctx, 1, account.AccountNo, decimal.NewFromInt(250), "")
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.NewFromInt(9700)))

	// 300 + 200 == 500：等于限额放行
	_, err = svc.Withdraw(ctx, 1, account.AccountNo, decimal.NewFromInt(200), "")
	require.NoError(t, err)
}

func TestTransferConservation(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	ctx := context.Background()
	from := seedAccount(t, db, 1, "1000")
	to := seedAccount(t, db, 2, "0")

	_, err := svc.Transfer(ctx, 1, from.AccountNo, to.AccountNo, decimal.NewFromInt(400), "借款")
	require.NoError(t, err)

	assert.True(t, reloadAccount(t, db, from.ID).Balance.Equal(decimal.NewFromInt(600)))
	assert.True(t, reloadAccount(t, db, to.ID).Balance.Equal(decimal.NewFromInt(400)))

	// 恰好两条流水，金额互为相反数
	var legs []*model.Transaction
	require.NoError(t, db.Where("type = ?", model.TransactionTypeTransfer).Find(&legs).Error)
	require.Len(t, legs, 2)
	assert.True(t, legs[0].Amount.Add(legs[1].Amount).IsZero())

	for _, leg := range legs {
		meta := model.DecodeMetadata(leg.Metadata)
		if leg.Amount.IsNegative() {
			assert.Equal(t, to.AccountNo, meta.TransferPeer)
		} else {
			assert.Equal(t, from.AccountNo, meta.TransferPeer)
		}
	}
}

func TestTransferSameAccount(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	account := seedAccount(t, db, 1, "1000")

	_, err := svc.Transfer(context.Background(), 1, account.AccountNo, account.AccountNo, decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, ErrSameAccount)
}

func TestTransferInsufficientLeavesNoTrace(t *testing.T) {
	db := newVaultTestDB(t)
	svc := NewTransactionService(db, testConfig())
	from := seedAccount(t, db, 1, "100")
	to := seedAccount(t, db, 2, "0")

	_, err := svc.Transfer(context.Background(), 1, from.AccountNo, to.AccountNo, decimal.NewFromInt(400), "")
	assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)

	assert.EqualValues(t, 0, countRows(t, db, &model.Transaction{}, "1 = 1"))
	assert.True(t, reloadAccount(t, db, from.ID).Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, reloadAccount(t, db, to.ID).Balance.IsZero())
}
