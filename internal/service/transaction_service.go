package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"aurumvault/internal/config"
	"aurumvault/internal/model"
	"aurumvault/internal/repository"
	"aurumvault/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionService 交易引擎：存款、取款、内部转账
//
// 【关键点】每个逻辑操作的所有读写都在一个数据库事务内完成；
// 转账的两条腿、两条流水要么全部落库要么全部不落库，
// 并发读者永远看不到只有一条腿的中间状态
type TransactionService struct {
	db              *gorm.DB
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewTransactionService(db *gorm.DB, cfg *config.Config) *TransactionService {
	return &TransactionService{
		db:              db,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// OpenAccount 开户，限额取配置默认值
func (s *TransactionService) OpenAccount(ctx context.Context, userID int64, currency string) (*model.Account, error) {
	if currency == "" {
		currency = s.cfg.Business.Currency
	}
	account := &model.Account{
		AccountNo:    idgen.GenerateAccountNo(),
		UserID:       userID,
		Currency:     currency,
		Balance:      decimal.Zero,
		Status:       model.AccountStatusActive,
		DailyLimit:   decimal.NewFromFloat(s.cfg.Business.DefaultDailyLimit),
		MonthlyLimit: decimal.NewFromFloat(s.cfg.Business.DefaultMonthlyLimit),
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("开户失败: %w", err)
	}
	return account, nil
}

// GetAccount 查询本人账户
func (s *TransactionService) GetAccount(ctx context.Context, userID int64, accountNo string) (*model.Account, error) {
	return s.accountRepo.GetOwned(ctx, accountNo, userID)
}

// ListTransactions 分页查询本人账户流水
func (s *TransactionService) ListTransactions(ctx context.Context, userID int64, accountNo string, page, pageSize int) ([]*model.Transaction, int64, error) {
	account, err := s.accountRepo.GetOwned(ctx, accountNo, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.transactionRepo.ListByAccountID(ctx, account.ID, page, pageSize)
}

// Deposit 存款
// 存款不受限额约束，只校验最低金额与账户状态
func (s *TransactionService) Deposit(ctx context.Context, userID int64, accountNo string, amount decimal.Decimal, remark string) (*model.Transaction, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount.Cmp(decimal.NewFromFloat(s.cfg.Business.MinDepositAmount)) < 0 {
		return nil, ErrDepositBelowMinimum
	}

	account, err := s.accountRepo.GetOwned(ctx, accountNo, userID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, repository.ErrAccountInactive
	}

	trans := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		AccountID:     account.ID,
		UserID:        userID,
		Amount:        amount,
		Type:          model.TransactionTypeDeposit,
		Status:        model.TransactionStatusCompleted,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance.Add(amount),
		Remark:        remark,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Credit(ctx, tx, account.ID, amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[TransactionEngine] 存款成功: accountNo=%s, amount=%s", accountNo, amount.String())
	return trans, nil
}

// Withdraw 取款
// 余额不足与超限额是两种不同的业务失败，调用方 UI 要分别提示
func (s *TransactionService) Withdraw(ctx context.Context, userID int64, accountNo string, amount decimal.Decimal, remark string) (*model.Transaction, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}

	var trans *model.Transaction

	// 乐观锁冲突重试一次：冲突说明同账户并发操作刚提交，重读后重试即可
	for attempt := 0; attempt < 2; attempt++ {
		account, err := s.accountRepo.GetOwned(ctx, accountNo, userID)
		if err != nil {
			return nil, err
		}
		if !account.IsActive() {
			return nil, repository.ErrAccountInactive
		}
		if account.Balance.Cmp(amount) < 0 {
			return nil, repository.ErrBalanceNotEnough
		}
		if err := checkDailyLimit(ctx, s.transactionRepo, nil, account, amount); err != nil {
			return nil, err
		}

		trans = &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     account.ID,
			UserID:        userID,
			Amount:        amount.Neg(),
			Type:          model.TransactionTypeWithdrawal,
			Status:        model.TransactionStatusCompleted,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance.Sub(amount),
			Remark:        remark,
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.accountRepo.Debit(ctx, tx, account.ID, amount, account.Version); err != nil {
				return err
			}
			if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
			return nil
		})
		if errors.Is(err, repository.ErrOptimisticLock) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("[TransactionEngine] 取款成功: accountNo=%s, amount=%s", accountNo, amount.String())
		return trans, nil
	}

	return nil, repository.ErrOptimisticLock
}

// Transfer 内部转账
//
// 【不变量】两条流水金额互为相反数，与两次余额变动同处一个事务；
// "只转出未转入"的局部状态对任何并发读者都不可见
func (s *TransactionService) Transfer(ctx context.Context, userID int64, fromAccountNo, toAccountNo string, amount decimal.Decimal, remark string) (*model.Transaction, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromAccountNo == toAccountNo {
		return nil, ErrSameAccount
	}

	for attempt := 0; attempt < 2; attempt++ {
		// 转出账户必须属于调用者；转入账户只需存在且可用
		fromAccount, err := s.accountRepo.GetOwned(ctx, fromAccountNo, userID)
		if err != nil {
			return nil, err
		}
		toAccount, err := s.accountRepo.GetByAccountNo(ctx, toAccountNo)
		if err != nil {
			return nil, err
		}
		if !fromAccount.IsActive() || !toAccount.IsActive() {
			return nil, repository.ErrAccountInactive
		}
		if fromAccount.Balance.Cmp(amount) < 0 {
			return nil, repository.ErrBalanceNotEnough
		}
		if err := checkDailyLimit(ctx, s.transactionRepo, nil, fromAccount, amount); err != nil {
			return nil, err
		}

		transferNo := idgen.GenerateTransactionNo()
		debitTrans := &model.Transaction{
			TransactionNo: transferNo,
			AccountID:     fromAccount.ID,
			UserID:        fromAccount.UserID,
			Amount:        amount.Neg(),
			Type:          model.TransactionTypeTransfer,
			Status:        model.TransactionStatusCompleted,
			BalanceBefore: fromAccount.Balance,
			BalanceAfter:  fromAccount.Balance.Sub(amount),
			Metadata:      model.EncodeMetadata(&model.TransactionMetadata{TransferPeer: toAccountNo}),
			Remark:        remark,
		}
		creditTrans := &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     toAccount.ID,
			UserID:        toAccount.UserID,
			Amount:        amount,
			Type:          model.TransactionTypeTransfer,
			Status:        model.TransactionStatusCompleted,
			BalanceBefore: toAccount.Balance,
			BalanceAfter:  toAccount.Balance.Add(amount),
			Metadata:      model.EncodeMetadata(&model.TransactionMetadata{TransferPeer: fromAccountNo}),
			Remark:        remark,
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.accountRepo.Debit(ctx, tx, fromAccount.ID, amount, fromAccount.Version); err != nil {
				return err
			}
			if err := s.accountRepo.Credit(ctx, tx, toAccount.ID, amount); err != nil {
				return fmt.Errorf("入账失败: %w", err)
			}
			if err := s.transactionRepo.Create(ctx, tx, debitTrans); err != nil {
				return fmt.Errorf("记录转出流水失败: %w", err)
			}
			if err := s.transactionRepo.Create(ctx, tx, creditTrans); err != nil {
				return fmt.Errorf("记录转入流水失败: %w", err)
			}
			return nil
		})
		if errors.Is(err, repository.ErrOptimisticLock) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("[TransactionEngine] 转账成功: from=%s, to=%s, amount=%s", fromAccountNo, toAccountNo, amount.String())
		return debitTrans, nil
	}

	return nil, repository.ErrOptimisticLock
}

// checkDailyLimit 滚动24小时出账限额检查
// 已有出账 + 本笔 > 限额即拒绝（等于限额放行）
// 取款、转账、账单支付共用同一套限额口径
func checkDailyLimit(ctx context.Context, repo *repository.TransactionRepository, tx *gorm.DB, account *model.Account, amount decimal.Decimal) error {
	since := time.Now().Add(-24 * time.Hour)
	used, err := repo.SumDebitsSince(ctx, tx, account.ID, since)
	if err != nil {
		return fmt.Errorf("统计当日出账失败: %w", err)
	}
	if used.Add(amount).Cmp(account.DailyLimit) > 0 {
		return ErrDailyLimitExceeded
	}
	return nil
}
