package repository

import (
	"context"
	"errors"

	"aurumvault/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrAccountInactive  = errors.New("账户状态不可用")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByAccountNo 按账户号查询
func (r *AccountRepository) GetByAccountNo(ctx context.Context, accountNo string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_no = ?", accountNo).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetOwned 按账户号查询并校验归属
// 账户不存在和不属于调用者对外是同一种失败，避免泄露他人账户的存在性
func (r *AccountRepository) GetOwned(ctx context.Context, accountNo string, userID int64) (*model.Account, error) {
	account, err := r.GetByAccountNo(ctx, accountNo)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// Debit 扣减余额（条件更新）
//
// 【关键点】WHERE 同时带上余额守卫和版本号：
// 并发扣款时只有一个 UPDATE 能命中，丢失更新不可能发生。
// RowsAffected == 0 时回查账户区分"余额不足"和"版本冲突"
func (r *AccountRepository) Debit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND balance >= ? AND version = ?", accountID, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var account model.Account
		if err := tx.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if account.Balance.Cmp(amount) < 0 {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// Credit 增加余额
func (r *AccountRepository) Credit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateStatus 变更账户状态（账户永不删除，销户即置 CLOSED）
func (r *AccountRepository) UpdateStatus(ctx context.Context, accountNo string, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_no = ?", accountNo).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
