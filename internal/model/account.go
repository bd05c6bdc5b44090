package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 账户状态常量
// ============================================================================

const (
	AccountStatusActive    = "ACTIVE"    // 正常
	AccountStatusSuspended = "SUSPENDED" // 冻结（禁止一切资金操作）
	AccountStatusClosed    = "CLOSED"    // 已销户（账户永不删除，只销户）
)

// Account 银行账户表
// 余额只能通过交易引擎变动，每次变动必须伴随一条流水记录
//
// 【重要】金额一律使用 decimal(20,2) 定点数，禁止使用浮点数
type Account struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountNo    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_no"` // 账户号（对外展示）
	UserID       int64           `gorm:"index;not null" json:"user_id"`                           // 账户所有人
	Currency     string          `gorm:"type:varchar(8);not null;default:USD" json:"currency"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance"`
	Status       string          `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"`
	DailyLimit   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"daily_limit"`   // 24小时出账限额
	MonthlyLimit decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"monthly_limit"` // 月度出账限额
	Version      int             `gorm:"not null;default:0" json:"version"`                // 乐观锁版本号
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// IsActive 账户是否可以进行资金操作
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
