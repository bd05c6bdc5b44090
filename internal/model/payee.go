package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 对端系统标识：收款方类别关联到该系统时，结清事实会以 Webhook 外发
const (
	IntegrationTargetUHI = "UHI"
)

// Payee 收款方（账单支付的对象）
// IntegrationTarget 是"类别 → 外部系统"的能力映射：
// 为空表示纯内部收款方，非空表示支付结清后需要通知对端系统。
// 新增外部集成只需新增 Payee 配置，不需要改代码
type Payee struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string    `gorm:"type:varchar(128);not null" json:"name"`
	Category          string    `gorm:"type:varchar(64);index;not null" json:"category"` // 如 LOAN / UTILITY / TAX
	CounterpartRef    string    `gorm:"type:varchar(64)" json:"counterpart_ref"`         // 对端系统中的收款标识
	IntegrationTarget string    `gorm:"type:varchar(32)" json:"integration_target"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payee) TableName() string {
	return "payee"
}

// CategoryThreshold 按类别的人工审核阈值覆盖
// 全局默认阈值在配置文件中；此表只存覆盖项，修改必须写审计日志
type CategoryThreshold struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Category  string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"category"`
	Threshold decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"threshold"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CategoryThreshold) TableName() string {
	return "category_threshold"
}
