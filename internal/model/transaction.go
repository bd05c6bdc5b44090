package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit    = "DEPOSIT"    // 存款
	TransactionTypeWithdrawal = "WITHDRAWAL" // 取款
	TransactionTypeTransfer   = "TRANSFER"   // 转账（双腿，两条流水）
	TransactionTypePayment    = "PAYMENT"    // 账单支付
	TransactionTypeRefund     = "REFUND"     // 退款（审核拒绝后的回冲）
)

// ============================================================================
// 交易状态常量与状态机
// ============================================================================

const (
	TransactionStatusPending             = "PENDING"
	TransactionStatusCompleted           = "COMPLETED"
	TransactionStatusFailed              = "FAILED"
	TransactionStatusCancelled           = "CANCELLED"
	TransactionStatusPendingVerification = "PENDING_VERIFICATION" // 大额支付，等待人工审核
)

// ValidStatusTransitions 交易状态只能向前流转
// COMPLETED / FAILED / CANCELLED 是终态，任何回退都是非法的
var ValidStatusTransitions = map[string][]string{
	TransactionStatusPending:             {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusPendingVerification: {TransactionStatusCompleted, TransactionStatusFailed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 交易流水实体
// ============================================================================

// Transaction 交易流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改金额，不删除 —— 保证审计可追溯（状态按状态机向前流转除外）
// 2. 金额带符号：正数入账，负数出账
// 3. 转账必须恰好两条流水（出账负、入账正），金额互为相反数，同一事务内落库
// 4. 记录交易前后余额 —— 便于对账校验
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一，可人工对账）
	RequestID     string          `gorm:"type:varchar(64);index" json:"request_id"`                    // 幂等ID（客户端生成，支付类交易携带）
	AccountID     int64           `gorm:"index;not null" json:"account_id"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"` // 带符号金额
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Status        string          `gorm:"type:varchar(24);index;not null" json:"status"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	Metadata      string          `gorm:"type:text" json:"metadata"` // 自由格式元数据（JSON，可携带外部发票号）
	Remark        string          `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// ============================================================================
// 交易元数据
// ============================================================================

// 元数据键：与 UHI 对账所需的发票号与集成目标
const (
	MetaKeyInvoiceNumber = "invoice_number"
	MetaKeyIntegration   = "integration"
)

// TransactionMetadata 支付类交易的元数据结构
type TransactionMetadata struct {
	PayeeID       int64  `json:"payee_id,omitempty"`
	PayeeName     string `json:"payee_name,omitempty"`
	Category      string `json:"category,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	Integration   string `json:"integration,omitempty"` // 对端系统标识，空表示不外发
	TransferPeer  string `json:"transfer_peer,omitempty"`
}

// EncodeMetadata 序列化元数据
func EncodeMetadata(m *TransactionMetadata) string {
	if m == nil {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeMetadata 解析元数据，解析失败返回零值（元数据是自由格式，不因脏数据报错）
func DecodeMetadata(s string) *TransactionMetadata {
	m := &TransactionMetadata{}
	if s == "" {
		return m
	}
	_ = json.Unmarshal([]byte(s), m)
	return m
}
