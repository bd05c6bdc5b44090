package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 支付审核状态常量
// ============================================================================

const (
	VerificationStatusPending  = "PENDING"
	VerificationStatusApproved = "APPROVED" // 终态
	VerificationStatusRejected = "REJECTED" // 终态
)

// PaymentVerification 大额支付人工审核表
// 与被挂起的交易流水一一对应；审核记录永不删除，留作审计
//
// 【关键点】审核决定是恰好一次的操作：
// 对已终态的审核再次 approve/reject 必须被拒绝，
// 否则重放请求会导致重复退款/重复入账
type PaymentVerification struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"verification_no"`
	TransactionID  int64           `gorm:"uniqueIndex;not null" json:"transaction_id"` // 1:1 关联被挂起的交易
	AccountID      int64           `gorm:"index;not null" json:"account_id"`
	UserID         int64           `gorm:"index;not null" json:"user_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status         string          `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	EvidencePath   string          `gorm:"type:varchar(256)" json:"evidence_path"` // 提交的证明材料路径
	EvidenceType   string          `gorm:"type:varchar(32)" json:"evidence_type"`  // 材料类型（如 pdf/jpg）
	ReviewerID     int64           `gorm:"index" json:"reviewer_id"`               // 审核人
	ReviewNotes    string          `gorm:"type:varchar(512)" json:"review_notes"`
	ReviewedAt     *time.Time      `json:"reviewed_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentVerification) TableName() string {
	return "payment_verification"
}
