package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// WebhookOutbox 结清通知发件箱
//
// 【为什么用发件箱？】
// Webhook 投递不能和资金事务绑在一起回滚：支付已经成功，
// 通知失败不该让钱退回去。发件箱记录在资金事务内原子写入，
// 投递由后台任务异步推进，保证"至少一次"送达语义。
// 签名在入箱时就对载荷字节计算好，重试时字节与签名保持一致
type WebhookOutbox struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);index;not null" json:"message_key"` // 业务键（发票号），便于对账排查
	Endpoint   string    `gorm:"type:varchar(256);not null" json:"endpoint"`         // 对端 Webhook 地址
	Payload    string    `gorm:"type:text;not null" json:"payload"`                  // 规范化 JSON 载荷（签名即对这些字节计算）
	Signature  string    `gorm:"type:varchar(128);not null" json:"signature"`        // HMAC-SHA256 十六进制签名
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WebhookOutbox) TableName() string {
	return "webhook_outbox"
}
