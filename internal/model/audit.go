package model

import (
	"time"
)

// 审计动作常量
const (
	AuditActionVerificationApprove = "VERIFICATION_APPROVE"
	AuditActionVerificationReject  = "VERIFICATION_REJECT"
	AuditActionThresholdUpdate     = "THRESHOLD_UPDATE"
	AuditActionPayeeCreate         = "PAYEE_CREATE"
)

// AuditLog 管理操作审计日志
// 只追加，不修改，不删除
type AuditLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID    int64     `gorm:"index;not null" json:"admin_id"`        // 操作人
	Action     string    `gorm:"type:varchar(64);not null" json:"action"`
	EntityType string    `gorm:"type:varchar(64);not null" json:"entity_type"` // 被操作实体类型
	EntityID   string    `gorm:"type:varchar(64);index" json:"entity_id"`
	Detail     string    `gorm:"type:text" json:"detail"` // 变更内容（JSON）
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
