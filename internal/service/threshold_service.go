package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"aurumvault/internal/config"
	"aurumvault/internal/model"
	"aurumvault/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ThresholdService 审核阈值与收款方配置（管理端）
// 阈值变更本身也是管理动作，必须写审计日志
type ThresholdService struct {
	db        *gorm.DB
	cfg       *config.Config
	payeeRepo *repository.PayeeRepository
	auditRepo *repository.AuditRepository
}

func NewThresholdService(db *gorm.DB, cfg *config.Config) *ThresholdService {
	return &ThresholdService{
		db:        db,
		cfg:       cfg,
		payeeRepo: repository.NewPayeeRepository(db),
		auditRepo: repository.NewAuditRepository(db),
	}
}

// SetCategoryThreshold 设置类别审核阈值覆盖
func (s *ThresholdService) SetCategoryThreshold(ctx context.Context, adminID int64, category string, threshold decimal.Decimal) error {
	if threshold.Cmp(decimal.Zero) <= 0 {
		return ErrInvalidAmount
	}

	old, err := s.payeeRepo.GetCategoryThreshold(ctx, category)
	if err != nil {
		return fmt.Errorf("查询阈值失败: %w", err)
	}
	oldValue := fmt.Sprintf("%.2f", s.cfg.Business.VerificationThreshold) // 无覆盖时生效的是全局默认
	if old != nil {
		oldValue = old.String()
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.payeeRepo.UpsertCategoryThreshold(ctx, tx, category, threshold); err != nil {
			return fmt.Errorf("更新阈值失败: %w", err)
		}
		detail, _ := json.Marshal(map[string]string{
			"category": category,
			"old":      oldValue,
			"new":      threshold.String(),
		})
		entry := &model.AuditLog{
			AdminID:    adminID,
			Action:     model.AuditActionThresholdUpdate,
			EntityType: "category_threshold",
			EntityID:   category,
			Detail:     string(detail),
		}
		if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("写审计日志失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[ThresholdService] 审核阈值已更新: category=%s, old=%s, new=%s",
		category, oldValue, threshold.String())
	return nil
}

// CreatePayee 新增收款方（含"类别 → 外部系统"的能力映射）
func (s *ThresholdService) CreatePayee(ctx context.Context, adminID int64, payee *model.Payee) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(payee).Error; err != nil {
			return fmt.Errorf("创建收款方失败: %w", err)
		}
		detail, _ := json.Marshal(map[string]string{
			"name":        payee.Name,
			"category":    payee.Category,
			"integration": payee.IntegrationTarget,
		})
		entry := &model.AuditLog{
			AdminID:    adminID,
			Action:     model.AuditActionPayeeCreate,
			EntityType: "payee",
			EntityID:   fmt.Sprintf("%d", payee.ID),
			Detail:     string(detail),
		}
		if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("写审计日志失败: %w", err)
		}
		return nil
	})
	return err
}
