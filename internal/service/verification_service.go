package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"aurumvault/internal/config"
	"aurumvault/internal/infrastructure/lock"
	"aurumvault/internal/model"
	"aurumvault/internal/notification"
	"aurumvault/internal/repository"
	"aurumvault/internal/webhook"
	"aurumvault/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// VerificationService 审核闸：大额支付的人工审核状态机
//
// PENDING → {APPROVED, REJECTED}，两者皆为终态。
// 审核决定与其副作用（交易状态流转、退款、审计）在同一事务内生效；
// 对已终态审核单的重放会被状态守卫拒绝 —— 重复执行退款就是重复付钱
type VerificationService struct {
	db               *gorm.DB
	redisClient      *redis.Client
	cfg              *config.Config
	notifier         *webhook.Notifier
	publisher        notification.Publisher
	verificationRepo *repository.VerificationRepository
	transactionRepo  *repository.TransactionRepository
	accountRepo      *repository.AccountRepository
	auditRepo        *repository.AuditRepository
	outboxRepo       *repository.OutboxRepository
}

func NewVerificationService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, notifier *webhook.Notifier, publisher notification.Publisher) *VerificationService {
	return &VerificationService{
		db:               db,
		redisClient:      redisClient,
		cfg:              cfg,
		notifier:         notifier,
		publisher:        publisher,
		verificationRepo: repository.NewVerificationRepository(db),
		transactionRepo:  repository.NewTransactionRepository(db),
		accountRepo:      repository.NewAccountRepository(db),
		auditRepo:        repository.NewAuditRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
	}
}

// ListPending 待审核列表
func (s *VerificationService) ListPending(ctx context.Context, limit int) ([]*model.PaymentVerification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.verificationRepo.ListPending(ctx, limit)
}

// Approve 批准
// 同一事务内：审核单置 APPROVED、交易 PENDING_VERIFICATION → COMPLETED、
// 写审计、结清事实入发件箱（携带发票号且关联外部系统时）。
// 事务提交后发客户通知
func (s *VerificationService) Approve(ctx context.Context, verificationNo string, adminID int64, notes string) error {
	v, err := s.verificationRepo.GetByVerificationNo(ctx, verificationNo)
	if err != nil {
		return err
	}
	if v.Status != model.VerificationStatusPending {
		return repository.ErrVerificationNotPending
	}

	decisionLock := lock.NewVerificationLock(s.redisClient, verificationNo)
	if err := decisionLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer decisionLock.Unlock(ctx)

	var trans *model.Transaction

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.verificationRepo.Decide(ctx, tx, v.ID, model.VerificationStatusApproved, adminID, notes); err != nil {
			return err
		}
		if err := s.transactionRepo.UpdateStatus(ctx, tx, v.TransactionID,
			model.TransactionStatusPendingVerification, model.TransactionStatusCompleted); err != nil {
			return fmt.Errorf("交易状态流转失败: %w", err)
		}

		trans, err = s.transactionRepo.GetByID(ctx, tx, v.TransactionID)
		if err != nil {
			return err
		}

		if err := s.audit(ctx, tx, adminID, model.AuditActionVerificationApprove, verificationNo, map[string]interface{}{
			"transaction_no": trans.TransactionNo,
			"amount":         v.Amount.String(),
			"notes":          notes,
		}); err != nil {
			return err
		}

		// 结清事实此刻才允许外发
		meta := model.DecodeMetadata(trans.Metadata)
		if meta.Integration == "" || meta.InvoiceNumber == "" {
			return nil
		}
		body, err := webhook.EncodeSettlement(trans.TransactionNo, webhook.StatusCompleted, meta.InvoiceNumber, v.Amount)
		if err != nil {
			return fmt.Errorf("编码结清载荷失败: %w", err)
		}
		msg := &model.WebhookOutbox{
			MessageKey: meta.InvoiceNumber,
			Endpoint:   s.notifier.Endpoint(),
			Payload:    string(body),
			Signature:  s.notifier.Signer().Sign(body),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入发件箱失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[VerificationGate] 审核批准: verificationNo=%s, adminID=%d, amount=%s",
		verificationNo, adminID, v.Amount.String())

	notification.BestEffort(ctx, s.publisher, v.UserID, notification.EventPaymentApproved, map[string]interface{}{
		"verification_no": verificationNo,
		"transaction_no":  trans.TransactionNo,
		"amount":          v.Amount.String(),
	})
	return nil
}

// Reject 拒绝
// 同一事务内：审核单置 REJECTED、交易置 FAILED、按原扣款金额回冲余额并
// 追加一条新的 REFUND 流水（绝不改写历史流水）、写审计。
// 被拒绝的支付永远不会被上报给对端系统
func (s *VerificationService) Reject(ctx context.Context, verificationNo string, adminID int64, notes string) error {
	v, err := s.verificationRepo.GetByVerificationNo(ctx, verificationNo)
	if err != nil {
		return err
	}
	if v.Status != model.VerificationStatusPending {
		return repository.ErrVerificationNotPending
	}

	decisionLock := lock.NewVerificationLock(s.redisClient, verificationNo)
	if err := decisionLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer decisionLock.Unlock(ctx)

	refundNo := idgen.GenerateRefundNo()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.verificationRepo.Decide(ctx, tx, v.ID, model.VerificationStatusRejected, adminID, notes); err != nil {
			return err
		}
		if err := s.transactionRepo.UpdateStatus(ctx, tx, v.TransactionID,
			model.TransactionStatusPendingVerification, model.TransactionStatusFailed); err != nil {
			return fmt.Errorf("交易状态流转失败: %w", err)
		}

		original, err := s.transactionRepo.GetByID(ctx, tx, v.TransactionID)
		if err != nil {
			return err
		}

		// 回冲：原扣款的绝对值作为一条全新的 REFUND 入账流水
		acc, err := s.accountRepo.GetByID(ctx, tx, v.AccountID)
		if err != nil {
			return fmt.Errorf("查询账户失败: %w", err)
		}
		refundAmount := original.Amount.Abs()
		if err := s.accountRepo.Credit(ctx, tx, v.AccountID, refundAmount); err != nil {
			return fmt.Errorf("退款到账失败: %w", err)
		}
		refund := &model.Transaction{
			TransactionNo: refundNo,
			AccountID:     v.AccountID,
			UserID:        v.UserID,
			Amount:        refundAmount,
			Type:          model.TransactionTypeRefund,
			Status:        model.TransactionStatusCompleted,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance.Add(refundAmount),
			Metadata:      original.Metadata,
			Remark:        fmt.Sprintf("审核拒绝退款-%s-%s", original.TransactionNo, notes),
		}
		if err := s.transactionRepo.Create(ctx, tx, refund); err != nil {
			return fmt.Errorf("记录退款流水失败: %w", err)
		}

		return s.audit(ctx, tx, adminID, model.AuditActionVerificationReject, verificationNo, map[string]interface{}{
			"transaction_no": original.TransactionNo,
			"refund_no":      refundNo,
			"amount":         refundAmount.String(),
			"notes":          notes,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[VerificationGate] 审核拒绝并退款: verificationNo=%s, refundNo=%s, adminID=%d",
		verificationNo, refundNo, adminID)

	notification.BestEffort(ctx, s.publisher, v.UserID, notification.EventPaymentRejected, map[string]interface{}{
		"verification_no": verificationNo,
		"refund_no":       refundNo,
		"reason":          notes,
	})
	return nil
}

// audit 写一条审计记录
func (s *VerificationService) audit(ctx context.Context, tx *gorm.DB, adminID int64, action, entityID string, detail map[string]interface{}) error {
	detailBytes, _ := json.Marshal(detail)
	entry := &model.AuditLog{
		AdminID:    adminID,
		Action:     action,
		EntityType: "payment_verification",
		EntityID:   entityID,
		Detail:     string(detailBytes),
	}
	if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("写审计日志失败: %w", err)
	}
	return nil
}
