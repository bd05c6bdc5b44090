package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"aurumvault/internal/config"
	"aurumvault/internal/infrastructure/lock"
	"aurumvault/internal/model"
	"aurumvault/internal/repository"
	"aurumvault/internal/webhook"
	"aurumvault/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentService 账单支付
//
// 两条路径：
//   - PayBill：金额低于审核阈值，立即结清，需要时在同一事务内写入结清通知发件箱
//   - PayBillVerified：金额达到阈值，立即扣款防止双花，但交易挂起为
//     PENDING_VERIFICATION，结清事实在管理员批准前绝不外发
type PaymentService struct {
	db               *gorm.DB
	redisClient      *redis.Client
	cfg              *config.Config
	notifier         *webhook.Notifier
	accountRepo      *repository.AccountRepository
	transactionRepo  *repository.TransactionRepository
	verificationRepo *repository.VerificationRepository
	payeeRepo        *repository.PayeeRepository
	outboxRepo       *repository.OutboxRepository
}

func NewPaymentService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, notifier *webhook.Notifier) *PaymentService {
	return &PaymentService{
		db:               db,
		redisClient:      redisClient,
		cfg:              cfg,
		notifier:         notifier,
		accountRepo:      repository.NewAccountRepository(db),
		transactionRepo:  repository.NewTransactionRepository(db),
		verificationRepo: repository.NewVerificationRepository(db),
		payeeRepo:        repository.NewPayeeRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
	}
}

type PayBillRequest struct {
	RequestID     string          `json:"request_id"`
	UserID        int64           `json:"user_id"`
	AccountNo     string          `json:"account_no"`
	PayeeID       int64           `json:"payee_id"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceNumber string          `json:"invoice_number"` // 发票解析结果带入，可为空
	Remark        string          `json:"remark"`
}

type PayBillResponse struct {
	TransactionNo  string          `json:"transaction_no"`
	VerificationNo string          `json:"verification_no,omitempty"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Message        string          `json:"message,omitempty"`
}

// PayBill 账单支付（免审路径）
// 金额达到类别阈值时返回 ErrVerificationRequired，不动任何钱，
// 调用方需携带证明材料改走 PayBillVerified
func (s *PaymentService) PayBill(ctx context.Context, req *PayBillRequest) (*PayBillResponse, error) {
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}

	payee, err := s.payeeRepo.GetByID(ctx, req.PayeeID)
	if err != nil {
		return nil, err
	}

	// 审核闸：达到阈值的支付必须走人工审核路径
	threshold, err := s.thresholdFor(ctx, payee.Category)
	if err != nil {
		return nil, err
	}
	if req.Amount.Cmp(threshold) >= 0 {
		return nil, ErrVerificationRequired
	}

	return s.executePayment(ctx, req, payee, false, "", "")
}

// PayBillVerified 账单支付（人工审核路径）
// 与免审路径相同的余额/限额检查，但交易落库即挂起；
// 余额立即扣减防止双花，结清事实等管理员批准后才外发
func (s *PaymentService) PayBillVerified(ctx context.Context, req *PayBillRequest, evidencePath, evidenceType string) (*PayBillResponse, error) {
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}

	payee, err := s.payeeRepo.GetByID(ctx, req.PayeeID)
	if err != nil {
		return nil, err
	}

	return s.executePayment(ctx, req, payee, true, evidencePath, evidenceType)
}

func (s *PaymentService) executePayment(ctx context.Context, req *PayBillRequest, payee *model.Payee, held bool, evidencePath, evidenceType string) (*PayBillResponse, error) {
	// 幂等校验
	if existing, err := s.existingResponse(ctx, req.RequestID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	// 同一付款账户串行：幂等检查到落库之间不允许并发插队
	payLock := lock.NewPaymentLock(s.redisClient, req.AccountNo)
	if err := payLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer payLock.Unlock(ctx)

	// 获取锁后再次检查幂等
	if existing, err := s.existingResponse(ctx, req.RequestID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	account, err := s.accountRepo.GetOwned(ctx, req.AccountNo, req.UserID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, repository.ErrAccountInactive
	}
	if account.Balance.Cmp(req.Amount) < 0 {
		return nil, repository.ErrBalanceNotEnough
	}
	if err := checkDailyLimit(ctx, s.transactionRepo, nil, account, req.Amount); err != nil {
		return nil, err
	}

	status := model.TransactionStatusCompleted
	if held {
		status = model.TransactionStatusPendingVerification
	}

	meta := &model.TransactionMetadata{
		PayeeID:       payee.ID,
		PayeeName:     payee.Name,
		Category:      payee.Category,
		InvoiceNumber: req.InvoiceNumber,
		Integration:   payee.IntegrationTarget,
	}
	trans := &model.Transaction{
		TransactionNo: idgen.GeneratePaymentNo(),
		RequestID:     req.RequestID,
		AccountID:     account.ID,
		UserID:        req.UserID,
		Amount:        req.Amount.Neg(),
		Type:          model.TransactionTypePayment,
		Status:        status,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance.Sub(req.Amount),
		Metadata:      model.EncodeMetadata(meta),
		Remark:        req.Remark,
	}

	var verificationNo string

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Debit(ctx, tx, account.ID, req.Amount, account.Version); err != nil {
			return err
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if held {
			verificationNo = idgen.GenerateVerificationNo()
			verification := &model.PaymentVerification{
				VerificationNo: verificationNo,
				TransactionID:  trans.ID,
				AccountID:      account.ID,
				UserID:         req.UserID,
				Amount:         req.Amount,
				Status:         model.VerificationStatusPending,
				EvidencePath:   evidencePath,
				EvidenceType:   evidenceType,
			}
			if err := s.verificationRepo.Create(ctx, tx, verification); err != nil {
				return fmt.Errorf("创建审核单失败: %w", err)
			}
			return nil
		}

		// 即时结清：收款方关联外部系统且携带发票号时，结清事实入发件箱
		return s.enqueueSettlement(ctx, tx, trans.TransactionNo, meta, req.Amount)
	})
	if err != nil {
		return nil, err
	}

	if held {
		log.Printf("[PaymentService] 大额支付已挂起待审: verificationNo=%s, accountNo=%s, amount=%s",
			verificationNo, req.AccountNo, req.Amount.String())
	} else {
		log.Printf("[PaymentService] 账单支付成功: transactionNo=%s, payee=%s, amount=%s",
			trans.TransactionNo, payee.Name, req.Amount.String())
	}

	return &PayBillResponse{
		TransactionNo:  trans.TransactionNo,
		VerificationNo: verificationNo,
		Status:         status,
		Amount:         req.Amount,
	}, nil
}

// enqueueSettlement 把已结清的支付写入 Webhook 发件箱（与资金事务同库同事务）
// 不关联外部系统或没有发票号时无事可做：对端无从对账
func (s *PaymentService) enqueueSettlement(ctx context.Context, tx *gorm.DB, transactionNo string, meta *model.TransactionMetadata, amount decimal.Decimal) error {
	if meta.Integration == "" || meta.InvoiceNumber == "" {
		return nil
	}

	body, err := webhook.EncodeSettlement(transactionNo, webhook.StatusCompleted, meta.InvoiceNumber, amount)
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
}

// existingResponse 幂等查重：同一 request_id 的请求返回首次结果
func (s *PaymentService) existingResponse(ctx context.Context, requestID string) (*PayBillResponse, error) {
	if requestID == "" {
		return nil, nil
	}
	trans, err := s.transactionRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	if trans == nil {
		return nil, nil
	}
	return &PayBillResponse{
		TransactionNo: trans.TransactionNo,
		Status:        trans.Status,
		Amount:        trans.Amount.Abs(),
		Message:       "重复请求，返回首次结果",
	}, nil
}

// thresholdFor 审核阈值：类别覆盖优先，否则取全局默认
func (s *PaymentService) thresholdFor(ctx context.Context, category string) (decimal.Decimal, error) {
	override, err := s.payeeRepo.GetCategoryThreshold(ctx, category)
	if err != nil {
		return decimal.Zero, fmt.Errorf("查询审核阈值失败: %w", err)
	}
	if override != nil {
		return *override, nil
	}
	return decimal.NewFromFloat(s.cfg.Business.VerificationThreshold), nil
}
