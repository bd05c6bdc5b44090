package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"aurumvault/internal/model"
	"aurumvault/internal/notification"
	"aurumvault/internal/repository"
	"aurumvault/internal/webhook"
	"aurumvault/pkg/idgen"
	"aurumvault/pkg/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementService UHI 侧：接收并应用 AurumVault 的结清通知
//
// 发送方是"至少一次"投递，这里必须做到幂等应用：
// 同一份载荷送达多少次，贷款余额都只扣减一次
type SettlementService struct {
	db        *gorm.DB
	signer    *webhook.Signer
	publisher notification.Publisher
	loanRepo  *repository.LoanRepository
}

func NewSettlementService(db *gorm.DB, secret string, publisher notification.Publisher) *SettlementService {
	return &SettlementService{
		db:        db,
		signer:    webhook.NewSigner(secret),
		publisher: publisher,
		loanRepo:  repository.NewLoanRepository(db),
	}
}

// SettlementResult 应用结果
type SettlementResult struct {
	InvoiceNumber  string `json:"invoice_number"`
	AlreadyApplied bool   `json:"already_applied"`
	LoanStatus     string `json:"loan_status,omitempty"`
}

// ProcessSettlement 处理一条结清通知
//
// 处理顺序即安全顺序：
//  1. 验签（对原始请求体恒定时间比较，失败后什么都不做）
//  2. 按业务键（发票号）定位发票
//  3. 幂等检查：已结清直接返回成功（"至少一次"投递因此无害）
//  4. 金额检查：发票记录了应还金额时，通知金额须在 0.01 容差内一致
//  5. 原子应用：发票置 paid、贷款余额扣减（钳位不为负）、追加还款记录
//  6. 事务外尽力而为发确认通知，失败不回滚结清
func (s *SettlementService) ProcessSettlement(ctx context.Context, body []byte, signature string) (*SettlementResult, error) {
	if !s.signer.Verify(body, signature) {
		return nil, ErrInvalidSignature
	}

	payload, err := webhook.DecodeSettlement(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.InvoiceNumber == "" || payload.Status != webhook.StatusCompleted {
		return nil, ErrInvalidPayload
	}

	invoice, err := s.loanRepo.GetInvoiceByNumber(ctx, payload.InvoiceNumber)
	if err != nil {
		return nil, err
	}

	// 幂等检查：重复通知是无操作
	if invoice.Status == model.LoanInvoiceStatusPaid {
		log.Printf("[SettlementReceiver] 重复结清通知，已应用过: invoice=%s", payload.InvoiceNumber)
		return &SettlementResult{InvoiceNumber: payload.InvoiceNumber, AlreadyApplied: true}, nil
	}

	amount := decimal.NewFromFloat(payload.Amount)
	if invoice.Amount != nil && !money.WithinTolerance(*invoice.Amount, amount) {
		return nil, fmt.Errorf("%w: 应还=%s, 通知=%s", ErrAmountMismatch, invoice.Amount.String(), amount.String())
	}

	var (
		loan           *model.Loan
		alreadyApplied bool
		loanStatus     string
	)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 状态守卫更新是幂等的最后防线：并发送达的第二份通知在这里落败
		err := s.loanRepo.MarkInvoicePaid(ctx, tx, invoice.ID, payload.TransactionRef)
		if err != nil {
			if errors.Is(err, repository.ErrInvoiceNotOpen) {
				alreadyApplied = true
				return nil
			}
			return err
		}

		loan, err = s.loanRepo.GetLoanByID(ctx, tx, invoice.LoanID)
		if err != nil {
			return err
		}

		// 余额钳位不为负；小于等于 epsilon 视为已还清
		newBalance := loan.Balance.Sub(amount)
		if newBalance.Cmp(decimal.Zero) < 0 {
			newBalance = decimal.Zero
		}
		loanStatus = model.LoanStatusActive
		if newBalance.Cmp(money.LoanEpsilon) <= 0 {
			newBalance = decimal.Zero
			loanStatus = model.LoanStatusPaidOff
		}
		if err := s.loanRepo.UpdateLoanBalance(ctx, tx, loan.ID, newBalance, loanStatus); err != nil {
			return err
		}

		payment := &model.LoanPayment{
			PaymentNo:      idgen.GenerateLoanPaymentNo(),
			LoanID:         loan.ID,
			InvoiceNumber:  payload.InvoiceNumber,
			Amount:         amount,
			TransactionRef: payload.TransactionRef,
		}
		return s.loanRepo.CreatePayment(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	if alreadyApplied {
		return &SettlementResult{InvoiceNumber: payload.InvoiceNumber, AlreadyApplied: true}, nil
	}

	log.Printf("[SettlementReceiver] 结清已应用: invoice=%s, loanNo=%s, amount=%s, loanStatus=%s",
		payload.InvoiceNumber, loan.LoanNo, amount.String(), loanStatus)

	notification.BestEffort(ctx, s.publisher, loan.StaffID, notification.EventPaymentConfirmed, map[string]interface{}{
		"invoice_number":  payload.InvoiceNumber,
		"amount":          amount.String(),
		"transaction_ref": payload.TransactionRef,
		"loan_status":     loanStatus,
	})

	return &SettlementResult{InvoiceNumber: payload.InvoiceNumber, LoanStatus: loanStatus}, nil
}

// GenerateInvoice 员工在 UHI 内生成还款发票
// 发票号是跨系统业务键：全局唯一、生成后不可变
func (s *SettlementService) GenerateInvoice(ctx context.Context, loanNo string, amount *decimal.Decimal) (*model.LoanInvoice, error) {
	var loan model.Loan
	if err := s.db.WithContext(ctx).Where("loan_no = ?", loanNo).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrLoanNotFound
		}
		return nil, err
	}
	if loan.Status != model.LoanStatusActive {
		return nil, fmt.Errorf("贷款已结清，无需生成发票")
	}

	invoice := &model.LoanInvoice{
		InvoiceNumber: fmt.Sprintf("INV-%s", idgen.GenerateLoanPaymentNo()[3:]),
		LoanID:        loan.ID,
		Amount:        amount,
		Status:        model.LoanInvoiceStatusGenerated,
	}
	if err := s.loanRepo.CreateInvoice(ctx, invoice); err != nil {
		return nil, fmt.Errorf("生成发票失败: %w", err)
	}
	return invoice, nil
}
