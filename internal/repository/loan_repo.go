package repository

import (
	"context"
	"errors"
	"time"

	"aurumvault/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrLoanNotFound    = errors.New("贷款不存在")
	ErrInvoiceNotFound = errors.New("发票不存在")
	ErrInvoiceNotOpen  = errors.New("发票已结清")
)

// LoanRepository UHI 侧贷款/发票存取
type LoanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) CreateLoan(ctx context.Context, loan *model.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *LoanRepository) CreateInvoice(ctx context.Context, invoice *model.LoanInvoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Loan, error) {
	if tx == nil {
		tx = r.db
	}
	var loan model.Loan
	err := tx.WithContext(ctx).Where("id = ?", id).First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// GetInvoiceByNumber 按业务键（发票号）查询
func (r *LoanRepository) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*model.LoanInvoice, error) {
	var invoice model.LoanInvoice
	err := r.db.WithContext(ctx).Where("invoice_number = ?", invoiceNumber).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// MarkInvoicePaid 发票 generated → paid 的守卫更新
//
// 【关键点】这是接收端幂等的最后一道防线：
// 两个并发送达的相同通知都通过了前置"未结清"检查时，
// 只有一个 UPDATE 能命中 status = 'generated'，输掉的那个
// 拿到 ErrInvoiceNotOpen，按"已应用"处理，贷款余额绝不会被扣两次
func (r *LoanRepository) MarkInvoicePaid(ctx context.Context, tx *gorm.DB, id int64, paymentRef string) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.LoanInvoice{}).
		Where("id = ? AND status = ?", id, model.LoanInvoiceStatusGenerated).
		Updates(map[string]interface{}{
			"status":            model.LoanInvoiceStatusPaid,
			"payment_reference": paymentRef,
			"paid_at":           now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceNotOpen
	}
	return nil
}

// UpdateLoanBalance 覆写贷款余额与状态（调用方已完成钳位计算）
func (r *LoanRepository) UpdateLoanBalance(ctx context.Context, tx *gorm.DB, id int64, balance decimal.Decimal, status string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Loan{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance": balance,
			"status":  status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *LoanRepository) CreatePayment(ctx context.Context, tx *gorm.DB, payment *model.LoanPayment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(payment).Error
}
