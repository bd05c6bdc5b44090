package service

import (
	"context"
	"testing"

	"aurumvault/internal/model"
	"aurumvault/internal/repository"
	"aurumvault/internal/webhook"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type settlementFixture struct {
	db        *gorm.DB
	svc       *SettlementService
	publisher *stubPublisher
	signer    *webhook.Signer
	loan      *model.Loan
	invoice   *model.LoanInvoice
}

func newSettlementFixture(t *testing.T, loanBalance, invoiceAmount string) *settlementFixture {
	t.Helper()
	db := newUHITestDB(t)
	publisher := &stubPublisher{}

	loan := &model.Loan{
		LoanNo:    "LOAN-100001",
		StaffID:   7,
		Principal: decimal.RequireFromString(loanBalance),
		Balance:   decimal.RequireFromString(loanBalance),
		Status:    model.LoanStatusActive,
	}
	require.NoError(t, db.Create(loan).Error)

	invoice := &model.LoanInvoice{
		InvoiceNumber: "INV-2024-001",
		LoanID:        loan.ID,
		Status:        model.LoanInvoiceStatusGenerated,
	}
	if invoiceAmount != "" {
		amount := decimal.RequireFromString(invoiceAmount)
		invoice.Amount = &amount
	}
	require.NoError(t, db.Create(invoice).Error)

	return &settlementFixture{
		db:        db,
		svc:       NewSettlementService(db, "test-secret", publisher),
		publisher: publisher,
		signer:    webhook.NewSigner("test-secret"),
		loan:      loan,
		invoice:   invoice,
	}
}

func (f *settlementFixture) deliver(t *testing.T, amount string) (*SettlementResult, error) {
	t.Helper()
	body, err := webhook.EncodeSettlement("TXN-555", webhook.StatusCompleted, "INV-2024-001",
		decimal.RequireFromString(amount))
	require.NoError(t, err)
	return f.svc.ProcessSettlement(context.Background(), body, f.signer.Sign(body))
}

func TestProcessSettlementAppliesOnce(t *testing.T) {
	f := newSettlementFixture(t, "5000", "1200.50")

	result, err := f.deliver(t, "1200.50")
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)
	assert.Equal(t, model.LoanStatusActive, result.LoanStatus)

	var invoice model.LoanInvoice
	require.NoError(t, f.db.Where("invoice_number = ?", "INV-2024-001").First(&invoice).Error)
	assert.Equal(t, model.LoanInvoiceStatusPaid, invoice.Status)
	assert.Equal(t, "TXN-555", invoice.PaymentReference)
	assert.NotNil(t, invoice.PaidAt)

	var loan model.Loan
	require.NoError(t, f.db.Where("id = ?", f.loan.ID).First(&loan).Error)
	assert.True(t, loan.Balance.Equal(decimal.RequireFromString("3799.50")))

	assert.EqualValues(t, 1, countRows(t, f.db, &model.LoanPayment{}, "invoice_number = ?", "INV-2024-001"))
	assert.Contains(t, f.publisher.Events(), "7:PAYMENT_CONFIRMED")
}

func TestProcessSettlementIdempotent(t *testing.T) {
	f := newSettlementFixture(t, "5000", "1200.50")

	_, err := f.deliver(t, "1200.50")
	require.NoError(t, err)

	// 同一通知再次送达：无操作，余额只扣一次
	result, err := f.deliver(t, "1200.50")
	require.NoError(t, err)
	assert.True(t, result.AlreadyApplied)

	var loan model.Loan
	require.NoError(t, f.db.Where("id = ?", f.loan.ID).First(&loan).Error)
	assert.True(t, loan.Balance.Equal(decimal.RequireFromString("3799.50")))
	assert.EqualValues(t, 1, countRows(t, f.db, &model.LoanPayment{}, "invoice_number = ?", "INV-2024-001"))
}

func TestProcessSettlementBadSignature(t *testing.T) {
	f := newSettlementFixture(t, "5000", "1200.50")

	body, err := webhook.EncodeSettlement("TXN-555", webhook.StatusCompleted, "INV-2024-001",
		decimal.RequireFromString("1200.50"))
	require.NoError(t, err)
	signature := f.signer.Sign(body)

	// 载荷被篡改一个字节即验签失败，发票保持未结清
	body[0] ^= 0x01
	_, err = f.svc.ProcessSettlement(context.Background(), body, signature)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var invoice model.LoanInvoice
	require.NoError(t, f.db.Where("invoice_number = ?", "INV-2024-001").First(&invoice).Error)
	assert.Equal(t, model.LoanInvoiceStatusGenerated, invoice.Status)
}

func TestProcessSettlementAmountMismatch(t *testing.T) {
	f := newSettlementFixture(t, "5000", "1200.50")

	_, err := f.deliver(t, "1100")
	assert.ErrorIs(t, err, ErrAmountMismatch)

	var invoice model.LoanInvoice
	require.NoError(t, f.db.Where("invoice_number = ?", "INV-2024-001").First(&invoice).Error)
	assert.Equal(t, model.LoanInvoiceStatusGenerated, invoice.Status)
}

func TestProcessSettlementNoExpectedAmountSkipsCheck(t *testing.T) {
	// 历史发票没有记录应还金额：按通知金额应用
	f := newSettlementFixture(t, "5000", "")

	result, err := f.deliver(t, "1000")
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)

	var loan model.Loan
	require.NoError(t, f.db.Where("id = ?", f.loan.ID).First(&loan).Error)
	assert.True(t, loan.Balance.Equal(decimal.NewFromInt(4000)))
}

func TestProcessSettlementUnknownInvoice(t *testing.T) {
	f := newSettlementFixture(t, "5000", "1200.50")

	body, err := webhook.EncodeSettlement("TXN-555", webhook.StatusCompleted, "INV-NOPE",
		decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = f.svc.ProcessSettlement(context.Background(), body, f.signer.Sign(body))
	assert.ErrorIs(t, err, repository.ErrInvoiceNotFound)
}

func TestProcessSettlementRejectedStatusInvalid(t *testing.T) {
	f := newSettlementFixture(t, "5000", "1200.50")

	// 对端只应上报已结清的支付，其余状态一律拒收
	body, err := webhook.EncodeSettlement("TXN-555", webhook.StatusRejected, "INV-2024-001",
		decimal.RequireFromString("1200.50"))
	require.NoError(t, err)

	_, err = f.svc.ProcessSettlement(context.Background(), body, f.signer.Sign(body))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestProcessSettlementPaysOffLoan(t *testing.T) {
	f := newSettlementFixture(t, "1200.50", "1200.50")

	result, err := f.deliver(t, "1200.50")
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusPaidOff, result.LoanStatus)

	var loan model.Loan
	require.NoError(t, f.db.Where("id = ?", f.loan.ID).First(&loan).Error)
	assert.True(t, loan.Balance.IsZero())
	assert.Equal(t, model.LoanStatusPaidOff, loan.Status)
}

func TestProcessSettlementClampsBalance(t *testing.T) {
	// 通知金额大于余额：余额钳位到 0，不出现负债为负
	f := newSettlementFixture(t, "1000", "")

	result, err := f.deliver(t, "1500")
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusPaidOff, result.LoanStatus)

	var loan model.Loan
	require.NoError(t, f.db.Where("id = ?", f.loan.ID).First(&loan).Error)
	assert.True(t, loan.Balance.IsZero())
}

func TestGenerateInvoice(t *testing.T) {
	f := newSettlementFixture(t, "5000", "1200.50")

	amount := decimal.NewFromInt(300)
	inv, err := f.svc.GenerateInvoice(context.Background(), "LOAN-100001", &amount)
	require.NoError(t, err)
	assert.Contains(t, inv.InvoiceNumber, "INV-")
	assert.Equal(t, model.LoanInvoiceStatusGenerated, inv.Status)

	_, err = f.svc.GenerateInvoice(context.Background(), "LOAN-404", &amount)
	assert.ErrorIs(t, err, repository.ErrLoanNotFound)
}
