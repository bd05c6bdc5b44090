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

func newPaymentFixture(t *testing.T) (*PaymentService, *gorm.DB) {
	t.Helper()
	db := newVaultTestDB(t)
	cfg := testConfig()
	svc := NewPaymentService(db, newTestRedis(t), cfg, newTestNotifier(cfg))
	return svc, db
}

func TestPayBillBelowThresholdCompletes(t *testing.T) {
	svc, db := newPaymentFixture(t)
	ctx := context.Background()
	account := seedAccount(t, db, 1, "20000")
	payee := seedPayee(t, db, "大学贷款中心", "LOAN", model.IntegrationTargetUHI)

	resp, err := svc.PayBill(ctx, &PayBillRequest{
		RequestID:     "req-001",
		UserID:        1,
		AccountNo:     account.AccountNo,
		PayeeID:       payee.ID,
		Amount:        decimal.RequireFromString("9999.99"),
		InvoiceNumber: "INV-2024-001",
	})
	require.NoError(t, err)

	assert.Equal(t, model.TransactionStatusCompleted, resp.Status)
	assert.Empty(t, resp.VerificationNo)
	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.RequireFromString("10000.01")))

	// 结清事实已入发件箱，签名对载荷字节可验
	var msg model.WebhookOutbox
	require.NoError(t, db.Where("message_key = ?", "INV-2024-001").First(&msg).Error)
	assert.Equal(t, model.OutboxStatusPending, msg.Status)
	assert.True(t, webhook.NewSigner("test-secret").Verify([]byte(msg.Payload), msg.Signature))

	payload, err := webhook.DecodeSettlement([]byte(msg.Payload))
	require.NoError(t, err)
	assert.Equal(t, resp.TransactionNo, payload.TransactionRef)
	assert.Equal(t, webhook.StatusCompleted, payload.Status)
	assert.InDelta(t, 9999.99, payload.Amount, 0.001)
}

func TestPayBillAtThresholdRequiresVerification(t *testing.T) {
	svc, db := newPaymentFixture(t)
	account := seedAccount(t, db, 1, "20000")
	payee := seedPayee(t, db, "税务局", "TAX", "")

	// 等于阈值即触发审核，且未发生任何资金变动
	_, err := svc.PayBill(context.Background(), &PayBillRequest{
		RequestID: "req-002",
		UserID:    1,
		AccountNo: account.AccountNo,
		PayeeID:   payee.ID,
		Amount:    decimal.NewFromInt(10000),
	})
	assert.ErrorIs(t, err, ErrVerificationRequired)

	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.NewFromInt(20000)))
	assert.EqualValues(t, 0, countRows(t, db, &model.Transaction{}, "1 = 1"))
	assert.EqualValues(t, 0, countRows(t, db, &model.WebhookOutbox{}, "1 = 1"))
}

func TestPayBillCategoryThresholdOverride(t *testing.T) {
	svc, db := newPaymentFixture(t)
	ctx := context.Background()
	account := seedAccount(t, db, 1, "20000")
	payee := seedPayee(t, db, "水电公司", "UTILITY", "")
	require.NoError(t, db.Create(&model.CategoryThreshold{
		Category:  "UTILITY",
		Threshold: decimal.NewFromInt(500),
	}).Error)

	_, err := svc.PayBill(ctx, &PayBillRequest{
		RequestID: "req-003",
		UserID:    1,
		AccountNo: account.AccountNo,
		PayeeID:   payee.ID,
		Amount:    decimal.NewFromInt(600),
	})
	assert.ErrorIs(t, err, ErrVerificationRequired)

	// 低于覆盖阈值一分钱即放行
	resp, err := svc.PayBill(ctx, &PayBillRequest{
		RequestID: "req-004",
		UserID:    1,
		AccountNo: account.AccountNo,
		PayeeID:   payee.ID,
		Amount:    decimal.RequireFromString("499.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, resp.Status)
}

func TestPayBillVerifiedHoldsFunds(t *testing.T) {
	svc, db := newPaymentFixture(t)
	account := seedAccount(t, db, 1, "20000")
	payee := seedPayee(t, db, "大学贷款中心", "LOAN", model.IntegrationTargetUHI)

	resp, err := svc.PayBillVerified(context.Background(), &PayBillRequest{
		RequestID:     "req-005",
		UserID:        1,
		AccountNo:     account.AccountNo,
		PayeeID:       payee.ID,
		Amount:        decimal.NewFromInt(15000),
		InvoiceNumber: "INV-2024-002",
	}, "/evidence/slip.pdf", "pdf")
	require.NoError(t, err)

	// 资金立即冻结（扣减），交易挂起，审核单就位
	assert.Equal(t, model.TransactionStatusPendingVerification, resp.Status)
	assert.NotEmpty(t, resp.VerificationNo)
	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.NewFromInt(5000)))

	var v model.PaymentVerification
	require.NoError(t, db.Where("verification_no = ?", resp.VerificationNo).First(&v).Error)
	assert.Equal(t, model.VerificationStatusPending, v.Status)
	assert.Equal(t, "/evidence/slip.pdf", v.EvidencePath)

	// 审核通过前结清事实绝不外发
	assert.EqualValues(t, 0, countRows(t, db, &model.WebhookOutbox{}, "1 = 1"))
}

func TestPayBillIdempotentRequestID(t *testing.T) {
	svc, db := newPaymentFixture(t)
	ctx := context.Background()
	account := seedAccount(t, db, 1, "20000")
	payee := seedPayee(t, db, "水电公司", "UTILITY", "")

	req := &PayBillRequest{
		RequestID: "req-006",
		UserID:    1,
		AccountNo: account.AccountNo,
		PayeeID:   payee.ID,
		Amount:    decimal.NewFromInt(100),
	}
	first, err := svc.PayBill(ctx, req)
	require.NoError(t, err)

	second, err := svc.PayBill(ctx, req)
	require.NoError(t, err)

	// 重复提交返回首次结果，只扣一次钱、只留一条流水
	assert.Equal(t, first.TransactionNo, second.TransactionNo)
	assert.EqualValues(t, 1, countRows(t, db, &model.Transaction{}, "request_id = ?", "req-006"))
	assert.True(t, reloadAccount(t, db, account.ID).Balance.Equal(decimal.NewFromInt(19900)))
}

func TestPayBillWithoutIntegrationSkipsOutbox(t *testing.T) {
	svc, db := newPaymentFixture(t)
	account := seedAccount(t, db, 1, "20000")
	payee := seedPayee(t, db, "税务局", "TAX", "")

	_, err := svc.PayBill(context.Background(), &PayBillRequest{
		RequestID:     "req-007",
		UserID:        1,
		AccountNo:     account.AccountNo,
		PayeeID:       payee.ID,
		Amount:        decimal.NewFromInt(200),
		InvoiceNumber: "INV-2024-003",
	})
	require.NoError(t, err)

	// 纯内部收款方：支付成功但无需通知对端
	assert.EqualValues(t, 0, countRows(t, db, &model.WebhookOutbox{}, "1 = 1"))
}

func TestPayBillUnknownPayee(t *testing.T) {
	svc, db := newPaymentFixture(t)
	account := seedAccount(t, db, 1, "20000")

	_, err := svc.PayBill(context.Background(), &PayBillRequest{
		RequestID: "req-008",
		UserID:    1,
		AccountNo: account.AccountNo,
		PayeeID:   999,
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, repository.ErrPayeeNotFound)
}

func TestPayBillInsufficientFunds(t *testing.T) {
	svc, db := newPaymentFixture(t)
	account := seedAccount(t, db, 1, "50")
	payee := seedPayee(t, db, "水电公司", "UTILITY", "")

	_, err := svc.PayBill(context.Background(), &PayBillRequest{
		RequestID: "req-009",
		UserID:    1,
		AccountNo: account.AccountNo,
		PayeeID:   payee.ID,
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)
}
