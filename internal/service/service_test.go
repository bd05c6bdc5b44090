package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"aurumvault/internal/config"
	"aurumvault/internal/model"
	"aurumvault/internal/webhook"
	"aurumvault/pkg/idgen"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	idgen.Init(1)
	os.Exit(m.Run())
}

// newVaultTestDB 内存 sqlite，迁移银行核心侧全部表
// 单连接池：内存库的生命周期跟着唯一一条连接走
func newVaultTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.Transaction{},
		&model.PaymentVerification{},
		&model.Payee{},
		&model.CategoryThreshold{},
		&model.AuditLog{},
		&model.WebhookOutbox{},
	))
	return db
}

// newUHITestDB 内存 sqlite，迁移 UHI 侧贷款表
func newUHITestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Loan{},
		&model.LoanInvoice{},
		&model.LoanPayment{},
	))
	return db
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testConfig() *config.Config {
	return &config.Config{
		Webhook: config.WebhookConfig{
			Endpoint:      "http://uhi.test/api/webhooks/aurumvault",
			Secret:        "test-secret",
			MaxAttempts:   3,
			BackoffBaseMS: 1,
		},
		Business: config.BusinessConfig{
			Currency:              "CNY",
			MinDepositAmount:      0.01,
			DefaultDailyLimit:     50000,
			DefaultMonthlyLimit:   500000,
			VerificationThreshold: 10000,
			MaxRetryCount:         3,
		},
	}
}

func newTestNotifier(cfg *config.Config) *webhook.Notifier {
	return webhook.NewNotifier(cfg.Webhook.Endpoint, cfg.Webhook.Secret,
		cfg.Webhook.MaxAttempts, time.Millisecond)
}

// seedAccount 直接落库一个活跃账户
func seedAccount(t *testing.T, db *gorm.DB, userID int64, balance string) *model.Account {
	t.Helper()
	account := &model.Account{
		AccountNo:    idgen.GenerateAccountNo(),
		UserID:       userID,
		Currency:     "CNY",
		Balance:      decimal.RequireFromString(balance),
		Status:       model.AccountStatusActive,
		DailyLimit:   decimal.NewFromInt(50000),
		MonthlyLimit: decimal.NewFromInt(500000),
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

// seedPayee 落库一个收款方
func seedPayee(t *testing.T, db *gorm.DB, name, category, integration string) *model.Payee {
	t.Helper()
	payee := &model.Payee{
		Name:              name,
		Category:          category,
		CounterpartRef:    "REF-" + name,
		IntegrationTarget: integration,
	}
	require.NoError(t, db.Create(payee).Error)
	return payee
}

func reloadAccount(t *testing.T, db *gorm.DB, id int64) *model.Account {
	t.Helper()
	var account model.Account
	require.NoError(t, db.Where("id = ?", id).First(&account).Error)
	return &account
}

func countRows(t *testing.T, db *gorm.DB, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Where(query, args...).Count(&n).Error)
	return n
}

// stubPublisher 捕获发布的客户通知事件
type stubPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *stubPublisher) PublishCustomerNotification(ctx context.Context, userID int64, event string, detail map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("%d:%s", userID, event))
	return nil
}

func (p *stubPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
