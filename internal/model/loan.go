package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// UHI 侧（员工/工资门户）贷款模型
// 与 AurumVault 侧没有共享数据库，靠发票号业务键对账
// ============================================================================

const (
	LoanStatusActive  = "active"
	LoanStatusPaidOff = "paid_off"
)

const (
	LoanInvoiceStatusGenerated = "generated"
	LoanInvoiceStatusPaid      = "paid"
)

// Loan 员工贷款
type Loan struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	LoanNo    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"loan_no"` // 形如 LOAN-123456
	StaffID   int64           `gorm:"index;not null" json:"staff_id"`
	Principal decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"principal"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance"` // 未偿余额，永不为负
	Status    string          `gorm:"type:varchar(20);not null;default:active" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string {
	return "loan"
}

// LoanInvoice 贷款还款发票
// InvoiceNumber 是跨系统对账的业务键：全局唯一、生成后不可变。
// generated → paid 恰好发生一次，重复的结清通知必须是无操作
type LoanInvoice struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceNumber    string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_number"`
	LoanID           int64            `gorm:"index;not null" json:"loan_id"`
	Amount           *decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"` // 应还金额；历史发票可能没有记录金额
	Status           string           `gorm:"type:varchar(20);index;not null;default:generated" json:"status"`
	PaymentReference string           `gorm:"type:varchar(64)" json:"payment_reference"` // 对端流水号
	PaidAt           *time.Time       `json:"paid_at"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LoanInvoice) TableName() string {
	return "loan_invoice"
}

// LoanPayment 还款记录，每应用一次结清通知追加一条
type LoanPayment struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	LoanID         int64           `gorm:"index;not null" json:"loan_id"`
	InvoiceNumber  string          `gorm:"type:varchar(64);index;not null" json:"invoice_number"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	TransactionRef string          `gorm:"type:varchar(64);not null" json:"transaction_ref"` // AurumVault 侧流水号
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LoanPayment) TableName() string {
	return "loan_payment"
}
