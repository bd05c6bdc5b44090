package money

import (
	"github.com/shopspring/decimal"
)

// 账内算术使用精确 decimal；对外部传入金额做相等比较时允许 0.01 的绝对容差，
// 抵御浮点数往返序列化产生的噪声（Webhook 载荷里金额是 JSON number）
var (
	// Tolerance 外部金额比较容差
	Tolerance = decimal.RequireFromString("0.01")

	// LoanEpsilon 贷款余额小于等于该值视为已还清
	LoanEpsilon = decimal.RequireFromString("0.01")
)

// WithinTolerance 判断两个金额在容差内是否相等
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(Tolerance) <= 0
}

// IsPositive 金额是否为正
func IsPositive(a decimal.Decimal) bool {
	return a.Cmp(decimal.Zero) > 0
}
