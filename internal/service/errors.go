package service

import "errors"

// 业务规则类错误：调用方要据此做不同反应，必须是可区分的哨兵值，
// 不能糊成一个笼统失败
var (
	ErrInvalidAmount        = errors.New("金额必须大于0")
	ErrDepositBelowMinimum  = errors.New("存款金额低于最低限额")
	ErrDailyLimitExceeded   = errors.New("超出当日出账限额")
	ErrSameAccount          = errors.New("转出与转入账户不能相同")
	ErrVerificationRequired = errors.New("金额达到审核阈值，需提交证明材料走人工审核")

	// Webhook 接收端
	ErrInvalidSignature = errors.New("签名校验失败")
	ErrInvalidPayload   = errors.New("结清通知载荷不合法")
	ErrAmountMismatch   = errors.New("通知金额与发票应还金额不符")
)
