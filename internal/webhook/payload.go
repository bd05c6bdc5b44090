package webhook

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// 结清状态：只有 COMPLETED 需要通知对端；被拒绝的支付绝不能被上报为已结清
const (
	StatusCompleted = "COMPLETED"
	StatusRejected  = "REJECTED"
)

// SettlementPayload 结清通知载荷（线上格式）
//
// 【重要】签名对序列化后的精确字节计算，载荷一经编码不得再改动。
// 金额是 JSON number（接收端做 0.01 容差比较抵御浮点噪声）
type SettlementPayload struct {
	TransactionRef string  `json:"transactionRef"`
	Status         string  `json:"status"`
	InvoiceNumber  string  `json:"invoiceNumber"`
	Amount         float64 `json:"amount"`
	Timestamp      string  `json:"timestamp"` // ISO-8601
}

// EncodeSettlement 构造并编码规范化载荷
func EncodeSettlement(transactionRef, status, invoiceNumber string, amount decimal.Decimal) ([]byte, error) {
	payload := SettlementPayload{
		TransactionRef: transactionRef,
		Status:         status,
		InvoiceNumber:  invoiceNumber,
		Amount:         amount.InexactFloat64(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

// DecodeSettlement 解析载荷（接收端在验签通过后调用）
func DecodeSettlement(body []byte) (*SettlementPayload, error) {
	var payload SettlementPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
