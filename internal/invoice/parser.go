package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"
)

// ErrDocumentUnreadable 文档本身无法解码（损坏的 PDF）
// 这是解析器唯一的失败方式：字段稀疏的合法文档不报错，缺失字段置空
var ErrDocumentUnreadable = errors.New("发票文档无法读取")

// ParsedInvoice 从人类可读发票中恢复出的机器可读支付意图
// 一次上传解析一次，立即被支付流程消费，不落库
type ParsedInvoice struct {
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`    // Total Due
	Principal     *decimal.Decimal `json:"principal,omitempty"` // 本金
	Tax           *decimal.Decimal `json:"tax,omitempty"`
	Fee           *decimal.Decimal `json:"fee,omitempty"`
	ServiceCode   string           `json:"service_code,omitempty"`
	AccountCode   string           `json:"account_code,omitempty"`
	LoanCode      string           `json:"loan_code,omitempty"` // LOAN-<digits>
	PaymentPIN    string           `json:"payment_pin,omitempty"`
}

// ============================================================================
// 字段提取规则
// 各规则彼此独立：命中与否互不影响，都只产出自己那一个字段
// ============================================================================

var (
	// 发票号："Invoice #<token>" 优先，其次独立出现的 INV-<token>
	reInvoiceLabeled = regexp.MustCompile(`(?i)Invoice\s*#\s*([A-Za-z0-9][A-Za-z0-9-]*)`)
	reInvoiceBare    = regexp.MustCompile(`\bINV-[A-Za-z0-9-]+\b`)

	// 金额：标签后跟带千分位的小数
	reTotalDue  = regexp.MustCompile(`(?i)Total\s+Due\s*:?\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	rePrincipal = regexp.MustCompile(`(?i)Principal(?:\s+Amount)?\s*:?\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	reTax       = regexp.MustCompile(`(?i)\bTax\s*:?\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	reFee       = regexp.MustCompile(`(?i)\bFees?\s*:?\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// 各类编码
	reServiceCode = regexp.MustCompile(`(?i)Service\s+Code\s*:?\s*([A-Za-z0-9-]+)`)
	reAccountCode = regexp.MustCompile(`(?i)(?:Account|Reference)\s+(?:Code|No\.?|Number)\s*:?\s*([A-Za-z0-9-]+)`)
	reLoanCode    = regexp.MustCompile(`\bLOAN-\d+\b`)
	rePaymentPIN  = regexp.MustCompile(`(?i)(?:Payment\s+)?PIN\s*:?\s*([0-9]{4,8})`)
)

// Parse 解析 PDF 发票
// 先提取纯文本，再对文本应用规则集。只有文档解码失败才返回错误
func Parse(data []byte) (*ParsedInvoice, error) {
	text, err := extractText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnreadable, err)
	}
	return ParseText(text), nil
}

// ParseText 对已提取的文本应用规则集
// 纯函数，永不失败：缺失的字段保持零值
func ParseText(text string) *ParsedInvoice {
	inv := &ParsedInvoice{}

	if m := reInvoiceLabeled.FindStringSubmatch(text); m != nil {
		inv.InvoiceNumber = m[1]
	} else if m := reInvoiceBare.FindString(text); m != "" {
		inv.InvoiceNumber = m
	}

	inv.Amount = matchAmount(reTotalDue, text)
	inv.Principal = matchAmount(rePrincipal, text)
	inv.Tax = matchAmount(reTax, text)
	inv.Fee = matchAmount(reFee, text)

	if m := reServiceCode.FindStringSubmatch(text); m != nil {
		inv.ServiceCode = m[1]
	}
	if m := reAccountCode.FindStringSubmatch(text); m != nil {
		inv.AccountCode = m[1]
	}
	if m := reLoanCode.FindString(text); m != "" {
		inv.LoanCode = m
	}
	if m := rePaymentPIN.FindStringSubmatch(text); m != nil {
		inv.PaymentPIN = m[1]
	}

	return inv
}

func matchAmount(re *regexp.Regexp, text string) *decimal.Decimal {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	// 去掉千分位分隔符
	raw := strings.ReplaceAll(m[1], ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

// extractText 从 PDF 字节中提取纯文本
// pdf 库在畸形文档上会 panic，这里一并收敛为错误返回
func extractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf 解码异常: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
