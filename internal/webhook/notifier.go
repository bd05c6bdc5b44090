package webhook

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Notifier 结清通知投递器
//
// 【边界约定】通知投递是尽力而为：重试耗尽后只记日志，绝不向调用方抛错。
// 发起方的资金操作已经成功，不能因为通知失败而回滚
type Notifier struct {
	endpoint    string
	signer      *Signer
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
}

func NewNotifier(endpoint, secret string, maxAttempts int, backoffBase time.Duration) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	return &Notifier{
		endpoint:    endpoint,
		signer:      NewSigner(secret),
		client:      &http.Client{Timeout: 5 * time.Second},
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Endpoint 默认投递地址
func (n *Notifier) Endpoint() string {
	return n.endpoint
}

// Signer 供入箱方复用同一把密钥签名
func (n *Notifier) Signer() *Signer {
	return n.signer
}

// NotifySettlement 同步投递一条结清事实
//
// status 不是已结清状态、或没有发票号（对端无从对账）时直接无操作。
// 最多尝试 maxAttempts 次，指数退避；非 2xx 与网络错误都算失败。
// 耗尽后记日志返回 nil —— 见上面的边界约定
func (n *Notifier) NotifySettlement(ctx context.Context, transactionRef, status, invoiceNumber string, amount decimal.Decimal) error {
	if status != StatusCompleted || invoiceNumber == "" {
		return nil
	}

	body, err := EncodeSettlement(transactionRef, status, invoiceNumber, amount)
	if err != nil {
		return fmt.Errorf("编码结清载荷失败: %w", err)
	}
	signature := n.signer.Sign(body)

	var lastErr error
	for attempt := 0; attempt < n.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := n.backoffBase << uint(attempt-1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = n.DeliverOnce(ctx, n.endpoint, body, signature)
		if lastErr == nil {
			log.Printf("[WebhookNotifier] 结清通知投递成功: ref=%s, invoice=%s", transactionRef, invoiceNumber)
			return nil
		}
		log.Printf("[WebhookNotifier] 结清通知投递失败(第%d次): ref=%s, err=%v", attempt+1, transactionRef, lastErr)
	}

	log.Printf("[WebhookNotifier] 结清通知重试耗尽: ref=%s, invoice=%s, err=%v", transactionRef, invoiceNumber, lastErr)
	return nil
}

// DeliverOnce 单次投递（发件箱任务逐轮调用，重试预算记在发件箱行上）
func (n *Notifier) DeliverOnce(ctx context.Context, endpoint string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("对端返回非 2xx 状态: %d", resp.StatusCode)
}
