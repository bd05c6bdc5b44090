package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// 客户通知事件类型
const (
	EventPaymentApproved  = "PAYMENT_APPROVED"
	EventPaymentRejected  = "PAYMENT_REJECTED"
	EventPaymentConfirmed = "PAYMENT_CONFIRMED" // UHI 侧：还款已入账
)

// Publisher 客户通知发布端口
// 通知是尽力而为：发布失败只记日志，绝不影响资金事务的结果。
// 接口注入便于服务层单测时用桩替换
type Publisher interface {
	PublishCustomerNotification(ctx context.Context, userID int64, event string, detail map[string]interface{}) error
}

// KafkaPublisher 基于 Kafka 的通知发布器，下游通知服务消费该主题
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

type customerNotification struct {
	UserID    int64                  `json:"user_id"`
	Event     string                 `json:"event"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

func (p *KafkaPublisher) PublishCustomerNotification(ctx context.Context, userID int64, event string, detail map[string]interface{}) error {
	payload, err := json.Marshal(customerNotification{
		UserID:    userID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", userID)),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return err
	}
	return nil
}

// BestEffort 发布通知并吞掉错误（资金操作提交后的收尾动作统一走这里）
func BestEffort(ctx context.Context, p Publisher, userID int64, event string, detail map[string]interface{}) {
	if p == nil {
		return
	}
	if err := p.PublishCustomerNotification(ctx, userID, event, detail); err != nil {
		log.Printf("[Notification] 客户通知发布失败: userID=%d, event=%s, err=%v", userID, event, err)
	}
}
