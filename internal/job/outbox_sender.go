package job

import (
	"context"
	"log"
	"time"

	"aurumvault/internal/config"
	"aurumvault/internal/model"
	"aurumvault/internal/repository"
	"aurumvault/internal/webhook"

	"gorm.io/gorm"
)

// OutboxSender 发件箱投递任务
//
// 资金事务只负责把结清通知原子地写入发件箱，投递由这里异步推进：
// 每轮扫描 PENDING 消息逐条投递一次，失败累加 retry_count，
// 超过预算标记 FAILED 留给人工对账。请求路径因此完全不被网络抖动拖慢
type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	notifier   *webhook.Notifier
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config, notifier *webhook.Notifier) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		notifier:   notifier,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   500 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 结清通知投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPendingMessages 扫描并投递一轮
func (s *OutboxSender) ProcessPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询发件箱失败: %v", err)
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.WebhookOutbox) {
	err := s.notifier.DeliverOnce(ctx, msg.Endpoint, []byte(msg.Payload), msg.Signature)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		} else {
			log.Printf("[OutboxSender] 结清通知投递成功: id=%d, invoice=%s", msg.ID, msg.MessageKey)
		}
		return
	}

	log.Printf("[OutboxSender] 结清通知投递失败: id=%d, invoice=%s, err=%v", msg.ID, msg.MessageKey, err)

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d, invoice=%s", msg.ID, msg.MessageKey)
		}
		return
	}

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}
}
