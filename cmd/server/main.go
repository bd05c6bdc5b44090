package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aurumvault/internal/config"
	"aurumvault/internal/handler"
	"aurumvault/internal/infrastructure/cache"
	"aurumvault/internal/infrastructure/database"
	"aurumvault/internal/infrastructure/mq"
	"aurumvault/internal/job"
	"aurumvault/internal/notification"
	"aurumvault/internal/webhook"
	"aurumvault/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitVaultMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka（客户通知事件）
	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()
	publisher := notification.NewKafkaPublisher(producer, cfg.Kafka.Topic.CustomerNotification)

	// 结清通知投递器（与 UHI 对端共享 HMAC 密钥）
	notifier := webhook.NewNotifier(cfg.Webhook.Endpoint, cfg.Webhook.Secret,
		cfg.Webhook.MaxAttempts, time.Duration(cfg.Webhook.BackoffBaseMS)*time.Millisecond)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg, notifier)
	go outboxSender.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg, notifier, publisher)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("银行核心服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
