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
	"aurumvault/internal/infrastructure/database"
	"aurumvault/internal/infrastructure/mq"
	"aurumvault/internal/notification"
	"aurumvault/internal/service"
	"aurumvault/pkg/idgen"
)

// UHI 对端服务：贷款台账、发票生成、结清通知接收
func main() {
	// 加载配置（与银行核心共用结构，各自一份 yaml）
	cfg := config.LoadConfig("config/uhi.yaml")

	// 初始化 ID 生成器（节点号与银行核心错开）
	idgen.Init(2)

	// 初始化 MySQL
	db := database.InitUHIMySQL(&cfg.MySQL)

	// 初始化 Kafka（员工通知事件）
	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()
	publisher := notification.NewKafkaPublisher(producer, cfg.Kafka.Topic.CustomerNotification)

	settlementService := service.NewSettlementService(db, cfg.Webhook.Secret, publisher)

	// 设置路由
	router := handler.SetupUHIRouter(settlementService)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("UHI 对端服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
