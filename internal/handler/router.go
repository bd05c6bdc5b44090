package handler

import (
	"aurumvault/internal/config"
	"aurumvault/internal/notification"
	"aurumvault/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置银行核心侧路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, notifier *webhook.Notifier, publisher notification.Publisher) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, notifier, publisher)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.POST("/open", h.OpenAccount)
			account.GET("/detail", h.GetAccount)
			account.GET("/transactions", h.ListTransactions)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
		}

		// 转账相关
		transfer := api.Group("/transfer")
		{
			transfer.POST("/execute", h.Transfer)
		}

		// 账单支付相关
		payment := api.Group("/payment")
		{
			payment.POST("/invoice/parse", h.ParseInvoice)
			payment.POST("/bill", h.PayBill)
			payment.POST("/bill/verified", h.PayBillVerified)
		}

		// 管理端
		admin := api.Group("/admin")
		{
			admin.GET("/verification/list", h.ListPendingVerifications)
			admin.POST("/verification/approve", h.ApproveVerification)
			admin.POST("/verification/reject", h.RejectVerification)
			admin.POST("/threshold", h.SetThreshold)
			admin.POST("/payee", h.CreatePayee)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
