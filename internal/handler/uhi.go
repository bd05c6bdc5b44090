package handler

import (
	"errors"
	"net/http"

	"aurumvault/internal/repository"
	"aurumvault/internal/service"
	"aurumvault/internal/webhook"
	"aurumvault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UHIHandler 人资/工资侧处理器：接收结清通知、生成还款发票
type UHIHandler struct {
	settlementService *service.SettlementService
}

func NewUHIHandler(settlementService *service.SettlementService) *UHIHandler {
	return &UHIHandler{settlementService: settlementService}
}

// ReceiveSettlement 接收银行侧的结清通知
// POST /api/webhooks/aurumvault
//
// 【重要】这是跨系统的线上契约，按原始 HTTP 状态码表达结果：
//   - 2xx：已接受（含重复送达，发送方据此停止重试）
//   - 400：验签失败 / 载荷非法 / 金额不符（重试也不会成功）
//   - 404：发票不存在
//
// 验签必须针对原始请求体，任何重新序列化都会让签名失效
func (h *UHIHandler) ReceiveSettlement(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}
	signature := c.GetHeader(webhook.SignatureHeader)

	result, err := h.settlementService.ProcessSettlement(c.Request.Context(), body, signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature),
			errors.Is(err, service.ErrInvalidPayload),
			errors.Is(err, service.ErrAmountMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrInvoiceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GenerateInvoiceRequest 发票生成请求
type GenerateInvoiceRequest struct {
	LoanNo string   `json:"loan_no" binding:"required"`
	Amount *float64 `json:"amount"` // 可空：不填则结清时不做金额校验
}

// GenerateInvoice 生成还款发票
// POST /api/v1/loan/invoice/generate
func (h *UHIHandler) GenerateInvoice(c *gin.Context) {
	var req GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var amount *decimal.Decimal
	if req.Amount != nil {
		d := decimal.NewFromFloat(*req.Amount)
		amount = &d
	}

	inv, err := h.settlementService.GenerateInvoice(c.Request.Context(), req.LoanNo, amount)
	if err != nil {
		if errors.Is(err, repository.ErrLoanNotFound) {
			response.BusinessError(c, response.CodeLoanNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, inv)
}

// SetupUHIRouter 配置人资侧路由
func SetupUHIRouter(settlementService *service.SettlementService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewUHIHandler(settlementService)

	// webhook 契约端点
	r.POST("/api/webhooks/aurumvault", h.ReceiveSettlement)

	api := r.Group("/api/v1")
	{
		loan := api.Group("/loan")
		{
			loan.POST("/invoice/generate", h.GenerateInvoice)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
