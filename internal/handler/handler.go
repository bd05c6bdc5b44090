package handler

import (
	"errors"
	"io"
	"strconv"

	"aurumvault/internal/config"
	"aurumvault/internal/invoice"
	"aurumvault/internal/model"
	"aurumvault/internal/notification"
	"aurumvault/internal/repository"
	"aurumvault/internal/service"
	"aurumvault/internal/webhook"
	"aurumvault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
// 路由层只做参数绑定和错误码映射，业务规则全部在服务层
type Handler struct {
	transactionService  *service.TransactionService
	paymentService      *service.PaymentService
	verificationService *service.VerificationService
	thresholdService    *service.ThresholdService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, notifier *webhook.Notifier, publisher notification.Publisher) *Handler {
	return &Handler{
		transactionService:  service.NewTransactionService(db, cfg),
		paymentService:      service.NewPaymentService(db, rdb, cfg, notifier),
		verificationService: service.NewVerificationService(db, rdb, cfg, notifier, publisher),
		thresholdService:    service.NewThresholdService(db, cfg),
	}
}

// mapBusinessError 业务错误 → 业务码
// 资金操作失败必须给出精确原因（余额不足 / 超限额 / 账户不可用），
// 不能糊成一个笼统的服务器错误
func mapBusinessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, repository.ErrAccountInactive):
		response.BusinessError(c, response.CodeAccountInactive, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrDailyLimitExceeded):
		response.BusinessError(c, response.CodeDailyLimitExceeded, err.Error())
	case errors.Is(err, service.ErrSameAccount):
		response.BusinessError(c, response.CodeSameAccount, err.Error())
	case errors.Is(err, service.ErrVerificationRequired):
		response.BusinessError(c, response.CodeVerificationRequired, err.Error())
	case errors.Is(err, repository.ErrVerificationNotFound):
		response.BusinessError(c, response.CodeVerificationNotFound, err.Error())
	case errors.Is(err, repository.ErrVerificationNotPending):
		response.BusinessError(c, response.CodeVerificationNotPending, err.Error())
	case errors.Is(err, repository.ErrPayeeNotFound):
		response.BusinessError(c, response.CodePayeeNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrDepositBelowMinimum):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// OpenAccountRequest 开户请求
type OpenAccountRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Currency string `json:"currency"`
}

// OpenAccount 开户
// POST /api/v1/account/open
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.transactionService.OpenAccount(c.Request.Context(), req.UserID, req.Currency)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, account)
}

// GetAccount 查询账户余额
// GET /api/v1/account/detail?user_id=xxx&account_no=xxx
func (h *Handler) GetAccount(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	accountNo := c.Query("account_no")
	if accountNo == "" {
		response.ParamError(c, "account_no 参数不能为空")
		return
	}

	account, err := h.transactionService.GetAccount(c.Request.Context(), userID, accountNo)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_no": account.AccountNo,
		"currency":   account.Currency,
		"balance":    account.Balance,
		"status":     account.Status,
	})
}

// ListTransactions 查询账户流水
// GET /api/v1/account/transactions?user_id=xxx&account_no=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	accountNo := c.Query("account_no")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	list, total, err := h.transactionService.ListTransactions(c.Request.Context(), userID, accountNo, page, pageSize)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// MoneyRequest 存取款请求
type MoneyRequest struct {
	UserID    int64   `json:"user_id" binding:"required"`
	AccountNo string  `json:"account_no" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Remark    string  `json:"remark"`
}

// Deposit 存款
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.transactionService.Deposit(c.Request.Context(), req.UserID, req.AccountNo,
		decimal.NewFromFloat(req.Amount), req.Remark)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": trans.TransactionNo,
		"status":         trans.Status,
		"balance_after":  trans.BalanceAfter,
	})
}

// Withdraw 取款
// POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.transactionService.Withdraw(c.Request.Context(), req.UserID, req.AccountNo,
		decimal.NewFromFloat(req.Amount), req.Remark)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": trans.TransactionNo,
		"status":         trans.Status,
		"balance_after":  trans.BalanceAfter,
	})
}

// TransferRequest 转账请求
type TransferRequest struct {
	UserID        int64   `json:"user_id" binding:"required"`
	FromAccountNo string  `json:"from_account_no" binding:"required"`
	ToAccountNo   string  `json:"to_account_no" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	Remark        string  `json:"remark"`
}

// Transfer 内部转账
// POST /api/v1/transfer/execute
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.transactionService.Transfer(c.Request.Context(), req.UserID, req.FromAccountNo,
		req.ToAccountNo, decimal.NewFromFloat(req.Amount), req.Remark)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": trans.TransactionNo,
		"status":         trans.Status,
	})
}

// ============================================================
// 账单支付相关接口
// ============================================================

// ParseInvoice 上传发票 PDF，解析出机器可读的支付意图
// POST /api/v1/payment/invoice/parse （multipart，字段名 file）
func (h *Handler) ParseInvoice(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.ParamError(c, "缺少发票文件")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	parsed, err := invoice.Parse(data)
	if err != nil {
		if errors.Is(err, invoice.ErrDocumentUnreadable) {
			response.BusinessError(c, response.CodeDocumentUnreadable, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, parsed)
}

// PayBillRequest 账单支付请求
type PayBillRequest struct {
	RequestID     string  `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	UserID        int64   `json:"user_id" binding:"required"`
	AccountNo     string  `json:"account_no" binding:"required"`
	PayeeID       int64   `json:"payee_id" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	InvoiceNumber string  `json:"invoice_number"`
	Remark        string  `json:"remark"`
	EvidencePath  string  `json:"evidence_path"` // 审核路径必填
	EvidenceType  string  `json:"evidence_type"`
}

func (r *PayBillRequest) toService() *service.PayBillRequest {
	return &service.PayBillRequest{
		RequestID:     r.RequestID,
		UserID:        r.UserID,
		AccountNo:     r.AccountNo,
		PayeeID:       r.PayeeID,
		Amount:        decimal.NewFromFloat(r.Amount),
		InvoiceNumber: r.InvoiceNumber,
		Remark:        r.Remark,
	}
}

// PayBill 账单支付（免审路径）
// POST /api/v1/payment/bill
//
// 【关键点】金额达到类别审核阈值时返回 CodeVerificationRequired，
// 此时没有任何资金变动，调用方需携带证明材料改走 /verified 接口
func (h *Handler) PayBill(c *gin.Context) {
	var req PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.paymentService.PayBill(c.Request.Context(), req.toService())
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, result)
}

// PayBillVerified 账单支付（人工审核路径）
// POST /api/v1/payment/bill/verified
func (h *Handler) PayBillVerified(c *gin.Context) {
	var req PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.EvidencePath == "" {
		response.ParamError(c, "审核路径必须提交证明材料")
		return
	}

	result, err := h.paymentService.PayBillVerified(c.Request.Context(), req.toService(), req.EvidencePath, req.EvidenceType)
	if err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 管理端接口
// ============================================================

// ListPendingVerifications 待审核列表
// GET /api/v1/admin/verification/list
func (h *Handler) ListPendingVerifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.verificationService.ListPending(c.Request.Context(), limit)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"list": list})
}

// DecisionRequest 审核决定请求
type DecisionRequest struct {
	VerificationNo string `json:"verification_no" binding:"required"`
	AdminID        int64  `json:"admin_id" binding:"required"`
	Notes          string `json:"notes"`
}

// ApproveVerification 批准
// POST /api/v1/admin/verification/approve
func (h *Handler) ApproveVerification(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.verificationService.Approve(c.Request.Context(), req.VerificationNo, req.AdminID, req.Notes); err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{"verification_no": req.VerificationNo, "status": model.VerificationStatusApproved})
}

// RejectVerification 拒绝并退款
// POST /api/v1/admin/verification/reject
func (h *Handler) RejectVerification(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.verificationService.Reject(c.Request.Context(), req.VerificationNo, req.AdminID, req.Notes); err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{"verification_no": req.VerificationNo, "status": model.VerificationStatusRejected})
}

// ThresholdRequest 阈值设置请求
type ThresholdRequest struct {
	AdminID   int64   `json:"admin_id" binding:"required"`
	Category  string  `json:"category" binding:"required"`
	Threshold float64 `json:"threshold" binding:"required,gt=0"`
}

// SetThreshold 设置类别审核阈值
// POST /api/v1/admin/threshold
func (h *Handler) SetThreshold(c *gin.Context) {
	var req ThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.thresholdService.SetCategoryThreshold(c.Request.Context(), req.AdminID, req.Category,
		decimal.NewFromFloat(req.Threshold)); err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{"category": req.Category})
}

// PayeeRequest 收款方创建请求
type PayeeRequest struct {
	AdminID           int64  `json:"admin_id" binding:"required"`
	Name              string `json:"name" binding:"required"`
	Category          string `json:"category" binding:"required"`
	CounterpartRef    string `json:"counterpart_ref"`
	IntegrationTarget string `json:"integration_target"`
}

// CreatePayee 新增收款方
// POST /api/v1/admin/payee
func (h *Handler) CreatePayee(c *gin.Context) {
	var req PayeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	payee := &model.Payee{
		Name:              req.Name,
		Category:          req.Category,
		CounterpartRef:    req.CounterpartRef,
		IntegrationTarget: req.IntegrationTarget,
	}
	if err := h.thresholdService.CreatePayee(c.Request.Context(), req.AdminID, payee); err != nil {
		mapBusinessError(c, err)
		return
	}

	response.Success(c, payee)
}
