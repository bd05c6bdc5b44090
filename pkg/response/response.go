package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码：资金操作失败必须给出精确原因，调用方 UI 要据此做不同反应
const (
	CodeAccountNotFound        = 1001
	CodeAccountInactive        = 1002
	CodeInsufficientFunds      = 1003
	CodeDailyLimitExceeded     = 1004
	CodeSameAccount            = 1005
	CodeVerificationRequired   = 1006
	CodeVerificationNotFound   = 1007
	CodeVerificationNotPending = 1008
	CodePayeeNotFound          = 1009
	CodeDuplicateRequest       = 1010
	CodeDocumentUnreadable     = 1011
	CodeLoanNotFound           = 1012
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
