package response

import (
	"errors"
	"net/http"

	"pointsystem/internal/model"
	"pointsystem/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeNotFound    = 404
	CodeServerError = 500
)

const (
	// CodeLedgerIntegrity 余额已变更但流水缺失，需要人工介入
	CodeLedgerIntegrity = 1500
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

func Error(c *gin.Context, status int, code int, message string) {
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Fail 按错误类别输出
func Fail(c *gin.Context, err error) {
	var pe *model.PointError
	switch {
	case errors.As(err, &pe):
		BusinessError(c, pe.Code, pe.Message)
	case errors.Is(err, service.ErrLedgerIntegrity):
		Error(c, http.StatusInternalServerError, CodeLedgerIntegrity, "ledger integrity violated, operation needs manual review")
	default:
		ServerError(c, "internal server error")
	}
}
