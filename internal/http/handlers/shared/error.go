package shared

import (
	"errors"

	"github.com/couponslot-next/internal/http/response"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回内部错误响应，并记录原始错误。
func RespondError(c *gin.Context, msg string, err error) {
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", response.CodeInternal,
			"message", msg,
			"error", err,
		)
	}
	response.Internal(c, msg)
}

// RespondBadRequest 请求参数不合法。
func RespondBadRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		RequestLog(c).Infow("handler_bad_request", "message", msg, "error", err)
	}
	response.BadRequest(c, msg)
}

// DomainErrorCode 将业务错误类别映射为响应码。
func DomainErrorCode(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return response.CodeNotFound
	case errors.Is(err, service.ErrImmutableState):
		return response.CodeConflict
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConfiguration):
		return response.CodeBadRequest
	default:
		return response.CodeInternal
	}
}

// RespondDomainError 按业务错误类别返回可展示原因；未知错误统一返回 fallback。
func RespondDomainError(c *gin.Context, err error, fallback string) {
	code := DomainErrorCode(err)
	if code == response.CodeInternal {
		RespondError(c, fallback, err)
		return
	}
	reason := service.ReasonOf(err)
	RequestLog(c).Infow("handler_domain_error", "code", code, "reason", reason)
	switch code {
	case response.CodeNotFound:
		response.NotFound(c, reason)
	case response.CodeConflict:
		response.Conflict(c, reason)
	default:
		response.BadRequest(c, reason)
	}
}
