package admin

import (
	handlershared "github.com/couponslot-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, msg string, err error) {
	handlershared.RespondError(c, msg, err)
}

func respondBadRequest(c *gin.Context, msg string, err error) {
	handlershared.RespondBadRequest(c, msg, err)
}

func respondDomainError(c *gin.Context, err error, fallback string) {
	handlershared.RespondDomainError(c, err, fallback)
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParamUint(c, name)
}

func parsePagination(c *gin.Context) (int, int) {
	return handlershared.ParsePagination(c)
}

func handlerDomainCode(err error) int {
	return handlershared.DomainErrorCode(err)
}
