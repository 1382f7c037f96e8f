package shared

import (
	"strconv"
	"strings"

	"github.com/couponslot-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ParamUint 读取路径中的正整数 ID，非法时直接写入错误响应。
func ParamUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(value), true
}
