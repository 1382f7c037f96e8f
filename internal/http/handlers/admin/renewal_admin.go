package admin

import (
	"strings"
	"time"

	"github.com/couponslot-next/internal/http/response"
	"github.com/couponslot-next/internal/queue"

	"github.com/gin-gonic/gin"
)

// RunRenewalsRequest 手动触发自动续费
type RunRenewalsRequest struct {
	RunAt string `json:"run_at"` // RFC3339，为空时使用当前时间
	Async bool   `json:"async"`  // 通过队列异步执行
}

// RunRenewals 手动执行一次自动续费批处理
func (h *Handler) RunRenewals(c *gin.Context) {
	var req RunRenewalsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body", err)
			return
		}
	}
	runAt := time.Now()
	if raw := strings.TrimSpace(req.RunAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondBadRequest(c, "invalid run_at", err)
			return
		}
		runAt = parsed
	}

	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueSlotAutoRenew(queue.SlotAutoRenewPayload{RunAt: runAt.Format(time.RFC3339)}); err != nil {
			respondError(c, "failed to enqueue renewal batch", err)
			return
		}
		response.SuccessWithMsg(c, "queued", gin.H{"run_at": runAt.Format(time.RFC3339)})
		return
	}

	result, err := h.RenewalService.RunBatch(c.Request.Context(), runAt)
	if err != nil {
		respondDomainError(c, err, "renewal batch failed")
		return
	}
	requestLog(c).Infow("admin_renewal_batch_run",
		"approved", len(result.Good),
		"not_approved", len(result.Bad),
		"skipped", len(result.Skipped),
	)
	response.Success(c, result)
}
