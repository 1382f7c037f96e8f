package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/couponslot-next/internal/http/handlers/shared"
	"github.com/couponslot-next/internal/http/response"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminOrderDetail 管理端订单详情返回
type AdminOrderDetail struct {
	models.Order
	Payments           []models.Payment `json:"payments"`
	OutstandingBalance models.Money     `json:"outstanding_balance"`
}

// ApplyPromotionCodeRequest 订单优惠码请求
type ApplyPromotionCodeRequest struct {
	Code string `json:"code"`
}

// AdminListOrders 管理端订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, pageSize := parsePagination(c)

	filter := repository.OrderListFilter{Page: page, PageSize: pageSize}
	if raw := strings.TrimSpace(c.Query("billing_record_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.BillingRecordID = uint(parsed)
		}
	}
	if raw := strings.TrimSpace(c.Query("is_locked")); raw != "" {
		locked := raw == "true" || raw == "1"
		filter.IsLocked = &locked
	}
	for key, target := range map[string]**time.Time{"created_from": &filter.CreatedFrom, "created_to": &filter.CreatedTo} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondBadRequest(c, "invalid "+key, err)
			return
		}
		*target = &parsed
	}

	orders, total, err := h.OrderLedgerService.ListOrders(filter)
	if err != nil {
		respondError(c, "failed to list orders", err)
		return
	}
	response.SuccessWithPage(c, orders, handlershared.PageOf(page, pageSize, total))
}

// AdminGetOrder 管理端订单详情（含支付记录与未付金额）
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderLedgerService.GetOrder(orderID)
	if err != nil {
		respondDomainError(c, err, "failed to fetch order")
		return
	}
	payments, err := h.PaymentService.ListPayments(orderID)
	if err != nil {
		respondError(c, "failed to fetch payments", err)
		return
	}
	balance, err := h.OrderLedgerService.OutstandingBalance(orderID)
	if err != nil {
		respondDomainError(c, err, "failed to compute balance")
		return
	}
	response.Success(c, AdminOrderDetail{
		Order:              *order,
		Payments:           payments,
		OutstandingBalance: balance,
	})
}

// AdminApplyPromotionCode 挂载或移除订单优惠码（code 为空时移除）
func (h *Handler) AdminApplyPromotionCode(c *gin.Context) {
	orderID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req ApplyPromotionCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}
	code := strings.TrimSpace(req.Code)
	var (
		order *models.Order
		err   error
	)
	if code == "" {
		order, err = h.OrderLedgerService.RemovePromotionCode(orderID)
	} else {
		order, err = h.OrderLedgerService.ApplyPromotionCode(orderID, code)
	}
	if err != nil {
		respondDomainError(c, err, "failed to update promotion code")
		return
	}
	response.Success(c, order)
}

// AdminLockOrder 锁定订单
func (h *Handler) AdminLockOrder(c *gin.Context) {
	orderID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderLedgerService.LockOrder(orderID)
	if err != nil {
		respondDomainError(c, err, "failed to lock order")
		return
	}
	response.Success(c, order)
}

// AdminDeleteOrder 删除未锁定订单
func (h *Handler) AdminDeleteOrder(c *gin.Context) {
	orderID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	if err := h.OrderLedgerService.DeleteOrder(orderID); err != nil {
		respondDomainError(c, err, "failed to delete order")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// AdminLockPayment 锁定支付记录
func (h *Handler) AdminLockPayment(c *gin.Context) {
	paymentID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	payment, err := h.PaymentService.LockPayment(paymentID)
	if err != nil {
		respondDomainError(c, err, "failed to lock payment")
		return
	}
	response.Success(c, payment)
}
