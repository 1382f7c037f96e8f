package admin

import (
	"strings"

	"github.com/couponslot-next/internal/http/response"
	"github.com/couponslot-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PurchaseSlotRequest 购买新家族父槽位请求
type PurchaseSlotRequest struct {
	CouponID      uint   `json:"coupon_id" binding:"required"`
	SiteID        uint   `json:"site_id" binding:"required"`
	PromotionCode string `json:"promotion_code"`
	IsAutorenew   *bool  `json:"is_autorenew"`
}

// GetSlotAllocation 查看商家当前的家族槽位分配结果
func (h *Handler) GetSlotAllocation(c *gin.Context) {
	businessID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	allocation, err := h.SlotAllocatorService.CheckAvailableFamilySlot(businessID)
	if err != nil {
		respondDomainError(c, err, "failed to check slot allocation")
		return
	}
	response.Success(c, gin.H{
		"allocation":      allocation,
		"needs_new_child": allocation.NeedsNewChild(),
	})
}

// PublishCoupon 将优惠券发布到商家的家族槽位
func (h *Handler) PublishCoupon(c *gin.Context) {
	businessID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	couponID, ok := paramUint(c, "coupon_id")
	if !ok {
		return
	}
	slot, err := h.CheckoutService.PublishCoupon(c.Request.Context(), businessID, couponID)
	if err != nil {
		respondDomainError(c, err, "failed to publish coupon")
		return
	}
	requestLog(c).Infow("admin_coupon_published", "business_id", businessID, "coupon_id", couponID, "slot_id", slot.ID)
	response.Success(c, slot)
}

// PurchaseSlot 为商家购买新的家族父槽位并发布优惠券
func (h *Handler) PurchaseSlot(c *gin.Context) {
	businessID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req PurchaseSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}
	autorenew := true
	if req.IsAutorenew != nil {
		autorenew = *req.IsAutorenew
	}
	result, err := h.CheckoutService.PurchaseSlot(c.Request.Context(), service.PurchaseSlotInput{
		BusinessID:    businessID,
		CouponID:      req.CouponID,
		SiteID:        req.SiteID,
		PromotionCode: strings.TrimSpace(req.PromotionCode),
		IsAutorenew:   autorenew,
	})
	if err != nil {
		if result != nil && result.Payment != nil {
			response.ErrorWithData(c, handlerDomainCode(err), service.ReasonOf(err), gin.H{
				"order_id":   result.Order.ID,
				"payment_id": result.Payment.ID,
				"status":     result.Payment.Status,
			})
			return
		}
		respondDomainError(c, err, "failed to purchase slot")
		return
	}
	response.Success(c, result)
}
