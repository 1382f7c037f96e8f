package admin

import (
	"github.com/couponslot-next/internal/http/response"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PromotionRequest 创建/更新优惠规则请求
type PromotionRequest struct {
	PromoterID uint         `json:"promoter_id" binding:"required"`
	Name       string       `json:"name" binding:"required"`
	PromoType  string       `json:"promo_type" binding:"required"`
	UseMethod  string       `json:"use_method" binding:"required"`
	CodeMethod string       `json:"code_method"`
	Amount     models.Money `json:"amount"`
	MonthlyCap int          `json:"monthly_cap"`
	IsActive   *bool        `json:"is_active"`
	StartDate  string       `json:"start_date" binding:"required"`
	EndDate    string       `json:"end_date" binding:"required"`
	ProductIDs []uint       `json:"product_ids"`
}

func (r PromotionRequest) toInput() service.PromotionInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return service.PromotionInput{
		PromoterID: r.PromoterID,
		Name:       r.Name,
		PromoType:  r.PromoType,
		UseMethod:  r.UseMethod,
		CodeMethod: r.CodeMethod,
		Amount:     r.Amount,
		MonthlyCap: r.MonthlyCap,
		IsActive:   active,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		ProductIDs: r.ProductIDs,
	}
}

// CreatePromotionCodeRequest 创建优惠码请求
type CreatePromotionCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// PreapprovalRequest 优惠码预审请求
type PreapprovalRequest struct {
	Code         string `json:"code" binding:"required"`
	AdvertiserID uint   `json:"advertiser_id"`
	Lines        []struct {
		ProductID uint         `json:"product_id"`
		Amount    models.Money `json:"amount"`
	} `json:"lines" binding:"required"`
}

// CreatePromotion 创建优惠规则
func (h *Handler) CreatePromotion(c *gin.Context) {
	var req PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}
	promotion, err := h.PromotionAdminService.Create(req.toInput())
	if err != nil {
		respondDomainError(c, err, "failed to create promotion")
		return
	}
	response.Success(c, promotion)
}

// UpdatePromotion 更新优惠规则
func (h *Handler) UpdatePromotion(c *gin.Context) {
	promotionID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}
	promotion, err := h.PromotionAdminService.Update(promotionID, req.toInput())
	if err != nil {
		respondDomainError(c, err, "failed to update promotion")
		return
	}
	response.Success(c, promotion)
}

// CreatePromotionCode 为优惠规则创建优惠码
func (h *Handler) CreatePromotionCode(c *gin.Context) {
	promotionID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req CreatePromotionCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}
	code, err := h.PromotionAdminService.CreateCode(promotionID, req.Code)
	if err != nil {
		respondDomainError(c, err, "failed to create promotion code")
		return
	}
	response.Success(c, code)
}

// DeletePromotionCode 删除未使用的优惠码
func (h *Handler) DeletePromotionCode(c *gin.Context) {
	codeID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	if err := h.PromotionAdminService.DeleteCode(codeID); err != nil {
		respondDomainError(c, err, "failed to delete promotion code")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// CheckPromotionPreapproval 下单前预览优惠码折扣
func (h *Handler) CheckPromotionPreapproval(c *gin.Context) {
	var req PreapprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}
	lines := make([]service.PreapprovalLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, service.PreapprovalLine{ProductID: line.ProductID, Amount: line.Amount})
	}
	result, err := h.PromotionAdminService.CheckPreapproval(req.Code, req.AdvertiserID, lines)
	if err != nil {
		respondDomainError(c, err, "failed to check promotion code")
		return
	}
	response.Success(c, result)
}
