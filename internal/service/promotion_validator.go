package service

import (
	"strings"
	"time"

	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"
)

// PromotionValidator 优惠码可用性校验
type PromotionValidator struct {
	promotionRepo repository.PromotionRepository
	orderRepo     repository.OrderRepository
	businessRepo  repository.BusinessRepository
	now           func() time.Time
}

// NewPromotionValidator 创建优惠码校验器
func NewPromotionValidator(promotionRepo repository.PromotionRepository, orderRepo repository.OrderRepository, businessRepo repository.BusinessRepository) *PromotionValidator {
	return &PromotionValidator{
		promotionRepo: promotionRepo,
		orderRepo:     orderRepo,
		businessRepo:  businessRepo,
		now:           time.Now,
	}
}

// CanBeUsed 按顺序校验优惠规则，返回第一个失败原因
// promotion 需预加载 Promoter 与 Products
func (v *PromotionValidator) CanBeUsed(promotion *models.Promotion) error {
	if promotion == nil {
		return ErrPromotionNotFound
	}
	now := v.now()
	today := models.DateOf(now)

	if !promotion.IsActive {
		return ErrPromotionInactive
	}
	promoter := promotion.Promoter
	if promoter == nil || !promoter.IsActive {
		return ErrPromoterInactive
	}
	if !promoter.IsApproved {
		return ErrPromoterNotApproved
	}
	if today.Before(models.DateOf(promotion.StartDate)) {
		return ErrPromotionNotStarted
	}
	if today.After(models.DateOf(promotion.EndDate)) {
		return ErrPromotionExpired
	}
	if promoter.StartDate != nil && today.Before(models.DateOf(*promoter.StartDate)) {
		return ErrPromoterWindow
	}
	if promoter.EndDate != nil && today.After(models.DateOf(*promoter.EndDate)) {
		return ErrPromoterWindow
	}
	if !hasActiveProduct(promotion) {
		return ErrPromotionNoProducts
	}

	switch promotion.UseMethod {
	case models.UseMethodOnceEver:
		used, err := v.promotionRepo.SumUsedCount(promotion.ID)
		if err != nil {
			return err
		}
		if used > 0 {
			return ErrPromotionUsed
		}
	case models.UseMethodMonthlyCap:
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		count, err := v.orderRepo.CountByPromotionSince(promotion.ID, firstOfMonth)
		if err != nil {
			return err
		}
		if count >= int64(promotion.MonthlyCap) {
			return ErrPromotionMonthlyCap
		}
	}
	return nil
}

// CanBeUsedByAdvertiser 每个广告主限用一次的优惠规则：其他订单已使用则拒绝
func (v *PromotionValidator) CanBeUsedByAdvertiser(promotion *models.Promotion, order *models.Order) error {
	if promotion == nil || promotion.UseMethod != models.UseMethodOncePerAdvertiser {
		return nil
	}
	if order == nil {
		return ErrOrderNotFound
	}
	record, err := v.businessRepo.GetBillingRecordByID(order.BillingRecordID)
	if err != nil {
		return err
	}
	if record == nil || record.Business == nil {
		return ErrBillingRecordNotFound
	}
	used, err := v.orderRepo.ExistsForAdvertiserWithPromotion(record.Business.AdvertiserID, promotion.ID, order.ID)
	if err != nil {
		return err
	}
	if used {
		return ErrPromotionUsedByAdvertiser
	}
	return nil
}

// ValidForProducts 至少一个商品在优惠规则的适用范围内
func (v *PromotionValidator) ValidForProducts(promotion *models.Promotion, productIDs []uint) error {
	covered := coveredProductIDs(promotion)
	for _, id := range productIDs {
		if _, ok := covered[id]; ok {
			return nil
		}
	}
	return ErrPromotionNotApplicable
}

// LookupCode 查找优惠码及其优惠规则
func (v *PromotionValidator) LookupCode(rawCode string) (*models.PromotionCode, *models.Promotion, error) {
	trimmed := strings.TrimSpace(rawCode)
	if trimmed == "" {
		return nil, nil, ErrPromotionCodeNotFound
	}
	code, err := v.promotionRepo.GetCodeByCode(trimmed)
	if err != nil {
		return nil, nil, err
	}
	if code == nil {
		return nil, nil, ErrPromotionCodeNotFound
	}
	promotion, err := v.promotionRepo.GetByID(code.PromotionID)
	if err != nil {
		return nil, nil, err
	}
	if promotion == nil {
		return nil, nil, ErrPromotionNotFound
	}
	return code, promotion, nil
}

// ValidateCodeForOrder 校验优惠码能否用于该订单
func (v *PromotionValidator) ValidateCodeForOrder(rawCode string, order *models.Order) (*models.PromotionCode, *models.Promotion, error) {
	code, promotion, err := v.LookupCode(rawCode)
	if err != nil {
		return nil, nil, err
	}
	if order.PromotionCodeID != nil && *order.PromotionCodeID == code.ID {
		return code, promotion, nil
	}
	if err := v.CanBeUsed(promotion); err != nil {
		return nil, nil, err
	}
	productIDs := make([]uint, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	if err := v.ValidForProducts(promotion, productIDs); err != nil {
		return nil, nil, err
	}
	if err := v.CanBeUsedByAdvertiser(promotion, order); err != nil {
		return nil, nil, err
	}
	return code, promotion, nil
}

func hasActiveProduct(promotion *models.Promotion) bool {
	for _, product := range promotion.Products {
		if product.IsActive {
			return true
		}
	}
	return false
}
