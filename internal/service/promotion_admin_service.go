package service

import (
	"strings"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PromotionAdminService 优惠规则管理
type PromotionAdminService struct {
	promotionRepo repository.PromotionRepository
	productRepo   repository.ProductRepository
	orderRepo     repository.OrderRepository
	validator     *PromotionValidator
}

// NewPromotionAdminService 创建优惠规则管理服务
func NewPromotionAdminService(
	promotionRepo repository.PromotionRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	validator *PromotionValidator,
) *PromotionAdminService {
	return &PromotionAdminService{
		promotionRepo: promotionRepo,
		productRepo:   productRepo,
		orderRepo:     orderRepo,
		validator:     validator,
	}
}

// PromotionInput 创建/更新优惠规则参数
type PromotionInput struct {
	PromoterID uint
	Name       string
	PromoType  string
	UseMethod  string
	CodeMethod string
	Amount     models.Money
	MonthlyCap int
	IsActive   bool
	StartDate  string
	EndDate    string
	ProductIDs []uint
}

// NormalizePromotion 规范化并校验优惠规则
func NormalizePromotion(promotion *models.Promotion) error {
	promotion.Name = strings.TrimSpace(promotion.Name)
	if promotion.CodeMethod == "" {
		promotion.CodeMethod = models.CodeMethodShared
	}
	switch promotion.PromoType {
	case models.PromoTypePercentOff, models.PromoTypeFixedOff, models.PromoTypeFixedCost:
	default:
		return newValidationError("unknown promotion type %q", promotion.PromoType)
	}
	if promotion.Amount.IsNegative() {
		return newValidationError("promotion amount cannot be negative")
	}
	if promotion.PromoType == models.PromoTypeFixedOff && promotion.Amount.IsZero() {
		promotion.PromoType = models.PromoTypePercentOff
	}
	if promotion.PromoType == models.PromoTypePercentOff && promotion.Amount.GreaterThan(decimal.NewFromInt(100)) {
		return newValidationError("percent off cannot exceed 100")
	}

	switch promotion.UseMethod {
	case models.UseMethodUnlimited, models.UseMethodOncePerAdvertiser:
		promotion.MonthlyCap = 0
	case models.UseMethodOnceEver:
		if promotion.CodeMethod == models.CodeMethodUnique {
			return newConfigurationError("a once-ever promotion cannot use unique codes")
		}
		promotion.MonthlyCap = 0
	case models.UseMethodMonthlyCap:
		if promotion.MonthlyCap <= 0 {
			return newConfigurationError("a monthly-cap promotion needs a cap greater than 0")
		}
	default:
		return newValidationError("unknown use method %q", promotion.UseMethod)
	}

	if promotion.StartDate.IsZero() || promotion.EndDate.IsZero() {
		return newValidationError("promotion start and end dates are required")
	}
	if !promotion.EndDate.After(promotion.StartDate) {
		return newValidationError("promotion end date must be after start date")
	}
	return nil
}

// termsChanged 已使用的优惠规则不可修改的关键条款
func termsChanged(previous, next *models.Promotion, nextProductIDs []uint) bool {
	if previous.PromoType != next.PromoType ||
		previous.UseMethod != next.UseMethod ||
		previous.MonthlyCap != next.MonthlyCap ||
		!previous.Amount.Equal(next.Amount.Decimal) {
		return true
	}
	if nextProductIDs == nil {
		return false
	}
	before := coveredProductIDs(previous)
	if len(before) != len(uniqueIDs(nextProductIDs)) {
		return true
	}
	for _, id := range nextProductIDs {
		if _, ok := before[id]; !ok {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s *PromotionAdminService) resolveProducts(ids []uint) ([]models.Product, error) {
	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	if len(products) != len(uniqueIDs(ids)) {
		return nil, ErrProductNotFound
	}
	return products, nil
}

// Create 创建优惠规则
func (s *PromotionAdminService) Create(input PromotionInput) (*models.Promotion, error) {
	promotion, err := buildPromotion(input)
	if err != nil {
		return nil, err
	}
	if err := NormalizePromotion(promotion); err != nil {
		return nil, err
	}
	products, err := s.resolveProducts(input.ProductIDs)
	if err != nil {
		return nil, err
	}
	promotion.Products = products
	if err := s.promotionRepo.Create(promotion); err != nil {
		return nil, err
	}
	logger.Infow("promotion_created", "promotion_id", promotion.ID, "promo_type", promotion.PromoType, "use_method", promotion.UseMethod)
	return promotion, nil
}

// Update 更新优惠规则；已使用过的优惠规则只允许修改名称、启用状态与日期
func (s *PromotionAdminService) Update(id uint, input PromotionInput) (*models.Promotion, error) {
	previous, err := s.promotionRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, ErrPromotionNotFound
	}
	next, err := buildPromotion(input)
	if err != nil {
		return nil, err
	}
	next.ID = previous.ID
	next.CreatedAt = previous.CreatedAt
	if err := NormalizePromotion(next); err != nil {
		return nil, err
	}

	used, err := s.promotionRepo.SumUsedCount(id)
	if err != nil {
		return nil, err
	}
	if used > 0 && termsChanged(previous, next, input.ProductIDs) {
		return nil, ErrPromotionInUse
	}

	var products []models.Product
	if input.ProductIDs != nil {
		products, err = s.resolveProducts(input.ProductIDs)
		if err != nil {
			return nil, err
		}
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.promotionRepo.WithTx(tx)
		if err := repo.Update(next); err != nil {
			return err
		}
		if input.ProductIDs != nil {
			return repo.ReplaceProducts(next, products)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.promotionRepo.GetByID(id)
}

// CreateCode 为优惠规则生成优惠码
func (s *PromotionAdminService) CreateCode(promotionID uint, code string) (*models.PromotionCode, error) {
	promotion, err := s.promotionRepo.GetByID(promotionID)
	if err != nil {
		return nil, err
	}
	if promotion == nil {
		return nil, ErrPromotionNotFound
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, newValidationError("promotion code is required")
	}
	existing, err := s.promotionRepo.GetCodeByCode(trimmed)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, newValidationError("promotion code %q already exists", trimmed)
	}
	row := &models.PromotionCode{PromotionID: promotionID, Code: trimmed}
	if err := s.promotionRepo.CreateCode(row); err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteCode 删除未使用过的优惠码
func (s *PromotionAdminService) DeleteCode(codeID uint) error {
	code, err := s.promotionRepo.GetCodeByID(codeID)
	if err != nil {
		return err
	}
	if code == nil {
		return ErrPromotionCodeNotFound
	}
	if code.UsedCount > 0 {
		return ErrPromotionCodeInUse
	}
	return s.promotionRepo.DeleteCode(codeID)
}

// PreapprovalLine 预审商品行
type PreapprovalLine struct {
	ProductID uint
	Amount    models.Money
}

// PreapprovalResult 预审结果
type PreapprovalResult struct {
	Amount           models.Money `json:"amount"`
	AmountDiscounted models.Money `json:"amount_discounted"`
	Total            models.Money `json:"total"`
}

// CheckPreapproval 下单前校验优惠码对广告主与商品列表是否有效，并返回价格预览
func (s *PromotionAdminService) CheckPreapproval(rawCode string, advertiserID uint, lines []PreapprovalLine) (*PreapprovalResult, error) {
	_, promotion, err := s.validator.LookupCode(rawCode)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CanBeUsed(promotion); err != nil {
		return nil, err
	}

	active := make(map[uint]struct{}, len(promotion.Products))
	for _, product := range promotion.Products {
		if product.IsActive {
			active[product.ID] = struct{}{}
		}
	}
	amount := decimal.Zero
	qualifying := decimal.Zero
	for _, line := range lines {
		amount = amount.Add(line.Amount.Decimal)
		if _, ok := active[line.ProductID]; ok {
			qualifying = qualifying.Add(line.Amount.Decimal)
		}
	}
	if !qualifying.IsPositive() {
		return nil, ErrPromotionNotApplicable
	}

	if promotion.UseMethod == models.UseMethodOncePerAdvertiser {
		used, err := s.orderRepo.ExistsForAdvertiserWithPromotion(advertiserID, promotion.ID, 0)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, ErrPromotionUsedByAdvertiser
		}
	}

	discount := promotionDiscount(promotion, qualifying)
	return &PreapprovalResult{
		Amount:           models.NewMoneyFromDecimal(amount),
		AmountDiscounted: models.NewMoneyFromDecimal(discount),
		Total:            models.NewMoneyFromDecimal(amount.Sub(discount)),
	}, nil
}

func buildPromotion(input PromotionInput) (*models.Promotion, error) {
	start, err := parseDate(input.StartDate)
	if err != nil {
		return nil, newValidationError("invalid start date %q", input.StartDate)
	}
	end, err := parseDate(input.EndDate)
	if err != nil {
		return nil, newValidationError("invalid end date %q", input.EndDate)
	}
	return &models.Promotion{
		PromoterID: input.PromoterID,
		Name:       input.Name,
		PromoType:  strings.TrimSpace(input.PromoType),
		UseMethod:  strings.TrimSpace(input.UseMethod),
		CodeMethod: strings.TrimSpace(input.CodeMethod),
		Amount:     input.Amount,
		MonthlyCap: input.MonthlyCap,
		IsActive:   input.IsActive,
		StartDate:  start,
		EndDate:    end,
	}, nil
}
