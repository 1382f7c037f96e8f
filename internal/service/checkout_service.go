package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/couponslot-next/internal/cache"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"gorm.io/gorm"
)

// ErrPublishInProgress 同一商家的发布请求正在处理
var ErrPublishInProgress = &DomainError{Kind: ErrValidation, Reason: "another publish request for this business is in progress"}

// CheckoutOptions 下单与发布参数
type CheckoutOptions struct {
	PublishLockTTL  time.Duration
	DuplicateWindow time.Duration
}

// PurchaseSession 购买流程的会话状态，仅保存 ID，每次访问按需从数据库解析
type PurchaseSession struct {
	BusinessID      *uint `json:"business_id,omitempty"`
	CouponID        *uint `json:"coupon_id,omitempty"`
	SlotID          *uint `json:"slot_id,omitempty"`
	SiteID          *uint `json:"site_id,omitempty"`
	PromotionCodeID *uint `json:"promotion_code_id,omitempty"`
}

// ResolvedSession 会话解析结果
type ResolvedSession struct {
	Business      *models.Business
	Coupon        *models.Coupon
	Slot          *models.Slot
	Site          *models.Site
	PromotionCode *models.PromotionCode
}

// PurchaseSlotInput 购买新家族父槽位参数
type PurchaseSlotInput struct {
	BusinessID    uint
	CouponID      uint
	SiteID        uint
	PromotionCode string
	IsAutorenew   bool
}

// PurchaseResult 购买结果
type PurchaseResult struct {
	Order   *models.Order   `json:"order"`
	Payment *models.Payment `json:"payment"`
	Slot    *models.Slot    `json:"slot,omitempty"`
}

// CheckoutService 分配、发布与购买流程编排
type CheckoutService struct {
	opts          CheckoutOptions
	businessRepo  repository.BusinessRepository
	couponRepo    repository.CouponRepository
	slotRepo      repository.SlotRepository
	siteRepo      repository.SiteRepository
	orderRepo     repository.OrderRepository
	paymentRepo   repository.PaymentRepository
	promotionRepo repository.PromotionRepository
	allocator     *SlotAllocatorService
	publisher     *PublishService
	slotService   *SlotService
	pricing       *PricingService
	ledger        *OrderLedgerService
	payments      *PaymentService
}

// CheckoutDeps 下单流程依赖
type CheckoutDeps struct {
	BusinessRepo  repository.BusinessRepository
	CouponRepo    repository.CouponRepository
	SlotRepo      repository.SlotRepository
	SiteRepo      repository.SiteRepository
	OrderRepo     repository.OrderRepository
	PaymentRepo   repository.PaymentRepository
	PromotionRepo repository.PromotionRepository
	Allocator     *SlotAllocatorService
	Publisher     *PublishService
	SlotService   *SlotService
	Pricing       *PricingService
	Ledger        *OrderLedgerService
	Payments      *PaymentService
}

// NewCheckoutService 创建下单服务
func NewCheckoutService(opts CheckoutOptions, deps CheckoutDeps) *CheckoutService {
	if opts.PublishLockTTL <= 0 {
		opts.PublishLockTTL = 30 * time.Second
	}
	if opts.DuplicateWindow <= 0 {
		opts.DuplicateWindow = 3 * time.Hour
	}
	return &CheckoutService{
		opts:          opts,
		businessRepo:  deps.BusinessRepo,
		couponRepo:    deps.CouponRepo,
		slotRepo:      deps.SlotRepo,
		siteRepo:      deps.SiteRepo,
		orderRepo:     deps.OrderRepo,
		paymentRepo:   deps.PaymentRepo,
		promotionRepo: deps.PromotionRepo,
		allocator:     deps.Allocator,
		publisher:     deps.Publisher,
		slotService:   deps.SlotService,
		pricing:       deps.Pricing,
		ledger:        deps.Ledger,
		payments:      deps.Payments,
	}
}

func (s *CheckoutService) lockBusiness(ctx context.Context, businessID uint) (*cache.Lock, error) {
	lock, err := cache.AcquireLock(ctx, cache.BusinessPublishLockKey(businessID), s.opts.PublishLockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockNotAcquired) {
			return nil, ErrPublishInProgress
		}
		return nil, err
	}
	return lock, nil
}

func releaseLock(ctx context.Context, lock *cache.Lock, businessID uint) {
	if err := lock.Release(ctx); err != nil {
		logger.Warnw("publish_lock_release_failed", "business_id", businessID, "error", err)
	}
}

func (s *CheckoutService) loadCoupon(businessID, couponID uint) (*models.Coupon, error) {
	coupon, err := s.couponRepo.GetByID(couponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	if coupon.BusinessID != businessID {
		return nil, ErrCouponBusiness
	}
	return coupon, nil
}

// PublishCoupon 在商家现有家族中为优惠券分配槽位并发布
func (s *CheckoutService) PublishCoupon(ctx context.Context, businessID, couponID uint) (*models.Slot, error) {
	coupon, err := s.loadCoupon(businessID, couponID)
	if err != nil {
		return nil, err
	}
	lock, err := s.lockBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, lock, businessID)

	now := time.Now()
	var slot *models.Slot
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.slotRepo.WithTx(tx).LockBusinessSlots(businessID); err != nil {
			return err
		}
		allocation, err := s.allocator.checkAvailableFamilySlot(tx, businessID, now)
		if err != nil {
			return err
		}
		if allocation.NeedsNewFamily {
			return ErrNoFamilyCapacity
		}
		slot, err = s.publisher.publishBusinessCoupon(tx, allocation, coupon, now)
		if err != nil {
			return err
		}
		return s.couponRepo.WithTx(tx).UpdateType(coupon.ID, models.CouponTypePublished)
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// PurchaseSlot 购买新的家族父槽位：下单、扣款，成功后创建槽位并发布优惠券
func (s *CheckoutService) PurchaseSlot(ctx context.Context, input PurchaseSlotInput) (*PurchaseResult, error) {
	business, err := s.businessRepo.GetByID(input.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}
	coupon, err := s.loadCoupon(business.ID, input.CouponID)
	if err != nil {
		return nil, err
	}
	site, err := s.siteRepo.GetByID(input.SiteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrSiteNotFound
	}
	billing, err := s.businessRepo.GetBillingRecordByBusiness(business.ID)
	if err != nil {
		return nil, err
	}
	if billing == nil {
		return nil, ErrBillingRecordNotFound
	}
	card, err := s.businessRepo.GetStoredCard(business.ID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrStoredCardNotFound
	}

	lock, err := s.lockBusiness(ctx, business.ID)
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, lock, business.ID)

	now := time.Now()
	duplicate, err := s.paymentRepo.HasApprovedSlotPurchaseSince(business.ID, models.ProductCodeSlotMonthly, now.Add(-s.opts.DuplicateWindow))
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, ErrDuplicatePurchase
	}

	product, err := s.pricing.GetProductByCode(models.ProductCodeSlotMonthly)
	if err != nil {
		return nil, err
	}
	price, err := s.pricing.CalculateCurrentPrice(product, site, 0)
	if err != nil {
		return nil, err
	}

	today := models.DateOf(now)
	end := models.AddMonthsClamped(today, 1)
	order, err := s.ledger.CreateOrder(CreateOrderInput{BillingRecordID: billing.ID, Method: models.OrderMethodCard})
	if err != nil {
		return nil, err
	}
	item, err := s.ledger.AddItem(ctx, order.ID, NewOrderItemInput{
		ProductID:   product.ID,
		BusinessID:  business.ID,
		SiteID:      site.ID,
		ItemType:    models.OrderItemTypeSlot,
		Units:       1,
		Description: product.Name + " on " + site.Name,
		Amount:      &price,
		StartDate:   &today,
		EndDate:     &end,
	})
	if err != nil {
		s.discardOrder(order.ID)
		return nil, err
	}
	if code := strings.TrimSpace(input.PromotionCode); code != "" {
		if _, err := s.ledger.ApplyPromotionCode(order.ID, code); err != nil {
			s.discardOrder(order.ID)
			return nil, err
		}
	}
	order, err = s.ledger.GetOrder(order.ID)
	if err != nil {
		return nil, err
	}

	result := &PurchaseResult{Order: order}
	if order.Total.IsPositive() {
		payment, payErr := s.payments.ProcessPayment(ctx, order, order.Total, card, billing)
		result.Payment = payment
		if payErr != nil {
			return result, payErr
		}
	}

	renewalRate := order.Total
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		slot := &models.Slot{
			SiteID:      site.ID,
			BusinessID:  business.ID,
			StartDate:   today,
			EndDate:     end,
			RenewalRate: &renewalRate,
			IsAutorenew: input.IsAutorenew,
		}
		if err := s.slotService.SaveSlot(tx, slot); err != nil {
			return err
		}
		item.ItemID = slot.ID
		if err := s.orderRepo.WithTx(tx).UpdateItem(item); err != nil {
			return err
		}
		published, err := s.publisher.publishBusinessCoupon(tx, &Allocation{
			BusinessID:          business.ID,
			AvailableParentSlot: slot,
			PublishToParent:     true,
		}, coupon, now)
		if err != nil {
			return err
		}
		result.Slot = published
		return s.couponRepo.WithTx(tx).UpdateType(coupon.ID, models.CouponTypePublished)
	})
	if err != nil {
		// 已扣款但槽位未创建，需要人工处理
		logger.Errorw("purchase_slot_create_failed",
			"business_id", business.ID,
			"order_id", order.ID,
			"error", err,
		)
		return result, err
	}
	logger.Infow("purchase_slot_completed",
		"business_id", business.ID,
		"order_id", order.ID,
		"slot_id", result.Slot.ID,
		"total", order.Total.String(),
	)
	return result, nil
}

func (s *CheckoutService) discardOrder(orderID uint) {
	if err := s.ledger.DeleteOrder(orderID); err != nil {
		logger.Warnw("purchase_order_discard_failed", "order_id", orderID, "error", err)
	}
}

// ResolveSession 按会话中的 ID 读取最新数据
func (s *CheckoutService) ResolveSession(session PurchaseSession) (*ResolvedSession, error) {
	resolved := &ResolvedSession{}
	if session.BusinessID != nil {
		business, err := s.businessRepo.GetByID(*session.BusinessID)
		if err != nil {
			return nil, err
		}
		if business == nil {
			return nil, ErrBusinessNotFound
		}
		resolved.Business = business
	}
	if session.CouponID != nil {
		coupon, err := s.couponRepo.GetByID(*session.CouponID)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, ErrCouponNotFound
		}
		if resolved.Business != nil && coupon.BusinessID != resolved.Business.ID {
			return nil, ErrCouponBusiness
		}
		resolved.Coupon = coupon
	}
	if session.SlotID != nil {
		slot, err := s.slotRepo.GetByID(*session.SlotID)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			return nil, ErrSlotNotFound
		}
		resolved.Slot = slot
	}
	if session.SiteID != nil {
		site, err := s.siteRepo.GetByID(*session.SiteID)
		if err != nil {
			return nil, err
		}
		if site == nil {
			return nil, ErrSiteNotFound
		}
		resolved.Site = site
	}
	if session.PromotionCodeID != nil {
		code, err := s.promotionRepo.GetCodeByID(*session.PromotionCodeID)
		if err != nil {
			return nil, err
		}
		if code == nil {
			return nil, ErrPromotionCodeNotFound
		}
		resolved.PromotionCode = code
	}
	return resolved, nil
}
