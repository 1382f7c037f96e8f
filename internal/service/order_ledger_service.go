package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLedgerService 订单账本：任何变更都会触发金额重算与优惠码计数对账
type OrderLedgerService struct {
	orderRepo     repository.OrderRepository
	promotionRepo repository.PromotionRepository
	paymentRepo   repository.PaymentRepository
	pricing       *PricingService
	validator     *PromotionValidator
}

// NewOrderLedgerService 创建订单账本服务
func NewOrderLedgerService(
	orderRepo repository.OrderRepository,
	promotionRepo repository.PromotionRepository,
	paymentRepo repository.PaymentRepository,
	pricing *PricingService,
	validator *PromotionValidator,
) *OrderLedgerService {
	return &OrderLedgerService{
		orderRepo:     orderRepo,
		promotionRepo: promotionRepo,
		paymentRepo:   paymentRepo,
		pricing:       pricing,
		validator:     validator,
	}
}

// CreateOrderInput 创建订单参数
type CreateOrderInput struct {
	BillingRecordID uint
	Method          string
	PromotionCodeID *uint
}

// NewOrderItemInput 新增订单项参数，Amount 为空时按当前定价计算
type NewOrderItemInput struct {
	ProductID   uint
	BusinessID  uint
	SiteID      uint
	ItemType    string
	ItemID      uint
	Units       int
	Description string
	Amount      *models.Money
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateOrder 创建订单
func (s *OrderLedgerService) CreateOrder(input CreateOrderInput) (*models.Order, error) {
	order := &models.Order{
		BillingRecordID: input.BillingRecordID,
		Method:          input.Method,
		PromotionCodeID: input.PromotionCodeID,
	}
	if order.Method == "" {
		order.Method = models.OrderMethodCard
	}
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.saveOrderTx(tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SaveOrder 保存订单：锁定校验 -> 优惠码计数对账 -> 金额重算
func (s *OrderLedgerService) SaveOrder(order *models.Order) error {
	return models.DB.Transaction(func(tx *gorm.DB) error {
		return s.saveOrderTx(tx, order)
	})
}

func (s *OrderLedgerService) saveOrderTx(tx *gorm.DB, order *models.Order) error {
	orderRepo := s.orderRepo.WithTx(tx)
	promotionRepo := s.promotionRepo.WithTx(tx)

	var previousCodeID *uint
	var items []models.OrderItem
	if order.ID != 0 {
		persisted, err := orderRepo.GetByIDForUpdate(order.ID)
		if err != nil {
			return err
		}
		if persisted == nil {
			return ErrOrderNotFound
		}
		if persisted.IsLocked {
			return ErrOrderLocked
		}
		previousCodeID = persisted.PromotionCodeID
		items, err = orderRepo.ListItems(order.ID)
		if err != nil {
			return err
		}
	}

	if err := reconcilePromotionCodeUsage(promotionRepo, previousCodeID, order.PromotionCodeID); err != nil {
		return err
	}

	var promotion *models.Promotion
	if order.PromotionCodeID != nil {
		code, err := promotionRepo.GetCodeByID(*order.PromotionCodeID)
		if err != nil {
			return err
		}
		if code == nil {
			return ErrPromotionCodeNotFound
		}
		promotion, err = promotionRepo.GetByID(code.PromotionID)
		if err != nil {
			return err
		}
		if promotion == nil {
			return ErrPromotionNotFound
		}
	}
	before := *order
	ComputeOrderTotals(items, promotion).Apply(order)
	if order.ID != 0 && !before.SameTotals(*order) {
		logger.Debugw("order_totals_recomputed",
			"order_id", order.ID,
			"previous_total", before.Total.String(),
			"total", order.Total.String(),
		)
	}

	if order.ID == 0 {
		return orderRepo.Create(order)
	}
	return orderRepo.Update(order)
}

// reconcilePromotionCodeUsage 比较新旧优惠码并原子调整 used_count
func reconcilePromotionCodeUsage(repo repository.PromotionRepository, previous, next *uint) error {
	switch {
	case previous == nil && next == nil:
		return nil
	case previous != nil && next != nil && *previous == *next:
		return nil
	}
	if next != nil {
		if err := repo.IncrementUsedCount(*next, 1); err != nil {
			return err
		}
	}
	if previous != nil {
		if err := repo.DecrementUsedCount(*previous, 1); err != nil {
			return err
		}
	}
	logger.Debugw("promotion_code_usage_reconciled", "previous_code_id", previous, "next_code_id", next)
	return nil
}

// AddItem 新增订单项并重算订单
func (s *OrderLedgerService) AddItem(ctx context.Context, orderID uint, input NewOrderItemInput) (*models.OrderItem, error) {
	units := input.Units
	if units <= 0 {
		units = 1
	}
	var amount models.Money
	if input.Amount != nil && !input.Amount.IsZero() {
		amount = *input.Amount
	} else {
		price, err := s.pricing.GetProductPrice(ctx, input.ProductID, input.SiteID)
		if err != nil {
			return nil, err
		}
		amount = models.NewMoneyFromDecimal(price.Mul(decimal.NewFromInt(int64(units))))
	}

	item := &models.OrderItem{
		OrderID:     orderID,
		ProductID:   input.ProductID,
		BusinessID:  input.BusinessID,
		SiteID:      input.SiteID,
		ItemType:    input.ItemType,
		ItemID:      input.ItemID,
		Units:       units,
		Description: input.Description,
		Amount:      amount,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.addItemTx(tx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *OrderLedgerService) addItemTx(tx *gorm.DB, item *models.OrderItem) error {
	orderRepo := s.orderRepo.WithTx(tx)
	order, err := orderRepo.GetByIDForUpdate(item.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.IsLocked {
		return ErrOrderLocked
	}
	if err := orderRepo.CreateItem(item); err != nil {
		return err
	}
	if order.InvoiceNumber == "" {
		order.InvoiceNumber = fmt.Sprintf("%d-%d", item.SiteID, order.ID)
	}
	return s.saveOrderTx(tx, order)
}

// RemoveItem 删除订单项并重算订单
func (s *OrderLedgerService) RemoveItem(itemID uint) error {
	return models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		item, err := orderRepo.GetItem(itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrOrderItemNotFound
		}
		order, err := orderRepo.GetByIDForUpdate(item.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.IsLocked {
			return ErrOrderItemLocked
		}
		if err := orderRepo.DeleteItem(itemID); err != nil {
			return err
		}
		return s.saveOrderTx(tx, order)
	})
}

// DeleteOrder 删除未锁定订单，并释放其优惠码使用次数
func (s *OrderLedgerService) DeleteOrder(orderID uint) error {
	return models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.IsLocked {
			return ErrOrderLocked
		}
		if err := reconcilePromotionCodeUsage(s.promotionRepo.WithTx(tx), order.PromotionCodeID, nil); err != nil {
			return err
		}
		return orderRepo.Delete(orderID)
	})
}

// LockOrder 锁定订单，之后任何修改都会被拒绝
func (s *OrderLedgerService) LockOrder(orderID uint) (*models.Order, error) {
	var order *models.Order
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.WithTx(tx).GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.IsLocked {
			return nil
		}
		order.IsLocked = true
		return s.saveOrderTx(tx, order)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("order_locked", "order_id", orderID)
	return order, nil
}

// ApplyPromotionCode 校验并为订单挂载优惠码
func (s *OrderLedgerService) ApplyPromotionCode(orderID uint, rawCode string) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.IsLocked {
		return nil, ErrOrderLocked
	}
	code, _, err := s.validator.ValidateCodeForOrder(rawCode, order)
	if err != nil {
		return nil, err
	}
	if order.PromotionCodeID != nil && *order.PromotionCodeID == code.ID {
		return order, nil
	}
	order.PromotionCodeID = &code.ID
	order.PromotionCode = nil
	if err := s.SaveOrder(order); err != nil {
		return nil, err
	}
	return s.GetOrder(orderID)
}

// AttachAttributionCode 挂载仅用于归因的优惠码（不做可用性校验）
func (s *OrderLedgerService) AttachAttributionCode(orderID uint, rawCode string) (*models.Order, error) {
	rawCode = strings.TrimSpace(rawCode)
	if rawCode == "" {
		return nil, ErrPromotionCodeNotFound
	}
	code, err := s.promotionRepo.GetCodeByCode(rawCode)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, ErrPromotionCodeNotFound
	}
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.PromotionCodeID != nil && *order.PromotionCodeID == code.ID {
		return order, nil
	}
	order.PromotionCodeID = &code.ID
	order.PromotionCode = nil
	if err := s.SaveOrder(order); err != nil {
		return nil, err
	}
	return s.GetOrder(orderID)
}

// RemovePromotionCode 移除订单优惠码
func (s *OrderLedgerService) RemovePromotionCode(orderID uint) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.PromotionCodeID == nil {
		return order, nil
	}
	order.PromotionCodeID = nil
	order.PromotionCode = nil
	if err := s.SaveOrder(order); err != nil {
		return nil, err
	}
	return s.GetOrder(orderID)
}

// GetOrder 获取订单
func (s *OrderLedgerService) GetOrder(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 后台订单列表
func (s *OrderLedgerService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// OutstandingBalance 订单未付金额 = 合计 - 已批准支付
func (s *OrderLedgerService) OutstandingBalance(orderID uint) (models.Money, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return models.Money{}, err
	}
	paid, err := s.paymentRepo.SumApprovedByOrder(orderID)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoneyFromDecimal(order.Total.Sub(paid)), nil
}
