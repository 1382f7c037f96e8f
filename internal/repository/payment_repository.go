package repository

import (
	"errors"
	"time"

	"github.com/couponslot-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	ListByOrderID(orderID uint) ([]models.Payment, error)
	SumApprovedByOrder(orderID uint) (decimal.Decimal, error)
	ListSlotIDsPaidSince(since time.Time, productCodes []string) ([]uint, error)
	HasApprovedSlotPurchaseSince(businessID uint, productCode string, since time.Time) (bool, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ListByOrderID 获取订单的支付记录
func (r *GormPaymentRepository) ListByOrderID(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// SumApprovedByOrder 汇总订单已批准且未作废的支付金额
func (r *GormPaymentRepository) SumApprovedByOrder(orderID uint) (decimal.Decimal, error) {
	payments, err := r.ListByOrderID(orderID)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, payment := range payments {
		if payment.IsApproved() {
			sum = sum.Add(payment.Amount.Decimal)
		}
	}
	return sum, nil
}

// ListSlotIDsPaidSince 返回指定时间后已有支付记录的槽位 ID
func (r *GormPaymentRepository) ListSlotIDsPaidSince(since time.Time, productCodes []string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Payment{}).
		Joins("JOIN order_items ON order_items.order_id = payments.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("payments.created_at > ?", since).
		Where("order_items.item_type = ? AND order_items.item_id > 0", models.OrderItemTypeSlot).
		Where("products.code IN ?", productCodes).
		Distinct("order_items.item_id").
		Pluck("order_items.item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// HasApprovedSlotPurchaseSince 判断商家在指定时间后是否已有同类槽位的成功购买
func (r *GormPaymentRepository) HasApprovedSlotPurchaseSince(businessID uint, productCode string, since time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).
		Joins("JOIN order_items ON order_items.order_id = payments.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("payments.status = ? AND payments.is_void = ?", models.PaymentStatusApproved, false).
		Where("payments.created_at > ?", since).
		Where("order_items.business_id = ?", businessID).
		Where("products.code = ?", productCode).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
