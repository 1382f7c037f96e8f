package repository

import (
	"errors"
	"time"

	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	Update(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByIDForUpdate(id uint) (*models.Order, error)
	Delete(id uint) error
	ListItems(orderID uint) ([]models.OrderItem, error)
	GetItem(id uint) (*models.OrderItem, error)
	CreateItem(item *models.OrderItem) error
	UpdateItem(item *models.OrderItem) error
	DeleteItem(id uint) error
	CountByPromotionSince(promotionID uint, since time.Time) (int64, error)
	ExistsForAdvertiserWithPromotion(advertiserID, promotionID, excludeOrderID uint) (bool, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单（不级联订单项）
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Omit("Items", "Payments", "PromotionCode").Create(order).Error
}

// Update 保存订单字段
func (r *GormOrderRepository) Update(order *models.Order) error {
	return r.db.Omit("Items", "Payments", "PromotionCode").Save(order).Error
}

// GetByID 根据 ID 获取订单（含订单项与优惠码）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("PromotionCode").
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDForUpdate 加锁读取订单当前持久化状态
func (r *GormOrderRepository) GetByIDForUpdate(id uint) (*models.Order, error) {
	var order models.Order
	if err := forUpdate(r.db).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Delete 删除订单及订单项
func (r *GormOrderRepository) Delete(id uint) error {
	if err := r.db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Order{}, id).Error
}

// ListItems 获取订单当前全部订单项
func (r *GormOrderRepository) ListItems(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem 根据 ID 获取订单项
func (r *GormOrderRepository) GetItem(id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CreateItem 创建订单项
func (r *GormOrderRepository) CreateItem(item *models.OrderItem) error {
	return r.db.Omit("Product").Create(item).Error
}

// UpdateItem 保存订单项
func (r *GormOrderRepository) UpdateItem(item *models.OrderItem) error {
	return r.db.Omit("Product").Save(item).Error
}

// DeleteItem 删除订单项
func (r *GormOrderRepository) DeleteItem(id uint) error {
	return r.db.Delete(&models.OrderItem{}, id).Error
}

// CountByPromotionSince 统计指定时间后使用了该优惠规则任一优惠码的订单数
func (r *GormOrderRepository) CountByPromotionSince(promotionID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).
		Joins("JOIN promotion_codes ON promotion_codes.id = orders.promotion_code_id").
		Where("promotion_codes.promotion_id = ?", promotionID).
		Where("orders.created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// ExistsForAdvertiserWithPromotion 判断广告主的其他订单是否已使用该优惠规则
func (r *GormOrderRepository) ExistsForAdvertiserWithPromotion(advertiserID, promotionID, excludeOrderID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Order{}).
		Joins("JOIN promotion_codes ON promotion_codes.id = orders.promotion_code_id").
		Joins("JOIN billing_records ON billing_records.id = orders.billing_record_id").
		Joins("JOIN businesses ON businesses.id = billing_records.business_id").
		Where("promotion_codes.promotion_id = ?", promotionID).
		Where("businesses.advertiser_id = ?", advertiserID).
		Where("orders.id <> ?", excludeOrderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListAdmin 后台订单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if filter.BillingRecordID != 0 {
		query = query.Where("billing_record_id = ?", filter.BillingRecordID)
	}
	if filter.IsLocked != nil {
		query = query.Where("is_locked = ?", *filter.IsLocked)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	query = applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize)
	if err := query.Preload("Items").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
