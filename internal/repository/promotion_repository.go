package repository

import (
	"errors"
	"strings"

	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// PromotionRepository 优惠规则与优惠码数据访问接口
type PromotionRepository interface {
	Create(promotion *models.Promotion) error
	Update(promotion *models.Promotion) error
	ReplaceProducts(promotion *models.Promotion, products []models.Product) error
	GetByID(id uint) (*models.Promotion, error)
	CreateCode(code *models.PromotionCode) error
	DeleteCode(id uint) error
	GetCodeByID(id uint) (*models.PromotionCode, error)
	GetCodeByCode(code string) (*models.PromotionCode, error)
	SumUsedCount(promotionID uint) (int64, error)
	IncrementUsedCount(codeID uint, delta int) error
	DecrementUsedCount(codeID uint, delta int) error
	WithTx(tx *gorm.DB) *GormPromotionRepository
}

// GormPromotionRepository GORM 实现
type GormPromotionRepository struct {
	db *gorm.DB
}

// NewPromotionRepository 创建优惠规则仓库
func NewPromotionRepository(db *gorm.DB) *GormPromotionRepository {
	return &GormPromotionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPromotionRepository) WithTx(tx *gorm.DB) *GormPromotionRepository {
	if tx == nil {
		return r
	}
	return &GormPromotionRepository{db: tx}
}

// Create 创建优惠规则（含适用商品关联）
func (r *GormPromotionRepository) Create(promotion *models.Promotion) error {
	return r.db.Omit("Promoter", "Codes", "Products.*").Create(promotion).Error
}

// Update 保存优惠规则字段
func (r *GormPromotionRepository) Update(promotion *models.Promotion) error {
	return r.db.Omit("Promoter", "Codes", "Products").Save(promotion).Error
}

// ReplaceProducts 替换适用商品集合
func (r *GormPromotionRepository) ReplaceProducts(promotion *models.Promotion, products []models.Product) error {
	return r.db.Model(promotion).Association("Products").Replace(products)
}

// GetByID 获取优惠规则（含推广方与适用商品）
func (r *GormPromotionRepository) GetByID(id uint) (*models.Promotion, error) {
	var promotion models.Promotion
	if err := r.db.Preload("Promoter").Preload("Products").First(&promotion, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &promotion, nil
}

// CreateCode 创建优惠码
func (r *GormPromotionRepository) CreateCode(code *models.PromotionCode) error {
	code.Code = strings.TrimSpace(code.Code)
	return r.db.Omit("Promotion").Create(code).Error
}

// DeleteCode 删除优惠码
func (r *GormPromotionRepository) DeleteCode(id uint) error {
	return r.db.Delete(&models.PromotionCode{}, id).Error
}

// GetCodeByID 根据 ID 获取优惠码
func (r *GormPromotionRepository) GetCodeByID(id uint) (*models.PromotionCode, error) {
	var code models.PromotionCode
	if err := r.db.First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetCodeByCode 根据优惠码文本获取（不区分大小写）
func (r *GormPromotionRepository) GetCodeByCode(code string) (*models.PromotionCode, error) {
	var row models.PromotionCode
	err := r.db.Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// SumUsedCount 汇总优惠规则下全部优惠码的使用次数
func (r *GormPromotionRepository) SumUsedCount(promotionID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.PromotionCode{}).
		Where("promotion_id = ?", promotionID).
		Select("COALESCE(SUM(used_count), 0)").
		Scan(&total).Error
	return total, err
}

// IncrementUsedCount 原子增加优惠码使用次数
func (r *GormPromotionRepository) IncrementUsedCount(codeID uint, delta int) error {
	if delta == 0 {
		delta = 1
	}
	return r.db.Model(&models.PromotionCode{}).
		Where("id = ?", codeID).
		UpdateColumn("used_count", gorm.Expr("used_count + ?", delta)).Error
}

// DecrementUsedCount 原子减少优惠码使用次数，不会减为负数
func (r *GormPromotionRepository) DecrementUsedCount(codeID uint, delta int) error {
	if delta == 0 {
		delta = 1
	}
	if delta < 0 {
		delta = -delta
	}
	return r.db.Model(&models.PromotionCode{}).
		Where("id = ?", codeID).
		Where("used_count >= ?", delta).
		UpdateColumn("used_count", gorm.Expr("used_count - ?", delta)).Error
}
