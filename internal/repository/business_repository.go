package repository

import (
	"errors"

	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// BusinessRepository 商家、账单与信用卡数据访问接口
type BusinessRepository interface {
	GetByID(id uint) (*models.Business, error)
	GetBillingRecordByID(id uint) (*models.BillingRecord, error)
	GetBillingRecordByBusiness(businessID uint) (*models.BillingRecord, error)
	GetStoredCard(businessID uint) (*models.CreditCard, error)
	WithTx(tx *gorm.DB) *GormBusinessRepository
}

// GormBusinessRepository GORM 实现
type GormBusinessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository 创建商家仓库
func NewBusinessRepository(db *gorm.DB) *GormBusinessRepository {
	return &GormBusinessRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBusinessRepository) WithTx(tx *gorm.DB) *GormBusinessRepository {
	if tx == nil {
		return r
	}
	return &GormBusinessRepository{db: tx}
}

// GetByID 获取商家（含广告主）
func (r *GormBusinessRepository) GetByID(id uint) (*models.Business, error) {
	var business models.Business
	if err := r.db.Preload("Advertiser").First(&business, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}

// GetBillingRecordByID 根据 ID 获取账单记录（含商家与广告主）
func (r *GormBusinessRepository) GetBillingRecordByID(id uint) (*models.BillingRecord, error) {
	var record models.BillingRecord
	if err := r.db.Preload("Business.Advertiser").First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetBillingRecordByBusiness 获取商家账单记录
func (r *GormBusinessRepository) GetBillingRecordByBusiness(businessID uint) (*models.BillingRecord, error) {
	var record models.BillingRecord
	err := r.db.Preload("Business.Advertiser").
		Where("business_id = ?", businessID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetStoredCard 获取商家最近一张同意保存的信用卡
func (r *GormBusinessRepository) GetStoredCard(businessID uint) (*models.CreditCard, error) {
	var card models.CreditCard
	err := r.db.
		Where("business_id = ? AND is_storage_opt_in = ?", businessID, true).
		Order("id DESC").
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}
