package repository

import (
	"errors"

	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// ReferralRepository 销售代表推荐关系数据访问接口
type ReferralRepository interface {
	GetAdRepByAdvertiser(advertiserID uint) (*models.AdRep, error)
	CreateAdRepOrder(row *models.AdRepOrder) error
	WithTx(tx *gorm.DB) *GormReferralRepository
}

// GormReferralRepository GORM 实现
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推荐关系仓库
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferralRepository) WithTx(tx *gorm.DB) *GormReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// GetAdRepByAdvertiser 获取广告主关联的销售代表
func (r *GormReferralRepository) GetAdRepByAdvertiser(advertiserID uint) (*models.AdRep, error) {
	var rep models.AdRep
	err := r.db.
		Joins("JOIN ad_rep_advertisers ON ad_rep_advertisers.ad_rep_id = ad_reps.id").
		Where("ad_rep_advertisers.advertiser_id = ?", advertiserID).
		First(&rep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

// CreateAdRepOrder 记录推荐订单，重复记录视为成功
func (r *GormReferralRepository) CreateAdRepOrder(row *models.AdRepOrder) error {
	if err := r.db.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}
