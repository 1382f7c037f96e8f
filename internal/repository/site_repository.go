package repository

import (
	"errors"

	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// SiteRepository 站点数据访问接口
type SiteRepository interface {
	GetByID(id uint) (*models.Site, error)
	ListActiveExcept(excludeID uint) ([]models.Site, error)
}

// GormSiteRepository GORM 实现
type GormSiteRepository struct {
	db *gorm.DB
}

// NewSiteRepository 创建站点仓库
func NewSiteRepository(db *gorm.DB) *GormSiteRepository {
	return &GormSiteRepository{db: db}
}

// GetByID 根据 ID 获取站点
func (r *GormSiteRepository) GetByID(id uint) (*models.Site, error) {
	var site models.Site
	if err := r.db.First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

// ListActiveExcept 获取除指定站点外的启用站点
func (r *GormSiteRepository) ListActiveExcept(excludeID uint) ([]models.Site, error) {
	var sites []models.Site
	err := r.db.Where("id <> ? AND is_active = ?", excludeID, true).
		Order("id ASC").
		Find(&sites).Error
	if err != nil {
		return nil, err
	}
	return sites, nil
}
