package models

import (
	"errors"

	"github.com/couponslot-next/internal/logger"

	"gorm.io/gorm"
)

// DefaultProducts 系统内置商品
var DefaultProducts = []Product{
	{Code: ProductCodeFlyer, Name: "Flyer Placement", BaseRate: MustMoney("0.00"), IsActive: true},
	{Code: ProductCodeSlotMonthly, Name: "Monthly Coupon Publishing Slot", BaseRate: MustMoney("10.00"), IsActive: true},
	{Code: ProductCodeSlotAnnual, Name: "Annual Coupon Publishing Slot", BaseRate: MustMoney("499.00"), IsActive: true},
}

// InitDefaults 初始化默认站点与内置商品
func InitDefaults(defaultSiteID uint) error {
	var site Site
	err := DB.First(&site, defaultSiteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		site = Site{ID: defaultSiteID, Name: "Local", Domain: "default.local", IsActive: true}
		if err := DB.Create(&site).Error; err != nil {
			return err
		}
		logger.Infow("default_site_created", "site_id", defaultSiteID)
	} else if err != nil {
		return err
	}

	for _, product := range DefaultProducts {
		var count int64
		if err := DB.Model(&Product{}).Where("code = ?", product.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		row := product
		if err := DB.Create(&row).Error; err != nil {
			return err
		}
		logger.Infow("default_product_created", "code", row.Code, "product_id", row.ID)
	}
	return nil
}
