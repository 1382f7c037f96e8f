package main

import (
	"time"

	"github.com/couponslot-next/internal/config"
	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.InitDefaults(cfg.Slot.DefaultSiteID); err != nil {
		stdLog.Fatalf("Failed to init defaults: %v", err)
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		// 站点
		sites := []models.Site{
			{Name: "Springfield", Domain: "springfield.local", BaseRate: models.MustMoney("0.50"), ConsumerCount: 12000, IsActive: true},
			{Name: "Shelbyville", Domain: "shelbyville.local", BaseRate: models.MustMoney("0.45"), ConsumerCount: 8000, IsActive: true},
		}
		for i := range sites {
			if err := tx.Where("domain = ?", sites[i].Domain).FirstOrCreate(&sites[i]).Error; err != nil {
				return err
			}
			stdLog.Printf("Site ready: %s (id=%d)", sites[i].Domain, sites[i].ID)
		}

		// 推广方与优惠
		promoter := models.Promoter{Name: "House", Email: "house@couponslot.local", PromoterCutPercent: models.MustMoney("0"), IsActive: true, IsApproved: true}
		if err := tx.Where("name = ?", promoter.Name).FirstOrCreate(&promoter).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		promotions := []struct {
			promotion models.Promotion
			codes     []string
		}{
			{
				promotion: models.Promotion{
					PromoterID: promoter.ID,
					Name:       "Referral attribution",
					PromoType:  models.PromoTypeFixedOff,
					UseMethod:  models.UseMethodUnlimited,
					CodeMethod: models.CodeMethodShared,
					Amount:     models.MustMoney("0"),
					IsActive:   true,
					StartDate:  now.AddDate(-1, 0, 0),
					EndDate:    now.AddDate(10, 0, 0),
				},
				codes: []string{cfg.Renewal.ReferralPromotionCode},
			},
			{
				promotion: models.Promotion{
					PromoterID: promoter.ID,
					Name:       "Launch 15% off",
					PromoType:  models.PromoTypePercentOff,
					UseMethod:  models.UseMethodOncePerAdvertiser,
					CodeMethod: models.CodeMethodShared,
					Amount:     models.MustMoney("15"),
					IsActive:   true,
					StartDate:  now.AddDate(0, -1, 0),
					EndDate:    now.AddDate(1, 0, 0),
				},
				codes: []string{"LAUNCH15"},
			},
		}
		for _, item := range promotions {
			promotion := item.promotion
			if err := tx.Where("name = ?", promotion.Name).FirstOrCreate(&promotion).Error; err != nil {
				return err
			}
			for _, code := range item.codes {
				if code == "" {
					continue
				}
				row := models.PromotionCode{PromotionID: promotion.ID, Code: code}
				if err := tx.Where("code = ?", code).FirstOrCreate(&row).Error; err != nil {
					return err
				}
				stdLog.Printf("Promotion code ready: %s", code)
			}
		}

		// 示例商家
		advertiser := models.Advertiser{Name: "Demo Advertiser", Email: "demo@couponslot.local", SiteID: sites[0].ID}
		if err := tx.Where("email = ?", advertiser.Email).FirstOrCreate(&advertiser).Error; err != nil {
			return err
		}
		business := models.Business{AdvertiserID: advertiser.ID, Name: "Demo Pizza"}
		if err := tx.Where("advertiser_id = ? AND name = ?", advertiser.ID, business.Name).FirstOrCreate(&business).Error; err != nil {
			return err
		}
		billing := models.BillingRecord{
			BusinessID:  business.ID,
			ContactName: "Demo Owner",
			Address:     "1 Main St",
			City:        "Springfield",
			State:       "IL",
			ZipPostal:   "62701",
		}
		if err := tx.Where("business_id = ?", business.ID).FirstOrCreate(&billing).Error; err != nil {
			return err
		}
		card := models.CreditCard{
			BusinessID:     business.ID,
			CardType:       "visa",
			CardHolder:     "Demo Owner",
			Last4:          "4242",
			ExpMonth:       12,
			ExpYear:        now.Year()%100 + 3,
			VaultToken:     "sandbox-demo",
			IsStorageOptIn: true,
		}
		if err := tx.Where("business_id = ?", business.ID).FirstOrCreate(&card).Error; err != nil {
			return err
		}
		coupon := models.Coupon{BusinessID: business.ID, Headline: "2 for 1 slices", Qualifier: "Tuesdays only", CouponType: models.CouponTypeInProgress}
		if err := tx.Where("business_id = ? AND headline = ?", business.ID, coupon.Headline).FirstOrCreate(&coupon).Error; err != nil {
			return err
		}
		stdLog.Printf("Demo business ready: id=%d coupon=%d", business.ID, coupon.ID)
		return nil
	})
	if err != nil {
		stdLog.Fatalf("Seed failed: %v", err)
	}
	stdLog.Printf("Seed completed")
}
