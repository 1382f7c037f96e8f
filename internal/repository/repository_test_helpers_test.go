package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/couponslot-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Site{},
		&models.Advertiser{},
		&models.Business{},
		&models.BillingRecord{},
		&models.CreditCard{},
		&models.Coupon{},
		&models.Product{},
		&models.Slot{},
		&models.SlotTimeFrame{},
		&models.Promoter{},
		&models.Promotion{},
		&models.PromotionCode{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.AdRep{},
		&models.AdRepAdvertiser{},
		&models.AdRepOrder{},
	); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T failed: %v", value, err)
	}
}

func seedDefaultProducts(t *testing.T, db *gorm.DB) []models.Product {
	t.Helper()
	products := make([]models.Product, 0, len(models.DefaultProducts))
	for _, product := range models.DefaultProducts {
		row := product
		mustCreate(t, db, &row)
		products = append(products, row)
	}
	return products
}
