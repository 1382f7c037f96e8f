package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testDefaultSiteID uint = 1

type serviceTestEnv struct {
	db            *gorm.DB
	siteRepo      repository.SiteRepository
	businessRepo  repository.BusinessRepository
	couponRepo    repository.CouponRepository
	productRepo   repository.ProductRepository
	slotRepo      repository.SlotRepository
	timeFrameRepo repository.SlotTimeFrameRepository
	orderRepo     repository.OrderRepository
	paymentRepo   repository.PaymentRepository
	promotionRepo repository.PromotionRepository
	referralRepo  repository.ReferralRepository
}

// setupServiceTestDB 创建内存库并替换全局 models.DB
func setupServiceTestDB(t *testing.T) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	previous := models.DB
	models.DB = db
	t.Cleanup(func() {
		models.DB = previous
		_ = sqlDB.Close()
	})
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := models.InitDefaults(testDefaultSiteID); err != nil {
		t.Fatalf("init defaults failed: %v", err)
	}

	return &serviceTestEnv{
		db:            db,
		siteRepo:      repository.NewSiteRepository(db),
		businessRepo:  repository.NewBusinessRepository(db),
		couponRepo:    repository.NewCouponRepository(db),
		productRepo:   repository.NewProductRepository(db),
		slotRepo:      repository.NewSlotRepository(db),
		timeFrameRepo: repository.NewSlotTimeFrameRepository(db),
		orderRepo:     repository.NewOrderRepository(db),
		paymentRepo:   repository.NewPaymentRepository(db),
		promotionRepo: repository.NewPromotionRepository(db),
		referralRepo:  repository.NewReferralRepository(db),
	}
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T failed: %v", value, err)
	}
}

func (e *serviceTestEnv) product(t *testing.T, code string) *models.Product {
	t.Helper()
	product, err := e.productRepo.GetByCode(code)
	if err != nil || product == nil {
		t.Fatalf("product %s missing: %v", code, err)
	}
	return product
}

// createSite 创建非默认站点
func (e *serviceTestEnv) createSite(t *testing.T, name string) *models.Site {
	t.Helper()
	site := &models.Site{Name: name, Domain: fmt.Sprintf("%s-%d.local", name, time.Now().UnixNano()), IsActive: true}
	mustCreate(t, e.db, site)
	return site
}

type businessFixture struct {
	advertiser models.Advertiser
	business   models.Business
	billing    models.BillingRecord
	card       models.CreditCard
}

// createBusiness 创建商家、账单与已保存的信用卡
func (e *serviceTestEnv) createBusiness(t *testing.T, last4 string) *businessFixture {
	t.Helper()
	fx := &businessFixture{}
	fx.advertiser = models.Advertiser{Name: "adv", Email: "adv@example.com"}
	mustCreate(t, e.db, &fx.advertiser)
	fx.business = models.Business{AdvertiserID: fx.advertiser.ID, Name: "Biz"}
	mustCreate(t, e.db, &fx.business)
	fx.billing = models.BillingRecord{BusinessID: fx.business.ID, ContactName: "Owner", ZipPostal: "62701"}
	mustCreate(t, e.db, &fx.billing)
	if last4 != "" {
		fx.card = models.CreditCard{
			BusinessID:     fx.business.ID,
			CardType:       "visa",
			CardHolder:     "Owner",
			Last4:          last4,
			ExpMonth:       12,
			ExpYear:        time.Now().Year()%100 + 2,
			VaultToken:     "tok_test",
			IsStorageOptIn: true,
		}
		mustCreate(t, e.db, &fx.card)
	}
	return fx
}

func (e *serviceTestEnv) createCoupon(t *testing.T, businessID uint) *models.Coupon {
	t.Helper()
	coupon := &models.Coupon{BusinessID: businessID, Headline: "deal", CouponType: models.CouponTypeInProgress}
	mustCreate(t, e.db, coupon)
	return coupon
}

// createParentSlot 创建从今天开始一个月的父槽位
func (e *serviceTestEnv) createParentSlot(t *testing.T, siteID, businessID uint) *models.Slot {
	t.Helper()
	today := models.DateOf(time.Now())
	slot := &models.Slot{SiteID: siteID, BusinessID: businessID, StartDate: today, EndDate: today.AddDate(0, 1, 0)}
	mustCreate(t, e.db, slot)
	return slot
}

func (e *serviceTestEnv) createChildSlot(t *testing.T, parent *models.Slot) *models.Slot {
	t.Helper()
	parentID := parent.ID
	child := &models.Slot{SiteID: parent.SiteID, BusinessID: parent.BusinessID, ParentSlotID: &parentID, StartDate: parent.StartDate, EndDate: parent.EndDate}
	mustCreate(t, e.db, child)
	return child
}

// occupy 在槽位上开启一个时间段
func (e *serviceTestEnv) occupy(t *testing.T, slotID, couponID uint) {
	t.Helper()
	mustCreate(t, e.db, &models.SlotTimeFrame{SlotID: slotID, CouponID: couponID, StartDatetime: time.Now().Add(-time.Hour)})
}

func (e *serviceTestEnv) countOpenFrames(t *testing.T, slotID uint) int64 {
	t.Helper()
	count, err := e.timeFrameRepo.CountOpenBySlot(slotID)
	if err != nil {
		t.Fatalf("count open frames failed: %v", err)
	}
	return count
}

func testNow() time.Time {
	return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
}

// newLedgerStack 组装订单账本相关服务（缓存未启用）
func newLedgerStack(env *serviceTestEnv) (*OrderLedgerService, *PromotionValidator, *PricingService) {
	pricing := NewPricingService(env.productRepo, env.siteRepo, nil, time.Minute)
	validator := NewPromotionValidator(env.promotionRepo, env.orderRepo, env.businessRepo)
	ledger := NewOrderLedgerService(env.orderRepo, env.promotionRepo, env.paymentRepo, pricing, validator)
	return ledger, validator, pricing
}

type promotionOption func(*models.Promotion)

// createPromotion 创建已审核推广方下的优惠规则及优惠码
func (e *serviceTestEnv) createPromotion(t *testing.T, code string, promoType string, amount string, products []models.Product, opts ...promotionOption) (*models.Promotion, *models.PromotionCode) {
	t.Helper()
	promoter := &models.Promoter{Name: "promoter-" + code, IsActive: true, IsApproved: true, PromoterCutPercent: models.MustMoney("10")}
	mustCreate(t, e.db, promoter)
	now := time.Now()
	promotion := &models.Promotion{
		PromoterID: promoter.ID,
		Name:       "promo-" + code,
		PromoType:  promoType,
		UseMethod:  models.UseMethodUnlimited,
		CodeMethod: models.CodeMethodShared,
		Amount:     models.MustMoney(amount),
		IsActive:   true,
		StartDate:  now.AddDate(0, 0, -7),
		EndDate:    now.AddDate(0, 0, 30),
	}
	for _, opt := range opts {
		opt(promotion)
	}
	mustCreate(t, e.db, promotion)
	if len(products) > 0 {
		if err := e.db.Model(promotion).Association("Products").Append(products); err != nil {
			t.Fatalf("attach products failed: %v", err)
		}
	}
	row := &models.PromotionCode{PromotionID: promotion.ID, Code: code}
	mustCreate(t, e.db, row)
	return promotion, row
}

func (e *serviceTestEnv) usedCount(t *testing.T, codeID uint) int {
	t.Helper()
	code, err := e.promotionRepo.GetCodeByID(codeID)
	if err != nil || code == nil {
		t.Fatalf("get code failed: %v", err)
	}
	return code.UsedCount
}

// createOrderWithItem 创建带一个槽位订单项的订单
func (e *serviceTestEnv) createOrderWithItem(t *testing.T, ledger *OrderLedgerService, fx *businessFixture, siteID uint, amount string) *models.Order {
	t.Helper()
	order, err := ledger.CreateOrder(CreateOrderInput{BillingRecordID: fx.billing.ID})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	price := models.MustMoney(amount)
	if _, err := ledger.AddItem(context.Background(), order.ID, NewOrderItemInput{
		ProductID:  e.product(t, models.ProductCodeSlotMonthly).ID,
		BusinessID: fx.business.ID,
		SiteID:     siteID,
		ItemType:   models.OrderItemTypeSlot,
		Amount:     &price,
	}); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	order, err = ledger.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return order
}
