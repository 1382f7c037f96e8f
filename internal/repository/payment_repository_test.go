package repository

import (
	"testing"
	"time"

	"github.com/couponslot-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type paymentFixture struct {
	product models.Product
	order   models.Order
	slot    models.Slot
}

func createSlotPaymentFixture(t *testing.T, db *gorm.DB, businessID uint, productCode string) paymentFixture {
	t.Helper()
	product := models.Product{Code: productCode, Name: productCode, BaseRate: models.MustMoney("10.00"), IsActive: true}
	if err := db.Where("code = ?", productCode).FirstOrCreate(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	today := models.DateOf(time.Now())
	slot := models.Slot{SiteID: 2, BusinessID: businessID, StartDate: today, EndDate: today.AddDate(0, 1, 0)}
	mustCreate(t, db, &slot)
	order := models.Order{BillingRecordID: businessID, Method: models.OrderMethodCard, Total: models.MustMoney("10.00")}
	mustCreate(t, db, &order)
	mustCreate(t, db, &models.OrderItem{
		OrderID:    order.ID,
		ProductID:  product.ID,
		BusinessID: businessID,
		SiteID:     2,
		ItemType:   models.OrderItemTypeSlot,
		ItemID:     slot.ID,
		Units:      1,
		Amount:     models.MustMoney("10.00"),
	})
	return paymentFixture{product: product, order: order, slot: slot}
}

func TestPaymentRepositorySumApprovedByOrderSkipsVoid(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewPaymentRepository(db)
	fx := createSlotPaymentFixture(t, db, 1, models.ProductCodeSlotMonthly)

	rows := []models.Payment{
		{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("4.00"), Status: models.PaymentStatusApproved},
		{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("3.50"), Status: models.PaymentStatusApproved},
		{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("2.00"), Status: models.PaymentStatusApproved, IsVoid: true},
		{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("9.00"), Status: models.PaymentStatusDeclined},
	}
	for i := range rows {
		if err := repo.Create(&rows[i]); err != nil {
			t.Fatalf("create payment failed: %v", err)
		}
	}

	sum, err := repo.SumApprovedByOrder(fx.order.ID)
	if err != nil {
		t.Fatalf("sum approved failed: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("7.50")) {
		t.Fatalf("approved sum want 7.50 got %s", sum.StringFixed(2))
	}

	list, err := repo.ListByOrderID(fx.order.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected every attempt to be listed, got %d", len(list))
	}
}

func TestPaymentRepositoryListSlotIDsPaidSince(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewPaymentRepository(db)
	recent := createSlotPaymentFixture(t, db, 1, models.ProductCodeSlotMonthly)
	stale := createSlotPaymentFixture(t, db, 2, models.ProductCodeSlotMonthly)
	flyer := createSlotPaymentFixture(t, db, 3, models.ProductCodeFlyer)

	now := time.Now()
	mustCreate(t, db, &models.Payment{OrderID: recent.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("10.00"), Status: models.PaymentStatusDeclined})
	stalePayment := models.Payment{OrderID: stale.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("10.00"), Status: models.PaymentStatusApproved}
	mustCreate(t, db, &stalePayment)
	if err := db.Model(&stalePayment).UpdateColumn("created_at", now.Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("backdate payment failed: %v", err)
	}
	mustCreate(t, db, &models.Payment{OrderID: flyer.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("10.00"), Status: models.PaymentStatusApproved})

	ids, err := repo.ListSlotIDsPaidSince(now.Add(-24*time.Hour), []string{models.ProductCodeSlotMonthly, models.ProductCodeSlotAnnual})
	if err != nil {
		t.Fatalf("list paid slot ids failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != recent.slot.ID {
		t.Fatalf("expected only slot %d, got %v", recent.slot.ID, ids)
	}
}

func TestPaymentRepositoryHasApprovedSlotPurchaseSince(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewPaymentRepository(db)
	fx := createSlotPaymentFixture(t, db, 5, models.ProductCodeSlotMonthly)
	since := time.Now().Add(-3 * time.Hour)

	declined := models.Payment{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("10.00"), Status: models.PaymentStatusDeclined}
	mustCreate(t, db, &declined)
	found, err := repo.HasApprovedSlotPurchaseSince(5, models.ProductCodeSlotMonthly, since)
	if err != nil {
		t.Fatalf("check purchase failed: %v", err)
	}
	if found {
		t.Fatalf("declined payment must not count as purchase")
	}

	voided := models.Payment{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("10.00"), Status: models.PaymentStatusApproved, IsVoid: true}
	mustCreate(t, db, &voided)
	if found, _ = repo.HasApprovedSlotPurchaseSince(5, models.ProductCodeSlotMonthly, since); found {
		t.Fatalf("void payment must not count as purchase")
	}

	mustCreate(t, db, &models.Payment{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("10.00"), Status: models.PaymentStatusApproved})
	if found, _ = repo.HasApprovedSlotPurchaseSince(5, models.ProductCodeSlotMonthly, since); !found {
		t.Fatalf("approved payment should be detected")
	}
	if found, _ = repo.HasApprovedSlotPurchaseSince(6, models.ProductCodeSlotMonthly, since); found {
		t.Fatalf("other business must not match")
	}
}

func TestPaymentRepositoryWithTxRollback(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewPaymentRepository(db)
	fx := createSlotPaymentFixture(t, db, 1, models.ProductCodeSlotMonthly)

	_ = db.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).Create(&models.Payment{OrderID: fx.order.ID, Method: models.OrderMethodCard, Amount: models.MustMoney("1.00"), Status: models.PaymentStatusApproved}); err != nil {
			t.Fatalf("create in tx failed: %v", err)
		}
		return gorm.ErrInvalidTransaction
	})

	list, err := repo.ListByOrderID(fx.order.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rolled back payment should not persist, got %d", len(list))
	}
}
