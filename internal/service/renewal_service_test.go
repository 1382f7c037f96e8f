package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/payment/sandbox"
)

func newRenewalStack(t *testing.T, env *serviceTestEnv, sender EmailSender, referralCode string) *RenewalService {
	t.Helper()
	ledger, _, _ := newLedgerStack(env)
	payments := newSandboxPayments(t, env, &sandbox.Config{DeclineLast4: []string{"0002"}}, time.Second)
	notifications := NewNotificationService(sender, nil, env.siteRepo, []string{"ops@example.com"})
	return NewRenewalService(RenewalOptions{
		DefaultSiteID:         testDefaultSiteID,
		WindowDays:            3,
		GraceDays:             1,
		Lookback:              24 * time.Hour,
		ReferralPromotionCode: referralCode,
	},
		env.siteRepo,
		env.slotRepo,
		env.paymentRepo,
		env.businessRepo,
		env.productRepo,
		env.referralRepo,
		ledger,
		payments,
		NewSlotService(env.slotRepo, testDefaultSiteID),
		notifications,
	)
}

// createRenewableSlot 创建明天到期、开启自动续费的父槽位
func (e *serviceTestEnv) createRenewableSlot(t *testing.T, siteID, businessID uint, rate string) *models.Slot {
	t.Helper()
	end := models.DateOf(time.Now()).AddDate(0, 0, 1)
	renewalRate := models.MustMoney(rate)
	slot := &models.Slot{
		SiteID:      siteID,
		BusinessID:  businessID,
		StartDate:   end.AddDate(0, -1, 0),
		EndDate:     end,
		IsAutorenew: true,
		RenewalRate: &renewalRate,
	}
	mustCreate(t, e.db, slot)
	return slot
}

func (e *serviceTestEnv) reloadSlot(t *testing.T, id uint) *models.Slot {
	t.Helper()
	slot, err := e.slotRepo.GetByID(id)
	if err != nil || slot == nil {
		t.Fatalf("reload slot %d failed: %v", id, err)
	}
	return slot
}

func TestRenewalBatchChargesAndExtends(t *testing.T) {
	env := setupServiceTestDB(t)
	sender := &recordingSender{}
	renewals := newRenewalStack(t, env, sender, "")
	site := env.createSite(t, "springfield")
	fx := env.createBusiness(t, "4242")
	slot := env.createRenewableSlot(t, site.ID, fx.business.ID, "99.00")
	child := env.createChildSlot(t, slot)
	wantEnd := slot.CalculateNextEndDate()

	result, err := renewals.RunBatch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run batch failed: %v", err)
	}
	if len(result.Good) != 1 || len(result.Bad) != 0 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected batch result %+v", result)
	}
	if result.TotalCharged.String() != "99.00" {
		t.Fatalf("total charged want 99.00 got %s", result.TotalCharged.String())
	}
	good := result.Good[0]
	if good.SlotID != slot.ID || good.Status != models.PaymentStatusApproved {
		t.Fatalf("unexpected outcome %+v", good)
	}

	order, err := env.orderRepo.GetByID(good.OrderID)
	if err != nil || order == nil {
		t.Fatalf("renewal order missing: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].ItemID != slot.ID || order.Total.String() != "99.00" {
		t.Fatalf("unexpected renewal order %+v", order)
	}
	item := order.Items[0]
	if item.StartDate == nil || !models.DateOf(*item.StartDate).Equal(models.DateOf(slot.EndDate).AddDate(0, 0, 1)) {
		t.Fatalf("service period should start the day after the old end date, got %v", item.StartDate)
	}
	if !strings.Contains(item.Description, "Price Locked on") {
		t.Fatalf("unexpected description %q", item.Description)
	}

	renewed := env.reloadSlot(t, slot.ID)
	if !models.DateOf(renewed.EndDate).Equal(models.DateOf(wantEnd)) {
		t.Fatalf("end date want %s got %s", wantEnd.Format("2006-01-02"), renewed.EndDate.Format("2006-01-02"))
	}
	if !models.DateOf(env.reloadSlot(t, child.ID).EndDate).Equal(models.DateOf(wantEnd)) {
		t.Fatalf("child end date should follow the parent")
	}

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0].subject, "1 slot renewals approved") {
		t.Fatalf("approved summary email expected, got %+v", sender.sent)
	}

	again, err := renewals.RunBatch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(again.Good)+len(again.Bad)+len(again.Skipped) != 0 {
		t.Fatalf("second run should not charge again, got %+v", again)
	}
	payments, err := env.paymentRepo.ListByOrderID(good.OrderID)
	if err != nil || len(payments) != 1 {
		t.Fatalf("want exactly one payment, got %d (%v)", len(payments), err)
	}
}

func TestRenewalBatchSeparatesDeclinedAndSkipped(t *testing.T) {
	env := setupServiceTestDB(t)
	sender := &recordingSender{}
	renewals := newRenewalStack(t, env, sender, "")
	site := env.createSite(t, "springfield")

	declined := env.createBusiness(t, "0002")
	declinedSlot := env.createRenewableSlot(t, site.ID, declined.business.ID, "49.00")
	noCard := env.createBusiness(t, "")
	skippedSlot := env.createRenewableSlot(t, site.ID, noCard.business.ID, "49.00")

	// 不满足续费条件的槽位
	off := env.createBusiness(t, "4242")
	manual := env.createRenewableSlot(t, site.ID, off.business.ID, "49.00")
	if err := env.db.Model(manual).Update("is_autorenew", false).Error; err != nil {
		t.Fatalf("disable autorenew failed: %v", err)
	}
	defaultSiteSlot := env.createRenewableSlot(t, testDefaultSiteID, off.business.ID, "49.00")

	result, err := renewals.RunBatch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run batch failed: %v", err)
	}
	if len(result.Good) != 0 || !result.TotalCharged.IsZero() {
		t.Fatalf("nothing should be charged, got %+v", result)
	}
	if len(result.Bad) != 1 || result.Bad[0].SlotID != declinedSlot.ID || result.Bad[0].Status != models.PaymentStatusDeclined {
		t.Fatalf("declined slot should be reported as bad, got %+v", result.Bad)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].SlotID != skippedSlot.ID {
		t.Fatalf("slot without card should be skipped, got %+v", result.Skipped)
	}
	if !models.DateOf(env.reloadSlot(t, declinedSlot.ID).EndDate).Equal(models.DateOf(declinedSlot.EndDate)) {
		t.Fatalf("declined slot end date must not move")
	}
	if !models.DateOf(env.reloadSlot(t, defaultSiteSlot.ID).EndDate).Equal(models.DateOf(defaultSiteSlot.EndDate)) {
		t.Fatalf("default site slots are never renewed")
	}

	if len(sender.sent) != 1 {
		t.Fatalf("only the not-approved summary expected, got %d emails", len(sender.sent))
	}
	body := sender.sent[0].body
	if !strings.Contains(sender.sent[0].subject, "2 slot renewals not approved") || !strings.Contains(body, "skipped") {
		t.Fatalf("unexpected not-approved email %+v", sender.sent[0])
	}
}

func TestRenewSlotBumpsExpiredCardInMemory(t *testing.T) {
	env := setupServiceTestDB(t)
	renewals := newRenewalStack(t, env, &recordingSender{}, "")
	site := env.createSite(t, "springfield")
	fx := env.createBusiness(t, "4242")
	lastYear := (time.Now().Year() - 1) % 100
	if err := env.db.Model(&fx.card).Updates(map[string]interface{}{"exp_month": 12, "exp_year": lastYear}).Error; err != nil {
		t.Fatalf("expire card failed: %v", err)
	}
	slot := env.createRenewableSlot(t, site.ID, fx.business.ID, "20.00")
	product := env.product(t, models.ProductCodeSlotMonthly)

	outcome, err := renewals.RenewSlot(context.Background(), time.Now(), site, product, slot)
	if err != nil {
		t.Fatalf("renew slot failed: %v", err)
	}
	if outcome.Status != models.PaymentStatusApproved {
		t.Fatalf("card with bumped year should be approved, got %+v", outcome)
	}
	card, err := env.businessRepo.GetStoredCard(fx.business.ID)
	if err != nil || card == nil {
		t.Fatalf("reload card failed: %v", err)
	}
	if card.ExpYear != lastYear {
		t.Fatalf("stored card year must not change, got %d", card.ExpYear)
	}

	manual := *slot
	manual.IsAutorenew = false
	if _, err := renewals.RenewSlot(context.Background(), time.Now(), site, product, &manual); err != ErrSlotNotAutorenew {
		t.Fatalf("want ErrSlotNotAutorenew, got %v", err)
	}
}

func TestRenewalLinksReferral(t *testing.T) {
	env := setupServiceTestDB(t)
	renewals := newRenewalStack(t, env, &recordingSender{}, "zero")
	site := env.createSite(t, "springfield")
	fx := env.createBusiness(t, "4242")
	_, code := env.createPromotion(t, "zero", models.PromoTypeFixedOff, "0", nil, func(p *models.Promotion) {
		p.IsActive = false
	})
	rep := &models.AdRep{Name: "rep", SiteID: site.ID}
	mustCreate(t, env.db, rep)
	mustCreate(t, env.db, &models.AdRepAdvertiser{AdRepID: rep.ID, AdvertiserID: fx.advertiser.ID})
	env.createRenewableSlot(t, site.ID, fx.business.ID, "30.00")

	result, err := renewals.RunBatch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run batch failed: %v", err)
	}
	if len(result.Good) != 1 || result.Good[0].AdRepID == nil || *result.Good[0].AdRepID != rep.ID {
		t.Fatalf("renewal should be linked to the ad rep, got %+v", result.Good)
	}
	var links int64
	if err := env.db.Model(&models.AdRepOrder{}).Where("order_id = ?", result.Good[0].OrderID).Count(&links).Error; err != nil {
		t.Fatalf("count ad rep orders failed: %v", err)
	}
	if links != 1 {
		t.Fatalf("want one ad rep order, got %d", links)
	}
	order, err := env.orderRepo.GetByID(result.Good[0].OrderID)
	if err != nil || order.PromotionCodeID == nil || *order.PromotionCodeID != code.ID {
		t.Fatalf("attribution code should be attached: %+v (%v)", order, err)
	}
	if order.Total.String() != "30.00" {
		t.Fatalf("attribution code must not discount, got %s", order.Total.String())
	}
}

func TestRenewalMalformedCardRecordsOnePaymentPerOrder(t *testing.T) {
	env := setupServiceTestDB(t)
	renewals := newRenewalStack(t, env, &recordingSender{}, "")
	site := env.createSite(t, "springfield")
	fx := env.createBusiness(t, "4242")
	slot := env.createRenewableSlot(t, site.ID, fx.business.ID, "49.00")
	if err := env.db.Model(&models.CreditCard{}).Where("id = ?", fx.card.ID).Update("exp_month", 0).Error; err != nil {
		t.Fatalf("break stored card failed: %v", err)
	}

	first, err := renewals.RunBatch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run batch failed: %v", err)
	}
	if len(first.Bad) != 1 || len(first.Good) != 0 {
		t.Fatalf("malformed card should be reported as not approved, got %+v", first)
	}
	bad := first.Bad[0]
	if bad.SlotID != slot.ID || bad.PaymentID == 0 || bad.Status != models.PaymentStatusError {
		t.Fatalf("unexpected outcome %+v", bad)
	}

	for run := 2; run <= 3; run++ {
		again, err := renewals.RunBatch(context.Background(), time.Now())
		if err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
		if len(again.Good)+len(again.Bad)+len(again.Skipped) != 0 {
			t.Fatalf("run %d should not retry the slot, got %+v", run, again)
		}
	}

	var orders, payments int64
	env.db.Model(&models.Order{}).Count(&orders)
	env.db.Model(&models.Payment{}).Count(&payments)
	if orders != 1 || payments != 1 {
		t.Fatalf("want one order and one payment, got orders=%d payments=%d", orders, payments)
	}
	if !models.DateOf(env.reloadSlot(t, slot.ID).EndDate).Equal(models.DateOf(slot.EndDate)) {
		t.Fatalf("not approved renewal should keep the end date")
	}
}

func TestRenewalBatchDoesNotOverlap(t *testing.T) {
	env := setupServiceTestDB(t)
	renewals := newRenewalStack(t, env, &recordingSender{}, "")
	site := env.createSite(t, "springfield")
	fx := env.createBusiness(t, "4242")
	env.createRenewableSlot(t, site.ID, fx.business.ID, "99.00")

	renewals.running.Lock()
	if _, err := renewals.RunBatch(context.Background(), time.Now()); !errors.Is(err, ErrRenewalBatchRunning) {
		renewals.running.Unlock()
		t.Fatalf("overlapping batch want ErrRenewalBatchRunning, got %v", err)
	}
	renewals.running.Unlock()

	var payments int64
	env.db.Model(&models.Payment{}).Count(&payments)
	if payments != 0 {
		t.Fatalf("rejected batch should not charge, got %d payments", payments)
	}

	result, err := renewals.RunBatch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("batch after release failed: %v", err)
	}
	if len(result.Good) != 1 {
		t.Fatalf("want one approved renewal after release, got %+v", result)
	}
}
