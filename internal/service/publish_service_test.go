package service

import (
	"errors"
	"testing"
	"time"

	"github.com/couponslot-next/internal/models"
)

func newPublishStack(env *serviceTestEnv) (*SlotAllocatorService, *PublishService, *TimeFrameService) {
	slotService := NewSlotService(env.slotRepo, testDefaultSiteID)
	timeFrames := NewTimeFrameService(env.timeFrameRepo)
	return NewSlotAllocatorService(env.slotRepo, env.timeFrameRepo, 9), NewPublishService(slotService, timeFrames, 9), timeFrames
}

func TestPublishBusinessCouponCreatesChildUnderBusyParent(t *testing.T) {
	env := setupServiceTestDB(t)
	site := env.createSite(t, "springfield")
	biz := env.createBusiness(t, "4242")
	first := env.createCoupon(t, biz.business.ID)
	second := env.createCoupon(t, biz.business.ID)
	parent := env.createParentSlot(t, site.ID, biz.business.ID)
	env.occupy(t, parent.ID, first.ID)

	allocator, publisher, _ := newPublishStack(env)
	allocation, err := allocator.CheckAvailableFamilySlot(biz.business.ID)
	if err != nil {
		t.Fatalf("check allocation failed: %v", err)
	}
	if !allocation.NeedsNewChild() {
		t.Fatalf("expected new child allocation, got %+v", allocation)
	}

	slot, err := publisher.PublishBusinessCoupon(allocation, second)
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if slot.ParentSlotID == nil || *slot.ParentSlotID != parent.ID {
		t.Fatalf("new slot should be a child of %d", parent.ID)
	}
	if !slot.EndDate.Equal(models.DateOf(parent.EndDate)) || slot.SiteID != parent.SiteID {
		t.Fatalf("child must share parent site and end date: %+v", slot)
	}
	if slot.IsAutorenew || slot.RenewalRate != nil {
		t.Fatalf("child slot must not auto renew")
	}
	if n := env.countOpenFrames(t, slot.ID); n != 1 {
		t.Fatalf("child should have exactly one open frame, got %d", n)
	}
	if n := env.countOpenFrames(t, parent.ID); n != 1 {
		t.Fatalf("parent frame must stay open, got %d", n)
	}
}

func TestPublishBusinessCouponNeverLeavesTwoOpenFrames(t *testing.T) {
	env := setupServiceTestDB(t)
	site := env.createSite(t, "springfield")
	biz := env.createBusiness(t, "4242")
	first := env.createCoupon(t, biz.business.ID)
	second := env.createCoupon(t, biz.business.ID)
	parent := env.createParentSlot(t, site.ID, biz.business.ID)
	env.occupy(t, parent.ID, first.ID)

	_, publisher, _ := newPublishStack(env)
	allocation := &Allocation{BusinessID: biz.business.ID, AvailableParentSlot: parent, PublishToParent: true}
	if _, err := publisher.PublishBusinessCoupon(allocation, second); err != nil {
		t.Fatalf("publish onto busy parent failed: %v", err)
	}

	if n := env.countOpenFrames(t, parent.ID); n != 1 {
		t.Fatalf("slot must have exactly one open frame, got %d", n)
	}
	frame, err := env.timeFrameRepo.GetOpenBySlot(parent.ID, time.Now())
	if err != nil || frame == nil {
		t.Fatalf("open frame lookup failed: %v", err)
	}
	if frame.CouponID != second.ID {
		t.Fatalf("open frame should show coupon %d, got %d", second.ID, frame.CouponID)
	}
}

func TestPublishBusinessCouponRejectsFullFamilies(t *testing.T) {
	env := setupServiceTestDB(t)
	biz := env.createBusiness(t, "4242")
	coupon := env.createCoupon(t, biz.business.ID)

	_, publisher, _ := newPublishStack(env)
	_, err := publisher.PublishBusinessCoupon(&Allocation{BusinessID: biz.business.ID, NeedsNewFamily: true}, coupon)
	if !errors.Is(err, ErrNoFamilyCapacity) {
		t.Fatalf("expected ErrNoFamilyCapacity, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("capacity error should be a validation error")
	}
}

func TestPublishBusinessCouponRechecksStaleNewChildAllocation(t *testing.T) {
	env := setupServiceTestDB(t)
	site := env.createSite(t, "springfield")
	biz := env.createBusiness(t, "4242")
	parent := env.createParentSlot(t, site.ID, biz.business.ID)
	occupant := env.createCoupon(t, biz.business.ID)
	env.occupy(t, parent.ID, occupant.ID)

	allocator, publisher, _ := newPublishStack(env)
	stale, err := allocator.CheckAvailableFamilySlot(biz.business.ID)
	if err != nil {
		t.Fatalf("check allocation failed: %v", err)
	}
	if !stale.NeedsNewChild() {
		t.Fatalf("expected new child allocation, got %+v", stale)
	}

	// 分配之后家族被其他请求填满
	for i := 0; i < 9; i++ {
		child := env.createChildSlot(t, parent)
		env.occupy(t, child.ID, occupant.ID)
	}

	coupon := env.createCoupon(t, biz.business.ID)
	if _, err := publisher.PublishBusinessCoupon(stale, coupon); !errors.Is(err, ErrNoFamilyCapacity) {
		t.Fatalf("stale allocation want ErrNoFamilyCapacity, got %v", err)
	}
	if n := env.countBusinessSlots(t, biz.business.ID); n != 10 {
		t.Fatalf("family must stay at 10 slots, got %d", n)
	}

	foreign := &Allocation{BusinessID: biz.business.ID + 1000, AvailableParentSlot: parent, PublishToParent: true}
	if _, err := publisher.PublishBusinessCoupon(foreign, coupon); !errors.Is(err, ErrInvalidAllocation) {
		t.Fatalf("allocation for another business want ErrInvalidAllocation, got %v", err)
	}
}

func TestCheckAvailableFamilySlotIgnoresExpiredChildren(t *testing.T) {
	env := setupServiceTestDB(t)
	site := env.createSite(t, "springfield")
	biz := env.createBusiness(t, "4242")
	parent := env.createParentSlot(t, site.ID, biz.business.ID)
	occupant := env.createCoupon(t, biz.business.ID)
	env.occupy(t, parent.ID, occupant.ID)

	parentID := parent.ID
	yesterday := models.DateOf(time.Now()).AddDate(0, 0, -1)
	expired := &models.Slot{
		SiteID:       site.ID,
		BusinessID:   biz.business.ID,
		ParentSlotID: &parentID,
		StartDate:    yesterday.AddDate(0, -1, 0),
		EndDate:      yesterday,
	}
	mustCreate(t, env.db, expired)

	allocator, _, _ := newPublishStack(env)
	allocation, err := allocator.CheckAvailableFamilySlot(biz.business.ID)
	if err != nil {
		t.Fatalf("check allocation failed: %v", err)
	}
	if allocation.AvailableChildSlot != nil {
		t.Fatalf("expired child %d must not be reused, got %+v", expired.ID, allocation.AvailableChildSlot)
	}
	if !allocation.NeedsNewChild() {
		t.Fatalf("expected new child allocation, got %+v", allocation)
	}
}

func TestTimeFrameServiceCloseStrict(t *testing.T) {
	env := setupServiceTestDB(t)
	site := env.createSite(t, "springfield")
	biz := env.createBusiness(t, "4242")
	parent := env.createParentSlot(t, site.ID, biz.business.ID)

	_, _, timeFrames := newPublishStack(env)
	if err := timeFrames.CloseOpenTimeFrameStrict(parent.ID); !errors.Is(err, ErrNoOpenTimeFrame) {
		t.Fatalf("expected ErrNoOpenTimeFrame, got %v", err)
	}
	if err := timeFrames.CloseSlotOpenTimeFrame(parent.ID); err != nil {
		t.Fatalf("lenient close should ignore missing frame: %v", err)
	}

	env.occupy(t, parent.ID, 1)
	active, err := timeFrames.HasActiveTimeFrame(parent.ID)
	if err != nil || !active {
		t.Fatalf("slot should be active: %v", err)
	}
	if err := timeFrames.CloseOpenTimeFrameStrict(parent.ID); err != nil {
		t.Fatalf("strict close failed: %v", err)
	}
	if n := env.countOpenFrames(t, parent.ID); n != 0 {
		t.Fatalf("frame should be closed, got %d open", n)
	}
}

func TestSlotServiceSaveSlotSyncsChildrenEndDate(t *testing.T) {
	env := setupServiceTestDB(t)
	site := env.createSite(t, "springfield")
	biz := env.createBusiness(t, "4242")
	parent := env.createParentSlot(t, site.ID, biz.business.ID)
	child := env.createChildSlot(t, parent)

	slots := NewSlotService(env.slotRepo, testDefaultSiteID)
	parent.EndDate = parent.EndDate.AddDate(0, 1, 0)
	if err := slots.SaveSlot(nil, parent); err != nil {
		t.Fatalf("save parent failed: %v", err)
	}
	stored, err := slots.GetSlot(child.ID)
	if err != nil {
		t.Fatalf("get child failed: %v", err)
	}
	if !models.DateOf(stored.EndDate).Equal(models.DateOf(parent.EndDate)) {
		t.Fatalf("child end date want %s got %s", parent.EndDate, stored.EndDate)
	}
}

func TestSlotServiceValidateSlot(t *testing.T) {
	slots := NewSlotService(nil, testDefaultSiteID)
	today := models.DateOf(testNow())

	cases := []struct {
		name string
		slot models.Slot
		want error
	}{
		{name: "default site", slot: models.Slot{SiteID: testDefaultSiteID, StartDate: today, EndDate: today.AddDate(0, 1, 0)}, want: ErrSlotOnDefaultSite},
		{name: "no end", slot: models.Slot{SiteID: 2, StartDate: today}, want: ErrSlotEndDateRequired},
		{name: "inverted", slot: models.Slot{SiteID: 2, StartDate: today, EndDate: today}, want: ErrSlotDateRange},
		{name: "ok", slot: models.Slot{SiteID: 2, StartDate: today, EndDate: today.AddDate(0, 0, 1)}, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := tc.slot
			if err := slots.ValidateSlot(&slot); !errors.Is(err, tc.want) {
				t.Fatalf("want %v got %v", tc.want, err)
			}
		})
	}
}
