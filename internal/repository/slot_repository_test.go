package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/couponslot-next/internal/models"
)

func TestListActiveFamiliesOrdersParentsAndChildren(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewSlotRepository(db)
	today := models.DateOf(time.Now())

	older := &models.Slot{SiteID: 2, BusinessID: 7, StartDate: today.AddDate(0, 0, -10), EndDate: today.AddDate(0, 1, 0)}
	mustCreate(t, db, older)
	newer := &models.Slot{SiteID: 2, BusinessID: 7, StartDate: today.AddDate(0, 0, -1), EndDate: today.AddDate(0, 1, 0)}
	mustCreate(t, db, newer)
	expired := &models.Slot{SiteID: 2, BusinessID: 7, StartDate: today.AddDate(0, -2, 0), EndDate: today.AddDate(0, 0, -1)}
	mustCreate(t, db, expired)
	other := &models.Slot{SiteID: 2, BusinessID: 8, StartDate: today, EndDate: today.AddDate(0, 1, 0)}
	mustCreate(t, db, other)

	for i := 0; i < 2; i++ {
		mustCreate(t, db, &models.Slot{SiteID: 2, BusinessID: 7, ParentSlotID: &older.ID, StartDate: today, EndDate: older.EndDate})
	}

	families, err := repo.ListActiveFamilies(7, today)
	if err != nil {
		t.Fatalf("list families failed: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("expected 2 active families, got %d", len(families))
	}
	if families[0].ID != older.ID || families[1].ID != newer.ID {
		t.Fatalf("families not ordered by creation: %d, %d", families[0].ID, families[1].ID)
	}
	if len(families[0].Children) != 2 {
		t.Fatalf("expected 2 children on oldest family, got %d", len(families[0].Children))
	}
	if families[0].Children[0].ID > families[0].Children[1].ID {
		t.Fatalf("children not ordered by id")
	}
}

func TestUpdateChildrenEndDate(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewSlotRepository(db)
	today := models.DateOf(time.Now())
	parent := &models.Slot{SiteID: 2, BusinessID: 1, StartDate: today, EndDate: today.AddDate(0, 1, 0)}
	mustCreate(t, db, parent)
	child := &models.Slot{SiteID: 2, BusinessID: 1, ParentSlotID: &parent.ID, StartDate: today, EndDate: parent.EndDate}
	mustCreate(t, db, child)

	newEnd := today.AddDate(0, 2, 0)
	affected, err := repo.UpdateChildrenEndDate(parent.ID, newEnd)
	if err != nil {
		t.Fatalf("update children failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 child updated, got %d", affected)
	}
	reloaded, err := repo.GetByID(child.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload child failed: %v", err)
	}
	if !reloaded.EndDate.Equal(newEnd) {
		t.Fatalf("child end date not cascaded: %s", reloaded.EndDate)
	}
}

func TestListRenewalCandidatesFiltersWindowAndRate(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewSlotRepository(db)
	today := models.DateOf(time.Now())
	rate := models.MustMoney("99.00")
	zero := models.MustMoney("0")

	due := &models.Slot{SiteID: 2, BusinessID: 1, StartDate: today.AddDate(0, -1, 0), EndDate: today.AddDate(0, 0, 1), RenewalRate: &rate, IsAutorenew: true}
	mustCreate(t, db, due)
	farOut := &models.Slot{SiteID: 2, BusinessID: 1, StartDate: today, EndDate: today.AddDate(0, 0, 10), RenewalRate: &rate, IsAutorenew: true}
	mustCreate(t, db, farOut)
	lapsed := &models.Slot{SiteID: 2, BusinessID: 1, StartDate: today.AddDate(0, -1, 0), EndDate: today.AddDate(0, 0, -2), RenewalRate: &rate, IsAutorenew: true}
	mustCreate(t, db, lapsed)
	free := &models.Slot{SiteID: 2, BusinessID: 1, StartDate: today.AddDate(0, -1, 0), EndDate: today, RenewalRate: &zero, IsAutorenew: true}
	mustCreate(t, db, free)
	manual := &models.Slot{SiteID: 2, BusinessID: 1, StartDate: today.AddDate(0, -1, 0), EndDate: today, RenewalRate: &rate}
	mustCreate(t, db, manual)
	otherSite := &models.Slot{SiteID: 3, BusinessID: 1, StartDate: today.AddDate(0, -1, 0), EndDate: today, RenewalRate: &rate, IsAutorenew: true}
	mustCreate(t, db, otherSite)

	filter := RenewalCandidateFilter{
		SiteID:    2,
		EndBefore: today.AddDate(0, 0, 3),
		EndAfter:  today.AddDate(0, 0, -1),
	}
	slots, err := repo.ListRenewalCandidates(filter)
	if err != nil {
		t.Fatalf("list candidates failed: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != due.ID {
		t.Fatalf("expected only slot %d, got %+v", due.ID, slots)
	}

	filter.ExcludeIDs = []uint{due.ID}
	slots, err = repo.ListRenewalCandidates(filter)
	if err != nil {
		t.Fatalf("list candidates with exclusion failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected excluded slot to be filtered, got %d", len(slots))
	}
}

func TestSlotTimeFrameOpenUniqueIndex(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewSlotTimeFrameRepository(db)
	now := time.Now()

	first := &models.SlotTimeFrame{SlotID: 5, CouponID: 1, StartDatetime: now}
	if err := repo.Create(first); err != nil {
		t.Fatalf("create first frame failed: %v", err)
	}
	second := &models.SlotTimeFrame{SlotID: 5, CouponID: 2, StartDatetime: now}
	err := repo.Create(second)
	if !errors.Is(err, ErrOpenTimeFrameConflict) {
		t.Fatalf("expected open frame conflict, got %v", err)
	}

	if err := repo.Close(first.ID, now); err != nil {
		t.Fatalf("close frame failed: %v", err)
	}
	third := &models.SlotTimeFrame{SlotID: 5, CouponID: 2, StartDatetime: now}
	if err := repo.Create(third); err != nil {
		t.Fatalf("create frame after close failed: %v", err)
	}
	count, err := repo.CountOpenBySlot(5)
	if err != nil {
		t.Fatalf("count open failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one open frame, got %d", count)
	}
}

func TestListActiveSlotIDs(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewSlotTimeFrameRepository(db)
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	mustCreate(t, db, &models.SlotTimeFrame{SlotID: 1, CouponID: 1, StartDatetime: past})
	mustCreate(t, db, &models.SlotTimeFrame{SlotID: 2, CouponID: 1, StartDatetime: past.Add(-time.Hour), EndDatetime: &past})
	mustCreate(t, db, &models.SlotTimeFrame{SlotID: 3, CouponID: 1, StartDatetime: past, EndDatetime: &future})

	ids, err := repo.ListActiveSlotIDs([]uint{1, 2, 3, 4}, now)
	if err != nil {
		t.Fatalf("list active ids failed: %v", err)
	}
	active := map[uint]bool{}
	for _, id := range ids {
		active[id] = true
	}
	if !active[1] || active[2] || !active[3] || active[4] {
		t.Fatalf("unexpected active set: %v", ids)
	}
}
