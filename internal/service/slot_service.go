package service

import (
	"time"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"gorm.io/gorm"
)

// SlotService 槽位保存规则
type SlotService struct {
	slotRepo      repository.SlotRepository
	defaultSiteID uint
}

// NewSlotService 创建槽位服务
func NewSlotService(slotRepo repository.SlotRepository, defaultSiteID uint) *SlotService {
	return &SlotService{slotRepo: slotRepo, defaultSiteID: defaultSiteID}
}

// ValidateSlot 校验槽位字段
func (s *SlotService) ValidateSlot(slot *models.Slot) error {
	if slot.SiteID == 0 || slot.SiteID == s.defaultSiteID {
		return ErrSlotOnDefaultSite
	}
	if slot.EndDate.IsZero() {
		return ErrSlotEndDateRequired
	}
	if !models.DateOf(slot.StartDate).Before(models.DateOf(slot.EndDate)) {
		return ErrSlotDateRange
	}
	return nil
}

// SaveSlot 校验并保存槽位；父槽位结束日期变化时同步到子槽位
func (s *SlotService) SaveSlot(tx *gorm.DB, slot *models.Slot) error {
	repo := repository.SlotRepository(s.slotRepo)
	if tx != nil {
		repo = s.slotRepo.WithTx(tx)
	}
	if slot.StartDate.IsZero() {
		slot.StartDate = models.DateOf(time.Now())
	}
	slot.StartDate = models.DateOf(slot.StartDate)
	if !slot.EndDate.IsZero() {
		slot.EndDate = models.DateOf(slot.EndDate)
	}
	if err := s.ValidateSlot(slot); err != nil {
		return err
	}

	if slot.ID == 0 {
		return repo.Create(slot)
	}

	previous, err := repo.GetByID(slot.ID)
	if err != nil {
		return err
	}
	if previous == nil {
		return ErrSlotNotFound
	}
	if err := repo.Update(slot); err != nil {
		return err
	}
	if slot.IsParent() && !previous.EndDate.Equal(slot.EndDate) {
		affected, err := repo.UpdateChildrenEndDate(slot.ID, slot.EndDate)
		if err != nil {
			return err
		}
		logger.Infow("slot_family_end_date_synced",
			"parent_slot_id", slot.ID,
			"end_date", formatDate(slot.EndDate),
			"children", affected,
		)
	}
	return nil
}

// currentParent 在事务中重新读取父槽位，确认其仍属于商家且覆盖当天
func (s *SlotService) currentParent(tx *gorm.DB, parentID, businessID uint, now time.Time) (*models.Slot, error) {
	repo := repository.SlotRepository(s.slotRepo)
	if tx != nil {
		repo = s.slotRepo.WithTx(tx)
	}
	parent, err := repo.GetByID(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrSlotNotFound
	}
	if !parent.IsParent() || parent.BusinessID != businessID || !parent.SpansDay(now) {
		return nil, ErrInvalidAllocation
	}
	return parent, nil
}

func (s *SlotService) currentChildCount(tx *gorm.DB, parentID uint, now time.Time) (int64, error) {
	repo := repository.SlotRepository(s.slotRepo)
	if tx != nil {
		repo = s.slotRepo.WithTx(tx)
	}
	return repo.CountCurrentChildren(parentID, now)
}

// GetSlot 获取槽位
func (s *SlotService) GetSlot(id uint) (*models.Slot, error) {
	slot, err := s.slotRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}
