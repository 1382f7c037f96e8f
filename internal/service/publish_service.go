package service

import (
	"time"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// PublishService 将分配结果落地为槽位与时间段
type PublishService struct {
	slotService      *SlotService
	timeFrameService *TimeFrameService
	maxChildren      int
}

// NewPublishService 创建发布服务
func NewPublishService(slotService *SlotService, timeFrameService *TimeFrameService, maxChildren int) *PublishService {
	if maxChildren <= 0 {
		maxChildren = models.MaxFamilyChildren
	}
	return &PublishService{
		slotService:      slotService,
		timeFrameService: timeFrameService,
		maxChildren:      maxChildren,
	}
}

// PublishBusinessCoupon 按分配结果发布优惠券，返回承载优惠券的槽位
func (s *PublishService) PublishBusinessCoupon(allocation *Allocation, coupon *models.Coupon) (*models.Slot, error) {
	var slot *models.Slot
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		slot, err = s.publishBusinessCoupon(tx, allocation, coupon, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// publishBusinessCoupon 在已有事务中发布：保存一个槽位并开启一个时间段
func (s *PublishService) publishBusinessCoupon(tx *gorm.DB, allocation *Allocation, coupon *models.Coupon, now time.Time) (*models.Slot, error) {
	if allocation == nil || allocation.NeedsNewFamily {
		return nil, ErrNoFamilyCapacity
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	if allocation.AvailableParentSlot == nil {
		return nil, ErrInvalidAllocation
	}
	// 分配结果可能已过期，以事务内的数据为准
	parent, err := s.slotService.currentParent(tx, allocation.AvailableParentSlot.ID, allocation.BusinessID, now)
	if err != nil {
		return nil, err
	}

	var slot *models.Slot
	action := "new_child"
	switch {
	case allocation.AvailableChildSlot != nil:
		// 子槽位复用时重新对齐父槽位的站点与计费周期
		child := *allocation.AvailableChildSlot
		child.SiteID = parent.SiteID
		child.EndDate = parent.EndDate
		slot = &child
		action = "reuse_child"
	case allocation.PublishToParent:
		reused := *parent
		slot = &reused
		action = "parent"
	default:
		children, err := s.slotService.currentChildCount(tx, parent.ID, now)
		if err != nil {
			return nil, err
		}
		if children >= int64(s.maxChildren) {
			return nil, ErrNoFamilyCapacity
		}
		parentID := parent.ID
		slot = &models.Slot{
			SiteID:       parent.SiteID,
			BusinessID:   parent.BusinessID,
			ParentSlotID: &parentID,
			StartDate:    models.DateOf(now),
			EndDate:      parent.EndDate,
			RenewalRate:  nil,
			IsAutorenew:  false,
		}
	}
	slot.Children = nil

	if err := s.slotService.SaveSlot(tx, slot); err != nil {
		return nil, err
	}
	frame, err := s.timeFrameService.openTimeFrame(tx, slot.ID, coupon.ID, now)
	if err != nil {
		return nil, err
	}

	logger.Infow("business_coupon_published",
		"business_id", slot.BusinessID,
		"coupon_id", coupon.ID,
		"slot_id", slot.ID,
		"parent_slot_id", parent.ID,
		"time_frame_id", frame.ID,
		"action", action,
	)
	return slot, nil
}
