package service

import (
	"errors"
	"time"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"gorm.io/gorm"
)

// TimeFrameService 维护“每个槽位最多一个未结束时间段”
type TimeFrameService struct {
	timeFrameRepo repository.SlotTimeFrameRepository
}

// NewTimeFrameService 创建时间段服务
func NewTimeFrameService(timeFrameRepo repository.SlotTimeFrameRepository) *TimeFrameService {
	return &TimeFrameService{timeFrameRepo: timeFrameRepo}
}

func (s *TimeFrameService) repo(tx *gorm.DB) repository.SlotTimeFrameRepository {
	if tx == nil {
		return s.timeFrameRepo
	}
	return s.timeFrameRepo.WithTx(tx)
}

// CloseSlotOpenTimeFrame 结束槽位当前的时间段，没有时不做处理
func (s *TimeFrameService) CloseSlotOpenTimeFrame(slotID uint) error {
	_, err := s.closeOpen(nil, slotID, time.Now())
	return err
}

// CloseOpenTimeFrameStrict 结束槽位当前的时间段，没有时返回 ErrNoOpenTimeFrame
func (s *TimeFrameService) CloseOpenTimeFrameStrict(slotID uint) error {
	closed, err := s.closeOpen(nil, slotID, time.Now())
	if err != nil {
		return err
	}
	if !closed {
		return ErrNoOpenTimeFrame
	}
	return nil
}

// HasActiveTimeFrame 槽位当前是否有优惠券在展示
func (s *TimeFrameService) HasActiveTimeFrame(slotID uint) (bool, error) {
	frame, err := s.timeFrameRepo.GetOpenBySlot(slotID, time.Now())
	if err != nil {
		return false, err
	}
	return frame != nil, nil
}

func (s *TimeFrameService) closeOpen(tx *gorm.DB, slotID uint, now time.Time) (bool, error) {
	repo := s.repo(tx)
	frame, err := repo.GetOpenBySlot(slotID, now)
	if err != nil {
		return false, err
	}
	if frame == nil {
		return false, nil
	}
	if err := repo.Close(frame.ID, now); err != nil {
		return false, err
	}
	logger.Infow("slot_time_frame_closed", "slot_id", slotID, "time_frame_id", frame.ID, "coupon_id", frame.CouponID)
	return true, nil
}

// openTimeFrame 先结束已有时间段再为优惠券开启新时间段
func (s *TimeFrameService) openTimeFrame(tx *gorm.DB, slotID, couponID uint, now time.Time) (*models.SlotTimeFrame, error) {
	if _, err := s.closeOpen(tx, slotID, now); err != nil {
		return nil, err
	}
	frame := &models.SlotTimeFrame{
		SlotID:        slotID,
		CouponID:      couponID,
		StartDatetime: now,
	}
	if err := s.repo(tx).Create(frame); err != nil {
		if errors.Is(err, repository.ErrOpenTimeFrameConflict) {
			return nil, ErrSlotOccupied
		}
		return nil, err
	}
	return frame, nil
}
