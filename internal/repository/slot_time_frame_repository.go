package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// ErrOpenTimeFrameConflict 同一槽位已存在未结束的时间段
var ErrOpenTimeFrameConflict = errors.New("slot already has an open time frame")

// SlotTimeFrameRepository 槽位时间段数据访问接口
type SlotTimeFrameRepository interface {
	Create(frame *models.SlotTimeFrame) error
	GetOpenBySlot(slotID uint, now time.Time) (*models.SlotTimeFrame, error)
	Close(id uint, at time.Time) error
	ListActiveSlotIDs(slotIDs []uint, now time.Time) ([]uint, error)
	CountOpenBySlot(slotID uint) (int64, error)
	WithTx(tx *gorm.DB) *GormSlotTimeFrameRepository
}

// GormSlotTimeFrameRepository GORM 实现
type GormSlotTimeFrameRepository struct {
	db *gorm.DB
}

// NewSlotTimeFrameRepository 创建时间段仓库
func NewSlotTimeFrameRepository(db *gorm.DB) *GormSlotTimeFrameRepository {
	return &GormSlotTimeFrameRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSlotTimeFrameRepository) WithTx(tx *gorm.DB) *GormSlotTimeFrameRepository {
	if tx == nil {
		return r
	}
	return &GormSlotTimeFrameRepository{db: tx}
}

// Create 创建时间段，唯一约束冲突时返回 ErrOpenTimeFrameConflict
func (r *GormSlotTimeFrameRepository) Create(frame *models.SlotTimeFrame) error {
	if err := r.db.Create(frame).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slot_id=%d", ErrOpenTimeFrameConflict, frame.SlotID)
		}
		return err
	}
	return nil
}

// GetOpenBySlot 获取槽位已开始且尚未结束的时间段
func (r *GormSlotTimeFrameRepository) GetOpenBySlot(slotID uint, now time.Time) (*models.SlotTimeFrame, error) {
	var frame models.SlotTimeFrame
	err := r.db.
		Where("slot_id = ? AND start_datetime <= ?", slotID, now).
		Where("(end_datetime IS NULL OR end_datetime > ?)", now).
		Order("id DESC").
		First(&frame).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &frame, nil
}

// Close 结束时间段
func (r *GormSlotTimeFrameRepository) Close(id uint, at time.Time) error {
	return r.db.Model(&models.SlotTimeFrame{}).
		Where("id = ?", id).
		Update("end_datetime", at).Error
}

// ListActiveSlotIDs 返回指定槽位中当前处于占用状态的槽位 ID
func (r *GormSlotTimeFrameRepository) ListActiveSlotIDs(slotIDs []uint, now time.Time) ([]uint, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.Model(&models.SlotTimeFrame{}).
		Distinct("slot_id").
		Where("slot_id IN ?", slotIDs).
		Where("start_datetime <= ?", now).
		Where("(end_datetime IS NULL OR end_datetime > ?)", now).
		Pluck("slot_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountOpenBySlot 统计槽位未结束（end_datetime 为空）的时间段数量
func (r *GormSlotTimeFrameRepository) CountOpenBySlot(slotID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.SlotTimeFrame{}).
		Where("slot_id = ? AND end_datetime IS NULL", slotID).
		Count(&count).Error
	return count, err
}
