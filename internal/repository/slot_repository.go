package repository

import (
	"errors"
	"time"

	"github.com/couponslot-next/internal/models"

	"gorm.io/gorm"
)

// SlotRepository 槽位数据访问接口
type SlotRepository interface {
	Create(slot *models.Slot) error
	Update(slot *models.Slot) error
	GetByID(id uint) (*models.Slot, error)
	ListActiveFamilies(businessID uint, today time.Time) ([]models.Slot, error)
	CountCurrentChildren(parentID uint, today time.Time) (int64, error)
	LockBusinessSlots(businessID uint) error
	UpdateChildrenEndDate(parentID uint, endDate time.Time) (int64, error)
	ListRenewalCandidates(filter RenewalCandidateFilter) ([]models.Slot, error)
	WithTx(tx *gorm.DB) *GormSlotRepository
}

// GormSlotRepository GORM 实现
type GormSlotRepository struct {
	db *gorm.DB
}

// NewSlotRepository 创建槽位仓库
func NewSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSlotRepository) WithTx(tx *gorm.DB) *GormSlotRepository {
	if tx == nil {
		return r
	}
	return &GormSlotRepository{db: tx}
}

// Create 创建槽位
func (r *GormSlotRepository) Create(slot *models.Slot) error {
	return r.db.Omit("Children", "Site").Create(slot).Error
}

// Update 保存槽位
func (r *GormSlotRepository) Update(slot *models.Slot) error {
	return r.db.Omit("Children", "Site").Save(slot).Error
}

// GetByID 根据 ID 获取槽位
func (r *GormSlotRepository) GetByID(id uint) (*models.Slot, error) {
	var slot models.Slot
	if err := r.db.First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &slot, nil
}

// ListActiveFamilies 获取商家当前有效的父槽位及其当前有效的子槽位，按创建顺序排列
func (r *GormSlotRepository) ListActiveFamilies(businessID uint, today time.Time) ([]models.Slot, error) {
	day := models.DateOf(today)
	var parents []models.Slot
	err := r.db.
		Where("business_id = ? AND parent_slot_id IS NULL", businessID).
		Where("start_date <= ? AND end_date >= ?", day, day).
		Preload("Children", func(db *gorm.DB) *gorm.DB {
			return db.Where("start_date <= ? AND end_date >= ?", day, day).Order("id ASC")
		}).
		Order("id ASC").
		Find(&parents).Error
	if err != nil {
		return nil, err
	}
	return parents, nil
}

// CountCurrentChildren 统计父槽位下当前有效的子槽位数量
func (r *GormSlotRepository) CountCurrentChildren(parentID uint, today time.Time) (int64, error) {
	day := models.DateOf(today)
	var count int64
	err := r.db.Model(&models.Slot{}).
		Where("parent_slot_id = ?", parentID).
		Where("start_date <= ? AND end_date >= ?", day, day).
		Count(&count).Error
	return count, err
}

// LockBusinessSlots 锁定商家全部槽位行，用于分配与发布之间的串行化
func (r *GormSlotRepository) LockBusinessSlots(businessID uint) error {
	var ids []uint
	return forUpdate(r.db.Model(&models.Slot{})).
		Where("business_id = ?", businessID).
		Pluck("id", &ids).Error
}

// UpdateChildrenEndDate 将父槽位的结束日期同步到全部子槽位
func (r *GormSlotRepository) UpdateChildrenEndDate(parentID uint, endDate time.Time) (int64, error) {
	result := r.db.Model(&models.Slot{}).
		Where("parent_slot_id = ?", parentID).
		Updates(map[string]interface{}{
			"end_date":   models.DateOf(endDate),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// ListRenewalCandidates 获取即将到期且开启自动续费的槽位
func (r *GormSlotRepository) ListRenewalCandidates(filter RenewalCandidateFilter) ([]models.Slot, error) {
	query := r.db.Model(&models.Slot{}).
		Where("site_id = ?", filter.SiteID).
		Where("is_autorenew = ?", true).
		Where("end_date < ? AND end_date > ?", models.DateOf(filter.EndBefore), models.DateOf(filter.EndAfter)).
		Where("renewal_rate IS NOT NULL AND renewal_rate > 0")
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	var slots []models.Slot
	if err := query.Order("id ASC").Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}
