package service

import (
	"time"

	"github.com/couponslot-next/internal/logger"
	"github.com/couponslot-next/internal/models"
	"github.com/couponslot-next/internal/repository"

	"gorm.io/gorm"
)

// Family 槽位家族：父槽位与按创建顺序排列的子槽位
type Family struct {
	Parent   models.Slot
	Children []models.Slot
}

// Allocation 家族槽位分配结果
//
// PublishToParent: 发布到 AvailableParentSlot
// PublishToChild:  复用 AvailableChildSlot（AvailableParentSlot 为其父槽位）
// 两者皆为 false 且 AvailableParentSlot 非空: 在该家族下新建子槽位
// NeedsNewFamily: 所有家族已满，需要购买新的父槽位
type Allocation struct {
	BusinessID          uint         `json:"business_id"`
	AvailableParentSlot *models.Slot `json:"available_parent_slot"`
	AvailableChildSlot  *models.Slot `json:"available_child_slot"`
	PublishToParent     bool         `json:"publish_to_parent"`
	PublishToChild      bool         `json:"publish_to_child"`
	NeedsNewFamily      bool         `json:"needs_new_family"`
}

// NeedsNewChild 是否需要在父槽位下新建子槽位
func (a Allocation) NeedsNewChild() bool {
	return !a.NeedsNewFamily && !a.PublishToParent && !a.PublishToChild && a.AvailableParentSlot != nil
}

// BuildFamilies 将父槽位（含 Children）转换为家族列表，保持传入顺序
func BuildFamilies(parents []models.Slot) []Family {
	families := make([]Family, 0, len(parents))
	for _, parent := range parents {
		children := parent.Children
		parent.Children = nil
		families = append(families, Family{Parent: parent, Children: children})
	}
	return families
}

// AllocateFamilySlot 在活跃时间段快照上为优惠券选择槽位
// 按家族创建顺序逐个检查，命中即停止：
//  1. 父槽位空闲 -> 父槽位
//  2. 第一个空闲子槽位 -> 该子槽位
//  3. 子槽位数 < maxChildren -> 该家族需要新建子槽位
//
// 满员家族（maxChildren 个子槽位均被占用）跳过；全部满员时返回 NeedsNewFamily。
func AllocateFamilySlot(businessID uint, families []Family, active map[uint]bool, maxChildren int) Allocation {
	result := Allocation{BusinessID: businessID}
	for i := range families {
		family := families[i]
		parent := family.Parent
		if !active[parent.ID] {
			result.AvailableParentSlot = &parent
			result.PublishToParent = true
			return result
		}
		for j := range family.Children {
			child := family.Children[j]
			if !active[child.ID] {
				result.AvailableParentSlot = &parent
				result.AvailableChildSlot = &child
				result.PublishToChild = true
				return result
			}
		}
		if len(family.Children) < maxChildren {
			result.AvailableParentSlot = &parent
			return result
		}
	}
	result.NeedsNewFamily = true
	return result
}

// SlotAllocatorService 家族槽位分配服务
type SlotAllocatorService struct {
	slotRepo      repository.SlotRepository
	timeFrameRepo repository.SlotTimeFrameRepository
	maxChildren   int
}

// NewSlotAllocatorService 创建分配服务
func NewSlotAllocatorService(slotRepo repository.SlotRepository, timeFrameRepo repository.SlotTimeFrameRepository, maxChildren int) *SlotAllocatorService {
	if maxChildren <= 0 {
		maxChildren = models.MaxFamilyChildren
	}
	return &SlotAllocatorService{
		slotRepo:      slotRepo,
		timeFrameRepo: timeFrameRepo,
		maxChildren:   maxChildren,
	}
}

// CheckAvailableFamilySlot 检查商家可用于发布优惠券的家族槽位
func (s *SlotAllocatorService) CheckAvailableFamilySlot(businessID uint) (*Allocation, error) {
	return s.checkAvailableFamilySlot(nil, businessID, time.Now())
}

func (s *SlotAllocatorService) checkAvailableFamilySlot(tx *gorm.DB, businessID uint, now time.Time) (*Allocation, error) {
	var slotRepo repository.SlotRepository = s.slotRepo
	var timeFrameRepo repository.SlotTimeFrameRepository = s.timeFrameRepo
	if tx != nil {
		slotRepo = s.slotRepo.WithTx(tx)
		timeFrameRepo = s.timeFrameRepo.WithTx(tx)
	}

	parents, err := slotRepo.ListActiveFamilies(businessID, now)
	if err != nil {
		return nil, err
	}
	families := BuildFamilies(parents)

	slotIDs := make([]uint, 0, len(parents)*(s.maxChildren+1))
	for _, family := range families {
		slotIDs = append(slotIDs, family.Parent.ID)
		for _, child := range family.Children {
			slotIDs = append(slotIDs, child.ID)
		}
	}
	activeIDs, err := timeFrameRepo.ListActiveSlotIDs(slotIDs, now)
	if err != nil {
		return nil, err
	}
	active := make(map[uint]bool, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = true
	}

	allocation := AllocateFamilySlot(businessID, families, active, s.maxChildren)
	logger.Debugw("slot_allocation_checked",
		"business_id", businessID,
		"families", len(families),
		"publish_to_parent", allocation.PublishToParent,
		"publish_to_child", allocation.PublishToChild,
		"needs_new_child", allocation.NeedsNewChild(),
		"needs_new_family", allocation.NeedsNewFamily,
	)
	return &allocation, nil
}
