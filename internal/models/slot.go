package models

import "time"

// MaxFamilyChildren 一个槽位家族最多的子槽位数量（父槽位 + 9 个子槽位）
const MaxFamilyChildren = 9

// Slot 商家购买的展示槽位，ParentSlotID 为空表示家族父槽位
type Slot struct {
	ID           uint      `gorm:"primarykey" json:"id"`                             // 主键
	SiteID       uint      `gorm:"index;not null" json:"site_id"`                    // 站点ID
	BusinessID   uint      `gorm:"index;not null" json:"business_id"`                // 商家ID
	ParentSlotID *uint     `gorm:"index" json:"parent_slot_id,omitempty"`            // 父槽位ID
	StartDate    time.Time `gorm:"index;not null" json:"start_date"`                 // 开始日期
	EndDate      time.Time `gorm:"index;not null" json:"end_date"`                   // 结束日期
	RenewalRate  *Money    `gorm:"type:decimal(20,2)" json:"renewal_rate,omitempty"` // 锁定续费价格
	IsAutorenew  bool      `gorm:"index;not null;default:false" json:"is_autorenew"` // 是否自动续费
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                          // 创建时间
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`                          // 更新时间

	Children []Slot `gorm:"foreignKey:ParentSlotID" json:"children,omitempty"` // 子槽位
	Site     *Site  `gorm:"foreignKey:SiteID" json:"site,omitempty"`           // 站点
}

// TableName 指定表名
func (Slot) TableName() string {
	return "slots"
}

// IsParent 是否为家族父槽位
func (s Slot) IsParent() bool {
	return s.ParentSlotID == nil
}

// SpansDay 判断槽位的 [start_date, end_date] 是否覆盖指定日期
func (s Slot) SpansDay(day time.Time) bool {
	d := DateOf(day)
	return !DateOf(s.StartDate).After(d) && !DateOf(s.EndDate).Before(d)
}

// HasRenewalRate 续费价格是否大于 0
func (s Slot) HasRenewalRate() bool {
	return s.RenewalRate != nil && s.RenewalRate.IsPositive()
}

// CalculateNextEndDate 从开始日期按月推进，返回第一个晚于当前结束日期的日期
func (s Slot) CalculateNextEndDate() time.Time {
	start := DateOf(s.StartDate)
	end := DateOf(s.EndDate)
	for months := 1; ; months++ {
		next := AddMonthsClamped(start, months)
		if next.After(end) {
			return next
		}
	}
}

// DateOf 截断为 UTC 零点日期
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped 增加月份，日期超出目标月天数时取月末
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

// SlotTimeFrame 优惠券占用槽位的时间段，EndDatetime 为空表示仍在占用
type SlotTimeFrame struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                                                           // 主键
	SlotID        uint       `gorm:"not null;index;uniqueIndex:idx_slot_time_frames_open,where:end_datetime IS NULL" json:"slot_id"` // 槽位ID
	CouponID      uint       `gorm:"index;not null" json:"coupon_id"`                                                                // 优惠券ID
	StartDatetime time.Time  `gorm:"index;not null" json:"start_datetime"`                                                           // 开始时间
	EndDatetime   *time.Time `gorm:"index" json:"end_datetime"`                                                                      // 结束时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                                                        // 创建时间
}

// TableName 指定表名
func (SlotTimeFrame) TableName() string {
	return "slot_time_frames"
}
