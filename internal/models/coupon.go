package models

import (
	"time"

	"gorm.io/gorm"
)

// 优惠券状态
const (
	CouponTypeInProgress = "in_progress"
	CouponTypePublished  = "published"
	CouponTypeExpired    = "expired"
)

// Coupon 商家优惠券（展示在槽位中的内容）
type Coupon struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                    // 主键
	BusinessID uint           `gorm:"index;not null" json:"business_id"`                       // 商家ID
	Headline   string         `gorm:"not null" json:"headline"`                                // 标题
	Qualifier  string         `gorm:"type:text" json:"qualifier"`                              // 使用说明
	CouponType string         `gorm:"index;not null;default:'in_progress'" json:"coupon_type"` // 状态
	ExpireDate *time.Time     `gorm:"index" json:"expire_date"`                                // 过期日期
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                                 // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                          // 软删除时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}
