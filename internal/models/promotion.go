package models

import (
	"time"

	"gorm.io/gorm"
)

// 优惠类型
const (
	PromoTypePercentOff = "percent_off"
	PromoTypeFixedOff   = "fixed_off"
	PromoTypeFixedCost  = "fixed_cost"
)

// 使用方式
const (
	UseMethodUnlimited         = "unlimited"
	UseMethodOncePerAdvertiser = "once_per_advertiser"
	UseMethodOnceEver          = "once_ever"
	UseMethodMonthlyCap        = "monthly_cap"
)

// 优惠码生成方式
const (
	CodeMethodShared = "shared"
	CodeMethodUnique = "unique"
)

// Promoter 推广方，按比例获得订单分成
type Promoter struct {
	ID                 uint       `gorm:"primarykey" json:"id"`                                              // 主键
	Name               string     `gorm:"not null" json:"name"`                                              // 名称
	Email              string     `gorm:"index" json:"email"`                                                // 联系邮箱
	PromoterCutPercent Money      `gorm:"type:decimal(20,2);not null;default:0" json:"promoter_cut_percent"` // 分成比例
	IsActive           bool       `gorm:"not null;default:true" json:"is_active"`                            // 是否启用
	IsApproved         bool       `gorm:"not null;default:false" json:"is_approved"`                         // 是否审核通过
	StartDate          *time.Time `gorm:"index" json:"start_date"`                                           // 合作开始日期
	EndDate            *time.Time `gorm:"index" json:"end_date"`                                             // 合作结束日期
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt          time.Time  `gorm:"index" json:"updated_at"`                                           // 更新时间
}

// TableName 指定表名
func (Promoter) TableName() string {
	return "promoters"
}

// Promotion 优惠规则
type Promotion struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                          // 主键
	PromoterID uint           `gorm:"index;not null" json:"promoter_id"`                             // 推广方ID
	Name       string         `gorm:"not null" json:"name"`                                          // 名称
	PromoType  string         `gorm:"type:varchar(16);not null" json:"promo_type"`                   // 优惠类型
	UseMethod  string         `gorm:"type:varchar(32);not null" json:"use_method"`                   // 使用方式
	CodeMethod string         `gorm:"type:varchar(16);not null;default:'shared'" json:"code_method"` // 优惠码生成方式
	Amount     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`           // 数值（百分比或金额）
	MonthlyCap int            `gorm:"not null;default:0" json:"monthly_cap"`                         // 每月使用上限
	IsActive   bool           `gorm:"not null;default:true" json:"is_active"`                        // 是否启用
	StartDate  time.Time      `gorm:"index;not null" json:"start_date"`                              // 开始日期
	EndDate    time.Time      `gorm:"index;not null" json:"end_date"`                                // 结束日期
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间

	Promoter *Promoter       `gorm:"foreignKey:PromoterID" json:"promoter,omitempty"`        // 推广方
	Products []Product       `gorm:"many2many:promotion_products" json:"products,omitempty"` // 适用商品
	Codes    []PromotionCode `gorm:"foreignKey:PromotionID" json:"codes,omitempty"`          // 优惠码
}

// TableName 指定表名
func (Promotion) TableName() string {
	return "promotions"
}

// PromotionCode 优惠码，UsedCount 只能通过原子增减修改
type PromotionCode struct {
	ID          uint      `gorm:"primarykey" json:"id"`                 // 主键
	PromotionID uint      `gorm:"index;not null" json:"promotion_id"`   // 优惠规则ID
	Code        string    `gorm:"uniqueIndex;not null" json:"code"`     // 优惠码
	UsedCount   int       `gorm:"not null;default:0" json:"used_count"` // 已使用次数
	CreatedAt   time.Time `gorm:"index" json:"created_at"`              // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`              // 更新时间

	Promotion *Promotion `gorm:"foreignKey:PromotionID" json:"promotion,omitempty"` // 优惠规则
}

// TableName 指定表名
func (PromotionCode) TableName() string {
	return "promotion_codes"
}
