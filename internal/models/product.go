package models

import "time"

// 商品编码
const (
	ProductCodeFlyer       = "flyer"
	ProductCodeSlotMonthly = "slot_monthly"
	ProductCodeSlotAnnual  = "slot_annual"
)

// Product 可售商品（槽位、传单投放）
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                   // 主键
	Code      string    `gorm:"uniqueIndex;not null" json:"code"`                       // 商品编码
	Name      string    `gorm:"not null" json:"name"`                                   // 名称
	BaseRate  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"base_rate"` // 基础价格
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`                 // 是否启用
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// IsSlotProduct 是否为槽位类商品
func (p Product) IsSlotProduct() bool {
	return p.Code == ProductCodeSlotMonthly || p.Code == ProductCodeSlotAnnual
}
