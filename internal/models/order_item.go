package models

import "time"

// 订单项关联对象类型
const (
	OrderItemTypeSlot  = "slot"
	OrderItemTypeFlyer = "flyer"
)

// OrderItem 订单项，ItemType + ItemID 指向所购买的对象
type OrderItem struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                // 主键
	OrderID     uint       `gorm:"index;not null" json:"order_id"`                      // 订单ID
	ProductID   uint       `gorm:"index;not null" json:"product_id"`                    // 商品ID
	BusinessID  uint       `gorm:"index;not null" json:"business_id"`                   // 商家ID
	SiteID      uint       `gorm:"index;not null" json:"site_id"`                       // 站点ID
	ItemType    string     `gorm:"type:varchar(16);index;not null" json:"item_type"`    // 关联对象类型
	ItemID      uint       `gorm:"index;not null;default:0" json:"item_id"`             // 关联对象ID
	Units       int        `gorm:"not null;default:1" json:"units"`                     // 数量
	Description string     `gorm:"type:text" json:"description"`                        // 描述
	Amount      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 金额
	StartDate   *time.Time `json:"start_date,omitempty"`                                // 服务开始日期
	EndDate     *time.Time `json:"end_date,omitempty"`                                  // 服务结束日期
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`                             // 更新时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 商品
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
