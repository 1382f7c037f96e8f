package models

import "time"

// AdRep 销售代表
type AdRep struct {
	ID        uint      `gorm:"primarykey" json:"id"`    // 主键
	Name      string    `gorm:"not null" json:"name"`    // 名称
	Email     string    `gorm:"index" json:"email"`      // 联系邮箱
	SiteID    uint      `gorm:"index" json:"site_id"`    // 负责站点
	CreatedAt time.Time `gorm:"index" json:"created_at"` // 创建时间
}

// TableName 指定表名
func (AdRep) TableName() string {
	return "ad_reps"
}

// AdRepAdvertiser 广告主与销售代表的推荐关系
type AdRepAdvertiser struct {
	ID           uint      `gorm:"primarykey" json:"id"`                      // 主键
	AdRepID      uint      `gorm:"index;not null" json:"ad_rep_id"`           // 销售代表ID
	AdvertiserID uint      `gorm:"uniqueIndex;not null" json:"advertiser_id"` // 广告主ID
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                   // 创建时间
}

// TableName 指定表名
func (AdRepAdvertiser) TableName() string {
	return "ad_rep_advertisers"
}

// AdRepOrder 记录由销售代表带来的订单
type AdRepOrder struct {
	ID        uint      `gorm:"primarykey" json:"id"`                 // 主键
	AdRepID   uint      `gorm:"index;not null" json:"ad_rep_id"`      // 销售代表ID
	OrderID   uint      `gorm:"uniqueIndex;not null" json:"order_id"` // 订单ID
	CreatedAt time.Time `gorm:"index" json:"created_at"`              // 创建时间
}

// TableName 指定表名
func (AdRepOrder) TableName() string {
	return "ad_rep_orders"
}
