package models

import "time"

// Advertiser 广告主
type Advertiser struct {
	ID        uint      `gorm:"primarykey" json:"id"`                    // 主键
	Name      string    `gorm:"not null" json:"name"`                    // 名称
	Email     string    `gorm:"index;not null" json:"email"`             // 联系邮箱
	SiteID    uint      `gorm:"index;not null;default:0" json:"site_id"` // 注册站点
	CreatedAt time.Time `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                 // 更新时间
}

// TableName 指定表名
func (Advertiser) TableName() string {
	return "advertisers"
}

// Business 商家，拥有槽位与优惠券
type Business struct {
	ID           uint      `gorm:"primarykey" json:"id"`                // 主键
	AdvertiserID uint      `gorm:"index;not null" json:"advertiser_id"` // 广告主ID
	Name         string    `gorm:"not null" json:"name"`                // 名称
	CreatedAt    time.Time `gorm:"index" json:"created_at"`             // 创建时间
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`             // 更新时间

	Advertiser *Advertiser `gorm:"foreignKey:AdvertiserID" json:"advertiser,omitempty"` // 广告主
}

// TableName 指定表名
func (Business) TableName() string {
	return "businesses"
}
