package models

import "time"

// Site 站点（城市/区域），槽位必须挂在非默认站点下
type Site struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                   // 主键
	Name          string    `gorm:"not null" json:"name"`                                   // 名称
	Domain        string    `gorm:"uniqueIndex;not null" json:"domain"`                     // 域名
	BaseRate      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"base_rate"` // 站点基础费率
	ConsumerCount int       `gorm:"not null;default:0" json:"consumer_count"`               // 订阅用户数
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`                 // 是否启用
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt     time.Time `gorm:"index" json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (Site) TableName() string {
	return "sites"
}
