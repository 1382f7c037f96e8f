package models

import "time"

// BillingRecord 商家账单信息
type BillingRecord struct {
	ID          uint      `gorm:"primarykey" json:"id"`                    // 主键
	BusinessID  uint      `gorm:"uniqueIndex;not null" json:"business_id"` // 商家ID
	ContactName string    `gorm:"not null;default:''" json:"contact_name"` // 联系人
	Address     string    `gorm:"type:text" json:"address"`                // 账单地址
	City        string    `gorm:"not null;default:''" json:"city"`         // 城市
	State       string    `gorm:"type:varchar(8)" json:"state"`            // 州
	ZipPostal   string    `gorm:"type:varchar(16)" json:"zip_postal"`      // 邮编
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                 // 更新时间

	Business *Business `gorm:"foreignKey:BusinessID" json:"business,omitempty"` // 商家
}

// TableName 指定表名
func (BillingRecord) TableName() string {
	return "billing_records"
}

// CreditCard 已保存的信用卡（仅保存网关令牌与末四位）
type CreditCard struct {
	ID             uint      `gorm:"primarykey" json:"id"`                            // 主键
	BusinessID     uint      `gorm:"index;not null" json:"business_id"`               // 商家ID
	CardType       string    `gorm:"type:varchar(16);not null" json:"card_type"`      // 卡组织
	CardHolder     string    `gorm:"not null;default:''" json:"card_holder"`          // 持卡人
	Last4          string    `gorm:"type:varchar(4);not null" json:"last4"`           // 卡号末四位
	ExpMonth       int       `gorm:"not null" json:"exp_month"`                       // 到期月
	ExpYear        int       `gorm:"not null" json:"exp_year"`                        // 到期年（两位）
	VaultToken     string    `gorm:"type:varchar(128)" json:"-"`                      // 网关令牌
	IsStorageOptIn bool      `gorm:"not null;default:false" json:"is_storage_opt_in"` // 同意保存用于续费
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt      time.Time `gorm:"index" json:"updated_at"`                         // 更新时间
}

// TableName 指定表名
func (CreditCard) TableName() string {
	return "credit_cards"
}

// ExpiresOn 返回卡片到期月的第一天
func (c CreditCard) ExpiresOn() time.Time {
	year := c.ExpYear
	if year < 100 {
		year += 2000
	}
	return time.Date(year, time.Month(c.ExpMonth), 1, 0, 0, 0, 0, time.UTC)
}
