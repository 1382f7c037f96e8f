package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 订单支付方式
const (
	OrderMethodCard  = "card"
	OrderMethodCheck = "check"
)

// Order 订单，金额字段全部由订单项与优惠码重新计算得到
type Order struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                             // 主键
	BillingRecordID   uint      `gorm:"index;not null" json:"billing_record_id"`                          // 账单记录ID
	Method            string    `gorm:"type:varchar(16);not null" json:"method"`                          // 支付方式
	PromotionCodeID   *uint     `gorm:"index" json:"promotion_code_id,omitempty"`                         // 优惠码ID
	InvoiceNumber     string    `gorm:"index;not null;default:''" json:"invoice_number"`                  // 发票号
	Subtotal          Money     `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`            // 小计
	AmountDiscounted  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount_discounted"`   // 优惠金额
	Tax               Money     `gorm:"type:decimal(20,2);not null;default:0" json:"tax"`                 // 税费（保留）
	Total             Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total"`               // 合计
	PromoterCutAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"promoter_cut_amount"` // 推广方分成
	IsLocked          bool      `gorm:"not null;default:false" json:"is_locked"`                          // 是否锁定
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt         time.Time `gorm:"index" json:"updated_at"`                                          // 更新时间

	Items         []OrderItem    `gorm:"foreignKey:OrderID" json:"items,omitempty"`                  // 订单项
	Payments      []Payment      `gorm:"foreignKey:OrderID" json:"payments,omitempty"`               // 支付记录
	PromotionCode *PromotionCode `gorm:"foreignKey:PromotionCodeID" json:"promotion_code,omitempty"` // 优惠码
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// SameTotals 判断两个订单的计算金额是否一致
func (o Order) SameTotals(other Order) bool {
	return o.Subtotal.Equal(other.Subtotal.Decimal) &&
		o.AmountDiscounted.Equal(other.AmountDiscounted.Decimal) &&
		o.Tax.Equal(other.Tax.Decimal) &&
		o.Total.Equal(other.Total.Decimal) &&
		o.PromoterCutAmount.Equal(other.PromoterCutAmount.Decimal)
}

// ItemsSubtotal 汇总当前订单项金额
func ItemsSubtotal(items []OrderItem) Money {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount.Decimal)
	}
	return NewMoneyFromDecimal(sum)
}
