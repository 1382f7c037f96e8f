package models

import "time"

// 支付状态
const (
	PaymentStatusPending    = "pending"
	PaymentStatusApproved   = "approved"
	PaymentStatusDeclined   = "declined"
	PaymentStatusError      = "error"
	PaymentStatusAdjustment = "adjustment"
	PaymentStatusRefund     = "refund"
	PaymentStatusBadDebt    = "bad_debt"
)

// Payment 支付尝试记录，无论成功与否都会保存
type Payment struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                 // 主键
	OrderID        uint      `gorm:"index;not null" json:"order_id"`                       // 订单ID
	CreditCardID   *uint     `gorm:"index" json:"credit_card_id,omitempty"`                // 信用卡ID
	Method         string    `gorm:"type:varchar(16);not null" json:"method"`              // 支付方式
	Amount         Money     `gorm:"type:decimal(20,2);not null" json:"amount"`            // 金额
	Status         string    `gorm:"type:varchar(16);index;not null" json:"status"`        // 状态
	Provider       string    `gorm:"type:varchar(32);not null;default:''" json:"provider"` // 网关
	TransactionRef string    `gorm:"type:varchar(64);index" json:"transaction_ref"`        // 网关交易号
	Reason         string    `gorm:"type:text" json:"reason"`                              // 失败原因
	IsVoid         bool      `gorm:"not null;default:false" json:"is_void"`                // 是否作废
	IsLocked       bool      `gorm:"not null;default:false" json:"is_locked"`              // 是否锁定
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt      time.Time `gorm:"index" json:"updated_at"`                              // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// IsApproved 是否为已批准且未作废的支付
func (p Payment) IsApproved() bool {
	return p.Status == PaymentStatusApproved && !p.IsVoid
}
