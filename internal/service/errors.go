package service

import (
	"errors"
	"fmt"
)

// 错误类别
var (
	ErrImmutableState = errors.New("immutable state")
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrConfiguration  = errors.New("invalid configuration")
)

// DomainError 带类别与可展示原因的业务错误
type DomainError struct {
	Kind   error
	Reason string
}

func (e *DomainError) Error() string {
	return e.Reason
}

// Unwrap 返回错误类别，便于 errors.Is(err, ErrValidation)
func (e *DomainError) Unwrap() error {
	return e.Kind
}

func newDomainError(kind error, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func newValidationError(format string, args ...interface{}) error {
	return newDomainError(ErrValidation, format, args...)
}

func newConfigurationError(format string, args ...interface{}) error {
	return newDomainError(ErrConfiguration, format, args...)
}

// ReasonOf 提取可展示给用户的原因
func ReasonOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// 不可变状态
var (
	ErrOrderLocked        = &DomainError{Kind: ErrImmutableState, Reason: "order is locked and can no longer be changed"}
	ErrOrderItemLocked    = &DomainError{Kind: ErrImmutableState, Reason: "order item belongs to a locked order"}
	ErrPaymentLocked      = &DomainError{Kind: ErrImmutableState, Reason: "payment is locked and can no longer be changed"}
	ErrPromotionInUse     = &DomainError{Kind: ErrImmutableState, Reason: "promotion has been used; its terms can no longer be changed"}
	ErrPromotionCodeInUse = &DomainError{Kind: ErrImmutableState, Reason: "promotion code has been used and cannot be deleted"}
)

// 未找到
var (
	ErrBusinessNotFound      = &DomainError{Kind: ErrNotFound, Reason: "business not found"}
	ErrCouponNotFound        = &DomainError{Kind: ErrNotFound, Reason: "coupon not found"}
	ErrSlotNotFound          = &DomainError{Kind: ErrNotFound, Reason: "slot not found"}
	ErrSiteNotFound          = &DomainError{Kind: ErrNotFound, Reason: "site not found"}
	ErrProductNotFound       = &DomainError{Kind: ErrNotFound, Reason: "product not found"}
	ErrOrderNotFound         = &DomainError{Kind: ErrNotFound, Reason: "order not found"}
	ErrOrderItemNotFound     = &DomainError{Kind: ErrNotFound, Reason: "order item not found"}
	ErrPaymentNotFound       = &DomainError{Kind: ErrNotFound, Reason: "payment not found"}
	ErrPromotionNotFound     = &DomainError{Kind: ErrNotFound, Reason: "promotion not found"}
	ErrPromotionCodeNotFound = &DomainError{Kind: ErrNotFound, Reason: "promotion code not found"}
	ErrBillingRecordNotFound = &DomainError{Kind: ErrNotFound, Reason: "billing record not found"}
	ErrStoredCardNotFound    = &DomainError{Kind: ErrNotFound, Reason: "no stored credit card"}
	ErrNoOpenTimeFrame       = &DomainError{Kind: ErrNotFound, Reason: "slot has no open time frame"}
)

// 校验失败
var (
	ErrSlotOccupied        = &DomainError{Kind: ErrValidation, Reason: "slot already displays a coupon"}
	ErrNoFamilyCapacity    = &DomainError{Kind: ErrValidation, Reason: "all slot families are full; purchase a new slot"}
	ErrSlotOnDefaultSite   = &DomainError{Kind: ErrValidation, Reason: "slots cannot be placed on the default site"}
	ErrSlotEndDateRequired = &DomainError{Kind: ErrValidation, Reason: "slot end date is required"}
	ErrSlotDateRange       = &DomainError{Kind: ErrValidation, Reason: "slot start date must be before end date"}
	ErrSlotNotAutorenew    = &DomainError{Kind: ErrValidation, Reason: "slot is not set to auto renew"}
	ErrSlotNoRenewalRate   = &DomainError{Kind: ErrValidation, Reason: "slot has no renewal rate"}
	ErrDuplicatePurchase   = &DomainError{Kind: ErrValidation, Reason: "this purchase was already paid for"}
	ErrInvalidAllocation   = &DomainError{Kind: ErrValidation, Reason: "allocation does not name a target slot"}
	ErrCouponBusiness      = &DomainError{Kind: ErrValidation, Reason: "coupon does not belong to this business"}
	ErrCardExpired         = &DomainError{Kind: ErrValidation, Reason: "credit card is expired"}
	ErrCardInvalid         = &DomainError{Kind: ErrValidation, Reason: "credit card details are invalid"}
	ErrPaymentAmount       = &DomainError{Kind: ErrValidation, Reason: "payment amount must be positive"}
)

// 优惠码校验失败原因
var (
	ErrPromotionInactive         = &DomainError{Kind: ErrValidation, Reason: "This promotion is not active."}
	ErrPromoterInactive          = &DomainError{Kind: ErrValidation, Reason: "This promoter is not active."}
	ErrPromoterNotApproved       = &DomainError{Kind: ErrValidation, Reason: "This promoter has not been approved."}
	ErrPromotionNotStarted       = &DomainError{Kind: ErrValidation, Reason: "This promotion has not started."}
	ErrPromotionExpired          = &DomainError{Kind: ErrValidation, Reason: "This promotion has expired."}
	ErrPromoterWindow            = &DomainError{Kind: ErrValidation, Reason: "This promoter is not currently running promotions."}
	ErrPromotionNoProducts       = &DomainError{Kind: ErrValidation, Reason: "This promotion has no active products."}
	ErrPromotionUsed             = &DomainError{Kind: ErrValidation, Reason: "This promotion has already been used."}
	ErrPromotionMonthlyCap       = &DomainError{Kind: ErrValidation, Reason: "This promotion has reached its monthly limit."}
	ErrPromotionUsedByAdvertiser = &DomainError{Kind: ErrValidation, Reason: "You have already used this promotion."}
	ErrPromotionNotApplicable    = &DomainError{Kind: ErrValidation, Reason: "This promotion does not apply to the items in your order."}
)
