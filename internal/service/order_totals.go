package service

import (
	"github.com/couponslot-next/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OrderTotals 订单重算结果
type OrderTotals struct {
	Subtotal          models.Money
	AmountDiscounted  models.Money
	Tax               models.Money
	Total             models.Money
	PromoterCutAmount models.Money
}

// ComputeOrderTotals 根据当前订单项与优惠规则重算订单金额
// promotion 需预加载 Products 与 Promoter；为空表示未使用优惠码
func ComputeOrderTotals(items []models.OrderItem, promotion *models.Promotion) OrderTotals {
	subtotal := models.ItemsSubtotal(items).Decimal
	discount := decimal.Zero
	if promotion != nil {
		discount = promotionDiscount(promotion, qualifyingSubtotal(items, promotion))
	}
	tax := decimal.Zero
	total := subtotal.Sub(discount).Add(tax)

	cut := decimal.Zero
	if promotion != nil && promotion.Promoter != nil {
		cut = total.Mul(promotion.Promoter.PromoterCutPercent.Decimal).Div(hundred).Round(2)
	}
	return OrderTotals{
		Subtotal:          models.NewMoneyFromDecimal(subtotal),
		AmountDiscounted:  models.NewMoneyFromDecimal(discount),
		Tax:               models.NewMoneyFromDecimal(tax),
		Total:             models.NewMoneyFromDecimal(total),
		PromoterCutAmount: models.NewMoneyFromDecimal(cut),
	}
}

// Apply 写回订单
func (t OrderTotals) Apply(order *models.Order) {
	order.Subtotal = t.Subtotal
	order.AmountDiscounted = t.AmountDiscounted
	order.Tax = t.Tax
	order.Total = t.Total
	order.PromoterCutAmount = t.PromoterCutAmount
}

// coveredProductIDs 优惠规则适用商品集合
func coveredProductIDs(promotion *models.Promotion) map[uint]struct{} {
	covered := make(map[uint]struct{}, len(promotion.Products))
	for _, product := range promotion.Products {
		covered[product.ID] = struct{}{}
	}
	return covered
}

func qualifyingSubtotal(items []models.OrderItem, promotion *models.Promotion) decimal.Decimal {
	covered := coveredProductIDs(promotion)
	sum := decimal.Zero
	for _, item := range items {
		if _, ok := covered[item.ProductID]; ok {
			sum = sum.Add(item.Amount.Decimal)
		}
	}
	return sum
}

func promotionDiscount(promotion *models.Promotion, qualifying decimal.Decimal) decimal.Decimal {
	if !qualifying.IsPositive() {
		return decimal.Zero
	}
	amount := promotion.Amount.Decimal
	switch effectivePromoType(promotion) {
	case models.PromoTypePercentOff:
		return amount.Mul(qualifying).Div(hundred).Round(2)
	case models.PromoTypeFixedOff:
		return decimal.Min(amount, qualifying)
	case models.PromoTypeFixedCost:
		return decimal.Max(qualifying.Sub(amount), decimal.Zero)
	default:
		return decimal.Zero
	}
}

// effectivePromoType 金额为 0 的立减按 0% 折扣处理
func effectivePromoType(promotion *models.Promotion) string {
	if promotion.PromoType == models.PromoTypeFixedOff && promotion.Amount.IsZero() {
		return models.PromoTypePercentOff
	}
	return promotion.PromoType
}
