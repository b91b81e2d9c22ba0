// Package pricing derives order totals from cart contents.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

var (
	TaxRate               = decimal.RequireFromString("0.21")
	FreeShippingThreshold = decimal.NewFromInt(500)
	FlatShipping          = decimal.NewFromInt(15)

	hundred = decimal.NewFromInt(100)
)

func Subtotal(items []domain.LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// DiscountAmount returns what the discount takes off the given subtotal.
// The max_discount cap applies to both discount types.
func DiscountAmount(subtotal decimal.Decimal, discount *domain.Discount) decimal.Decimal {
	if discount == nil {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch discount.Type {
	case domain.DiscountPercentage:
		amount = subtotal.Mul(discount.Value).Div(hundred)
	case domain.DiscountFixed:
		amount = discount.Value
	default:
		return decimal.Zero
	}

	if discount.MaxDiscount != nil {
		amount = decimal.Min(amount, *discount.MaxDiscount)
	}
	return amount
}

// Shipping is charged on the pre-discount subtotal.
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShipping
}

// ComputeOrderSummary prices a set of line items with an optional discount.
// The discounted subtotal is not floored at zero.
func ComputeOrderSummary(items []domain.LineItem, discount *domain.Discount) domain.OrderSummary {
	subtotal := Subtotal(items)
	discountAmount := DiscountAmount(subtotal, discount)
	discounted := subtotal.Sub(discountAmount)
	tax := discounted.Mul(TaxRate)
	shipping := Shipping(subtotal)

	return domain.OrderSummary{
		Subtotal: subtotal,
		Discount: discountAmount,
		Tax:      tax,
		Shipping: shipping,
		Total:    discounted.Add(tax).Add(shipping),
		Currency: domain.Currency,
	}
}
