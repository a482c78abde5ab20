// Package pricing aggregates line totals into the final order amount.
// Rounding is applied at each monetary step, not only at the end; the order
// of operations is settlement-sensitive at cent level and must not change.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/deliverymart/internal/domain/store"
)

var hundred = decimal.NewFromInt(100)

// Rounder rounds monetary values to the platform's configured precision.
type Rounder struct {
	precision int32
}

// NewRounder creates a Rounder with the given decimal precision.
func NewRounder(precision int32) Rounder {
	return Rounder{precision: precision}
}

// Round rounds a monetary value half away from zero.
func (r Rounder) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(r.precision)
}

// ProductTax computes the tax carried by a price. When tax is included the
// amount is already inside the price (price * rate / (100 + rate)); when
// excluded it is added on top (price * rate / 100).
func ProductTax(price, rate decimal.Decimal, included bool) decimal.Decimal {
	if rate.IsNegative() || rate.IsZero() {
		return decimal.Zero
	}
	if included {
		return price.Mul(rate).Div(hundred.Add(rate))
	}
	return price.Mul(rate).Div(hundred)
}

// LineDiscount computes the per-unit discount of a line. A running store
// promotion overrides the item-level discount; otherwise the item's own
// percent or amount discount applies.
func LineDiscount(unitPrice, itemDiscount decimal.Decimal, itemDiscountType string, promo *store.Discount) decimal.Decimal {
	if promo != nil {
		return unitPrice.Mul(promo.Percent).Div(hundred)
	}
	if itemDiscountType == "amount" {
		return decimal.Min(itemDiscount, unitPrice)
	}
	return unitPrice.Mul(itemDiscount).Div(hundred)
}

// CapStoreDiscount applies the running promotion's minimum purchase and
// maximum discount bounds to the accumulated store discount.
func CapStoreDiscount(amount, productAndAddons decimal.Decimal, promo *store.Discount) decimal.Decimal {
	if promo == nil {
		return amount
	}
	if productAndAddons.LessThan(promo.MinPurchase) {
		return decimal.Zero
	}
	if promo.MaxDiscount.IsPositive() && amount.GreaterThan(promo.MaxDiscount) {
		return promo.MaxDiscount
	}
	return amount
}

// TotalsInput carries the already-rounded component figures of an order.
type TotalsInput struct {
	ProductSubtotal  decimal.Decimal
	AddOnSubtotal    decimal.Decimal
	StoreDiscount    decimal.Decimal
	CouponDiscount   decimal.Decimal
	TaxRate          decimal.Decimal
	TaxIncluded      bool
	DeliveryCharge   decimal.Decimal
	Tip              decimal.Decimal
	AdditionalCharge decimal.Decimal
}

// Totals is the final aggregation of an order's monetary fields.
type Totals struct {
	TotalPrice     decimal.Decimal
	TaxAmount      decimal.Decimal
	TaxStatus      string
	StoreDiscount  decimal.Decimal
	CouponDiscount decimal.Decimal
	OrderAmount    decimal.Decimal
}

// Compute aggregates the order total:
//
//	total = product + addons - store discount - coupon discount
//	order = total + tax (when excluded) + delivery + tip + additional charge
//
// Tax already inside the price contributes nothing further when included.
func Compute(in TotalsInput, r Rounder) Totals {
	totalPrice := in.ProductSubtotal.
		Add(in.AddOnSubtotal).
		Sub(in.StoreDiscount).
		Sub(in.CouponDiscount)

	taxAmount := r.Round(ProductTax(totalPrice, in.TaxRate, in.TaxIncluded))

	taxStatus := "excluded"
	taxAdd := taxAmount
	if in.TaxIncluded {
		taxStatus = "included"
		taxAdd = decimal.Zero
	}

	orderAmount := r.Round(totalPrice.Add(taxAdd).Add(in.DeliveryCharge))
	orderAmount = r.Round(orderAmount.Add(in.Tip).Add(in.AdditionalCharge))

	return Totals{
		TotalPrice:     totalPrice,
		TaxAmount:      taxAmount,
		TaxStatus:      taxStatus,
		StoreDiscount:  r.Round(in.StoreDiscount),
		CouponDiscount: r.Round(in.CouponDiscount),
		OrderAmount:    orderAmount,
	}
}
