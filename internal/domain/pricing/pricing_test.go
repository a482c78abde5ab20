package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/deliverymart/internal/domain/store"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestProductTax(t *testing.T) {
	tests := []struct {
		name     string
		price    decimal.Decimal
		rate     decimal.Decimal
		included bool
		want     decimal.Decimal
	}{
		{
			name:  "excluded adds on top",
			price: d("100"),
			rate:  d("15"),
			want:  d("15"),
		},
		{
			name:     "included extracts from price",
			price:    d("115"),
			rate:     d("15"),
			included: true,
			want:     d("15"),
		},
		{
			name:  "zero rate",
			price: d("100"),
			rate:  d("0"),
			want:  d("0"),
		},
		{
			name:  "negative rate treated as zero",
			price: d("100"),
			rate:  d("-5"),
			want:  d("0"),
		},
		{
			name:  "fractional rate",
			price: d("8"),
			rate:  d("5"),
			want:  d("0.4"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProductTax(tt.price, tt.rate, tt.included)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestLineDiscount(t *testing.T) {
	promo := &store.Discount{Percent: d("10")}

	tests := []struct {
		name         string
		unitPrice    decimal.Decimal
		itemDiscount decimal.Decimal
		discountType string
		promo        *store.Discount
		want         decimal.Decimal
	}{
		{
			name:         "store promotion overrides item discount",
			unitPrice:    d("50"),
			itemDiscount: d("99"),
			discountType: "percent",
			promo:        promo,
			want:         d("5"),
		},
		{
			name:         "item percent discount",
			unitPrice:    d("50"),
			itemDiscount: d("20"),
			discountType: "percent",
			want:         d("10"),
		},
		{
			name:         "item amount discount",
			unitPrice:    d("50"),
			itemDiscount: d("3"),
			discountType: "amount",
			want:         d("3"),
		},
		{
			name:         "amount discount capped at unit price",
			unitPrice:    d("2"),
			itemDiscount: d("5"),
			discountType: "amount",
			want:         d("2"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineDiscount(tt.unitPrice, tt.itemDiscount, tt.discountType, tt.promo)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCapStoreDiscount(t *testing.T) {
	promo := &store.Discount{
		Percent:     d("10"),
		MinPurchase: d("20"),
		MaxDiscount: d("15"),
	}

	tests := []struct {
		name     string
		amount   decimal.Decimal
		subtotal decimal.Decimal
		promo    *store.Discount
		want     decimal.Decimal
	}{
		{
			name:     "no promotion passes through",
			amount:   d("7"),
			subtotal: d("10"),
			want:     d("7"),
		},
		{
			name:     "below minimum purchase collapses to zero",
			amount:   d("1.50"),
			subtotal: d("15"),
			promo:    promo,
			want:     d("0"),
		},
		{
			name:     "within bounds unchanged",
			amount:   d("5"),
			subtotal: d("50"),
			promo:    promo,
			want:     d("5"),
		},
		{
			name:     "capped at maximum discount",
			amount:   d("30"),
			subtotal: d("300"),
			promo:    promo,
			want:     d("15"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CapStoreDiscount(tt.amount, tt.subtotal, tt.promo)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCompute(t *testing.T) {
	r := NewRounder(2)

	t.Run("tax excluded is added to the total", func(t *testing.T) {
		got := Compute(TotalsInput{
			ProductSubtotal: d("100"),
			AddOnSubtotal:   d("10"),
			StoreDiscount:   d("5"),
			CouponDiscount:  d("10"),
			TaxRate:         d("15"),
			DeliveryCharge:  d("7"),
			Tip:             d("3"),
		}, r)

		// total = 100 + 10 - 5 - 10 = 95; tax = 14.25; order = 95 + 14.25 + 7 + 3
		assert.True(t, d("95").Equal(got.TotalPrice), "total = %s", got.TotalPrice)
		assert.True(t, d("14.25").Equal(got.TaxAmount), "tax = %s", got.TaxAmount)
		assert.Equal(t, "excluded", got.TaxStatus)
		assert.True(t, d("119.25").Equal(got.OrderAmount), "order = %s", got.OrderAmount)
	})

	t.Run("tax included contributes nothing further", func(t *testing.T) {
		got := Compute(TotalsInput{
			ProductSubtotal: d("115"),
			TaxRate:         d("15"),
			TaxIncluded:     true,
			DeliveryCharge:  d("5"),
		}, r)

		assert.True(t, d("15").Equal(got.TaxAmount), "tax = %s", got.TaxAmount)
		assert.Equal(t, "included", got.TaxStatus)
		assert.True(t, d("120").Equal(got.OrderAmount), "order = %s", got.OrderAmount)
	})

	t.Run("rounding at each monetary step", func(t *testing.T) {
		got := Compute(TotalsInput{
			ProductSubtotal: d("10.01"),
			TaxRate:         d("33.33"),
			DeliveryCharge:  d("0"),
		}, r)

		// 10.01 * 33.33 / 100 = 3.336333 -> 3.34
		assert.True(t, d("3.34").Equal(got.TaxAmount), "tax = %s", got.TaxAmount)
		assert.True(t, d("13.35").Equal(got.OrderAmount), "order = %s", got.OrderAmount)
	})

	t.Run("components reconcile into the order amount", func(t *testing.T) {
		in := TotalsInput{
			ProductSubtotal:  d("42.37"),
			AddOnSubtotal:    d("6.80"),
			StoreDiscount:    d("4.24"),
			CouponDiscount:   d("2"),
			TaxRate:          d("7.5"),
			DeliveryCharge:   d("6.50"),
			Tip:              d("1.25"),
			AdditionalCharge: d("0.40"),
		}
		got := Compute(in, r)

		recomposed := got.TotalPrice.
			Add(got.TaxAmount).
			Add(in.DeliveryCharge).
			Add(in.Tip).
			Add(in.AdditionalCharge)
		assert.True(t, got.OrderAmount.Equal(r.Round(recomposed)),
			"order %s != recomposed %s", got.OrderAmount, recomposed)
	})
}
