package delivery

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func tier(perKm, minimum, maximum string) Tier {
	return Tier{PerKm: d(perKm), Minimum: d(minimum), Maximum: d(maximum)}
}

func TestSelectVehicle(t *testing.T) {
	vehicles := []Vehicle{
		{ID: 1, Type: "bicycle", StartingCoverage: d("0"), MaximumCoverage: d("5"), ExtraCharges: d("0")},
		{ID: 2, Type: "motorbike", StartingCoverage: d("5"), MaximumCoverage: d("15"), ExtraCharges: d("1")},
		{ID: 3, Type: "car", StartingCoverage: d("15"), MaximumCoverage: d("40"), ExtraCharges: d("3")},
	}

	tests := []struct {
		name     string
		distance decimal.Decimal
		wantID   int64
	}{
		{"inside first band", d("3"), 1},
		{"band boundary goes to the earlier band", d("5"), 1},
		{"inside second band", d("10"), 2},
		{"inside third band", d("20"), 3},
		{"beyond every band", d("100"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectVehicle(vehicles, tt.distance)
			if tt.wantID == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestCalculate(t *testing.T) {
	moduleTier := tier("2", "5", "20")
	storeTier := tier("1.5", "4", "15")
	defaults := tier("3", "6", "0")
	motorbike := &Vehicle{ID: 2, Type: "motorbike", StartingCoverage: d("5"), MaximumCoverage: d("15"), ExtraCharges: d("1")}

	tests := []struct {
		name          string
		in            Input
		wantCharge    decimal.Decimal
		wantOriginal  decimal.Decimal
		wantVehicleID *int64
	}{
		{
			name: "module tier per-km charge",
			in: Input{
				Distance:    d("5"),
				ModuleTier:  &moduleTier,
				StoreTier:   storeTier,
				DefaultTier: defaults,
			},
			wantCharge:   d("10"),
			wantOriginal: d("10"),
		},
		{
			name: "minimum floor applies",
			in: Input{
				Distance:    d("1"),
				ModuleTier:  &moduleTier,
				StoreTier:   storeTier,
				DefaultTier: defaults,
			},
			wantCharge:   d("5"),
			wantOriginal: d("5"),
		},
		{
			name: "maximum clamp applies",
			in: Input{
				Distance:    d("50"),
				ModuleTier:  &moduleTier,
				StoreTier:   storeTier,
				DefaultTier: defaults,
			},
			wantCharge:   d("20"),
			wantOriginal: d("20"),
		},
		{
			name: "defaults have no sane cap and never clamp",
			in: Input{
				Distance:    d("50"),
				StoreTier:   storeTier,
				DefaultTier: defaults,
			},
			wantCharge:   d("150"),
			wantOriginal: d("150"),
		},
		{
			name: "vehicle surcharge lands in both figures",
			in: Input{
				Distance:    d("10"),
				ModuleTier:  &moduleTier,
				StoreTier:   storeTier,
				DefaultTier: defaults,
				Vehicle:     motorbike,
			},
			wantCharge:    d("21"),
			wantOriginal:  d("21"),
			wantVehicleID: &motorbike.ID,
		},
		{
			name: "take-away zeroes everything",
			in: Input{
				TakeAway:    true,
				Distance:    d("10"),
				ModuleTier:  &moduleTier,
				StoreTier:   storeTier,
				DefaultTier: defaults,
				Vehicle:     motorbike,
			},
			wantCharge:   d("0"),
			wantOriginal: d("0"),
		},
		{
			name: "self delivery uses the store tier without surcharge",
			in: Input{
				Distance:          d("10"),
				ModuleTier:        &moduleTier,
				StoreTier:         storeTier,
				DefaultTier:       defaults,
				StoreSelfDelivery: true,
				Vehicle:           motorbike,
			},
			wantCharge:   d("15"),
			wantOriginal: d("15"),
		},
		{
			name: "coupon free delivery keeps the accounting figure",
			in: Input{
				Distance:           d("10"),
				ModuleTier:         &moduleTier,
				StoreTier:          storeTier,
				DefaultTier:        defaults,
				CouponFreeDelivery: true,
				Vehicle:            motorbike,
			},
			wantCharge:    d("0"),
			wantOriginal:  d("21"),
			wantVehicleID: &motorbike.ID,
		},
		{
			name: "vendor free-delivery coupon shifts rates onto the store tier",
			in: Input{
				Distance:             d("10"),
				ModuleTier:           &moduleTier,
				StoreTier:            storeTier,
				DefaultTier:          defaults,
				CouponFreeDelivery:   true,
				FreeDeliveryByVendor: true,
				Vehicle:              motorbike,
			},
			wantCharge:   d("0"),
			wantOriginal: d("15"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.in)
			assert.True(t, tt.wantCharge.Equal(got.Charge), "charge = %s, want %s", got.Charge, tt.wantCharge)
			assert.True(t, tt.wantOriginal.Equal(got.OriginalCharge), "original = %s, want %s", got.OriginalCharge, tt.wantOriginal)
			if tt.wantVehicleID == nil {
				assert.Nil(t, got.VehicleID)
			} else {
				require.NotNil(t, got.VehicleID)
				assert.Equal(t, *tt.wantVehicleID, *got.VehicleID)
			}
		})
	}
}

func TestCalculate_ChargeMonotonicInDistance(t *testing.T) {
	moduleTier := tier("2", "5", "20")
	prev := decimal.Zero
	for km := 1; km <= 15; km++ {
		got := Calculate(Input{
			Distance:   decimal.NewFromInt(int64(km)),
			ModuleTier: &moduleTier,
		})
		assert.True(t, got.Charge.GreaterThanOrEqual(prev),
			"charge decreased at %d km: %s < %s", km, got.Charge, prev)
		prev = got.Charge
	}
}

func TestCalculateParcel(t *testing.T) {
	defaults := tier("1.5", "4", "0")
	perKm, minimum := d("1"), d("3")
	category := &ParcelCategory{ID: 1, Name: "Documents", PerKmCharge: &perKm, MinCharge: &minimum}

	t.Run("category rates override defaults", func(t *testing.T) {
		got := CalculateParcel(d("10"), category, defaults, nil)
		assert.True(t, d("10").Equal(got.Charge), "charge = %s", got.Charge)
	})

	t.Run("nil category rates fall back to defaults", func(t *testing.T) {
		got := CalculateParcel(d("10"), &ParcelCategory{ID: 2, Name: "Electronics"}, defaults, nil)
		assert.True(t, d("15").Equal(got.Charge), "charge = %s", got.Charge)
	})

	t.Run("minimum floor", func(t *testing.T) {
		got := CalculateParcel(d("1"), category, defaults, nil)
		assert.True(t, d("3").Equal(got.Charge), "charge = %s", got.Charge)
	})

	t.Run("no maximum clamp on long distances", func(t *testing.T) {
		got := CalculateParcel(d("200"), category, defaults, nil)
		assert.True(t, d("200").Equal(got.Charge), "charge = %s", got.Charge)
	})

	t.Run("vehicle surcharge included", func(t *testing.T) {
		car := &Vehicle{ID: 3, ExtraCharges: d("3")}
		got := CalculateParcel(d("10"), category, defaults, car)
		assert.True(t, d("13").Equal(got.Charge), "charge = %s", got.Charge)
		require.NotNil(t, got.VehicleID)
		assert.Equal(t, int64(3), *got.VehicleID)
	})
}
