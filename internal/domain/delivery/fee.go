// Package delivery computes the customer-facing and accounting delivery
// charges from distance, rate tiers, and vehicle surcharges.
package delivery

import (
	"context"

	"github.com/shopspring/decimal"
)

// Vehicle is a delivery vehicle class with a distance coverage band and a
// flat surcharge.
type Vehicle struct {
	ID               int64
	Type             string
	StartingCoverage decimal.Decimal
	MaximumCoverage  decimal.Decimal
	ExtraCharges     decimal.Decimal
}

// ParcelCategory carries optional category-level parcel rates. Nil rate
// fields fall back to the platform parcel defaults.
type ParcelCategory struct {
	ID          int64
	Name        string
	PerKmCharge *decimal.Decimal
	MinCharge   *decimal.Decimal
}

// Repository provides the reference data the fee calculator needs.
type Repository interface {
	// ActiveVehicles returns active vehicles ordered by ascending
	// starting coverage area.
	ActiveVehicles(ctx context.Context) ([]Vehicle, error)
	ParcelCategoryByID(ctx context.Context, id int64) (*ParcelCategory, error)
}

// SelectVehicle picks the surcharge vehicle for a distance: the first
// vehicle, by ascending starting coverage, whose band contains the distance
// or whose band starts at or above it. Returns nil when none is eligible.
func SelectVehicle(vehicles []Vehicle, distance decimal.Decimal) *Vehicle {
	for i := range vehicles {
		v := &vehicles[i]
		contains := v.StartingCoverage.LessThanOrEqual(distance) && v.MaximumCoverage.GreaterThanOrEqual(distance)
		startsAbove := v.StartingCoverage.GreaterThanOrEqual(distance)
		if contains || startsAbove {
			return v
		}
	}
	return nil
}

// Tier is one delivery rate tier: per-km rate with min/max bounds.
// A Maximum below Minimum is treated as "no cap".
type Tier struct {
	PerKm   decimal.Decimal
	Minimum decimal.Decimal
	Maximum decimal.Decimal
}

// baseCharge is max(distance * per_km, minimum), clamped to Maximum only
// when the cap is sane (Maximum >= Minimum).
func (t Tier) baseCharge(distance decimal.Decimal) decimal.Decimal {
	charge := distance.Mul(t.PerKm)
	if charge.LessThanOrEqual(t.Minimum) {
		charge = t.Minimum
	}
	if t.Maximum.GreaterThanOrEqual(t.Minimum) && charge.GreaterThan(t.Maximum) {
		charge = t.Maximum
	}
	return charge
}

// Quote is the outcome of fee calculation before order-level free-delivery
// overrides.
type Quote struct {
	// OriginalCharge is the undiscounted figure kept for settlement
	// accounting.
	OriginalCharge decimal.Decimal
	// Charge is the customer-facing figure; zero when a free_delivery
	// coupon preset it.
	Charge decimal.Decimal
	// VehicleID is the surcharge vehicle applied, nil when none.
	VehicleID    *int64
	ExtraCharges decimal.Decimal
}

// Input bundles everything the fee calculation reads. StoreTier is used when
// the store runs self delivery or free delivery; ModuleTier when the
// zone+module pair has rates configured; DefaultTier otherwise.
type Input struct {
	TakeAway bool
	Distance decimal.Decimal

	ModuleTier  *Tier
	StoreTier   Tier
	DefaultTier Tier

	StoreFreeDelivery bool
	StoreSelfDelivery bool
	// CouponFreeDelivery presets the customer-facing charge to zero; the
	// original charge is still computed for accounting.
	CouponFreeDelivery bool
	// FreeDeliveryByVendor is set when a vendor-issued free_delivery
	// coupon applies, which shifts rates onto the store's own tier.
	FreeDeliveryByVendor bool

	Vehicle *Vehicle
}

// Calculate derives the delivery charge pair for a delivery or take-away
// order. The tier precedence and zeroing rules follow the settlement
// contract: module tier, then store tier for self/free delivery, then
// platform defaults; take-away zeroes everything.
func Calculate(in Input) Quote {
	tier := in.DefaultTier
	if in.ModuleTier != nil {
		tier = *in.ModuleTier
	}

	extra := decimal.Zero
	var vehicleID *int64
	if in.Vehicle != nil {
		extra = in.Vehicle.ExtraCharges
		id := in.Vehicle.ID
		vehicleID = &id
	}

	selfDelivered := !in.TakeAway && !in.StoreFreeDelivery && !in.CouponFreeDelivery && in.StoreSelfDelivery
	if selfDelivered || in.StoreFreeDelivery || in.FreeDeliveryByVendor {
		tier = in.StoreTier
		extra = decimal.Zero
		vehicleID = nil
	}

	if in.TakeAway {
		return Quote{
			OriginalCharge: decimal.Zero,
			Charge:         decimal.Zero,
		}
	}

	original := tier.baseCharge(in.Distance)

	charge := decimal.Zero
	if !in.CouponFreeDelivery {
		charge = tier.baseCharge(in.Distance)
	}

	return Quote{
		OriginalCharge: original.Add(extra),
		Charge:         chargeWithExtra(charge, extra, in.CouponFreeDelivery),
		VehicleID:      vehicleID,
		ExtraCharges:   extra,
	}
}

// chargeWithExtra keeps a coupon-preset zero charge at zero; the surcharge
// still lands in the accounting figure only.
func chargeWithExtra(charge, extra decimal.Decimal, couponFree bool) decimal.Decimal {
	if couponFree {
		return decimal.Zero
	}
	return charge.Add(extra)
}

// CalculateParcel derives the delivery charge for a parcel order. Category
// rates override the platform parcel defaults; there is no maximum clamp.
func CalculateParcel(distance decimal.Decimal, category *ParcelCategory, defaults Tier, vehicle *Vehicle) Quote {
	tier := defaults
	if category != nil && category.PerKmCharge != nil && category.MinCharge != nil {
		tier = Tier{PerKm: *category.PerKmCharge, Minimum: *category.MinCharge, Maximum: decimal.Zero}
	}
	// Parcel tiers carry no cap: force Maximum below Minimum.
	tier.Maximum = tier.Minimum.Sub(decimal.NewFromInt(1))

	extra := decimal.Zero
	var vehicleID *int64
	if vehicle != nil {
		extra = vehicle.ExtraCharges
		id := vehicle.ID
		vehicleID = &id
	}

	charge := tier.baseCharge(distance).Add(extra)

	return Quote{
		OriginalCharge: charge,
		Charge:         charge,
		VehicleID:      vehicleID,
		ExtraCharges:   extra,
	}
}
