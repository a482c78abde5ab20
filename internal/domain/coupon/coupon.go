// Package coupon validates coupon eligibility and computes coupon-level
// discounts. Usage accounting is transactional: total_uses moves only inside
// the commit that persists the order applying the coupon.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates coupon behaviours.
type Type string

const (
	// TypeFreeDelivery waives the delivery fee instead of discounting the
	// product total.
	TypeFreeDelivery Type = "free_delivery"
	// TypeDefault is an unrestricted discount coupon.
	TypeDefault Type = "default"
	// TypeFirstOrder is valid only for a customer's first order.
	TypeFirstOrder Type = "first_order"
	// TypeStoreWise is restricted to a single store.
	TypeStoreWise Type = "store_wise"
	// TypeZoneWise is restricted to a single zone.
	TypeZoneWise Type = "zone_wise"
)

// Validation failures, ordered by evaluation precedence.
var (
	ErrExpired       = errors.New("coupon expired")
	ErrNotEligible   = errors.New("customer not eligible for coupon")
	ErrLimitExceeded = errors.New("coupon usage limit over")
	ErrNotFound      = errors.New("coupon not found")
)

// Coupon is a promotional code with eligibility constraints.
type Coupon struct {
	ID           int64
	Code         string
	Title        string
	Type         Type
	Discount     decimal.Decimal
	DiscountType string // "percent" or "amount"
	MinPurchase  decimal.Decimal
	// MaxDiscount caps percentage discounts; zero means no cap.
	MaxDiscount decimal.Decimal
	// Limit is the per-customer use allowance; zero means unlimited.
	Limit int64
	// GlobalLimit caps redemptions across all customers; zero means
	// unlimited.
	GlobalLimit int64
	TotalUses   int64
	StartDate   time.Time
	ExpireDate  time.Time
	CreatedBy   string // "admin" or "vendor"

	// Scoping; nil means unrestricted.
	StoreID    *int64
	ZoneID     *int64
	CustomerID *int64
}

// DiscountFor computes the monetary reduction against the given base
// (product subtotal + add-ons - store discount). Free-delivery coupons
// contribute no monetary discount.
func (c *Coupon) DiscountFor(base decimal.Decimal) decimal.Decimal {
	if c.Type == TypeFreeDelivery {
		return decimal.Zero
	}
	if base.LessThan(c.MinPurchase) {
		return decimal.Zero
	}

	if c.DiscountType == "amount" {
		return decimal.Min(c.Discount, base)
	}

	amount := base.Mul(c.Discount).Div(decimal.NewFromInt(100))
	if c.MaxDiscount.IsPositive() && amount.GreaterThan(c.MaxDiscount) {
		amount = c.MaxDiscount
	}
	return amount
}

// Repository provides coupon lookup and usage reads. The matching usage
// increment lives on the storage layer's transactional variant so it can
// join the placement commit.
type Repository interface {
	// ActiveByCode returns the active coupon for a code, or ErrNotFound.
	ActiveByCode(ctx context.Context, code string) (*Coupon, error)
	// CustomerUses counts how many successful orders by the customer have
	// applied the coupon.
	CustomerUses(ctx context.Context, couponID, customerID int64) (int64, error)
}

// Candidate describes the placement context a coupon is validated against.
type Candidate struct {
	CustomerID int64
	StoreID    int64
	ZoneID     int64
	// CustomerOrderCount is the customer's lifetime successful order
	// count, used by first-order coupons.
	CustomerOrderCount int64
}

// Validator checks a coupon against the placement context. First failure
// wins, in the order: expired, ineligible, limit exhausted, not found.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate resolves and checks the coupon code. It returns the coupon for
// discount computation, or one of the package sentinel errors.
func (v *Validator) Validate(ctx context.Context, code string, cand Candidate) (*Coupon, error) {
	c, err := v.repo.ActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	// Zero dates mean an open-ended window on that side.
	now := v.now()
	if !c.StartDate.IsZero() && now.Before(c.StartDate) {
		return nil, ErrExpired
	}
	if !c.ExpireDate.IsZero() && now.After(c.ExpireDate) {
		return nil, ErrExpired
	}

	if err := v.checkEligibility(c, cand); err != nil {
		return nil, err
	}

	if c.GlobalLimit > 0 && c.TotalUses >= c.GlobalLimit {
		return nil, ErrLimitExceeded
	}

	if c.Limit > 0 {
		uses, err := v.repo.CustomerUses(ctx, c.ID, cand.CustomerID)
		if err != nil {
			return nil, errors.Wrap(err, "count coupon uses")
		}
		if uses >= c.Limit {
			return nil, ErrLimitExceeded
		}
	}

	return c, nil
}

func (v *Validator) checkEligibility(c *Coupon, cand Candidate) error {
	if c.Type == TypeFirstOrder && cand.CustomerOrderCount > 0 {
		return ErrNotEligible
	}
	if c.StoreID != nil && *c.StoreID != cand.StoreID {
		return ErrNotEligible
	}
	if c.ZoneID != nil && *c.ZoneID != cand.ZoneID {
		return ErrNotEligible
	}
	if c.CustomerID != nil && *c.CustomerID != cand.CustomerID {
		return ErrNotEligible
	}
	return nil
}
