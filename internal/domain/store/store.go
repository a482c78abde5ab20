// Package store holds the vendor aggregate consulted during placement:
// rates, minimum order, running promotion, and the weekly opening schedule.
package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a referenced store does not exist.
var ErrNotFound = errors.New("store not found")

// Discount is a store's running promotion. Only active promotions are
// returned by the repository; window checks happen in SQL.
type Discount struct {
	Percent     decimal.Decimal
	MinPurchase decimal.Decimal
	// MaxDiscount caps the aggregate store discount; zero means no cap.
	MaxDiscount decimal.Decimal
}

// Store is a vendor location within a zone and module.
type Store struct {
	ID            int64
	Name          string
	ZoneID        int64
	ModuleID      int64
	Tax           decimal.Decimal
	MinimumOrder  decimal.Decimal
	FreeDelivery  bool
	SelfDelivery  bool
	ScheduleOrder bool

	PerKmShippingCharge   decimal.Decimal
	MinimumShippingCharge decimal.Decimal
	MaximumShippingCharge decimal.Decimal

	DeliveryTime string

	// Discount is the running promotion, nil when none is active.
	Discount *Discount
}

// ScheduleEntry is one weekly opening window. Opening and Closing are
// offsets from midnight store-local time.
type ScheduleEntry struct {
	Day     time.Weekday
	Opening time.Duration
	Closing time.Duration
}

// OpenAt reports whether any schedule entry covers the given time. The
// bounds are strict: an order exactly at opening or closing time is
// rejected.
func OpenAt(entries []ScheduleEntry, t time.Time) bool {
	tod := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	for _, e := range entries {
		if e.Day == t.Weekday() && e.Opening < tod && e.Closing > tod {
			return true
		}
	}
	return false
}

// Repository provides store reads used by the placement pipeline.
type Repository interface {
	// ByID returns the store with its running discount attached, or
	// ErrNotFound.
	ByID(ctx context.Context, id int64) (*Store, error)
	Schedule(ctx context.Context, storeID int64) ([]ScheduleEntry, error)
}
