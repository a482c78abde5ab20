// Package zone decides whether a delivery coordinate lies inside a
// serviceable geo-fenced area. Containment is authoritative: a point outside
// every admissible zone polygon rejects the request.
package zone

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/shopspring/decimal"
)

// ErrOutOfCoverage is returned when a coordinate is not inside any admissible
// zone polygon.
var ErrOutOfCoverage = errors.New("out of coverage")

// ErrNoModulePricing is returned when a zone has no delivery pricing
// configured for the requested module.
var ErrNoModulePricing = errors.New("no module pricing for zone")

// Zone is a named service area bounded by a polygon.
type Zone struct {
	ID             int64
	Name           string
	Polygon        orb.Polygon
	CashOnDelivery bool
}

// Contains reports whether the point (lat, lng) lies inside the zone polygon.
func (z Zone) Contains(lat, lng float64) bool {
	return planar.PolygonContains(z.Polygon, orb.Point{lng, lat})
}

// ModulePricing is the per-module delivery rate table attached to a zone.
type ModulePricing struct {
	PerKmShippingCharge   decimal.Decimal
	MinimumShippingCharge decimal.Decimal
	MaximumShippingCharge decimal.Decimal
	// MaximumCODOrderAmount caps cash-on-delivery order totals; zero means
	// no cap.
	MaximumCODOrderAmount decimal.Decimal
}

// Repository provides zone lookup. ModulePricing returns ErrNoModulePricing
// when the zone+module pair is not configured.
type Repository interface {
	ByIDs(ctx context.Context, ids []int64) ([]Zone, error)
	ModulePricing(ctx context.Context, zoneID, moduleID int64) (*ModulePricing, error)
}

// Validator locates the zone covering a coordinate among an admissible set.
type Validator struct {
	repo Repository
}

// NewValidator creates a Validator backed by the given repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Locate returns the first admissible zone whose polygon contains the point,
// or ErrOutOfCoverage. The admissible set is a trust boundary supplied by the
// client session context, never derived from the point.
func (v *Validator) Locate(ctx context.Context, lat, lng float64, admissible []int64) (*Zone, error) {
	if len(admissible) == 0 {
		return nil, ErrOutOfCoverage
	}

	zones, err := v.repo.ByIDs(ctx, admissible)
	if err != nil {
		return nil, errors.Wrap(err, "load zones")
	}

	for i := range zones {
		if zones[i].Contains(lat, lng) {
			return &zones[i], nil
		}
	}

	return nil, ErrOutOfCoverage
}
