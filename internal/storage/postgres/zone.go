package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/xenking/deliverymart/internal/domain/zone"
)

const zonesByIDsSQL = `SELECT id, name, coordinates, cash_on_delivery
	FROM zones WHERE id = ANY($1) AND status
	ORDER BY array_position($1, id)`

const zoneModulePricingSQL = `SELECT
		per_km_shipping_charge, minimum_shipping_charge,
		maximum_shipping_charge, maximum_cod_order_amount
	FROM zone_modules WHERE zone_id = $1 AND module_id = $2`

var _ zone.Repository = (*ZoneRepository)(nil)

// ZoneRepository implements zone.Repository backed by PostgreSQL. Zone
// polygons are stored as GeoJSON geometry in a JSONB column.
type ZoneRepository struct {
	pool *pgxpool.Pool
}

// NewZoneRepository returns a ZoneRepository that uses the given pool.
func NewZoneRepository(pool *pgxpool.Pool) *ZoneRepository {
	return &ZoneRepository{pool: pool}
}

// ByIDs returns the active zones among ids, preserving the input order so the
// caller's containment scan honors the client's zone precedence.
func (r *ZoneRepository) ByIDs(ctx context.Context, ids []int64) ([]zone.Zone, error) {
	rows, err := r.pool.Query(ctx, zonesByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query zones")
	}
	defer rows.Close()

	zones := make([]zone.Zone, 0, len(ids))
	for rows.Next() {
		var (
			z      zone.Zone
			coords []byte
		)
		if err := rows.Scan(&z.ID, &z.Name, &coords, &z.CashOnDelivery); err != nil {
			return nil, errors.Wrap(err, "scan zone")
		}
		geom, err := geojson.UnmarshalGeometry(coords)
		if err != nil {
			return nil, errors.Wrapf(err, "decode polygon for zone %d", z.ID)
		}
		poly, ok := geom.Geometry().(orb.Polygon)
		if !ok {
			return nil, errors.Errorf("zone %d geometry is not a polygon", z.ID)
		}
		z.Polygon = poly
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (r *ZoneRepository) ModulePricing(ctx context.Context, zoneID, moduleID int64) (*zone.ModulePricing, error) {
	var p zone.ModulePricing
	err := r.pool.QueryRow(ctx, zoneModulePricingSQL, zoneID, moduleID).Scan(
		&p.PerKmShippingCharge, &p.MinimumShippingCharge,
		&p.MaximumShippingCharge, &p.MaximumCODOrderAmount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, zone.ErrNoModulePricing
		}
		return nil, errors.Wrapf(err, "query pricing for zone %d module %d", zoneID, moduleID)
	}
	return &p, nil
}
