package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/deliverymart/internal/domain/delivery"
)

const activeVehiclesSQL = `SELECT id, type, starting_coverage_area,
		maximum_coverage_area, extra_charges
	FROM dm_vehicles WHERE status
	ORDER BY starting_coverage_area`

const parcelCategorySQL = `SELECT id, name,
		parcel_per_km_shipping_charge, parcel_minimum_shipping_charge
	FROM parcel_categories WHERE id = $1`

var _ delivery.Repository = (*DeliveryRepository)(nil)

// DeliveryRepository implements delivery.Repository backed by PostgreSQL.
type DeliveryRepository struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepository returns a DeliveryRepository that uses the given pool.
func NewDeliveryRepository(pool *pgxpool.Pool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

func (r *DeliveryRepository) ActiveVehicles(ctx context.Context) ([]delivery.Vehicle, error) {
	rows, err := r.pool.Query(ctx, activeVehiclesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query vehicles")
	}
	defer rows.Close()

	var vehicles []delivery.Vehicle
	for rows.Next() {
		var v delivery.Vehicle
		if err := rows.Scan(&v.ID, &v.Type, &v.StartingCoverage, &v.MaximumCoverage, &v.ExtraCharges); err != nil {
			return nil, errors.Wrap(err, "scan vehicle")
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (r *DeliveryRepository) ParcelCategoryByID(ctx context.Context, id int64) (*delivery.ParcelCategory, error) {
	var c delivery.ParcelCategory
	err := r.pool.QueryRow(ctx, parcelCategorySQL, id).Scan(
		&c.ID, &c.Name, &c.PerKmCharge, &c.MinCharge,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Errorf("parcel category %d not found", id)
		}
		return nil, errors.Wrapf(err, "query parcel category %d", id)
	}
	return &c, nil
}
