package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/deliverymart/internal/domain/store"
)

const storeByIDSQL = `SELECT
		s.id, s.name, s.zone_id, s.module_id, s.tax, s.minimum_order,
		s.free_delivery, s.self_delivery_system, s.schedule_order,
		s.per_km_shipping_charge, s.minimum_shipping_charge, s.maximum_shipping_charge,
		s.delivery_time,
		d.discount, d.min_purchase, d.max_discount
	FROM stores s
	LEFT JOIN store_discounts d ON d.store_id = s.id
		AND (d.start_date IS NULL OR d.start_date <= CURRENT_DATE)
		AND (d.end_date IS NULL OR d.end_date >= CURRENT_DATE)
		AND (d.start_time IS NULL OR d.start_time <= CURRENT_TIME)
		AND (d.end_time IS NULL OR d.end_time >= CURRENT_TIME)
	WHERE s.id = $1 AND s.active`

const storeScheduleSQL = `SELECT day, opening_time, closing_time
	FROM store_schedules WHERE store_id = $1 ORDER BY day, opening_time`

var _ store.Repository = (*StoreRepository)(nil)

// StoreRepository implements store.Repository backed by PostgreSQL. The
// running promotion window is evaluated in SQL so callers only ever see an
// active discount.
type StoreRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository returns a StoreRepository that uses the given pool.
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

func (r *StoreRepository) ByID(ctx context.Context, id int64) (*store.Store, error) {
	var (
		s           store.Store
		percent     *decimal.Decimal
		minPurchase *decimal.Decimal
		maxDiscount *decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, storeByIDSQL, id).Scan(
		&s.ID, &s.Name, &s.ZoneID, &s.ModuleID, &s.Tax, &s.MinimumOrder,
		&s.FreeDelivery, &s.SelfDelivery, &s.ScheduleOrder,
		&s.PerKmShippingCharge, &s.MinimumShippingCharge, &s.MaximumShippingCharge,
		&s.DeliveryTime,
		&percent, &minPurchase, &maxDiscount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "query store %d", id)
	}

	if percent != nil && percent.IsPositive() {
		s.Discount = &store.Discount{
			Percent:     *percent,
			MinPurchase: *minPurchase,
			MaxDiscount: *maxDiscount,
		}
	}

	return &s, nil
}

func (r *StoreRepository) Schedule(ctx context.Context, storeID int64) ([]store.ScheduleEntry, error) {
	rows, err := r.pool.Query(ctx, storeScheduleSQL, storeID)
	if err != nil {
		return nil, errors.Wrapf(err, "query schedule for store %d", storeID)
	}
	defer rows.Close()

	var entries []store.ScheduleEntry
	for rows.Next() {
		var (
			day              int16
			opening, closing pgtype.Time
		)
		if err := rows.Scan(&day, &opening, &closing); err != nil {
			return nil, errors.Wrap(err, "scan schedule entry")
		}
		entries = append(entries, store.ScheduleEntry{
			Day:     time.Weekday(day),
			Opening: time.Duration(opening.Microseconds) * time.Microsecond,
			Closing: time.Duration(closing.Microseconds) * time.Microsecond,
		})
	}
	return entries, rows.Err()
}
