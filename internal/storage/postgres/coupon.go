package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/deliverymart/internal/domain/coupon"
)

const couponByCodeSQL = `SELECT
		id, code, title, coupon_type, discount, discount_type,
		min_purchase, max_discount, "limit", global_limit, total_uses,
		start_date, expire_date, created_by, store_id, zone_id, customer_id
	FROM coupons WHERE UPPER(code) = UPPER($1) AND status`

const couponCustomerUsesSQL = `SELECT count(*) FROM orders
	WHERE user_id = $1 AND UPPER(coupon_code) = UPPER($2)`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL. Codes
// match case-insensitively.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func (r *CouponRepository) ActiveByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var (
		c             coupon.Coupon
		start, expire *time.Time
	)
	err := r.pool.QueryRow(ctx, couponByCodeSQL, code).Scan(
		&c.ID, &c.Code, &c.Title, &c.Type, &c.Discount, &c.DiscountType,
		&c.MinPurchase, &c.MaxDiscount, &c.Limit, &c.GlobalLimit, &c.TotalUses,
		&start, &expire, &c.CreatedBy, &c.StoreID, &c.ZoneID, &c.CustomerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "query coupon %q", code)
	}

	if start != nil {
		c.StartDate = *start
	}
	if expire != nil {
		// The expire date is inclusive: the coupon stays valid through the
		// end of that day.
		c.ExpireDate = expire.Add(24*time.Hour - time.Nanosecond)
	}

	return &c, nil
}

func (r *CouponRepository) CustomerUses(ctx context.Context, couponID, customerID int64) (int64, error) {
	var code string
	err := r.pool.QueryRow(ctx, `SELECT code FROM coupons WHERE id = $1`, couponID).Scan(&code)
	if err != nil {
		return 0, errors.Wrapf(err, "query coupon %d", couponID)
	}

	var uses int64
	err = r.pool.QueryRow(ctx, couponCustomerUsesSQL, customerID, code).Scan(&uses)
	if err != nil {
		return 0, errors.Wrapf(err, "count coupon uses for customer %d", customerID)
	}
	return uses, nil
}
