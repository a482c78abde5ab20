package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/deliverymart/internal/domain/order"
)

const customerByIDSQL = `SELECT id, name, phone, email, zone_id,
		wallet_balance, order_count
	FROM customers WHERE id = $1`

var _ order.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository implements order.CustomerRepository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) ByID(ctx context.Context, id int64) (*order.Customer, error) {
	var c order.Customer
	err := r.pool.QueryRow(ctx, customerByIDSQL, id).Scan(
		&c.ID, &c.Name, &c.Phone, &c.Email, &c.ZoneID,
		&c.WalletBalance, &c.OrderCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "query customer %d", id)
	}
	return &c, nil
}
