package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/deliverymart/internal/domain/order"
)

var _ order.ReasonRepository = (*ReasonRepository)(nil)

// ReasonRepository lists predefined cancellation and refund reasons.
type ReasonRepository struct {
	pool *pgxpool.Pool
}

// NewReasonRepository returns a ReasonRepository that uses the given pool.
func NewReasonRepository(pool *pgxpool.Pool) *ReasonRepository {
	return &ReasonRepository{pool: pool}
}

func (r *ReasonRepository) CancellationReasons(ctx context.Context) ([]order.Reason, error) {
	return r.list(ctx, `SELECT id, reason FROM cancellation_reasons
		WHERE status AND user_type = 'customer' ORDER BY id`)
}

func (r *ReasonRepository) RefundReasons(ctx context.Context) ([]order.Reason, error) {
	return r.list(ctx, `SELECT id, reason FROM refund_reasons WHERE status ORDER BY id`)
}

func (r *ReasonRepository) list(ctx context.Context, query string) ([]order.Reason, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query reasons")
	}
	defer rows.Close()

	var reasons []order.Reason
	for rows.Next() {
		var reason order.Reason
		if err := rows.Scan(&reason.ID, &reason.Reason); err != nil {
			return nil, errors.Wrap(err, "scan reason")
		}
		reasons = append(reasons, reason)
	}
	return reasons, rows.Err()
}
