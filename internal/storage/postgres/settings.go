package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/deliverymart/internal/settings"
)

var _ settings.Reader = (*SettingsRepository)(nil)

// SettingsRepository loads the business_settings key-value table into a
// snapshot. Every placement reads one fresh snapshot.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) Load(ctx context.Context) (*settings.Snapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM business_settings`)
	if err != nil {
		return nil, errors.Wrap(err, "query business settings")
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errors.Wrap(err, "scan business setting")
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate business settings")
	}

	return settings.FromValues(values), nil
}
