package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/deliverymart/internal/domain/catalog"
)

const itemByIDSQL = `SELECT
		i.id, i.store_id, i.module_id, i.name, i.price, i.tax,
		i.discount, i.discount_type, i.stock, i.maximum_cart_quantity,
		i.variations, m.stock_track
	FROM items i
	JOIN modules m ON m.id = i.module_id
	WHERE i.id = $1 AND i.status`

const campaignByIDSQL = `SELECT
		c.id, c.store_id, c.module_id, c.name, c.price, c.tax,
		c.discount, c.discount_type, c.stock, c.variations, m.stock_track
	FROM item_campaigns c
	JOIN modules m ON m.id = c.module_id
	WHERE c.id = $1 AND c.status
		AND CURRENT_DATE BETWEEN c.start_date AND c.end_date
		AND CURRENT_TIME BETWEEN c.start_time AND c.end_time`

const addOnsByIDsSQL = `SELECT id, name, price FROM addons
	WHERE id = ANY($1) AND status`

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
// Campaign activity windows are evaluated in SQL; an expired campaign reads
// as absent.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ItemByID(ctx context.Context, id int64) (*catalog.Item, error) {
	var (
		it         catalog.Item
		variations []byte
	)
	err := r.pool.QueryRow(ctx, itemByIDSQL, id).Scan(
		&it.ID, &it.StoreID, &it.ModuleID, &it.Name, &it.Price, &it.Tax,
		&it.Discount, &it.DiscountType, &it.Stock, &it.MaximumCartQuantity,
		&variations, &it.StockTracked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrItemUnavailable
		}
		return nil, errors.Wrapf(err, "query item %d", id)
	}
	if err := json.Unmarshal(variations, &it.Variations); err != nil {
		return nil, errors.Wrapf(err, "decode variations for item %d", id)
	}
	return &it, nil
}

func (r *CatalogRepository) CampaignByID(ctx context.Context, id int64) (*catalog.Item, error) {
	var (
		it         catalog.Item
		variations []byte
	)
	err := r.pool.QueryRow(ctx, campaignByIDSQL, id).Scan(
		&it.ID, &it.StoreID, &it.ModuleID, &it.Name, &it.Price, &it.Tax,
		&it.Discount, &it.DiscountType, &it.Stock,
		&variations, &it.StockTracked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrItemUnavailable
		}
		return nil, errors.Wrapf(err, "query campaign %d", id)
	}
	if err := json.Unmarshal(variations, &it.Variations); err != nil {
		return nil, errors.Wrapf(err, "decode variations for campaign %d", id)
	}
	it.Campaign = true
	return &it, nil
}

func (r *CatalogRepository) AddOnsByIDs(ctx context.Context, ids []int64) ([]catalog.AddOn, error) {
	rows, err := r.pool.Query(ctx, addOnsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query add-ons")
	}
	defer rows.Close()

	addons := make([]catalog.AddOn, 0, len(ids))
	for rows.Next() {
		var a catalog.AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.Price); err != nil {
			return nil, errors.Wrap(err, "scan add-on")
		}
		addons = append(addons, a)
	}
	return addons, rows.Err()
}
