// Command seed-db loads a small demo marketplace into the database: one
// zone with module pricing, a store with schedule and items, vehicles,
// coupons, and a couple of customers. Intended for local development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/deliverymart/internal/storage/postgres"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	steps := []struct {
		name string
		stmt []string
	}{
		{"business settings", settingStmts},
		{"zones and modules", zoneStmts},
		{"stores", storeStmts},
		{"catalog", catalogStmts},
		{"delivery reference data", deliveryStmts},
		{"coupons", couponStmts},
		{"customers", customerStmts},
		{"reasons", reasonStmts},
	}

	for _, step := range steps {
		slog.Info("seeding", slog.String("step", step.name))
		if err := execAll(ctx, pool, step.stmt); err != nil {
			return errors.Wrapf(err, "seed %s", step.name)
		}
	}

	return nil
}

func execAll(ctx context.Context, pool *pgxpool.Pool, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var settingStmts = []string{
	`INSERT INTO business_settings (key, value) VALUES
		('home_delivery_status', '1'),
		('takeaway_status', '1'),
		('partial_payment_status', '1'),
		('cash_on_delivery', '1'),
		('per_km_shipping_charge', '2'),
		('minimum_shipping_charge', '5'),
		('parcel_per_km_shipping_charge', '1.5'),
		('parcel_minimum_shipping_charge', '4'),
		('tax_included', '0'),
		('free_delivery_over', '200'),
		('additional_charge_status', '0'),
		('additional_charge', '0'),
		('dm_tips_status', '1'),
		('refund_active_status', '1'),
		('order_delivery_verification', '0')
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
}

var zoneStmts = []string{
	`INSERT INTO modules (id, name, module_type, stock_track) VALUES
		(1, 'Food', 'food', FALSE),
		(2, 'Grocery', 'grocery', TRUE),
		(3, 'Parcel', 'parcel', FALSE)
	ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO zones (id, name, coordinates, cash_on_delivery, status) VALUES
		(1, 'Downtown', '{"type":"Polygon","coordinates":[[[90.35,23.70],[90.45,23.70],[90.45,23.80],[90.35,23.80],[90.35,23.70]]]}', TRUE, TRUE)
	ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO zone_modules (zone_id, module_id, per_km_shipping_charge, minimum_shipping_charge, maximum_shipping_charge, maximum_cod_order_amount) VALUES
		(1, 1, 2, 5, 20, 0),
		(1, 2, 2.5, 6, 25, 500)
	ON CONFLICT (zone_id, module_id) DO NOTHING`,
}

var storeStmts = []string{
	`INSERT INTO stores (id, name, zone_id, module_id, latitude, longitude, tax, minimum_order,
		free_delivery, self_delivery_system, schedule_order,
		per_km_shipping_charge, minimum_shipping_charge, maximum_shipping_charge, active) VALUES
		(1, 'Hungry Puppets', 1, 1, 23.74, 90.39, 5, 10, FALSE, FALSE, TRUE, 1.5, 4, 15, TRUE),
		(2, 'Fresh Basket', 1, 2, 23.76, 90.41, 0, 15, FALSE, FALSE, FALSE, 0, 0, 0, TRUE)
	ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO store_schedules (store_id, day, opening_time, closing_time)
		SELECT s.id, d.day, '00:00'::time, '23:59'::time
		FROM stores s CROSS JOIN generate_series(0, 6) AS d(day)
		WHERE NOT EXISTS (SELECT 1 FROM store_schedules WHERE store_id = s.id)`,
	`INSERT INTO store_discounts (store_id, discount, min_purchase, max_discount) VALUES
		(1, 10, 20, 15)
	ON CONFLICT (store_id) DO NOTHING`,
}

var catalogStmts = []string{
	`INSERT INTO items (id, store_id, module_id, name, price, tax, discount, discount_type,
		stock, maximum_cart_quantity, variations, status) VALUES
		(1, 1, 1, 'Margherita Pizza', 12.50, 0, 10, 'percent', 0, 5,
			'[{"type":"small","price":-2},{"type":"large","price":3}]', TRUE),
		(2, 1, 1, 'Beef Burger', 8.00, 0, 0, 'percent', 0, 0, '[]', TRUE),
		(3, 2, 2, 'Organic Milk 1L', 2.20, 0, 0, 'percent', 40, 10, '[]', TRUE),
		(4, 2, 2, 'Brown Eggs 12pc', 3.80, 0, 0.5, 'amount', 25, 0, '[]', TRUE)
	ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO item_campaigns (id, store_id, module_id, name, price, tax, discount, discount_type,
		stock, variations, start_date, end_date, start_time, end_time, status) VALUES
		(1, 2, 2, 'Weekend Fruit Box', 9.90, 0, 0, 'percent', 50, '[]',
			CURRENT_DATE - 7, CURRENT_DATE + 30, '00:00', '23:59', TRUE)
	ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO addons (id, store_id, name, price, status) VALUES
		(1, 1, 'Extra Cheese', 1.50, TRUE),
		(2, 1, 'Dip Sauce', 0.80, TRUE)
	ON CONFLICT (id) DO NOTHING`,
}

var deliveryStmts = []string{
	`INSERT INTO dm_vehicles (id, type, starting_coverage_area, maximum_coverage_area, extra_charges, status) VALUES
		(1, 'bicycle', 0, 5, 0, TRUE),
		(2, 'motorbike', 5, 15, 1, TRUE),
		(3, 'car', 15, 40, 3, TRUE)
	ON CONFLICT (id) DO NOTHING`,
	`INSERT INTO parcel_categories (id, name, parcel_per_km_shipping_charge, parcel_minimum_shipping_charge) VALUES
		(1, 'Documents', 1, 3),
		(2, 'Electronics', NULL, NULL)
	ON CONFLICT (id) DO NOTHING`,
}

var couponStmts = []string{
	`INSERT INTO coupons (code, title, coupon_type, discount, discount_type,
		min_purchase, max_discount, "limit", start_date, expire_date, created_by, store_id, status) VALUES
		('WELCOME20', 'First order: 20% off', 'first_order', 20, 'percent', 0, 10, 1, CURRENT_DATE - 30, CURRENT_DATE + 365, 'admin', NULL, TRUE),
		('FREESHIP', 'Free delivery over 15', 'free_delivery', 0, 'amount', 15, 0, 0, CURRENT_DATE - 30, CURRENT_DATE + 365, 'admin', NULL, TRUE),
		('PUPPETS10', 'Hungry Puppets: 10% off', 'store_wise', 10, 'percent', 0, 5, 3, CURRENT_DATE - 30, CURRENT_DATE + 365, 'vendor', 1, TRUE)
	ON CONFLICT (code) DO NOTHING`,
}

var customerStmts = []string{
	`INSERT INTO customers (id, name, phone, email, zone_id, wallet_balance, order_count) VALUES
		(1, 'Ada Test', '+8801700000001', 'ada@example.test', 1, 50, 0),
		(2, 'Bob Demo', '+8801700000002', 'bob@example.test', 1, 3.5, 12)
	ON CONFLICT (id) DO NOTHING`,
}

var reasonStmts = []string{
	`INSERT INTO cancellation_reasons (reason, user_type, status)
		SELECT r.reason, 'customer', TRUE
		FROM (VALUES ('Ordered by mistake'), ('Delivery taking too long'), ('Found a better price')) AS r(reason)
		WHERE NOT EXISTS (SELECT 1 FROM cancellation_reasons)`,
	`INSERT INTO refund_reasons (reason, status)
		SELECT r.reason, TRUE
		FROM (VALUES ('Item damaged'), ('Wrong item delivered'), ('Item missing')) AS r(reason)
		WHERE NOT EXISTS (SELECT 1 FROM refund_reasons)`,
}
