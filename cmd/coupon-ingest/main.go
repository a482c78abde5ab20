// Command coupon-ingest loads promo codes from the couponbaseN.gz dumps into
// the coupons table. A code is only admitted when it occurs in at least two
// of the three dumps; membership is cross-checked with per-file bloom
// filters so the dumps never have to fit in memory at once.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/deliverymart/internal/storage/postgres"
)

const (
	dumpCount = 3

	// Sized for the production dumps: roughly a hundred million codes each.
	filterCapacity      = 120_000_000
	filterFalsePositive = 0.001

	minCodeLen = 8
	maxCodeLen = 10

	logEvery       = 10_000_000
	upsertBatchLen = 500
)

// codeRule is the coupon row written for a known promo code. Codes without
// a rule fall back to fallbackRule.
type codeRule struct {
	couponType   string
	discountType string
	discount     string
	minPurchase  string
	maxDiscount  string
	title        string
}

var codeRules = map[string]codeRule{
	"FREESHIP": {couponType: "free_delivery", discountType: "amount", discount: "0", minPurchase: "15", maxDiscount: "0", title: "Free delivery over 15"},
	"WELCOME1": {couponType: "first_order", discountType: "percent", discount: "20", minPurchase: "0", maxDiscount: "10", title: "First order: 20% off"},
	"FIFTYOFF": {couponType: "default", discountType: "percent", discount: "50", minPurchase: "30", maxDiscount: "25", title: "50% off entire order"},
	"TENBUCKS": {couponType: "default", discountType: "amount", discount: "10", minPurchase: "20", maxDiscount: "0", title: "10 off your order"},
	"HAPPYHRS": {couponType: "default", discountType: "percent", discount: "18", minPurchase: "0", maxDiscount: "12", title: "Happy Hours: 18% off"},
}

var fallbackRule = codeRule{
	couponType:   "default",
	discountType: "percent",
	discount:     "10",
	minPurchase:  "0",
	maxDiscount:  "5",
	title:        "Valid promo code: 10% off",
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbaseN.gz files")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	dumps := make([]string, dumpCount)
	for i := range dumpCount {
		dumps[i] = filepath.Join(dataDir, fmt.Sprintf("couponbase%d.gz", i+1))
		if _, err := os.Stat(dumps[i]); err != nil {
			return errors.Wrapf(err, "check dump %s", dumps[i])
		}
	}

	slog.Info("pass 1: sketching dumps into bloom filters", slog.Int("dumps", dumpCount))

	filters, err := sketchDumps(ctx, dumps)
	if err != nil {
		return errors.Wrap(err, "sketch dumps")
	}

	slog.Info("pass 2: cross-checking codes between dumps")

	admitted, err := crossCheck(ctx, dumps, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check dumps")
	}

	slog.Info("codes admitted", slog.Int("count", len(admitted)))

	if len(admitted) == 0 {
		slog.Info("nothing to insert")
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := upsertCoupons(ctx, pool, admitted); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}

	return nil
}

// sketchDumps builds one bloom filter per dump, all dumps in parallel.
func sketchDumps(ctx context.Context, dumps []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range dumps {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(filterCapacity, filterFalsePositive)
			var total uint64

			err := scanDump(ctx, path, func(code string) {
				filter.AddString(code)
				total++
				if total%logEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("dump", i+1), slog.Uint64("codes", total))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "sketch dump %d", i+1)
			}

			slog.Info("pass 1 dump done", slog.Int("dump", i+1), slog.Uint64("codes", total))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// crossCheck re-streams every dump and keeps codes that some other dump's
// filter also claims to contain. A code confirmed from two or more source
// dumps is admitted; the threshold also discards most bloom false positives,
// which would be confirmed from a single source only.
func crossCheck(ctx context.Context, dumps []string, filters []*bloom.BloomFilter) ([]string, error) {
	confirmed := make([]map[string]struct{}, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range dumps {
		g.Go(func() error {
			found := make(map[string]struct{})
			var total uint64

			err := scanDump(ctx, path, func(code string) {
				total++
				if total%logEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("dump", i+1), slog.Uint64("codes", total))
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						found[code] = struct{}{}
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "cross-check dump %d", i+1)
			}

			slog.Info("pass 2 dump done",
				slog.Int("dump", i+1),
				slog.Uint64("codes", total),
				slog.Int("confirmed", len(found)),
			)
			confirmed[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make(map[string]int)
	for _, found := range confirmed {
		for code := range found {
			sources[code]++
		}
	}

	var admitted []string
	for code, n := range sources {
		if n >= 2 {
			admitted = append(admitted, code)
		}
	}
	return admitted, nil
}

// scanDump streams a gzip dump line by line, passing codes of plausible
// length to fn.
func scanDump(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := scanner.Text()
		if len(code) >= minCodeLen && len(code) <= maxCodeLen {
			fn(code)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

const upsertCouponSQL = `INSERT INTO coupons (
		code, title, coupon_type, discount, discount_type,
		min_purchase, max_discount, "limit", created_by, status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 'admin', TRUE)
	ON CONFLICT (code) DO UPDATE SET
		title = EXCLUDED.title,
		coupon_type = EXCLUDED.coupon_type,
		discount = EXCLUDED.discount,
		discount_type = EXCLUDED.discount_type,
		min_purchase = EXCLUDED.min_purchase,
		max_discount = EXCLUDED.max_discount,
		status = TRUE`

// upsertCoupons writes admitted codes in batches to cut roundtrips; each
// batch is sent as a single pgx pipeline.
func upsertCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))

	batch := &pgx.Batch{}
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "send batch")
		}
		batch = &pgx.Batch{}
		return nil
	}

	for i, code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = fallbackRule
		}

		discount, err := decimal.NewFromString(rule.discount)
		if err != nil {
			return errors.Wrapf(err, "parse discount for code %s", code)
		}
		minPurchase, err := decimal.NewFromString(rule.minPurchase)
		if err != nil {
			return errors.Wrapf(err, "parse min purchase for code %s", code)
		}
		maxDiscount, err := decimal.NewFromString(rule.maxDiscount)
		if err != nil {
			return errors.Wrapf(err, "parse max discount for code %s", code)
		}

		batch.Queue(upsertCouponSQL,
			code, rule.title, rule.couponType, discount, rule.discountType,
			minPurchase, maxDiscount,
		)

		if batch.Len() >= upsertBatchLen {
			if err := flush(); err != nil {
				return err
			}
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	if err := flush(); err != nil {
		return err
	}

	slog.Info("write complete", slog.Int("written", len(codes)))
	return nil
}
