package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/deliverymart/internal/domain/order"
)

// orderIDLockKey serializes order-id allocation across concurrent placements.
const orderIDLockKey = 815001

const insertOrderSQL = `INSERT INTO orders (
		id, user_id, store_id, module_id, zone_id,
		order_type, order_status, payment_method, payment_status,
		order_amount, delivery_charge, original_delivery_charge,
		store_discount_amount, coupon_discount_amount,
		coupon_code, coupon_discount_title, coupon_created_by, free_delivery_by,
		total_tax_amount, tax_percentage, tax_status,
		additional_charge, dm_tips, partially_paid_amount, discount_on_product_by,
		delivery_address, receiver_details, parcel_category_id, charge_payer,
		schedule_at, scheduled, prescription_order, cutlery,
		otp, dm_vehicle_id, distance,
		order_note, unavailable_item_note, delivery_instruction, order_attachment,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
		$31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
		$41, $42
	)`

const insertDetailSQL = `INSERT INTO order_details (
		order_id, item_id, item_campaign_id, store_id, item_details,
		quantity, price, tax_amount, discount_on_item, discount_type,
		variation, add_ons, total_add_on_price, status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// Stock moves as a guarded atomic decrement: the row is touched only while
// the remaining stock still covers the quantity, and a selected variation's
// embedded stock must cover it too. Zero rows affected means a lost race.
const decrementItemStockSQL = `UPDATE items SET
		stock = stock - $3,
		variations = CASE WHEN $2 = '' THEN variations ELSE (
			SELECT coalesce(jsonb_agg(
				CASE WHEN v->>'type' = $2 AND v ? 'stock'
					THEN jsonb_set(v, '{stock}', to_jsonb((v->>'stock')::bigint - $3))
					ELSE v
				END), '[]'::jsonb)
			FROM jsonb_array_elements(variations) AS v
		) END
	WHERE id = $1 AND stock >= $3
		AND ($2 = '' OR NOT EXISTS (
			SELECT 1 FROM jsonb_array_elements(variations) AS v
			WHERE v->>'type' = $2 AND v ? 'stock' AND (v->>'stock')::bigint < $3))`

const restoreItemStockSQL = `UPDATE items SET
		stock = stock + $3,
		variations = CASE WHEN $2 = '' THEN variations ELSE (
			SELECT coalesce(jsonb_agg(
				CASE WHEN v->>'type' = $2 AND v ? 'stock'
					THEN jsonb_set(v, '{stock}', to_jsonb((v->>'stock')::bigint + $3))
					ELSE v
				END), '[]'::jsonb)
			FROM jsonb_array_elements(variations) AS v
		) END
	WHERE id = $1
		AND EXISTS (SELECT 1 FROM modules m WHERE m.id = items.module_id AND m.stock_track)`

// DebitWallet's guard mirrors the stock guard: the balance row updates only
// while it still covers the amount.
const debitWalletSQL = `UPDATE customers
	SET wallet_balance = wallet_balance - $2
	WHERE id = $1 AND wallet_balance >= $2`

const insertWalletTxSQL = `INSERT INTO wallet_transactions (id, user_id, order_id, amount, reason)
	VALUES ($1, $2, $3, $4, $5)`

const insertPaymentSQL = `INSERT INTO order_payments (id, order_id, amount, payment_status, payment_method)
	VALUES ($1, $2, $3, $4, $5)`

const updateOrderStatusSQL = `UPDATE orders SET
		order_status = $3, cancellation_reason = $4, canceled_by = $5, updated_at = now()
	WHERE id = $1 AND user_id = $2`

const insertRefundSQL = `INSERT INTO refunds (
		order_id, user_id, order_status, refund_status, refund_method,
		customer_reason, customer_note, refund_amount, image
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

var _ order.TxManager = (*TxManager)(nil)

// TxManager opens one database transaction per placement, cancellation, or
// refund and hands the callback a Tx view bound to it.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager that uses the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&orderTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

type orderTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*orderTx)(nil)

// AllocateID assigns base + running order count, falling back to max(id)+1
// when the candidate is already taken. The advisory lock is transaction
// scoped; it releases on commit or rollback.
func (t *orderTx) AllocateID(ctx context.Context, base int64) (int64, error) {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, orderIDLockKey); err != nil {
		return 0, errors.Wrap(err, "acquire id allocation lock")
	}

	var id int64
	if err := t.tx.QueryRow(ctx, `SELECT $1::bigint + count(*) FROM orders`, base).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "count orders")
	}

	var taken bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&taken); err != nil {
		return 0, errors.Wrap(err, "check order id")
	}
	if taken {
		if err := t.tx.QueryRow(ctx, `SELECT coalesce(max(id), $1::bigint) + 1 FROM orders`, base).Scan(&id); err != nil {
			return 0, errors.Wrap(err, "next order id")
		}
	}

	return id, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	address, err := marshalNullable(o.DeliveryAddress)
	if err != nil {
		return errors.Wrap(err, "encode delivery address")
	}
	receiver, err := marshalNullable(o.ReceiverDetails)
	if err != nil {
		return errors.Wrap(err, "encode receiver details")
	}
	var attachment []byte
	if len(o.OrderAttachment) > 0 {
		attachment, err = json.Marshal(o.OrderAttachment)
		if err != nil {
			return errors.Wrap(err, "encode order attachment")
		}
	}

	_, err = t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.StoreID, o.ModuleID, o.ZoneID,
		o.OrderType, o.OrderStatus, o.PaymentMethod, o.PaymentStatus,
		o.OrderAmount, o.DeliveryCharge, o.OriginalDeliveryCharge,
		o.StoreDiscountAmount, o.CouponDiscountAmount,
		o.CouponCode, o.CouponDiscountTitle, o.CouponCreatedBy, o.FreeDeliveryBy,
		o.TotalTaxAmount, o.TaxPercentage, o.TaxStatus,
		o.AdditionalCharge, o.DMTips, o.PartiallyPaidAmount, o.DiscountOnProductBy,
		address, receiver, o.ParcelCategoryID, nullableString(o.ChargePayer),
		o.ScheduleAt, o.Scheduled, o.PrescriptionOrder, o.Cutlery,
		o.OTP, o.DMVehicleID, o.Distance,
		o.OrderNote, o.UnavailableItemNote, o.DeliveryInstruction, attachment,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrIDConflict
		}
		return errors.Wrapf(err, "insert order %d", o.ID)
	}
	return nil
}

func (t *orderTx) InsertDetails(ctx context.Context, details []order.Detail) error {
	for i := range details {
		d := &details[i]
		_, err := t.tx.Exec(ctx, insertDetailSQL,
			d.OrderID, d.ItemID, d.CampaignID, d.StoreID, d.ItemDetails,
			d.Quantity, d.Price, d.TaxAmount, d.DiscountOnItem, d.DiscountType,
			d.Variation, d.AddOns, d.TotalAddOnPrice, d.Status,
		)
		if err != nil {
			return errors.Wrapf(err, "insert detail for order %d", d.OrderID)
		}
	}
	return nil
}

func (t *orderTx) DecrementStock(ctx context.Context, adj order.StockAdjustment) error {
	query := decrementItemStockSQL
	if adj.Campaign {
		query = campaignStockSQL(decrementItemStockSQL)
	}
	tag, err := t.tx.Exec(ctx, query, adj.ItemID, adj.Variation, adj.Quantity)
	if err != nil {
		return errors.Wrapf(err, "decrement stock for item %d", adj.ItemID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStockConflict
	}
	return nil
}

func (t *orderTx) RestoreStock(ctx context.Context, adj order.StockAdjustment) error {
	query := restoreItemStockSQL
	if adj.Campaign {
		query = campaignStockSQL(restoreItemStockSQL)
	}
	if _, err := t.tx.Exec(ctx, query, adj.ItemID, adj.Variation, adj.Quantity); err != nil {
		return errors.Wrapf(err, "restore stock for item %d", adj.ItemID)
	}
	return nil
}

func (t *orderTx) IncrementStoreOrders(ctx context.Context, storeID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE stores SET total_order = total_order + 1 WHERE id = $1`, storeID)
	if err != nil {
		return errors.Wrapf(err, "increment orders for store %d", storeID)
	}
	return nil
}

func (t *orderTx) UpdateCustomerZone(ctx context.Context, customerID, zoneID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE customers SET zone_id = $2 WHERE id = $1`, customerID, zoneID)
	if err != nil {
		return errors.Wrapf(err, "update zone for customer %d", customerID)
	}
	return nil
}

func (t *orderTx) DebitWallet(ctx context.Context, customerID int64, amount decimal.Decimal, reason string, orderID int64) error {
	tag, err := t.tx.Exec(ctx, debitWalletSQL, customerID, amount)
	if err != nil {
		return errors.Wrapf(err, "debit wallet for customer %d", customerID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrInsufficientBalance
	}

	_, err = t.tx.Exec(ctx, insertWalletTxSQL,
		uuid.NewString(), customerID, orderID, amount.Neg(), reason,
	)
	if err != nil {
		return errors.Wrap(err, "insert wallet transaction")
	}
	return nil
}

func (t *orderTx) InsertPayment(ctx context.Context, p order.Payment) error {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := t.tx.Exec(ctx, insertPaymentSQL,
		id, p.OrderID, p.Amount, p.PaymentStatus, p.PaymentMethod,
	)
	if err != nil {
		return errors.Wrapf(err, "insert payment for order %d", p.OrderID)
	}
	return nil
}

func (t *orderTx) IncrementCouponUses(ctx context.Context, couponID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE coupons SET total_uses = total_uses + 1 WHERE id = $1`, couponID)
	if err != nil {
		return errors.Wrapf(err, "increment uses for coupon %d", couponID)
	}
	return nil
}

func (t *orderTx) UpdateOrderStatus(ctx context.Context, o *order.Order) error {
	tag, err := t.tx.Exec(ctx, updateOrderStatusSQL,
		o.ID, o.CustomerID, o.OrderStatus,
		nullableString(o.CancellationReason), nullableString(o.CanceledBy),
	)
	if err != nil {
		return errors.Wrapf(err, "update status for order %d", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (t *orderTx) InsertRefund(ctx context.Context, r *order.Refund) error {
	images, err := json.Marshal(r.Images)
	if err != nil {
		return errors.Wrap(err, "encode refund images")
	}
	_, err = t.tx.Exec(ctx, insertRefundSQL,
		r.OrderID, r.CustomerID, r.OrderStatus, r.RefundStatus, r.RefundMethod,
		r.CustomerReason, r.CustomerNote, r.RefundAmount, images,
	)
	if err != nil {
		return errors.Wrapf(err, "insert refund for order %d", r.OrderID)
	}
	return nil
}

// campaignStockSQL retargets a stock statement from items to item_campaigns;
// the two tables share the stock and variations column layout.
func campaignStockSQL(itemSQL string) string {
	s := strings.ReplaceAll(itemSQL, "UPDATE items", "UPDATE item_campaigns")
	return strings.ReplaceAll(s, "items.module_id", "item_campaigns.module_id")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
