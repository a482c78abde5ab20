package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/deliverymart/internal/domain/order"
)

const orderColumns = `id, user_id, store_id, module_id, zone_id,
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
	cancellation_reason, canceled_by, created_at, updated_at`

const orderByIDSQL = `SELECT ` + orderColumns + `
	FROM orders WHERE id = $1 AND user_id = $2`

const orderDetailsSQL = `SELECT id, order_id, item_id, item_campaign_id, store_id,
		item_details, quantity, price, tax_amount, discount_on_item,
		discount_type, variation, add_ons, total_add_on_price, status, created_at
	FROM order_details WHERE order_id = $1 ORDER BY id`

const mostFrequentTipSQL = `SELECT dm_tips FROM orders WHERE dm_tips > 0
	GROUP BY dm_tips ORDER BY count(*) DESC, dm_tips LIMIT 1`

const setPaymentMethodSQL = `UPDATE orders
	SET payment_method = $3, order_status = 'pending', updated_at = now()
	WHERE id = $1 AND user_id = $2`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements the order read side backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) ByIDForCustomer(ctx context.Context, id, customerID int64) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, orderByIDSQL, id, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "query order %d", id)
	}
	return o, nil
}

func (r *OrderRepository) Details(ctx context.Context, orderID int64) ([]order.Detail, error) {
	rows, err := r.pool.Query(ctx, orderDetailsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "query details for order %d", orderID)
	}
	defer rows.Close()

	var details []order.Detail
	for rows.Next() {
		var d order.Detail
		err := rows.Scan(
			&d.ID, &d.OrderID, &d.ItemID, &d.CampaignID, &d.StoreID,
			&d.ItemDetails, &d.Quantity, &d.Price, &d.TaxAmount, &d.DiscountOnItem,
			&d.DiscountType, &d.Variation, &d.AddOns, &d.TotalAddOnPrice, &d.Status, &d.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan order detail")
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (r *OrderRepository) ListByStatuses(ctx context.Context, customerID int64, statuses []string, include bool, limit, offset int64) (*order.ListPage, error) {
	op := "= ANY($2)"
	if !include {
		op = "<> ALL($2)"
	}

	// The window count rides along each row so listing costs one query.
	query := `SELECT ` + orderColumns + `,
		(SELECT count(*) FROM order_details d WHERE d.order_id = orders.id),
		count(*) OVER ()
		FROM orders
		WHERE user_id = $1 AND order_status ` + op + `
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, customerID, statuses, limit, offset)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders for customer %d", customerID)
	}
	defer rows.Close()

	page := &order.ListPage{Limit: limit, Offset: offset}
	for rows.Next() {
		var detailsCount int64
		o, err := scanOrder(rows, &detailsCount, &page.TotalSize)
		if err != nil {
			return nil, errors.Wrap(err, "scan order row")
		}
		o.DetailsCount = detailsCount
		page.Orders = append(page.Orders, *o)
	}
	return page, rows.Err()
}

func (r *OrderRepository) MostFrequentTip(ctx context.Context) (*decimal.Decimal, error) {
	var tip decimal.Decimal
	err := r.pool.QueryRow(ctx, mostFrequentTipSQL).Scan(&tip)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "query most frequent tip")
	}
	return &tip, nil
}

func (r *OrderRepository) SetPaymentMethod(ctx context.Context, orderID, customerID int64, method string) error {
	tag, err := r.pool.Exec(ctx, setPaymentMethodSQL, orderID, customerID, method)
	if err != nil {
		return errors.Wrapf(err, "switch payment method for order %d", orderID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// scanOrder scans one orderColumns row; extra targets follow the fixed
// column set (listing appends details and window counts).
func scanOrder(row pgx.Row, extra ...any) (*order.Order, error) {
	var (
		o                  order.Order
		address, receiver  []byte
		attachment         []byte
		couponCreatedBy    *string
		freeDeliveryBy     *string
		chargePayer        *string
		cancellationReason *string
		canceledBy         *string
	)
	targets := []any{
		&o.ID, &o.CustomerID, &o.StoreID, &o.ModuleID, &o.ZoneID,
		&o.OrderType, &o.OrderStatus, &o.PaymentMethod, &o.PaymentStatus,
		&o.OrderAmount, &o.DeliveryCharge, &o.OriginalDeliveryCharge,
		&o.StoreDiscountAmount, &o.CouponDiscountAmount,
		&o.CouponCode, &o.CouponDiscountTitle, &couponCreatedBy, &freeDeliveryBy,
		&o.TotalTaxAmount, &o.TaxPercentage, &o.TaxStatus,
		&o.AdditionalCharge, &o.DMTips, &o.PartiallyPaidAmount, &o.DiscountOnProductBy,
		&address, &receiver, &o.ParcelCategoryID, &chargePayer,
		&o.ScheduleAt, &o.Scheduled, &o.PrescriptionOrder, &o.Cutlery,
		&o.OTP, &o.DMVehicleID, &o.Distance,
		&o.OrderNote, &o.UnavailableItemNote, &o.DeliveryInstruction, &attachment,
		&cancellationReason, &canceledBy, &o.CreatedAt, &o.UpdatedAt,
	}
	targets = append(targets, extra...)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}

	o.CouponCreatedBy = couponCreatedBy
	o.FreeDeliveryBy = freeDeliveryBy
	if chargePayer != nil {
		o.ChargePayer = *chargePayer
	}
	if cancellationReason != nil {
		o.CancellationReason = *cancellationReason
	}
	if canceledBy != nil {
		o.CanceledBy = *canceledBy
	}

	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.DeliveryAddress); err != nil {
			return nil, errors.Wrap(err, "decode delivery address")
		}
	}
	if len(receiver) > 0 {
		if err := json.Unmarshal(receiver, &o.ReceiverDetails); err != nil {
			return nil, errors.Wrap(err, "decode receiver details")
		}
	}
	if len(attachment) > 0 {
		if err := json.Unmarshal(attachment, &o.OrderAttachment); err != nil {
			return nil, errors.Wrap(err, "decode order attachment")
		}
	}

	return &o, nil
}
