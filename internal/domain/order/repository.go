package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by the placement guards and the commit path.
var (
	ErrNotFound = errors.New("order not found")

	ErrHomeDeliveryDisabled   = errors.New("home delivery is not active")
	ErrTakeawayDisabled       = errors.New("take away is not active")
	ErrPartialPaymentDisabled = errors.New("partial payment is not active")
	ErrCODDisabled            = errors.New("cash on delivery is not active")

	ErrScheduleInPast       = errors.New("cannot schedule an order in the past")
	ErrScheduleNotAvailable = errors.New("scheduled orders not available for store")
	ErrStoreClosed          = errors.New("store is closed at order time")

	ErrInsufficientBalance  = errors.New("insufficient wallet balance")
	ErrPartialNotApplicable = errors.New("order amount must be greater than wallet amount")
	ErrCODLimitExceeded     = errors.New("amount crossed the maximum cash on delivery limit")

	ErrCancelNotAllowed        = errors.New("order cannot be canceled after confirmation")
	ErrPaymentSwitchNotAllowed = errors.New("payment method cannot be changed for this order")
	ErrRefundNotAllowed        = errors.New("order is not eligible for refund")
	ErrRefundDisabled          = errors.New("refund requests are not active")

	// ErrPlacementFailed is the single uniform failure surfaced when the
	// commit sequence aborts; the original cause is logged, never leaked.
	ErrPlacementFailed = errors.New("failed to place order")

	// ErrIDConflict signals a duplicate order-id allocation; the
	// orchestrator retries the transaction exactly once.
	ErrIDConflict = errors.New("order id conflict")

	// ErrStockConflict signals a lost stock race detected by the guarded
	// decrement inside the commit.
	ErrStockConflict = errors.New("stock changed during placement")
)

// MinimumOrderError indicates the store's minimum order value was not met by
// the raw product + add-on subtotal.
type MinimumOrderError struct {
	Minimum decimal.Decimal
}

func (e *MinimumOrderError) Error() string {
	return "you need to order at least " + e.Minimum.String()
}

// ListPage is the common paginated listing envelope.
type ListPage struct {
	TotalSize int64
	Limit     int64
	Offset    int64
	Orders    []Order
}

// Repository provides read access to committed orders.
type Repository interface {
	// ByIDForCustomer returns the order when it belongs to the customer,
	// or ErrNotFound.
	ByIDForCustomer(ctx context.Context, id, customerID int64) (*Order, error)
	Details(ctx context.Context, orderID int64) ([]Detail, error)
	// ListByStatuses pages through a customer's orders filtered on (or
	// excluding) the given statuses.
	ListByStatuses(ctx context.Context, customerID int64, statuses []string, include bool, limit, offset int64) (*ListPage, error)
	// MostFrequentTip returns the modal nonzero dm_tips value, or nil
	// when no tipped order exists.
	MostFrequentTip(ctx context.Context) (*decimal.Decimal, error)
	// SetPaymentMethod switches an order back to cash on delivery and
	// re-enters the pending state.
	SetPaymentMethod(ctx context.Context, orderID, customerID int64, method string) error
}

// CustomerRepository reads the customer slice the engine needs.
type CustomerRepository interface {
	ByID(ctx context.Context, id int64) (*Customer, error)
}

// Tx bundles the write operations available inside one placement,
// cancellation, or refund transaction. Implementations run every call on the
// same database transaction; counters use row-level atomic increments.
type Tx interface {
	// AllocateID assigns the next order id: base + running count, falling
	// back to max(existing)+1 on collision. Callers hold the allocation
	// advisory lock for the duration of the transaction.
	AllocateID(ctx context.Context, base int64) (int64, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertDetails(ctx context.Context, details []Detail) error
	// DecrementStock applies a guarded atomic decrement and returns
	// ErrStockConflict when the remaining stock no longer covers the
	// quantity.
	DecrementStock(ctx context.Context, adj StockAdjustment) error
	// RestoreStock reverses a placement-time decrement.
	RestoreStock(ctx context.Context, adj StockAdjustment) error
	IncrementStoreOrders(ctx context.Context, storeID int64) error
	UpdateCustomerZone(ctx context.Context, customerID, zoneID int64) error
	// DebitWallet posts a wallet debit, failing with
	// ErrInsufficientBalance when the guarded balance update matches no
	// row.
	DebitWallet(ctx context.Context, customerID int64, amount decimal.Decimal, reason string, orderID int64) error
	InsertPayment(ctx context.Context, p Payment) error
	IncrementCouponUses(ctx context.Context, couponID int64) error
	UpdateOrderStatus(ctx context.Context, o *Order) error
	InsertRefund(ctx context.Context, r *Refund) error
}

// TxManager opens one transaction per placement request. The callback either
// commits as a whole or rolls back as a whole; no partial order is ever
// visible.
type TxManager interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
