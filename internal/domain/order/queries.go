package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// Reason is a predefined cancellation or refund reason shown to customers.
type Reason struct {
	ID     int64
	Reason string
}

// ReasonRepository lists the active predefined reasons.
type ReasonRepository interface {
	CancellationReasons(ctx context.Context) ([]Reason, error)
	RefundReasons(ctx context.Context) ([]Reason, error)
}

// RunningOrders pages through the customer's orders still in flight, i.e.
// everything outside the terminal statuses.
func (s *Service) RunningOrders(ctx context.Context, customerID, limit, offset int64) (*ListPage, error) {
	return s.orders.ListByStatuses(ctx, customerID, TerminalStatuses, false, limit, offset)
}

// OrderHistory pages through the customer's settled orders.
func (s *Service) OrderHistory(ctx context.Context, customerID, limit, offset int64) (*ListPage, error) {
	return s.orders.ListByStatuses(ctx, customerID, TerminalStatuses, true, limit, offset)
}

// OrderDetails returns the order together with its lines. Parcel and
// prescription orders carry no lines; the order itself is the detail.
func (s *Service) OrderDetails(ctx context.Context, orderID, customerID int64) (*Order, []Detail, error) {
	o, err := s.orders.ByIDForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, nil, err
	}
	if o.OrderType == TypeParcel || o.PrescriptionOrder {
		return o, nil, nil
	}
	details, err := s.orders.Details(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return o, details, nil
}

// TrackOrder returns the current state of one of the customer's orders.
func (s *Service) TrackOrder(ctx context.Context, orderID, customerID int64) (*Order, error) {
	return s.orders.ByIDForCustomer(ctx, orderID, customerID)
}

// MostFrequentTip exposes the modal tip across paid orders for the tip
// suggestion widget. Nil means no tipped order exists yet.
func (s *Service) MostFrequentTip(ctx context.Context) (*decimal.Decimal, error) {
	return s.orders.MostFrequentTip(ctx)
}

// SwitchToCashOnDelivery flips an unpaid order off its digital payment
// method. The order re-enters the pending state so the store sees it again.
func (s *Service) SwitchToCashOnDelivery(ctx context.Context, orderID, customerID int64) error {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return err
	}
	if !cfg.CashOnDelivery {
		return ErrCODDisabled
	}

	o, err := s.orders.ByIDForCustomer(ctx, orderID, customerID)
	if err != nil {
		return err
	}
	if o.PaymentStatus != PayStatusUnpaid {
		return ErrPaymentSwitchNotAllowed
	}
	switch o.OrderStatus {
	case StatusPending, StatusFailed:
	default:
		return ErrPaymentSwitchNotAllowed
	}

	return s.orders.SetPaymentMethod(ctx, orderID, customerID, PaymentCashOnDelivery)
}
