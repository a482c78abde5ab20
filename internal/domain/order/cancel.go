package order

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CancelOrder cancels a customer's order. Cancellation is allowed only while
// the order is pending, failed, or already canceled; for stock-tracked
// orders every line's placement-time decrement is reversed in the same
// transaction.
func (s *Service) CancelOrder(ctx context.Context, customerID, orderID int64, reason string) error {
	o, err := s.orders.ByIDForCustomer(ctx, orderID, customerID)
	if err != nil {
		return err
	}

	switch o.OrderStatus {
	case StatusPending, StatusFailed, StatusCanceled:
	default:
		return ErrCancelNotAllowed
	}

	details, err := s.orders.Details(ctx, o.ID)
	if err != nil {
		return errors.Wrap(err, "load order details")
	}

	adjustments := stockReversals(details)

	err = s.tx.InTx(ctx, func(tx Tx) error {
		for _, adj := range adjustments {
			if err := tx.RestoreStock(ctx, adj); err != nil {
				return errors.Wrapf(err, "restore stock for item %d", adj.ItemID)
			}
		}

		o.OrderStatus = StatusCanceled
		o.CancellationReason = reason
		o.CanceledBy = "customer"
		return tx.UpdateOrderStatus(ctx, o)
	})
	if err != nil {
		zctx.From(ctx).Error("order cancellation rolled back",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
		return ErrPlacementFailed
	}

	s.notifier.OrderCanceled(ctx, o)
	return nil
}

// stockReversals rebuilds stock adjustments from the persisted line
// snapshots. Lines without stock-tracked items produce no reversal; the
// storage layer's restore is a no-op for untracked rows.
func stockReversals(details []Detail) []StockAdjustment {
	var out []StockAdjustment
	for _, d := range details {
		adj := StockAdjustment{Quantity: d.Quantity}
		switch {
		case d.ItemID != nil:
			adj.ItemID = *d.ItemID
		case d.CampaignID != nil:
			adj.ItemID = *d.CampaignID
			adj.Campaign = true
		default:
			continue
		}

		var variations []struct {
			Type string `json:"type"`
		}
		if len(d.Variation) > 0 {
			if err := json.Unmarshal(d.Variation, &variations); err == nil && len(variations) > 0 {
				adj.Variation = variations[0].Type
			}
		}

		out = append(out, adj)
	}
	return out
}
