package order

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RefundInput is a customer's refund request. The refundable amount is
// derived from the committed order, never taken from the client.
type RefundInput struct {
	CustomerID int64
	OrderID    int64
	Reason     string
	Note       string
	Method     string
	Images     []string
}

// RequestRefund opens a refund for a delivered, paid order. The delivery fee
// and tip are never refundable; the refund insert and the order's transition
// to refund_requested commit atomically.
func (s *Service) RequestRefund(ctx context.Context, in RefundInput) error {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return err
	}
	if !cfg.RefundActive {
		return ErrRefundDisabled
	}

	o, err := s.orders.ByIDForCustomer(ctx, in.OrderID, in.CustomerID)
	if err != nil {
		return err
	}
	if o.OrderStatus != StatusDelivered || o.PaymentStatus != PayStatusPaid {
		return ErrRefundNotAllowed
	}

	method := in.Method
	if method == "" {
		method = "wallet"
	}

	refund := &Refund{
		OrderID:        o.ID,
		CustomerID:     o.CustomerID,
		OrderStatus:    o.OrderStatus,
		RefundStatus:   StatusPending,
		RefundMethod:   method,
		CustomerReason: in.Reason,
		CustomerNote:   in.Note,
		RefundAmount:   s.rounder.Round(o.OrderAmount.Sub(o.DeliveryCharge).Sub(o.DMTips)),
		Images:         in.Images,
	}

	err = s.tx.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertRefund(ctx, refund); err != nil {
			return err
		}
		o.OrderStatus = StatusRefundRequested
		return tx.UpdateOrderStatus(ctx, o)
	})
	if err != nil {
		zctx.From(ctx).Error("refund request rolled back",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
		return ErrPlacementFailed
	}

	s.notifier.RefundRequested(ctx, o, refund)
	return nil
}
