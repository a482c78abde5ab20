// Package notify publishes post-commit order events. Delivery is
// best-effort: a failed publish is logged and never propagated, so a broker
// outage cannot fail an already committed order.
package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/deliverymart/internal/domain/order"
	"github.com/xenking/deliverymart/internal/settings"
)

// Event topics.
const (
	TopicOrderPlaced     = "order.placed"
	TopicOrderCanceled   = "order.canceled"
	TopicRefundRequested = "refund.requested"
)

// OrderEvent is the payload published for placement and cancellation events.
type OrderEvent struct {
	OrderID       int64     `json:"order_id"`
	CustomerID    int64     `json:"customer_id"`
	StoreID       *int64    `json:"store_id,omitempty"`
	OrderType     string    `json:"order_type"`
	OrderStatus   string    `json:"order_status"`
	PaymentMethod string    `json:"payment_method"`
	OrderAmount   string    `json:"order_amount"`
	EventTime     time.Time `json:"event_time"`
}

// RefundEvent is the payload published when a refund request opens.
type RefundEvent struct {
	OrderID      int64     `json:"order_id"`
	CustomerID   int64     `json:"customer_id"`
	RefundAmount string    `json:"refund_amount"`
	Reason       string    `json:"reason"`
	EventTime    time.Time `json:"event_time"`
}

// Mailer sends customer-facing order mail. Implementations live at the edge;
// the dispatcher only decides whether a mail is due.
type Mailer interface {
	OrderPlacedMail(ctx context.Context, o *order.Order) error
	OrderVerificationMail(ctx context.Context, o *order.Order) error
	RefundRequestMail(ctx context.Context, o *order.Order, r *order.Refund) error
}

var _ order.Notifier = (*Dispatcher)(nil)

// Dispatcher fans committed order events out to Kafka and, when the matching
// mail flags are on, to the mailer.
type Dispatcher struct {
	producer sarama.SyncProducer
	settings settings.Reader
	mailer   Mailer

	now func() time.Time
}

// NewDispatcher creates a Dispatcher on an established producer. The mailer
// may be nil when outbound mail is not configured.
func NewDispatcher(producer sarama.SyncProducer, cfg settings.Reader, mailer Mailer) *Dispatcher {
	return &Dispatcher{
		producer: producer,
		settings: cfg,
		mailer:   mailer,
		now:      time.Now,
	}
}

// NewSyncProducer connects a sarama sync producer suitable for the
// dispatcher: all-replica acks with bounded retries.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "connect kafka producer")
	}
	return producer, nil
}

func (d *Dispatcher) OrderPlaced(ctx context.Context, o *order.Order) {
	d.publish(ctx, TopicOrderPlaced, o.ID, OrderEvent{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		StoreID:       o.StoreID,
		OrderType:     o.OrderType,
		OrderStatus:   o.OrderStatus,
		PaymentMethod: o.PaymentMethod,
		OrderAmount:   o.OrderAmount.String(),
		EventTime:     d.now(),
	})

	d.mail(ctx, o, nil)
}

func (d *Dispatcher) OrderCanceled(ctx context.Context, o *order.Order) {
	d.publish(ctx, TopicOrderCanceled, o.ID, OrderEvent{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		StoreID:       o.StoreID,
		OrderType:     o.OrderType,
		OrderStatus:   o.OrderStatus,
		PaymentMethod: o.PaymentMethod,
		OrderAmount:   o.OrderAmount.String(),
		EventTime:     d.now(),
	})
}

func (d *Dispatcher) RefundRequested(ctx context.Context, o *order.Order, r *order.Refund) {
	d.publish(ctx, TopicRefundRequested, o.ID, RefundEvent{
		OrderID:      o.ID,
		CustomerID:   o.CustomerID,
		RefundAmount: r.RefundAmount.String(),
		Reason:       r.CustomerReason,
		EventTime:    d.now(),
	})

	cfg, err := d.settings.Load(ctx)
	if err != nil || d.mailer == nil || !cfg.RefundRequestMail {
		return
	}
	if err := d.mailer.RefundRequestMail(ctx, o, r); err != nil {
		zctx.From(ctx).Warn("refund request mail failed",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) publish(ctx context.Context, topic string, orderID int64, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		zctx.From(ctx).Error("encode order event",
			zap.String("topic", topic),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return
	}

	partition, offset, err := d.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(orderID, 10)),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		zctx.From(ctx).Warn("order event publish failed",
			zap.String("topic", topic),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return
	}

	zctx.From(ctx).Debug("order event published",
		zap.String("topic", topic),
		zap.Int64("order_id", orderID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}

// mail sends the placement mails the platform flags enable. A nil mailer
// disables mail entirely.
func (d *Dispatcher) mail(ctx context.Context, o *order.Order, _ *order.Refund) {
	if d.mailer == nil {
		return
	}
	cfg, err := d.settings.Load(ctx)
	if err != nil {
		zctx.From(ctx).Warn("load settings for mail", zap.Error(err))
		return
	}

	if cfg.PlaceOrderMail {
		if err := d.mailer.OrderPlacedMail(ctx, o); err != nil {
			zctx.From(ctx).Warn("order placed mail failed",
				zap.Int64("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
	if cfg.OrderVerificationMail && cfg.OrderVerification {
		if err := d.mailer.OrderVerificationMail(ctx, o); err != nil {
			zctx.From(ctx).Warn("order verification mail failed",
				zap.Int64("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
}

// Nop is a Notifier that drops every event; tests and local runs without a
// broker use it.
type Nop struct{}

var _ order.Notifier = Nop{}

func (Nop) OrderPlaced(context.Context, *order.Order)                    {}
func (Nop) OrderCanceled(context.Context, *order.Order)                  {}
func (Nop) RefundRequested(context.Context, *order.Order, *order.Refund) {}
