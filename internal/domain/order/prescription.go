package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/deliverymart/internal/domain/coupon"
	"github.com/xenking/deliverymart/internal/domain/delivery"
	"github.com/xenking/deliverymart/internal/domain/pricing"
)

// PlacePrescriptionOrder places an attachment-driven order with no product
// lines. Pharmacies price the prescription after review, so the order
// carries only the delivery charge; payment is cash on delivery.
func (s *Service) PlacePrescriptionOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}

	if !cfg.HomeDelivery {
		return nil, ErrHomeDeliveryDisabled
	}
	if len(req.Attachments) == 0 {
		return nil, errors.New("order attachment required")
	}

	scheduleAt, scheduled := s.scheduleTime(req)
	if scheduled && scheduleAt.Before(s.now()) {
		return nil, ErrScheduleInPast
	}

	customer, err := s.customers.ByID(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "load customer")
	}

	st, err := s.openStore(ctx, req.StoreID, scheduleAt, scheduled)
	if err != nil {
		return nil, err
	}

	cpn, err := s.resolveCoupon(ctx, req, customer, st)
	if err != nil {
		return nil, err
	}
	couponFree := cpn != nil && cpn.Type == coupon.TypeFreeDelivery

	// The order settles on delivery, so cash on delivery must be enabled
	// platform-wide or for the store's zone.
	if !cfg.CashOnDelivery {
		zones, err := s.zonePricing.ByIDs(ctx, []int64{st.ZoneID})
		if err != nil {
			return nil, errors.Wrap(err, "load store zone")
		}
		if len(zones) == 0 || !zones[0].CashOnDelivery {
			return nil, ErrCODDisabled
		}
	}

	vehicle, err := s.vehicleForDistance(ctx, req.Distance)
	if err != nil {
		return nil, err
	}

	moduleTier, _, err := s.moduleTier(ctx, st.ZoneID, req.ModuleID)
	if err != nil {
		return nil, err
	}

	quote := delivery.Calculate(delivery.Input{
		Distance:             req.Distance,
		ModuleTier:           moduleTier,
		StoreTier:            storeTier(st),
		DefaultTier:          delivery.Tier{PerKm: cfg.PerKmShippingCharge, Minimum: cfg.MinimumShippingCharge},
		StoreFreeDelivery:    st.FreeDelivery,
		StoreSelfDelivery:    st.SelfDelivery,
		CouponFreeDelivery:   couponFree,
		FreeDeliveryByVendor: couponFree && cpn.CreatedBy == "vendor",
		Vehicle:              vehicle,
	})

	zoneID, err := s.locateZone(ctx, req.Latitude, req.Longitude, []int64{st.ZoneID}, req.ZoneIDs)
	if err != nil {
		return nil, err
	}

	deliveryCharge := s.rounder.Round(quote.Charge)
	var freeDeliveryBy *string
	if couponFree {
		freeDeliveryBy = ptr(cpn.CreatedBy)
	}
	if cfg.FreeDeliveryOver != nil && cfg.FreeDeliveryOver.LessThanOrEqual(decimal.Zero) {
		deliveryCharge = decimal.Zero
		freeDeliveryBy = ptr("admin")
	}
	if st.FreeDelivery {
		deliveryCharge = decimal.Zero
		freeDeliveryBy = ptr("vendor")
	}
	if couponFree && cpn.MinPurchase.LessThanOrEqual(decimal.Zero) {
		deliveryCharge = decimal.Zero
		freeDeliveryBy = ptr(cpn.CreatedBy)
	}

	totals := pricing.Compute(pricing.TotalsInput{
		TaxRate:          st.Tax,
		TaxIncluded:      cfg.TaxIncluded,
		DeliveryCharge:   deliveryCharge,
		Tip:              s.tip(cfg, req.DMTips),
		AdditionalCharge: s.additionalCharge(cfg),
	}, s.rounder)

	req.PaymentMethod = PaymentCashOnDelivery
	req.PartialPayment = false
	req.OrderType = TypeDelivery

	o := s.buildOrder(cfg, req, scheduleAt, scheduled, zoneID, quote, deliveryCharge, totals, st.Tax, cpn, freeDeliveryBy, "vendor", customer)
	o.StoreID = ptr(st.ID)
	o.PrescriptionOrder = true
	o.OrderStatus = StatusPending
	o.PaymentStatus = PayStatusUnpaid

	if err := s.commit(ctx, o, resolvedCart{}, cpn, req, customer); err != nil {
		return nil, err
	}

	s.notifier.OrderPlaced(ctx, o)

	return &PlaceOrderResult{OrderID: o.ID, OrderAmount: o.OrderAmount}, nil
}
