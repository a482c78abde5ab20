package order

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/deliverymart/internal/domain/catalog"
	"github.com/xenking/deliverymart/internal/domain/coupon"
	"github.com/xenking/deliverymart/internal/domain/delivery"
	"github.com/xenking/deliverymart/internal/domain/pricing"
	"github.com/xenking/deliverymart/internal/domain/store"
	"github.com/xenking/deliverymart/internal/domain/zone"
	"github.com/xenking/deliverymart/internal/settings"
)

// orderIDBase offsets allocated order ids away from manually seeded and
// legacy id ranges.
const orderIDBase = 100000

// WalletReasonOrder and WalletReasonPartial tag wallet debits posted by the
// commit sequence.
const (
	WalletReasonOrder   = "order_place"
	WalletReasonPartial = "partial_payment"
)

// Notifier receives post-commit hooks. Implementations are best-effort:
// failures are logged by the implementation and never reach the caller.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order)
	OrderCanceled(ctx context.Context, o *Order)
	RefundRequested(ctx context.Context, o *Order, r *Refund)
}

// PlaceOrderRequest is the client-supplied placement payload. Prices and
// stock figures inside the cart are never trusted; everything is re-resolved
// against the catalog.
type PlaceOrderRequest struct {
	CustomerID    int64
	OrderType     string
	PaymentMethod string
	// PartialPayment splits settlement between the wallet and the
	// chosen payment method.
	PartialPayment bool

	StoreID  int64
	ModuleID int64
	// ZoneIDs is the admissible zone set from the client session
	// context; a trust boundary, not derived from the coordinate.
	ZoneIDs []int64

	Latitude  *float64
	Longitude *float64
	Distance  decimal.Decimal

	Address    *Address
	ScheduleAt *time.Time

	CouponCode string
	DMTips     decimal.Decimal

	Cart []catalog.CartLine

	OrderNote           string
	UnavailableItemNote string
	DeliveryInstruction string
	Cutlery             bool
	Attachments         []string

	// Parcel fields.
	ParcelCategoryID int64
	ReceiverDetails  *ReceiverDetails
	ChargePayer      string
}

// PlaceOrderResult reports the committed order.
type PlaceOrderResult struct {
	OrderID     int64
	OrderAmount decimal.Decimal
}

// Service is the placement orchestrator. It sequences validation, pricing,
// and the atomic commit, holding no mutable state between requests.
type Service struct {
	settings    settings.Reader
	stores      store.Repository
	catalog     *catalog.Resolver
	zones       *zone.Validator
	zonePricing zone.Repository
	coupons     *coupon.Validator
	delivery    delivery.Repository
	customers   CustomerRepository
	orders      Repository
	tx          TxManager
	notifier    Notifier
	rounder     pricing.Rounder

	now func() time.Time
	otp func() string
}

// NewService wires the orchestrator with its collaborators.
func NewService(
	cfg settings.Reader,
	stores store.Repository,
	resolver *catalog.Resolver,
	zones *zone.Validator,
	zonePricing zone.Repository,
	coupons *coupon.Validator,
	deliveryRepo delivery.Repository,
	customers CustomerRepository,
	orders Repository,
	tx TxManager,
	notifier Notifier,
	rounder pricing.Rounder,
) *Service {
	return &Service{
		settings:    cfg,
		stores:      stores,
		catalog:     resolver,
		zones:       zones,
		zonePricing: zonePricing,
		coupons:     coupons,
		delivery:    deliveryRepo,
		customers:   customers,
		orders:      orders,
		tx:          tx,
		notifier:    notifier,
		rounder:     rounder,
		now:         time.Now,
		otp:         randomOTP,
	}
}

func randomOTP() string {
	return fmt.Sprintf("%04d", rand.IntN(9000)+1000)
}

// PlaceOrder validates the placement request, computes the chargeable
// amount, and commits the order atomically. Validation and business-rule
// errors are returned before the transaction opens.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}

	if req.OrderType == TypeDelivery && !cfg.HomeDelivery {
		return nil, ErrHomeDeliveryDisabled
	}
	if req.OrderType == TypeTakeAway && !cfg.Takeaway {
		return nil, ErrTakeawayDisabled
	}
	if req.PartialPayment && !cfg.PartialPayment {
		return nil, ErrPartialPaymentDisabled
	}

	customer, err := s.customers.ByID(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "load customer")
	}

	vehicle, err := s.vehicleForDistance(ctx, req.Distance)
	if err != nil {
		return nil, err
	}

	if req.OrderType == TypeParcel {
		return s.placeParcel(ctx, cfg, req, customer, vehicle)
	}
	return s.placeStoreOrder(ctx, cfg, req, customer, vehicle)
}

func (s *Service) vehicleForDistance(ctx context.Context, distance decimal.Decimal) (*delivery.Vehicle, error) {
	vehicles, err := s.delivery.ActiveVehicles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load vehicles")
	}
	return delivery.SelectVehicle(vehicles, distance), nil
}

func (s *Service) placeStoreOrder(ctx context.Context, cfg *settings.Snapshot, req PlaceOrderRequest, customer *Customer, vehicle *delivery.Vehicle) (*PlaceOrderResult, error) {
	scheduleAt, scheduled := s.scheduleTime(req)
	if scheduled && scheduleAt.Before(s.now()) {
		return nil, ErrScheduleInPast
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

	moduleTier, codCap, err := s.moduleTier(ctx, st.ZoneID, req.ModuleID)
	if err != nil {
		return nil, err
	}

	quote := delivery.Calculate(delivery.Input{
		TakeAway:             req.OrderType == TypeTakeAway,
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

	cart, err := s.resolveCart(ctx, req.Cart, st)
	if err != nil {
		return nil, err
	}

	discountBy := "vendor"
	storeDiscount := cart.storeDiscount
	if st.Discount != nil {
		discountBy = "admin"
		storeDiscount = pricing.CapStoreDiscount(storeDiscount, cart.productSubtotal.Add(cart.addonSubtotal), st.Discount)
	}

	couponDiscount := decimal.Zero
	if cpn != nil {
		couponDiscount = cpn.DiscountFor(cart.productSubtotal.Add(cart.addonSubtotal).Sub(storeDiscount))
	}

	// Minimum order is judged on the raw product + add-on subtotal,
	// before any discount.
	if st.MinimumOrder.GreaterThan(cart.productSubtotal.Add(cart.addonSubtotal)) {
		return nil, &MinimumOrderError{Minimum: st.MinimumOrder}
	}

	deliveryCharge := s.rounder.Round(quote.Charge)
	var freeDeliveryBy *string
	if couponFree {
		freeDeliveryBy = ptr(cpn.CreatedBy)
	}
	if cfg.FreeDeliveryOver != nil {
		postDiscount := cart.productSubtotal.Add(cart.addonSubtotal).Sub(couponDiscount).Sub(storeDiscount)
		if cfg.FreeDeliveryOver.LessThanOrEqual(postDiscount) {
			deliveryCharge = decimal.Zero
			freeDeliveryBy = ptr("admin")
		}
	}
	if st.FreeDelivery {
		deliveryCharge = decimal.Zero
		freeDeliveryBy = ptr("vendor")
	}
	if couponFree && cpn.MinPurchase.LessThanOrEqual(cart.productSubtotal.Add(cart.addonSubtotal).Sub(storeDiscount)) {
		deliveryCharge = decimal.Zero
		freeDeliveryBy = ptr(cpn.CreatedBy)
	}

	taxRate := st.Tax
	if taxRate.IsNegative() {
		taxRate = decimal.Zero
	}

	totals := pricing.Compute(pricing.TotalsInput{
		ProductSubtotal:  cart.productSubtotal,
		AddOnSubtotal:    cart.addonSubtotal,
		StoreDiscount:    storeDiscount,
		CouponDiscount:   couponDiscount,
		TaxRate:          taxRate,
		TaxIncluded:      cfg.TaxIncluded,
		DeliveryCharge:   deliveryCharge,
		Tip:              s.tip(cfg, req.DMTips),
		AdditionalCharge: s.additionalCharge(cfg),
	}, s.rounder)

	if err := s.checkPayment(req, customer, totals.OrderAmount, codCap); err != nil {
		return nil, err
	}

	o := s.buildOrder(cfg, req, scheduleAt, scheduled, zoneID, quote, deliveryCharge, totals, taxRate, cpn, freeDeliveryBy, discountBy, customer)
	o.StoreID = ptr(st.ID)

	if err := s.commit(ctx, o, cart, cpn, req, customer); err != nil {
		return nil, err
	}

	if o.PaymentMethod != PaymentDigital {
		s.notifier.OrderPlaced(ctx, o)
	}

	return &PlaceOrderResult{OrderID: o.ID, OrderAmount: o.OrderAmount}, nil
}

func (s *Service) placeParcel(ctx context.Context, cfg *settings.Snapshot, req PlaceOrderRequest, customer *Customer, vehicle *delivery.Vehicle) (*PlaceOrderResult, error) {
	if req.ReceiverDetails == nil {
		return nil, errors.New("receiver details required")
	}

	var category *delivery.ParcelCategory
	if req.ParcelCategoryID != 0 {
		var err error
		category, err = s.delivery.ParcelCategoryByID(ctx, req.ParcelCategoryID)
		if err != nil {
			return nil, errors.Wrap(err, "parcel category")
		}
	}

	quote := delivery.CalculateParcel(req.Distance,
		category,
		delivery.Tier{PerKm: cfg.ParcelPerKmCharge, Minimum: cfg.ParcelMinimumCharge},
		vehicle,
	)

	// Parcel coverage runs against the receiver's coordinates.
	z, err := s.zones.Locate(ctx, req.ReceiverDetails.Latitude, req.ReceiverDetails.Longitude, req.ZoneIDs)
	if err != nil {
		return nil, err
	}

	charge := s.rounder.Round(quote.Charge)
	tip := s.tip(cfg, req.DMTips)
	additional := s.additionalCharge(cfg)
	// A parcel order's amount is the full delivery charge; there is no
	// product subtotal.
	amount := s.rounder.Round(charge.Add(tip).Add(additional))

	if err := s.checkPayment(req, customer, amount, decimal.Zero); err != nil {
		return nil, err
	}

	scheduleAt, scheduled := s.scheduleTime(req)

	o := s.buildOrder(cfg, req, scheduleAt, scheduled, z.ID, quote, charge, pricing.Totals{
		TaxStatus:   "excluded",
		OrderAmount: amount,
	}, decimal.Zero, nil, nil, "vendor", customer)
	o.ParcelCategoryID = ptr(req.ParcelCategoryID)
	o.ReceiverDetails = req.ReceiverDetails
	o.ChargePayer = req.ChargePayer

	if err := s.commit(ctx, o, resolvedCart{}, nil, req, customer); err != nil {
		return nil, err
	}

	if o.PaymentMethod != PaymentDigital {
		s.notifier.OrderPlaced(ctx, o)
	}

	return &PlaceOrderResult{OrderID: o.ID, OrderAmount: o.OrderAmount}, nil
}

func (s *Service) scheduleTime(req PlaceOrderRequest) (time.Time, bool) {
	if req.ScheduleAt != nil {
		return *req.ScheduleAt, true
	}
	return s.now(), false
}

// openStore loads the store and verifies it accepts orders at the given
// time.
func (s *Service) openStore(ctx context.Context, storeID int64, at time.Time, scheduled bool) (*store.Store, error) {
	st, err := s.stores.ByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if scheduled && !st.ScheduleOrder {
		return nil, ErrScheduleNotAvailable
	}

	schedule, err := s.stores.Schedule(ctx, st.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load store schedule")
	}
	if !store.OpenAt(schedule, at) {
		return nil, ErrStoreClosed
	}
	return st, nil
}

func (s *Service) resolveCoupon(ctx context.Context, req PlaceOrderRequest, customer *Customer, st *store.Store) (*coupon.Coupon, error) {
	if req.CouponCode == "" {
		return nil, nil
	}
	return s.coupons.Validate(ctx, req.CouponCode, coupon.Candidate{
		CustomerID:         customer.ID,
		StoreID:            st.ID,
		ZoneID:             st.ZoneID,
		CustomerOrderCount: customer.OrderCount,
	})
}

func (s *Service) moduleTier(ctx context.Context, zoneID, moduleID int64) (*delivery.Tier, decimal.Decimal, error) {
	mp, err := s.zonePricing.ModulePricing(ctx, zoneID, moduleID)
	if err != nil {
		if errors.Is(err, zone.ErrNoModulePricing) {
			return nil, decimal.Zero, nil
		}
		return nil, decimal.Zero, errors.Wrap(err, "module pricing")
	}
	return &delivery.Tier{
		PerKm:   mp.PerKmShippingCharge,
		Minimum: mp.MinimumShippingCharge,
		Maximum: mp.MaximumShippingCharge,
	}, mp.MaximumCODOrderAmount, nil
}

func (s *Service) locateZone(ctx context.Context, lat, lng *float64, admissible, sessionZones []int64) (int64, error) {
	if lat != nil && lng != nil {
		z, err := s.zones.Locate(ctx, *lat, *lng, admissible)
		if err != nil {
			return 0, err
		}
		return z.ID, nil
	}
	if len(sessionZones) > 0 {
		return sessionZones[len(sessionZones)-1], nil
	}
	return 0, nil
}

// resolvedCart accumulates line snapshots and subtotals during resolution.
type resolvedCart struct {
	details         []Detail
	stock           []StockAdjustment
	productSubtotal decimal.Decimal
	addonSubtotal   decimal.Decimal
	storeDiscount   decimal.Decimal
}

// itemSnapshot is the display data serialized into each order line at order
// time.
type itemSnapshot struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Tax      decimal.Decimal `json:"tax"`
	StoreID  int64           `json:"store_id"`
	ModuleID int64           `json:"module_id"`
	Campaign bool            `json:"campaign,omitempty"`
}

func (s *Service) resolveCart(ctx context.Context, lines []catalog.CartLine, st *store.Store) (resolvedCart, error) {
	cart := resolvedCart{
		productSubtotal: decimal.Zero,
		addonSubtotal:   decimal.Zero,
		storeDiscount:   decimal.Zero,
	}

	for _, cl := range lines {
		rl, err := s.catalog.Resolve(ctx, cl)
		if err != nil {
			return cart, err
		}

		unit := s.rounder.Round(rl.UnitPrice)
		qty := decimal.NewFromInt(cl.Quantity)
		lineDiscount := pricing.LineDiscount(unit, rl.Item.Discount, rl.Item.DiscountType, st.Discount)

		snapshot, err := json.Marshal(itemSnapshot{
			ID:       rl.Item.ID,
			Name:     rl.Item.Name,
			Price:    unit,
			Tax:      st.Tax,
			StoreID:  rl.Item.StoreID,
			ModuleID: rl.Item.ModuleID,
			Campaign: rl.Item.Campaign,
		})
		if err != nil {
			return cart, errors.Wrap(err, "marshal item snapshot")
		}

		variation, err := json.Marshal(rl.Variations)
		if err != nil {
			return cart, errors.Wrap(err, "marshal variation")
		}
		addons, err := json.Marshal(rl.AddOns)
		if err != nil {
			return cart, errors.Wrap(err, "marshal add-ons")
		}

		detail := Detail{
			StoreID:         ptr(rl.Item.StoreID),
			ItemDetails:     snapshot,
			Quantity:        cl.Quantity,
			Price:           unit,
			TaxAmount:       s.rounder.Round(pricing.ProductTax(unit, st.Tax, false)),
			DiscountOnItem:  s.rounder.Round(lineDiscount),
			DiscountType:    "discount_on_product",
			Variation:       variation,
			AddOns:          addons,
			TotalAddOnPrice: s.rounder.Round(rl.AddOnTotal),
			Status:          StatusPending,
		}
		if rl.Item.Campaign {
			detail.CampaignID = ptr(rl.Item.ID)
		} else {
			detail.ItemID = ptr(rl.Item.ID)
		}
		cart.details = append(cart.details, detail)

		cart.productSubtotal = cart.productSubtotal.Add(unit.Mul(qty))
		cart.addonSubtotal = cart.addonSubtotal.Add(detail.TotalAddOnPrice)
		cart.storeDiscount = cart.storeDiscount.Add(lineDiscount.Mul(qty))

		if rl.Item.StockTracked {
			cart.stock = append(cart.stock, StockAdjustment{
				ItemID:    rl.Item.ID,
				ItemName:  rl.Item.Name,
				Campaign:  rl.Item.Campaign,
				Variation: rl.VariationType,
				Quantity:  cl.Quantity,
			})
		}
	}

	return cart, nil
}

func (s *Service) tip(cfg *settings.Snapshot, requested decimal.Decimal) decimal.Decimal {
	if !cfg.DMTips || requested.IsNegative() {
		return decimal.Zero
	}
	return requested
}

func (s *Service) additionalCharge(cfg *settings.Snapshot) decimal.Decimal {
	if !cfg.AdditionalChargeEnabled {
		return decimal.Zero
	}
	return cfg.AdditionalCharge
}

// checkPayment enforces the payment-method guards against the final order
// amount, before any row is written.
func (s *Service) checkPayment(req PlaceOrderRequest, customer *Customer, amount, codCap decimal.Decimal) error {
	if req.PaymentMethod == PaymentWallet && !req.PartialPayment {
		if customer.WalletBalance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		return nil
	}
	if req.PartialPayment {
		if customer.WalletBalance.LessThanOrEqual(decimal.Zero) {
			return ErrInsufficientBalance
		}
		// Partial payment on a fully wallet-covered order is invalid.
		if customer.WalletBalance.GreaterThanOrEqual(amount) {
			return ErrPartialNotApplicable
		}
	}
	// The COD cap applies whenever the open part of the order is collected
	// in cash, partial payments included.
	if req.PaymentMethod == PaymentCashOnDelivery && codCap.IsPositive() && amount.GreaterThan(codCap) {
		return ErrCODLimitExceeded
	}
	return nil
}

func (s *Service) buildOrder(
	cfg *settings.Snapshot,
	req PlaceOrderRequest,
	scheduleAt time.Time,
	scheduled bool,
	zoneID int64,
	quote delivery.Quote,
	deliveryCharge decimal.Decimal,
	totals pricing.Totals,
	taxRate decimal.Decimal,
	cpn *coupon.Coupon,
	freeDeliveryBy *string,
	discountBy string,
	customer *Customer,
) *Order {
	method := req.PaymentMethod
	status := StatusPending
	payStatus := PayStatusUnpaid

	switch {
	case req.PartialPayment:
		method = PaymentPartial
		status = StatusConfirmed
		payStatus = PayStatusPartiallyPaid
	case req.PaymentMethod == PaymentWallet:
		status = StatusConfirmed
		payStatus = PayStatusPaid
	}

	var couponCreatedBy *string
	couponCode, couponTitle := "", ""
	if cpn != nil {
		couponCode = cpn.Code
		couponTitle = cpn.Title
		if cpn.Type != coupon.TypeFreeDelivery {
			couponCreatedBy = ptr(cpn.CreatedBy)
		}
	}

	o := &Order{
		CustomerID:    customer.ID,
		ModuleID:      req.ModuleID,
		ZoneID:        zoneID,
		OrderType:     req.OrderType,
		OrderStatus:   status,
		PaymentMethod: method,
		PaymentStatus: payStatus,

		OrderAmount:            totals.OrderAmount,
		DeliveryCharge:         deliveryCharge,
		OriginalDeliveryCharge: s.rounder.Round(quote.OriginalCharge),
		StoreDiscountAmount:    totals.StoreDiscount,
		CouponDiscountAmount:   totals.CouponDiscount,
		TotalTaxAmount:         totals.TaxAmount,
		TaxPercentage:          taxRate,
		TaxStatus:              totals.TaxStatus,
		AdditionalCharge:       s.additionalCharge(cfg),
		DMTips:                 s.tip(cfg, req.DMTips),

		CouponCode:          couponCode,
		CouponDiscountTitle: couponTitle,
		CouponCreatedBy:     couponCreatedBy,
		FreeDeliveryBy:      freeDeliveryBy,
		DiscountOnProductBy: discountBy,

		DeliveryAddress: s.addressSnapshot(req, customer),

		ScheduleAt: scheduleAt,
		Scheduled:  scheduled,
		Cutlery:    req.Cutlery,

		OTP:         s.otp(),
		DMVehicleID: quote.VehicleID,
		Distance:    req.Distance.InexactFloat64(),

		OrderNote:           req.OrderNote,
		UnavailableItemNote: req.UnavailableItemNote,
		DeliveryInstruction: req.DeliveryInstruction,
		OrderAttachment:     req.Attachments,
	}
	return o
}

// addressSnapshot copies the delivery address, falling back to the
// customer's profile for contact fields.
func (s *Service) addressSnapshot(req PlaceOrderRequest, customer *Customer) *Address {
	if req.Address == nil {
		return nil
	}
	addr := *req.Address
	if addr.ContactPersonName == "" {
		addr.ContactPersonName = customer.Name
	}
	if addr.ContactPersonNumber == "" {
		addr.ContactPersonNumber = customer.Phone
	}
	if addr.AddressType == "" {
		addr.AddressType = "Delivery"
	}
	if req.Latitude != nil {
		addr.Latitude = fmt.Sprintf("%v", *req.Latitude)
	}
	if req.Longitude != nil {
		addr.Longitude = fmt.Sprintf("%v", *req.Longitude)
	}
	return &addr
}

// commit runs the single atomic placement transaction, retrying exactly once
// on an order-id allocation conflict.
func (s *Service) commit(ctx context.Context, o *Order, cart resolvedCart, cpn *coupon.Coupon, req PlaceOrderRequest, customer *Customer) error {
	if req.PartialPayment {
		o.PartiallyPaidAmount = decimal.Min(customer.WalletBalance, o.OrderAmount)
	}

	run := func() error {
		return s.tx.InTx(ctx, func(tx Tx) error {
			return s.commitSequence(ctx, tx, o, cart, cpn, req, customer)
		})
	}

	err := run()
	if errors.Is(err, ErrIDConflict) {
		err = run()
	}
	if err == nil {
		return nil
	}

	// Stock races and wallet insufficiency keep their identity; every
	// other commit failure is surfaced uniformly.
	var oos *catalog.OutOfStockError
	if errors.As(err, &oos) || errors.Is(err, ErrInsufficientBalance) {
		return err
	}

	zctx.From(ctx).Error("order placement rolled back",
		zap.Int64("customer_id", o.CustomerID),
		zap.Error(err),
	)
	return ErrPlacementFailed
}

func (s *Service) commitSequence(ctx context.Context, tx Tx, o *Order, cart resolvedCart, cpn *coupon.Coupon, req PlaceOrderRequest, customer *Customer) error {
	id, err := tx.AllocateID(ctx, orderIDBase)
	if err != nil {
		return errors.Wrap(err, "allocate order id")
	}
	o.ID = id
	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := tx.InsertOrder(ctx, o); err != nil {
		return errors.Wrap(err, "insert order")
	}

	if len(cart.details) > 0 {
		details := make([]Detail, len(cart.details))
		copy(details, cart.details)
		for i := range details {
			details[i].OrderID = o.ID
			// Line discounts are zeroed when the aggregate store
			// discount collapsed to zero.
			if !o.StoreDiscountAmount.IsPositive() {
				details[i].DiscountOnItem = decimal.Zero
			}
		}
		if err := tx.InsertDetails(ctx, details); err != nil {
			return errors.Wrap(err, "insert order details")
		}
	}

	for _, adj := range cart.stock {
		if err := tx.DecrementStock(ctx, adj); err != nil {
			if errors.Is(err, ErrStockConflict) {
				return &catalog.OutOfStockError{ItemName: adj.ItemName}
			}
			return errors.Wrapf(err, "decrement stock for item %d", adj.ItemID)
		}
	}

	if o.StoreID != nil {
		if err := tx.IncrementStoreOrders(ctx, *o.StoreID); err != nil {
			return errors.Wrap(err, "increment store orders")
		}
	}

	if o.ZoneID != 0 {
		if err := tx.UpdateCustomerZone(ctx, o.CustomerID, o.ZoneID); err != nil {
			return errors.Wrap(err, "update customer zone")
		}
	}

	if req.PaymentMethod == PaymentWallet && !req.PartialPayment {
		if err := tx.DebitWallet(ctx, o.CustomerID, o.OrderAmount, WalletReasonOrder, o.ID); err != nil {
			return errors.Wrap(err, "debit wallet")
		}
	}

	if req.PartialPayment {
		if err := s.postPartialPayments(ctx, tx, o, req); err != nil {
			return err
		}
	}

	if cpn != nil {
		if err := tx.IncrementCouponUses(ctx, cpn.ID); err != nil {
			return errors.Wrap(err, "increment coupon uses")
		}
	}

	return nil
}

func (s *Service) postPartialPayments(ctx context.Context, tx Tx, o *Order, req PlaceOrderRequest) error {
	paid := o.PartiallyPaidAmount
	unpaid := o.OrderAmount.Sub(paid)

	if err := tx.DebitWallet(ctx, o.CustomerID, paid, WalletReasonPartial, o.ID); err != nil {
		return errors.Wrap(err, "debit wallet for partial payment")
	}
	if err := tx.InsertPayment(ctx, Payment{
		OrderID:       o.ID,
		Amount:        paid,
		PaymentStatus: PayStatusPaid,
		PaymentMethod: PaymentWallet,
	}); err != nil {
		return errors.Wrap(err, "insert paid posting")
	}
	if err := tx.InsertPayment(ctx, Payment{
		OrderID:       o.ID,
		Amount:        unpaid,
		PaymentStatus: PayStatusUnpaid,
		PaymentMethod: req.PaymentMethod,
	}); err != nil {
		return errors.Wrap(err, "insert unpaid posting")
	}
	return nil
}

func storeTier(st *store.Store) delivery.Tier {
	return delivery.Tier{
		PerKm:   st.PerKmShippingCharge,
		Minimum: st.MinimumShippingCharge,
		Maximum: st.MaximumShippingCharge,
	}
}

func ptr[T any](v T) *T {
	return &v
}
