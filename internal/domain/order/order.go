// Package order owns the Order aggregate and the placement orchestrator:
// guard checks, pricing assembly, and the single atomic commit of the order
// row, its line items, stock deltas, and payment postings.
package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order types.
const (
	TypeDelivery = "delivery"
	TypeTakeAway = "take_away"
	TypeParcel   = "parcel"
)

// Payment methods.
const (
	PaymentCashOnDelivery = "cash_on_delivery"
	PaymentDigital        = "digital_payment"
	PaymentWallet         = "wallet"
	PaymentPartial        = "partial_payment"
)

// Order statuses produced or read by this engine.
const (
	StatusPending         = "pending"
	StatusConfirmed       = "confirmed"
	StatusDelivered       = "delivered"
	StatusCanceled        = "canceled"
	StatusFailed          = "failed"
	StatusRefundRequested = "refund_requested"
)

// Payment statuses.
const (
	PayStatusUnpaid        = "unpaid"
	PayStatusPaid          = "paid"
	PayStatusPartiallyPaid = "partially_paid"
)

// TerminalStatuses are the order statuses shown by the history listing;
// everything else counts as running.
var TerminalStatuses = []string{
	StatusDelivered, StatusCanceled, StatusRefundRequested,
	"refund_request_canceled", "refunded", StatusFailed,
}

// Address is the delivery address snapshot persisted with the order. It is
// a copy taken at order time, never a live reference.
type Address struct {
	ContactPersonName   string `json:"contact_person_name"`
	ContactPersonNumber string `json:"contact_person_number"`
	AddressType         string `json:"address_type"`
	Address             string `json:"address"`
	Floor               string `json:"floor,omitempty"`
	Road                string `json:"road,omitempty"`
	House               string `json:"house,omitempty"`
	Latitude            string `json:"latitude"`
	Longitude           string `json:"longitude"`
}

// ReceiverDetails describes the parcel receiver, including the coordinate
// the coverage check runs against.
type ReceiverDetails struct {
	ContactPersonName   string  `json:"contact_person_name"`
	ContactPersonNumber string  `json:"contact_person_number"`
	Address             string  `json:"address"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
}

// Order is the aggregate root committed at placement time.
type Order struct {
	ID         int64
	CustomerID int64
	// StoreID is nil for parcel orders.
	StoreID  *int64
	ModuleID int64
	ZoneID   int64

	OrderType     string
	OrderStatus   string
	PaymentMethod string
	PaymentStatus string

	OrderAmount            decimal.Decimal
	DeliveryCharge         decimal.Decimal
	OriginalDeliveryCharge decimal.Decimal
	StoreDiscountAmount    decimal.Decimal
	CouponDiscountAmount   decimal.Decimal
	TotalTaxAmount         decimal.Decimal
	TaxPercentage          decimal.Decimal
	TaxStatus              string
	AdditionalCharge       decimal.Decimal
	DMTips                 decimal.Decimal
	PartiallyPaidAmount    decimal.Decimal

	CouponCode          string
	CouponDiscountTitle string
	// CouponCreatedBy attributes a discount coupon's cost; nil for
	// free-delivery coupons, whose attribution moves to FreeDeliveryBy.
	CouponCreatedBy *string
	// FreeDeliveryBy records who absorbs a waived delivery fee:
	// "vendor", "admin", or the coupon issuer.
	FreeDeliveryBy      *string
	DiscountOnProductBy string

	DeliveryAddress  *Address
	ReceiverDetails  *ReceiverDetails
	ParcelCategoryID *int64
	ChargePayer      string

	ScheduleAt        time.Time
	Scheduled         bool
	PrescriptionOrder bool
	Cutlery           bool

	OTP         string
	DMVehicleID *int64
	Distance    float64

	OrderNote           string
	UnavailableItemNote string
	DeliveryInstruction string
	// OrderAttachment holds upload-store references for order evidence
	// images (prescriptions, parcel photos).
	OrderAttachment []string

	CancellationReason string
	CanceledBy         string

	CreatedAt time.Time
	UpdatedAt time.Time

	// DetailsCount is populated by list queries.
	DetailsCount int64
}

// Detail is a priced snapshot of one cart line, owned 1:N by its Order.
// Exactly one of ItemID and CampaignID is set.
type Detail struct {
	ID         int64
	OrderID    int64
	ItemID     *int64
	CampaignID *int64
	StoreID    *int64

	// ItemDetails is the item's display data serialized at order time,
	// decoupled from later catalog edits.
	ItemDetails json.RawMessage

	Quantity        int64
	Price           decimal.Decimal
	TaxAmount       decimal.Decimal
	DiscountOnItem  decimal.Decimal
	DiscountType    string
	Variation       json.RawMessage
	AddOns          json.RawMessage
	TotalAddOnPrice decimal.Decimal
	Status          string
	CreatedAt       time.Time
}

// Payment is one posting of a (possibly split) order payment.
type Payment struct {
	ID            string
	OrderID       int64
	Amount        decimal.Decimal
	PaymentStatus string
	PaymentMethod string
}

// Refund captures a customer's refund request for a delivered, paid order.
// The amount is derived server-side, never client-supplied.
type Refund struct {
	ID             int64
	OrderID        int64
	CustomerID     int64
	OrderStatus    string
	RefundStatus   string
	RefundMethod   string
	CustomerReason string
	CustomerNote   string
	AdminNote      string
	RefundAmount   decimal.Decimal
	Images         []string
}

// Customer is the slice of the user record the engine reads: wallet
// balance for payment guards, order count for first-order coupons, and the
// profile fields the address snapshot falls back to.
type Customer struct {
	ID            int64
	Name          string
	Phone         string
	Email         string
	ZoneID        *int64
	WalletBalance decimal.Decimal
	OrderCount    int64
}

// StockAdjustment identifies the stock row touched by a placement or
// cancellation, targeting per-variation stock when a variation was selected.
type StockAdjustment struct {
	ItemID    int64
	ItemName  string
	Campaign  bool
	Variation string
	Quantity  int64
}
