// Package settings exposes platform-wide business configuration as an
// immutable per-request snapshot. The orchestrator reads one snapshot at the
// start of a placement and never consults mutable global state afterwards.
package settings

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known business setting keys.
const (
	KeyHomeDeliveryStatus     = "home_delivery_status"
	KeyTakeawayStatus         = "takeaway_status"
	KeyPartialPaymentStatus   = "partial_payment_status"
	KeyPerKmShippingCharge    = "per_km_shipping_charge"
	KeyMinimumShippingCharge  = "minimum_shipping_charge"
	KeyParcelPerKmCharge      = "parcel_per_km_shipping_charge"
	KeyParcelMinimumCharge    = "parcel_minimum_shipping_charge"
	KeyTaxIncluded            = "tax_included"
	KeyFreeDeliveryOver       = "free_delivery_over"
	KeyAdditionalChargeStatus = "additional_charge_status"
	KeyAdditionalCharge       = "additional_charge"
	KeyDMTipsStatus           = "dm_tips_status"
	KeyRefundActiveStatus     = "refund_active_status"
	KeyCashOnDelivery         = "cash_on_delivery"
	KeyOrderVerification      = "order_delivery_verification"
	KeyPlaceOrderMailUser     = "place_order_mail_status_user"
	KeyOrderVerificationMail  = "order_verification_mail_status_user"
	KeyRefundRequestMailAdmin = "refund_request_mail_status_admin"
)

// Reader loads the current business settings.
type Reader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is a point-in-time view of the platform feature flags and default
// rate tables. A zero Snapshot has every feature disabled and zero rates.
type Snapshot struct {
	HomeDelivery   bool
	Takeaway       bool
	PartialPayment bool
	TaxIncluded    bool
	DMTips         bool
	RefundActive   bool
	CashOnDelivery bool

	AdditionalChargeEnabled bool
	AdditionalCharge        decimal.Decimal

	// FreeDeliveryOver is the post-discount product subtotal at which the
	// platform waives the delivery fee. Nil disables the override.
	FreeDeliveryOver *decimal.Decimal

	PerKmShippingCharge   decimal.Decimal
	MinimumShippingCharge decimal.Decimal
	ParcelPerKmCharge     decimal.Decimal
	ParcelMinimumCharge   decimal.Decimal

	OrderVerification     bool
	PlaceOrderMail        bool
	OrderVerificationMail bool
	RefundRequestMail     bool
}

// FromValues builds a Snapshot from raw key-value pairs. Unknown keys are
// ignored; missing keys leave the zero value in place.
func FromValues(values map[string]string) *Snapshot {
	s := &Snapshot{}

	s.HomeDelivery = parseBool(values[KeyHomeDeliveryStatus])
	s.Takeaway = parseBool(values[KeyTakeawayStatus])
	s.PartialPayment = parseBool(values[KeyPartialPaymentStatus])
	s.TaxIncluded = parseBool(values[KeyTaxIncluded])
	s.DMTips = parseBool(values[KeyDMTipsStatus])
	s.RefundActive = parseBool(values[KeyRefundActiveStatus])
	s.CashOnDelivery = parseBool(values[KeyCashOnDelivery])
	s.AdditionalChargeEnabled = parseBool(values[KeyAdditionalChargeStatus])
	s.AdditionalCharge = parseDecimal(values[KeyAdditionalCharge])

	if raw, ok := values[KeyFreeDeliveryOver]; ok && strings.TrimSpace(raw) != "" {
		v := parseDecimal(raw)
		s.FreeDeliveryOver = &v
	}

	s.PerKmShippingCharge = parseDecimal(values[KeyPerKmShippingCharge])
	s.MinimumShippingCharge = parseDecimal(values[KeyMinimumShippingCharge])
	s.ParcelPerKmCharge = parseDecimal(values[KeyParcelPerKmCharge])
	s.ParcelMinimumCharge = parseDecimal(values[KeyParcelMinimumCharge])

	s.OrderVerification = parseBool(values[KeyOrderVerification])
	s.PlaceOrderMail = parseBool(values[KeyPlaceOrderMailUser])
	s.OrderVerificationMail = parseBool(values[KeyOrderVerificationMail])
	s.RefundRequestMail = parseBool(values[KeyRefundRequestMailAdmin])

	return s
}

// parseBool accepts the storage formats seen in practice: "1"/"0" and
// true/false spellings.
func parseBool(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw == "1"
}

func parseDecimal(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
