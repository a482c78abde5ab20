package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/deliverymart/internal/domain/catalog"
	"github.com/xenking/deliverymart/internal/domain/order"
)

// placeOrderRequest is the wire payload for order placement. Prices never
// travel in it; the cart references catalog entries by id only.
type placeOrderRequest struct {
	OrderType      string `json:"order_type"`
	PaymentMethod  string `json:"payment_method"`
	PartialPayment bool   `json:"partial_payment"`

	StoreID  int64  `json:"store_id"`
	Distance string `json:"distance"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	Address    *addressPayload `json:"address"`
	ScheduleAt *time.Time      `json:"schedule_at"`

	CouponCode string `json:"coupon_code"`
	DMTips     string `json:"dm_tips"`

	Cart []cartLinePayload `json:"cart"`

	OrderNote           string   `json:"order_note"`
	UnavailableItemNote string   `json:"unavailable_item_note"`
	DeliveryInstruction string   `json:"delivery_instruction"`
	Cutlery             bool     `json:"cutlery"`
	Attachments         []string `json:"order_attachment"`

	ParcelCategoryID int64                  `json:"parcel_category_id"`
	ReceiverDetails  *order.ReceiverDetails `json:"receiver_details"`
	ChargePayer      string                 `json:"charge_payer"`
}

type addressPayload struct {
	ContactPersonName   string `json:"contact_person_name"`
	ContactPersonNumber string `json:"contact_person_number"`
	AddressType         string `json:"address_type"`
	Address             string `json:"address"`
	Floor               string `json:"floor"`
	Road                string `json:"road"`
	House               string `json:"house"`
	Latitude            string `json:"latitude"`
	Longitude           string `json:"longitude"`
}

type cartLinePayload struct {
	ItemID          int64    `json:"item_id"`
	CampaignID      int64    `json:"item_campaign_id"`
	Quantity        int64    `json:"quantity"`
	Variation       []string `json:"variation"`
	AddOnIDs        []int64  `json:"add_on_ids"`
	AddOnQuantities []int64  `json:"add_on_qtys"`
}

type placeOrderResponse struct {
	OrderID     int64           `json:"order_id"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	Message     string          `json:"message"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	req, domainReq, ok := h.decodePlacement(w, r)
	if !ok {
		return
	}

	if len(req.Cart) == 0 && req.OrderType != order.TypeParcel {
		writeError(w, http.StatusBadRequest, "cart", "cart must not be empty")
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), *domainReq)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, placeOrderResponse{
		OrderID:     result.OrderID,
		OrderAmount: result.OrderAmount,
		Message:     "order placed successfully",
	})
}

func (h *Handler) placePrescriptionOrder(w http.ResponseWriter, r *http.Request) {
	req, domainReq, ok := h.decodePlacement(w, r)
	if !ok {
		return
	}

	if len(req.Attachments) == 0 {
		writeError(w, http.StatusBadRequest, "order_attachment", "prescription image required")
		return
	}

	result, err := h.orders.PlacePrescriptionOrder(r.Context(), *domainReq)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, placeOrderResponse{
		OrderID:     result.OrderID,
		OrderAmount: result.OrderAmount,
		Message:     "order placed successfully",
	})
}

// decodePlacement handles the transport validation shared by the placement
// endpoints and converts the payload into the domain request.
func (h *Handler) decodePlacement(w http.ResponseWriter, r *http.Request) (*placeOrderRequest, *order.PlaceOrderRequest, bool) {
	customer, ok := customerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "customer", "missing customer identity")
		return nil, nil, false
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "body", "malformed request body")
		return nil, nil, false
	}

	switch req.OrderType {
	case order.TypeDelivery, order.TypeTakeAway, order.TypeParcel:
	default:
		writeError(w, http.StatusBadRequest, "order_type", "unknown order type")
		return nil, nil, false
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "payment_method", "payment method required")
		return nil, nil, false
	}

	distance, err := parseDecimal(req.Distance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "distance", "malformed distance")
		return nil, nil, false
	}
	tips, err := parseDecimal(req.DMTips)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dm_tips", "malformed tips amount")
		return nil, nil, false
	}

	domainReq := &order.PlaceOrderRequest{
		CustomerID:     customer,
		OrderType:      req.OrderType,
		PaymentMethod:  req.PaymentMethod,
		PartialPayment: req.PartialPayment,

		StoreID:  req.StoreID,
		ModuleID: moduleID(r),
		ZoneIDs:  zoneIDs(r),

		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Distance:  distance,

		Address:    req.Address.domain(),
		ScheduleAt: req.ScheduleAt,

		CouponCode: req.CouponCode,
		DMTips:     tips,

		Cart: cartLines(req.Cart),

		OrderNote:           req.OrderNote,
		UnavailableItemNote: req.UnavailableItemNote,
		DeliveryInstruction: req.DeliveryInstruction,
		Cutlery:             req.Cutlery,
		Attachments:         req.Attachments,

		ParcelCategoryID: req.ParcelCategoryID,
		ReceiverDetails:  req.ReceiverDetails,
		ChargePayer:      req.ChargePayer,
	}

	return &req, domainReq, true
}

func (a *addressPayload) domain() *order.Address {
	if a == nil {
		return nil
	}
	return &order.Address{
		ContactPersonName:   a.ContactPersonName,
		ContactPersonNumber: a.ContactPersonNumber,
		AddressType:         a.AddressType,
		Address:             a.Address,
		Floor:               a.Floor,
		Road:                a.Road,
		House:               a.House,
		Latitude:            a.Latitude,
		Longitude:           a.Longitude,
	}
}

func cartLines(payload []cartLinePayload) []catalog.CartLine {
	lines := make([]catalog.CartLine, len(payload))
	for i, p := range payload {
		lines[i] = catalog.CartLine{
			ItemID:          p.ItemID,
			CampaignID:      p.CampaignID,
			Quantity:        p.Quantity,
			Variation:       p.Variation,
			AddOnIDs:        p.AddOnIDs,
			AddOnQuantities: p.AddOnQuantities,
		}
	}
	return lines
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
