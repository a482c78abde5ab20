package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/xenking/deliverymart/internal/domain/order"
)

// orderPayload is the order representation returned by the listing and
// detail endpoints.
type orderPayload struct {
	ID            int64  `json:"id"`
	OrderType     string `json:"order_type"`
	OrderStatus   string `json:"order_status"`
	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `json:"payment_status"`

	OrderAmount          decimal.Decimal `json:"order_amount"`
	DeliveryCharge       decimal.Decimal `json:"delivery_charge"`
	StoreDiscountAmount  decimal.Decimal `json:"store_discount_amount"`
	CouponDiscountAmount decimal.Decimal `json:"coupon_discount_amount"`
	TotalTaxAmount       decimal.Decimal `json:"total_tax_amount"`
	DMTips               decimal.Decimal `json:"dm_tips"`
	PartiallyPaidAmount  decimal.Decimal `json:"partially_paid_amount"`

	StoreID  *int64 `json:"store_id,omitempty"`
	ZoneID   int64  `json:"zone_id"`
	ModuleID int64  `json:"module_id"`

	CouponCode     string  `json:"coupon_code,omitempty"`
	FreeDeliveryBy *string `json:"free_delivery_by,omitempty"`

	ScheduleAt        time.Time `json:"schedule_at"`
	Scheduled         bool      `json:"scheduled"`
	PrescriptionOrder bool      `json:"prescription_order"`

	DetailsCount int64 `json:"details_count"`

	CancellationReason string `json:"cancellation_reason,omitempty"`
	CanceledBy         string `json:"canceled_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type detailPayload struct {
	ID              int64           `json:"id"`
	ItemID          *int64          `json:"item_id,omitempty"`
	CampaignID      *int64          `json:"item_campaign_id,omitempty"`
	ItemDetails     json.RawMessage `json:"item_details"`
	Quantity        int64           `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	DiscountOnItem  decimal.Decimal `json:"discount_on_item"`
	Variation       json.RawMessage `json:"variation"`
	AddOns          json.RawMessage `json:"add_ons"`
	TotalAddOnPrice decimal.Decimal `json:"total_add_on_price"`
	Status          string          `json:"status"`
}

type listResponse struct {
	TotalSize int64          `json:"total_size"`
	Limit     int64          `json:"limit"`
	Offset    int64          `json:"offset"`
	Orders    []orderPayload `json:"orders"`
}

func toOrderPayload(o order.Order) orderPayload {
	return orderPayload{
		ID:            o.ID,
		OrderType:     o.OrderType,
		OrderStatus:   o.OrderStatus,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,

		OrderAmount:          o.OrderAmount,
		DeliveryCharge:       o.DeliveryCharge,
		StoreDiscountAmount:  o.StoreDiscountAmount,
		CouponDiscountAmount: o.CouponDiscountAmount,
		TotalTaxAmount:       o.TotalTaxAmount,
		DMTips:               o.DMTips,
		PartiallyPaidAmount:  o.PartiallyPaidAmount,

		StoreID:  o.StoreID,
		ZoneID:   o.ZoneID,
		ModuleID: o.ModuleID,

		CouponCode:     o.CouponCode,
		FreeDeliveryBy: o.FreeDeliveryBy,

		ScheduleAt:        o.ScheduleAt,
		Scheduled:         o.Scheduled,
		PrescriptionOrder: o.PrescriptionOrder,

		DetailsCount: o.DetailsCount,

		CancellationReason: o.CancellationReason,
		CanceledBy:         o.CanceledBy,

		CreatedAt: o.CreatedAt,
	}
}

func toDetailPayload(d order.Detail) detailPayload {
	return detailPayload{
		ID:              d.ID,
		ItemID:          d.ItemID,
		CampaignID:      d.CampaignID,
		ItemDetails:     d.ItemDetails,
		Quantity:        d.Quantity,
		Price:           d.Price,
		TaxAmount:       d.TaxAmount,
		DiscountOnItem:  d.DiscountOnItem,
		Variation:       d.Variation,
		AddOns:          d.AddOns,
		TotalAddOnPrice: d.TotalAddOnPrice,
		Status:          d.Status,
	}
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, h.orders.OrderHistory)
}

func (h *Handler) runningOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r, h.orders.RunningOrders)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, customerID, limit, offset int64) (*order.ListPage, error)) {
	customer, ok := customerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "customer", "missing customer identity")
		return
	}
	limit, offset := pagination(r)

	page, err := list(r.Context(), customer, limit, offset)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		TotalSize: page.TotalSize,
		Limit:     page.Limit,
		Offset:    page.Offset,
		Orders:    lo.Map(page.Orders, func(o order.Order, _ int) orderPayload { return toOrderPayload(o) }),
	})
}

func (h *Handler) orderDetails(w http.ResponseWriter, r *http.Request) {
	customer, ok := customerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "customer", "missing customer identity")
		return
	}
	orderID, ok := queryOrderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "order_id", "missing or malformed order_id")
		return
	}

	o, details, err := h.orders.OrderDetails(r.Context(), orderID, customer)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	// Parcel and prescription orders have no line items; the order itself is
	// returned instead.
	if details == nil {
		writeJSON(w, http.StatusOK, toOrderPayload(*o))
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(details, func(d order.Detail, _ int) detailPayload { return toDetailPayload(d) }))
}

func (h *Handler) trackOrder(w http.ResponseWriter, r *http.Request) {
	customer, ok := customerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "customer", "missing customer identity")
		return
	}
	orderID, ok := queryOrderID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "order_id", "missing or malformed order_id")
		return
	}

	o, err := h.orders.TrackOrder(r.Context(), orderID, customer)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderPayload(*o))
}

type cancelRequest struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	customer, ok := customerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "customer", "missing customer identity")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		writeError(w, http.StatusBadRequest, "body", "malformed request body")
		return
	}

	if err := h.orders.CancelOrder(r.Context(), customer, req.OrderID, req.Reason); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "order canceled successfully"})
}

type refundRequest struct {
	OrderID int64    `json:"order_id"`
	Reason  string   `json:"customer_reason"`
	Note    string   `json:"customer_note"`
	Method  string   `json:"refund_method"`
	Images  []string `json:"image"`
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	customer, ok := customerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "customer", "missing customer identity")
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		writeError(w, http.StatusBadRequest, "body", "malformed request body")
		return
	}

	err := h.orders.RequestRefund(r.Context(), order.RefundInput{
		CustomerID: customer,
		OrderID:    req.OrderID,
		Reason:     req.Reason,
		Note:       req.Note,
		Method:     req.Method,
		Images:     req.Images,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "refund request placed successfully"})
}

type paymentMethodRequest struct {
	OrderID int64 `json:"order_id"`
}

func (h *Handler) switchPaymentMethod(w http.ResponseWriter, r *http.Request) {
	customer, ok := customerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "customer", "missing customer identity")
		return
	}

	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		writeError(w, http.StatusBadRequest, "body", "malformed request body")
		return
	}

	if err := h.orders.SwitchToCashOnDelivery(r.Context(), req.OrderID, customer); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "payment method updated"})
}

type reasonPayload struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

func (h *Handler) cancellationReasons(w http.ResponseWriter, r *http.Request) {
	reasons, err := h.reasons.CancellationReasons(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(reasons, func(re order.Reason, _ int) reasonPayload {
		return reasonPayload{ID: re.ID, Reason: re.Reason}
	}))
}

func (h *Handler) refundReasons(w http.ResponseWriter, r *http.Request) {
	reasons, err := h.reasons.RefundReasons(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(reasons, func(re order.Reason, _ int) reasonPayload {
		return reasonPayload{ID: re.ID, Reason: re.Reason}
	}))
}

func (h *Handler) mostFrequentTip(w http.ResponseWriter, r *http.Request) {
	tip, err := h.orders.MostFrequentTip(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if tip == nil {
		writeJSON(w, http.StatusOK, map[string]any{"most_tips": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"most_tips": *tip})
}
