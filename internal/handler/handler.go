// Package handler exposes the customer order API over HTTP. Handlers decode
// and validate transport concerns only; every business decision lives in the
// domain services.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/deliverymart/internal/domain/catalog"
	"github.com/xenking/deliverymart/internal/domain/coupon"
	"github.com/xenking/deliverymart/internal/domain/order"
	"github.com/xenking/deliverymart/internal/domain/store"
	"github.com/xenking/deliverymart/internal/domain/zone"
)

// Identification headers. Authentication happens upstream; the gateway
// forwards the resolved identity and session scope in these headers.
const (
	headerCustomerID = "X-Customer-Id"
	headerZoneIDs    = "X-Zone-Ids"
	headerModuleID   = "X-Module-Id"
)

// Handler serves the customer order endpoints.
type Handler struct {
	orders  *order.Service
	reasons order.ReasonRepository
}

// New constructs a Handler with the required domain dependencies.
func New(orders *order.Service, reasons order.ReasonRepository) *Handler {
	return &Handler{orders: orders, reasons: reasons}
}

// Register mounts the order API under /api/v1/customer/order.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1/customer/order").Subrouter()

	api.HandleFunc("/place", h.placeOrder).Methods(http.MethodPost)
	api.HandleFunc("/prescription/place", h.placePrescriptionOrder).Methods(http.MethodPost)
	api.HandleFunc("/list", h.orderHistory).Methods(http.MethodGet)
	api.HandleFunc("/running-orders", h.runningOrders).Methods(http.MethodGet)
	api.HandleFunc("/details", h.orderDetails).Methods(http.MethodGet)
	api.HandleFunc("/track", h.trackOrder).Methods(http.MethodGet)
	api.HandleFunc("/cancel", h.cancelOrder).Methods(http.MethodPut)
	api.HandleFunc("/refund-request", h.requestRefund).Methods(http.MethodPost)
	api.HandleFunc("/payment-method", h.switchPaymentMethod).Methods(http.MethodPut)
	api.HandleFunc("/cancellation-reasons", h.cancellationReasons).Methods(http.MethodGet)
	api.HandleFunc("/refund-reasons", h.refundReasons).Methods(http.MethodGet)
	api.HandleFunc("/most-tips", h.mostFrequentTip).Methods(http.MethodGet)
}

// apiError is one entry of the error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Errors: []apiError{{Code: code, Message: message}}})
}

// writeDomainError maps a domain error onto the envelope. Unclassified errors
// are logged and surfaced as an opaque 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

// classify buckets domain errors into the four client-facing status classes:
// 400 input, 403 business rule, 404 not found, 406 temporal conflict.
func classify(err error) (int, string) {
	var (
		minOrder *order.MinimumOrderError
		oos      *catalog.OutOfStockError
		qty      *catalog.QuantityLimitError
	)

	switch {
	case errors.As(err, &minOrder):
		return http.StatusForbidden, "minimum_order"
	case errors.As(err, &oos):
		return http.StatusForbidden, "out_of_stock"
	case errors.As(err, &qty):
		return http.StatusForbidden, "quantity_limit"
	}

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrItemUnavailable):
		return http.StatusNotFound, "item_unavailable"

	case errors.Is(err, order.ErrScheduleInPast),
		errors.Is(err, order.ErrScheduleNotAvailable):
		return http.StatusNotAcceptable, "schedule"
	case errors.Is(err, order.ErrStoreClosed):
		return http.StatusNotAcceptable, "store_closed"
	case errors.Is(err, coupon.ErrExpired):
		return http.StatusNotAcceptable, "coupon_expired"

	case errors.Is(err, order.ErrHomeDeliveryDisabled),
		errors.Is(err, order.ErrTakeawayDisabled),
		errors.Is(err, order.ErrPartialPaymentDisabled),
		errors.Is(err, order.ErrCODDisabled):
		return http.StatusForbidden, "feature_disabled"
	case errors.Is(err, order.ErrCODLimitExceeded):
		return http.StatusForbidden, "cod_limit"
	case errors.Is(err, order.ErrInsufficientBalance):
		return http.StatusForbidden, "insufficient_balance"
	case errors.Is(err, order.ErrPartialNotApplicable):
		return http.StatusForbidden, "partial_payment"
	case errors.Is(err, order.ErrCancelNotAllowed):
		return http.StatusForbidden, "cancel_not_allowed"
	case errors.Is(err, order.ErrRefundNotAllowed),
		errors.Is(err, order.ErrRefundDisabled):
		return http.StatusForbidden, "refund_not_allowed"
	case errors.Is(err, order.ErrPaymentSwitchNotAllowed):
		return http.StatusForbidden, "payment_method"
	case errors.Is(err, zone.ErrOutOfCoverage):
		return http.StatusForbidden, "out_of_coverage"
	case errors.Is(err, coupon.ErrNotEligible),
		errors.Is(err, coupon.ErrLimitExceeded):
		return http.StatusForbidden, "coupon"
	case errors.Is(err, order.ErrPlacementFailed):
		return http.StatusForbidden, "order_failed"
	}

	return http.StatusInternalServerError, "internal"
}

// customerID reads the authenticated customer from the forwarded identity
// header.
func customerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(headerCustomerID), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// zoneIDs reads the session's admissible zone set, a JSON array forwarded by
// the gateway.
func zoneIDs(r *http.Request) []int64 {
	raw := r.Header.Get(headerZoneIDs)
	if raw == "" {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func moduleID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get(headerModuleID), 10, 64)
	return id
}

// pagination reads limit/offset with the listing defaults.
func pagination(r *http.Request) (limit, offset int64) {
	limit, _ = strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	offset, _ = strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryOrderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
