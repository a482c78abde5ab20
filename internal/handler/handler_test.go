package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/deliverymart/internal/domain/catalog"
	"github.com/xenking/deliverymart/internal/domain/coupon"
	"github.com/xenking/deliverymart/internal/domain/order"
	"github.com/xenking/deliverymart/internal/domain/store"
	"github.com/xenking/deliverymart/internal/domain/zone"
)

type mockReasons struct {
	cancellation []order.Reason
	refund       []order.Reason
	err          error
}

func (m *mockReasons) CancellationReasons(_ context.Context) ([]order.Reason, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cancellation, nil
}

func (m *mockReasons) RefundReasons(_ context.Context) ([]order.Reason, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.refund, nil
}

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

func doRequest(t *testing.T, router *mux.Router, method, path, customerID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if customerID != "" {
		req.Header.Set("X-Customer-Id", customerID)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func firstError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Errors)
	return envelope.Errors[0]
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"minimum order", &order.MinimumOrderError{}, http.StatusForbidden, "minimum_order"},
		{"out of stock", &catalog.OutOfStockError{ItemName: "milk"}, http.StatusForbidden, "out_of_stock"},
		{"quantity limit", &catalog.QuantityLimitError{ItemName: "pizza"}, http.StatusForbidden, "quantity_limit"},

		{"order not found", order.ErrNotFound, http.StatusNotFound, "not_found"},
		{"store not found", store.ErrNotFound, http.StatusNotFound, "not_found"},
		{"coupon not found", coupon.ErrNotFound, http.StatusNotFound, "not_found"},
		{"item unavailable", catalog.ErrItemUnavailable, http.StatusNotFound, "item_unavailable"},

		{"schedule in past", order.ErrScheduleInPast, http.StatusNotAcceptable, "schedule"},
		{"schedule not available", order.ErrScheduleNotAvailable, http.StatusNotAcceptable, "schedule"},
		{"store closed", order.ErrStoreClosed, http.StatusNotAcceptable, "store_closed"},
		{"coupon expired", coupon.ErrExpired, http.StatusNotAcceptable, "coupon_expired"},

		{"home delivery disabled", order.ErrHomeDeliveryDisabled, http.StatusForbidden, "feature_disabled"},
		{"takeaway disabled", order.ErrTakeawayDisabled, http.StatusForbidden, "feature_disabled"},
		{"partial payment disabled", order.ErrPartialPaymentDisabled, http.StatusForbidden, "feature_disabled"},
		{"cod disabled", order.ErrCODDisabled, http.StatusForbidden, "feature_disabled"},
		{"cod limit", order.ErrCODLimitExceeded, http.StatusForbidden, "cod_limit"},
		{"insufficient balance", order.ErrInsufficientBalance, http.StatusForbidden, "insufficient_balance"},
		{"partial not applicable", order.ErrPartialNotApplicable, http.StatusForbidden, "partial_payment"},
		{"cancel not allowed", order.ErrCancelNotAllowed, http.StatusForbidden, "cancel_not_allowed"},
		{"refund not allowed", order.ErrRefundNotAllowed, http.StatusForbidden, "refund_not_allowed"},
		{"refund disabled", order.ErrRefundDisabled, http.StatusForbidden, "refund_not_allowed"},
		{"payment switch", order.ErrPaymentSwitchNotAllowed, http.StatusForbidden, "payment_method"},
		{"out of coverage", zone.ErrOutOfCoverage, http.StatusForbidden, "out_of_coverage"},
		{"coupon not eligible", coupon.ErrNotEligible, http.StatusForbidden, "coupon"},
		{"coupon limit", coupon.ErrLimitExceeded, http.StatusForbidden, "coupon"},
		{"placement failed", order.ErrPlacementFailed, http.StatusForbidden, "order_failed"},

		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestClassify_Wrapped(t *testing.T) {
	err := errors.Wrap(order.ErrStoreClosed, "open store")
	status, code := classify(err)
	assert.Equal(t, http.StatusNotAcceptable, status)
	assert.Equal(t, "store_closed", code)
}

func TestPlaceOrder_TransportValidation(t *testing.T) {
	router := newRouter(New(nil, nil))

	tests := []struct {
		name     string
		customer string
		body     string
		wantCode string
	}{
		{
			name:     "missing identity",
			body:     `{"order_type":"delivery","payment_method":"cash_on_delivery"}`,
			wantCode: "customer",
		},
		{
			name:     "malformed body",
			customer: "1",
			body:     `{"order_type":`,
			wantCode: "body",
		},
		{
			name:     "unknown order type",
			customer: "1",
			body:     `{"order_type":"teleport","payment_method":"cash_on_delivery"}`,
			wantCode: "order_type",
		},
		{
			name:     "missing payment method",
			customer: "1",
			body:     `{"order_type":"delivery"}`,
			wantCode: "payment_method",
		},
		{
			name:     "malformed distance",
			customer: "1",
			body:     `{"order_type":"delivery","payment_method":"cash_on_delivery","distance":"3km"}`,
			wantCode: "distance",
		},
		{
			name:     "malformed tips",
			customer: "1",
			body:     `{"order_type":"delivery","payment_method":"cash_on_delivery","dm_tips":"lots"}`,
			wantCode: "dm_tips",
		},
		{
			name:     "empty cart",
			customer: "1",
			body:     `{"order_type":"delivery","payment_method":"cash_on_delivery"}`,
			wantCode: "cart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/v1/customer/order/place", tt.customer, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, firstError(t, rec).Code)
		})
	}
}

func TestPlacePrescriptionOrder_RequiresAttachment(t *testing.T) {
	router := newRouter(New(nil, nil))

	body := `{"order_type":"delivery","payment_method":"cash_on_delivery","store_id":1}`
	rec := doRequest(t, router, http.MethodPost, "/api/v1/customer/order/prescription/place", "1", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "order_attachment", firstError(t, rec).Code)
}

func TestCancelOrder_TransportValidation(t *testing.T) {
	router := newRouter(New(nil, nil))

	tests := []struct {
		name     string
		customer string
		body     string
		wantCode string
	}{
		{name: "missing identity", body: `{"order_id":100005}`, wantCode: "customer"},
		{name: "malformed body", customer: "1", body: `not json`, wantCode: "body"},
		{name: "missing order id", customer: "1", body: `{"reason":"mistake"}`, wantCode: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPut, "/api/v1/customer/order/cancel", tt.customer, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, firstError(t, rec).Code)
		})
	}
}

func TestTrackOrder_TransportValidation(t *testing.T) {
	router := newRouter(New(nil, nil))

	t.Run("missing order id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/customer/order/track", "1", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "order_id", firstError(t, rec).Code)
	})

	t.Run("malformed order id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/customer/order/track?order_id=abc", "1", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "order_id", firstError(t, rec).Code)
	})
}

func TestRefundRequest_TransportValidation(t *testing.T) {
	router := newRouter(New(nil, nil))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/customer/order/refund-request", "1", `{"order_id":0}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "body", firstError(t, rec).Code)
}

func TestSwitchPaymentMethod_TransportValidation(t *testing.T) {
	router := newRouter(New(nil, nil))

	rec := doRequest(t, router, http.MethodPut, "/api/v1/customer/order/payment-method", "1", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "body", firstError(t, rec).Code)
}

func TestCancellationReasons(t *testing.T) {
	reasons := &mockReasons{cancellation: []order.Reason{
		{ID: 1, Reason: "Ordered by mistake"},
		{ID: 2, Reason: "Delivery taking too long"},
	}}
	router := newRouter(New(nil, reasons))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/customer/order/cancellation-reasons", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []reasonPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Ordered by mistake", got[0].Reason)
}

func TestRefundReasons_RepositoryFailure(t *testing.T) {
	reasons := &mockReasons{err: errors.New("db down")}
	router := newRouter(New(nil, reasons))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/customer/order/refund-reasons", "", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := firstError(t, rec)
	assert.Equal(t, "internal", e.Code)
	assert.Equal(t, "internal server error", e.Message, "internal cause must not leak")
}

func TestIdentityHelpers(t *testing.T) {
	t.Run("customer id", func(t *testing.T) {
		tests := []struct {
			header string
			wantID int64
			wantOK bool
		}{
			{"12", 12, true},
			{"0", 0, false},
			{"-3", 0, false},
			{"abc", 0, false},
			{"", 0, false},
		}
		for _, tt := range tests {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Customer-Id", tt.header)
			}
			id, ok := customerID(req)
			assert.Equal(t, tt.wantOK, ok, "header %q", tt.header)
			assert.Equal(t, tt.wantID, id, "header %q", tt.header)
		}
	})

	t.Run("zone ids", func(t *testing.T) {
		tests := []struct {
			header string
			want   []int64
		}{
			{`[1,2]`, []int64{1, 2}},
			{`[]`, []int64{}},
			{`not json`, nil},
			{``, nil},
		}
		for _, tt := range tests {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Zone-Ids", tt.header)
			}
			assert.Equal(t, tt.want, zoneIDs(req), "header %q", tt.header)
		}
	})

	t.Run("module id defaults to zero", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Zero(t, moduleID(req))

		req.Header.Set("X-Module-Id", "4")
		assert.Equal(t, int64(4), moduleID(req))
	})
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int64
		wantOffset int64
	}{
		{"", 10, 0},
		{"?limit=25&offset=50", 25, 50},
		{"?limit=-1", 10, 0},
		{"?offset=-5", 10, 0},
		{"?limit=abc&offset=abc", 10, 0},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		limit, offset := pagination(req)
		assert.Equal(t, tt.wantLimit, limit, "query %q", tt.query)
		assert.Equal(t, tt.wantOffset, offset, "query %q", tt.query)
	}
}
