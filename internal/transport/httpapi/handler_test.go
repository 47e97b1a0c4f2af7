package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/ismartsell/fulfillment/internal/catalog/domain"
	"github.com/ismartsell/fulfillment/internal/core"
	"github.com/ismartsell/fulfillment/internal/order/application"
	"github.com/ismartsell/fulfillment/internal/order/domain"
	paymentdomain "github.com/ismartsell/fulfillment/internal/payment/domain"
)

type stubOrders struct {
	createFn     func(ctx context.Context, buyerID, storeID string, lines []application.OrderLine, method domain.PaymentMethod) (domain.Order, error)
	cancelFn     func(ctx context.Context, orderID, requesterID string) error
	markReadyFn  func(ctx context.Context, orderID, requesterID string) error
	validateQRFn func(ctx context.Context, token string) (application.QRValidation, error)
	getFn        func(ctx context.Context, id string) (domain.Order, error)
}

func (s *stubOrders) CreateOrder(ctx context.Context, buyerID, storeID string, lines []application.OrderLine, method domain.PaymentMethod) (domain.Order, error) {
	return s.createFn(ctx, buyerID, storeID, lines, method)
}

func (s *stubOrders) CancelOrder(ctx context.Context, orderID, requesterID string) error {
	return s.cancelFn(ctx, orderID, requesterID)
}

func (s *stubOrders) MarkReady(ctx context.Context, orderID, requesterID string) error {
	return s.markReadyFn(ctx, orderID, requesterID)
}

func (s *stubOrders) ValidateQR(ctx context.Context, token string) (application.QRValidation, error) {
	return s.validateQRFn(ctx, token)
}

func (s *stubOrders) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.getFn(ctx, id)
}

func (s *stubOrders) ListByBuyer(context.Context, string) ([]domain.Order, error) { return nil, nil }
func (s *stubOrders) ListByStore(context.Context, string) ([]domain.Order, error) { return nil, nil }

type stubPayments struct {
	initiateFn func(ctx context.Context, orderID, requesterID, provider string) (paymentdomain.Payment, error)
	completeFn func(ctx context.Context, paymentID string) (paymentdomain.Payment, error)
	getFn      func(ctx context.Context, id string) (paymentdomain.Payment, error)
}

func (s *stubPayments) Initiate(ctx context.Context, orderID, requesterID, provider string) (paymentdomain.Payment, error) {
	return s.initiateFn(ctx, orderID, requesterID, provider)
}

func (s *stubPayments) Complete(ctx context.Context, paymentID string) (paymentdomain.Payment, error) {
	return s.completeFn(ctx, paymentID)
}

func (s *stubPayments) Get(ctx context.Context, id string) (paymentdomain.Payment, error) {
	return s.getFn(ctx, id)
}

type stubCatalog struct {
	getFn  func(ctx context.Context, id string) (catalogdomain.Product, error)
	listFn func(ctx context.Context, storeID string) ([]catalogdomain.Product, error)
}

func (s *stubCatalog) Get(ctx context.Context, id string) (catalogdomain.Product, error) {
	return s.getFn(ctx, id)
}

func (s *stubCatalog) ListByStore(ctx context.Context, storeID string) ([]catalogdomain.Product, error) {
	return s.listFn(ctx, storeID)
}

func newTestHandler(orders *stubOrders, payments *stubPayments, catalog *stubCatalog) http.Handler {
	h := NewHandler(slog.Default(), orders, payments, catalog, nil, nil)
	return h.Routes()
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:            "ord-1",
		BuyerID:       "buyer1",
		StoreID:       "store1",
		Status:        domain.StatusPending,
		PaymentMethod: domain.PaymentOnline,
		SubtotalCents: 3000,
		TotalCents:    3000,
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 2, UnitPriceCents: 1500, TotalPriceCents: 3000},
		},
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	orders := &stubOrders{
		createFn: func(_ context.Context, buyerID, storeID string, lines []application.OrderLine, method domain.PaymentMethod) (domain.Order, error) {
			assert.Equal(t, "buyer1", buyerID)
			assert.Equal(t, "store1", storeID)
			require.Len(t, lines, 1)
			assert.Equal(t, "p1", lines[0].ProductID)
			assert.Equal(t, 2, lines[0].Quantity)
			assert.Equal(t, domain.PaymentOnline, method)
			return sampleOrder(), nil
		},
	}
	srv := newTestHandler(orders, &stubPayments{}, &stubCatalog{})

	body, _ := json.Marshal(createOrderReq{
		StoreID:       "store1",
		Items:         []orderLineReq{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: "ONLINE",
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "buyer1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp orderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.ID)
	assert.Equal(t, int64(3000), resp.TotalCents)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestCreateOrderRequiresUser(t *testing.T) {
	srv := newTestHandler(&stubOrders{}, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateOrderBusinessRuleMapsTo400(t *testing.T) {
	orders := &stubOrders{
		createFn: func(context.Context, string, string, []application.OrderLine, domain.PaymentMethod) (domain.Order, error) {
			return domain.Order{}, core.BusinessRulef("insufficient stock for widget: available 1, requested 2")
		},
	}
	srv := newTestHandler(orders, &stubPayments{}, &stubCatalog{})

	body := []byte(`{"store_id":"store1","items":[{"product_id":"p1","quantity":2}]}`)
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "buyer1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "insufficient stock")
}

func TestGetOrderNotFound(t *testing.T) {
	orders := &stubOrders{
		getFn: func(_ context.Context, id string) (domain.Order, error) {
			return domain.Order{}, core.NotFoundf("order %s not found", id)
		},
	}
	srv := newTestHandler(orders, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	var gotOrder, gotUser string
	orders := &stubOrders{
		cancelFn: func(_ context.Context, orderID, requesterID string) error {
			gotOrder, gotUser = orderID, requesterID
			return nil
		},
	}
	srv := newTestHandler(orders, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPut, "/orders/ord-1/cancel", nil)
	req.Header.Set("X-User-ID", "buyer1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ord-1", gotOrder)
	assert.Equal(t, "buyer1", gotUser)
}

func TestMarkReadyUnauthorizedMapsTo403(t *testing.T) {
	orders := &stubOrders{
		markReadyFn: func(context.Context, string, string) error {
			return core.Unauthorizedf("you can only mark orders from your own stores as ready")
		},
	}
	srv := newTestHandler(orders, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPut, "/orders/ord-1/ready", nil)
	req.Header.Set("X-User-ID", "not-the-seller")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidateQREndpoint(t *testing.T) {
	orders := &stubOrders{
		validateQRFn: func(_ context.Context, token string) (application.QRValidation, error) {
			assert.Equal(t, "tok-1", token)
			return application.QRValidation{
				Valid:   true,
				OrderID: "ord-1",
				StoreID: "store1",
				Status:  domain.StatusDelivered,
				Message: "Order validated and marked as delivered",
			}, nil
		},
	}
	srv := newTestHandler(orders, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/qr/validate", bytes.NewReader([]byte(`{"token":"tok-1"}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp validateQRResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "ord-1", resp.OrderID)
	assert.Equal(t, "DELIVERED", resp.Status)
}

func TestValidateQRInvalidTokenStaysHTTP200(t *testing.T) {
	orders := &stubOrders{
		validateQRFn: func(context.Context, string) (application.QRValidation, error) {
			return application.QRValidation{Valid: false, Message: "Invalid QR code"}, nil
		},
	}
	srv := newTestHandler(orders, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/qr/validate", bytes.NewReader([]byte(`{"token":"nope"}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp validateQRResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, "Invalid QR code", resp.Message)
}

func TestValidateQRMissingToken(t *testing.T) {
	srv := newTestHandler(&stubOrders{}, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/qr/validate", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompletePaymentEndpoint(t *testing.T) {
	payments := &stubPayments{
		completeFn: func(_ context.Context, paymentID string) (paymentdomain.Payment, error) {
			assert.Equal(t, "pay-1", paymentID)
			return paymentdomain.Payment{
				ID:              "pay-1",
				OrderID:         "ord-1",
				AmountCents:     10000,
				CommissionCents: 100,
				Status:          paymentdomain.StatusCompleted,
			}, nil
		},
	}
	srv := newTestHandler(&stubOrders{}, payments, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/payments/pay-1/complete", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp paymentResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(100), resp.CommissionCents)
	assert.Equal(t, "COMPLETED", resp.Status)
}

func TestCompletePaymentReplayMapsTo400(t *testing.T) {
	payments := &stubPayments{
		completeFn: func(context.Context, string) (paymentdomain.Payment, error) {
			return paymentdomain.Payment{}, core.Validationf("payment already processed (status: COMPLETED)")
		},
	}
	srv := newTestHandler(&stubOrders{}, payments, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/payments/pay-1/complete", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersRequiresFilter(t *testing.T) {
	srv := newTestHandler(&stubOrders{}, &stubPayments{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProductEndpoint(t *testing.T) {
	catalog := &stubCatalog{
		getFn: func(_ context.Context, id string) (catalogdomain.Product, error) {
			return catalogdomain.Product{ID: id, StoreID: "store1", Name: "widget", PriceCents: 500, Stock: 3, Active: true}, nil
		},
	}
	srv := newTestHandler(&stubOrders{}, &stubPayments{}, catalog)

	req := httptest.NewRequest(http.MethodGet, "/products/p1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp productResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.ID)
	assert.Equal(t, 3, resp.Stock)
}
