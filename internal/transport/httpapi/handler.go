package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalogdomain "github.com/ismartsell/fulfillment/internal/catalog/domain"
	"github.com/ismartsell/fulfillment/internal/core"
	"github.com/ismartsell/fulfillment/internal/order/application"
	"github.com/ismartsell/fulfillment/internal/order/domain"
	"github.com/ismartsell/fulfillment/pkg/idempotency"
	"github.com/ismartsell/fulfillment/pkg/metrics"
)

// OrderService is the order-side surface the API exposes.
type OrderService interface {
	CreateOrder(ctx context.Context, buyerID, storeID string, lines []application.OrderLine, method domain.PaymentMethod) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID, requesterID string) error
	MarkReady(ctx context.Context, orderID, requesterID string) error
	ValidateQR(ctx context.Context, token string) (application.QRValidation, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Order, error)
}

type CatalogService interface {
	Get(ctx context.Context, id string) (catalogdomain.Product, error)
	ListByStore(ctx context.Context, storeID string) ([]catalogdomain.Product, error)
}

type Handler struct {
	log      *slog.Logger
	orders   OrderService
	payments PaymentService
	catalog  CatalogService
	idem     *idempotency.Store
	reg      *metrics.Registry
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, orders OrderService, payments PaymentService, catalog CatalogService, idem *idempotency.Store, reg *metrics.Registry) *Handler {
	return &Handler{
		log:      log,
		orders:   orders,
		payments: payments,
		catalog:  catalog,
		idem:     idem,
		reg:      reg,
		tracer:   otel.Tracer("fulfillment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/cancel", h.cancelOrder)
	r.Put("/orders/{id}/ready", h.markReady)

	r.Post("/payments/{orderID}/pay", h.initiatePayment)
	r.Post("/payments/{paymentID}/complete", h.completePayment)
	r.Get("/payments/{id}", h.getPayment)

	r.Post("/qr/validate", h.validateQR)

	r.Get("/products/{id}", h.getProduct)
	r.Get("/stores/{id}/products", h.listStoreProducts)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

// requester pulls the caller identity set by the upstream auth gateway.
func requester(r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	return id, id != ""
}

type orderLineReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderReq struct {
	StoreID       string         `json:"store_id"`
	Items         []orderLineReq `json:"items"`
	PaymentMethod string         `json:"payment_method"`
}

type orderItemResp struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

type orderResp struct {
	ID            string          `json:"id"`
	BuyerID       string          `json:"buyer_id"`
	StoreID       string          `json:"store_id"`
	Status        string          `json:"status"`
	SubtotalCents int64           `json:"subtotal_cents"`
	ShippingCents int64           `json:"shipping_cents"`
	TotalCents    int64           `json:"total_cents"`
	PaymentMethod string          `json:"payment_method"`
	ReservedUntil *time.Time      `json:"reserved_until,omitempty"`
	Items         []orderItemResp `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toOrderResp(o domain.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResp{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			UnitPriceCents:  it.UnitPriceCents,
			TotalPriceCents: it.TotalPriceCents,
		})
	}
	return orderResp{
		ID:            o.ID,
		BuyerID:       o.BuyerID,
		StoreID:       o.StoreID,
		Status:        string(o.Status),
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
		PaymentMethod: string(o.PaymentMethod),
		ReservedUntil: o.ReservedUntil,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	buyerID, ok := requester(r)
	if !ok {
		respondError(w, core.Unauthorizedf("missing X-User-ID header"))
		return
	}
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, core.Validationf("invalid request body"))
		return
	}
	lines := make([]application.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, application.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	method := domain.PaymentMethod(req.PaymentMethod)
	if req.PaymentMethod == "" {
		method = domain.PaymentNone
	}

	order, err := h.orders.CreateOrder(ctx, buyerID, req.StoreID, lines, method)
	if err != nil {
		respondError(w, err)
		return
	}
	if h.reg != nil {
		h.reg.OrdersCreated.Inc()
	}
	respondJSON(w, http.StatusCreated, toOrderResp(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResp(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []domain.Order
		err    error
	)
	switch {
	case r.URL.Query().Get("buyer") != "":
		orders, err = h.orders.ListByBuyer(r.Context(), r.URL.Query().Get("buyer"))
	case r.URL.Query().Get("store") != "":
		orders, err = h.orders.ListByStore(r.Context(), r.URL.Query().Get("store"))
	default:
		respondError(w, core.Validationf("buyer or store query parameter required"))
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResp(o))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	userID, ok := requester(r)
	if !ok {
		respondError(w, core.Unauthorizedf("missing X-User-ID header"))
		return
	}
	if err := h.orders.CancelOrder(ctx, chi.URLParam(r, "id"), userID); err != nil {
		respondError(w, err)
		return
	}
	if h.reg != nil {
		h.reg.OrdersCancelled.WithLabelValues("buyer").Inc()
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "order cancelled"})
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkReady")
	defer span.End()

	userID, ok := requester(r)
	if !ok {
		respondError(w, core.Unauthorizedf("missing X-User-ID header"))
		return
	}
	if err := h.orders.MarkReady(ctx, chi.URLParam(r, "id"), userID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "order marked ready"})
}

type validateQRReq struct {
	Token string `json:"token"`
}

type validateQRResp struct {
	Valid   bool   `json:"valid"`
	OrderID string `json:"order_id,omitempty"`
	StoreID string `json:"store_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

func (h *Handler) validateQR(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ValidateQR")
	defer span.End()

	var req validateQRReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondError(w, core.Validationf("token required"))
		return
	}
	res, err := h.orders.ValidateQR(ctx, req.Token)
	if err != nil {
		respondError(w, err)
		return
	}
	if res.Valid && h.reg != nil {
		h.reg.OrdersDelivered.Inc()
	}
	respondJSON(w, http.StatusOK, validateQRResp{
		Valid:   res.Valid,
		OrderID: res.OrderID,
		StoreID: res.StoreID,
		Status:  string(res.Status),
		Message: res.Message,
	})
}

type productResp struct {
	ID          string `json:"id"`
	StoreID     string `json:"store_id"`
	Name        string `json:"name"`
	SKU         string `json:"sku,omitempty"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
	Active      bool   `json:"active"`
}

func toProductResp(p catalogdomain.Product) productResp {
	return productResp{
		ID:          p.ID,
		StoreID:     p.StoreID,
		Name:        p.Name,
		SKU:         p.SKU,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		Active:      p.Active,
	}
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResp(p))
}

func (h *Handler) listStoreProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListByStore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResp(p))
	}
	respondJSON(w, http.StatusOK, out)
}
