package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ismartsell/fulfillment/internal/core"
	"github.com/ismartsell/fulfillment/internal/order/domain"
	"github.com/ismartsell/fulfillment/pkg/outbox"
	"github.com/ismartsell/fulfillment/pkg/tracing"
)

// OrderLine is one requested position in a new order.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// QRValidation is the outcome of a pickup scan. An unknown or unusable
// token is a normal result, not an error.
type QRValidation struct {
	Valid   bool
	OrderID string
	StoreID string
	Status  domain.OrderStatus
	Message string
}

// Service orchestrates the order lifecycle: creation with stock
// reservation, cancellation with restoration, ready/deliver transitions.
type Service struct {
	log      *slog.Logger
	repo     OrderRepository
	ledger   InventoryLedger
	stores   StoreDirectory
	shipping ShippingPolicy

	reservationTimeout time.Duration
	now                func() time.Time
}

func NewService(log *slog.Logger, repo OrderRepository, ledger InventoryLedger, stores StoreDirectory, shipping ShippingPolicy, reservationTimeout time.Duration) *Service {
	if shipping == nil {
		shipping = FreeShipping{}
	}
	return &Service{
		log:                log,
		repo:               repo,
		ledger:             ledger,
		stores:             stores,
		shipping:           shipping,
		reservationTimeout: reservationTimeout,
		now:                time.Now,
	}
}

// CreateOrder validates and reserves every line, then persists the order.
// Reservation failure on any line rolls back the lines reserved before it,
// so partial reservations never outlive the call.
func (s *Service) CreateOrder(ctx context.Context, buyerID, storeID string, lines []OrderLine, method domain.PaymentMethod) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, core.Validationf("order must have at least one item")
	}
	switch method {
	case domain.PaymentOnline, domain.PaymentCash, domain.PaymentNone:
	default:
		return domain.Order{}, core.Validationf("unknown payment method %q", method)
	}

	items := make([]domain.OrderItem, 0, len(lines))
	reserved := make([]domain.OrderItem, 0, len(lines))

	rollback := func() {
		for _, it := range reserved {
			if err := s.ledger.Restore(ctx, it.ProductID, it.Quantity); err != nil {
				s.log.Error("reservation rollback failed", "product_id", it.ProductID, "qty", it.Quantity, "err", err)
			}
		}
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			rollback()
			return domain.Order{}, core.Validationf("quantity for product %s must be positive", line.ProductID)
		}
		product, err := s.ledger.Get(ctx, line.ProductID)
		if err != nil {
			rollback()
			if core.IsNotFound(err) {
				return domain.Order{}, core.Validationf("product %s not found", line.ProductID)
			}
			return domain.Order{}, err
		}
		if product.StoreID != storeID {
			rollback()
			return domain.Order{}, core.Validationf("product %s does not belong to store %s", product.ID, storeID)
		}
		if !product.Available() {
			rollback()
			return domain.Order{}, core.BusinessRulef("product %s is not available", product.Name)
		}
		if product.Stock < line.Quantity {
			rollback()
			return domain.Order{}, core.BusinessRulef("insufficient stock for %s: available %d, requested %d", product.Name, product.Stock, line.Quantity)
		}
		if err := s.ledger.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			rollback()
			return domain.Order{}, err
		}
		it := domain.NewOrderItem(product.ID, line.Quantity, product.PriceCents)
		reserved = append(reserved, it)
		items = append(items, it)
	}

	shippingCents, err := s.shipping.Quote(ctx, storeID, items)
	if err != nil {
		rollback()
		return domain.Order{}, fmt.Errorf("shipping quote: %w", err)
	}

	order := domain.NewOrder(uuid.NewString(), buyerID, storeID, items, method, shippingCents, s.now().UTC(), s.reservationTimeout)

	rec, err := eventRecord(ctx, order.ID, "OrderCreated", domain.OrderCreated{
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		StoreID:       order.StoreID,
		Status:        order.Status,
		TotalCents:    order.TotalCents,
		PaymentMethod: order.PaymentMethod,
		Items:         order.Items,
	})
	if err != nil {
		rollback()
		return domain.Order{}, err
	}
	if err := s.repo.Create(ctx, order, rec); err != nil {
		rollback()
		return domain.Order{}, err
	}

	s.log.Info("order created", "order_id", order.ID, "buyer_id", buyerID, "status", order.Status, "total_cents", order.TotalCents)
	return order, nil
}

// CancelOrder cancels on behalf of the buyer and restores stock.
func (s *Service) CancelOrder(ctx context.Context, orderID, requesterID string) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.CanCancel() {
		return core.BusinessRulef("order cannot be cancelled (status: %s)", order.Status)
	}
	if order.BuyerID != requesterID {
		return core.BusinessRulef("you can only cancel your own orders")
	}
	return s.cancel(ctx, order, false)
}

// cancel performs the transition-then-restore sequence shared by buyer
// cancellation and the expiry sweep. The status CAS is the idempotency
// marker: of two racing cancellations only the winner restores stock.
func (s *Service) cancel(ctx context.Context, order domain.Order, expired bool) error {
	rec, err := eventRecord(ctx, order.ID, "OrderCancelled", domain.OrderCancelled{OrderID: order.ID, Expired: expired})
	if err != nil {
		return err
	}
	from := []domain.OrderStatus{domain.StatusPending, domain.StatusReserved, domain.StatusPaid}
	if expired {
		from = []domain.OrderStatus{domain.StatusReserved}
	}
	ok, err := s.repo.TransitionStatus(ctx, order.ID, from, domain.StatusCancelled, rec)
	if err != nil {
		return err
	}
	if !ok {
		return core.BusinessRulef("order %s is no longer cancellable", order.ID)
	}

	var errs []error
	for _, it := range order.Items {
		if err := s.ledger.Restore(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error("stock restore failed", "order_id", order.ID, "product_id", it.ProductID, "err", err)
			errs = append(errs, fmt.Errorf("restore product %s: %w", it.ProductID, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.log.Info("order cancelled", "order_id", order.ID, "expired", expired)
	return nil
}

// MarkReady moves a paid order to READY. Only the owner of the order's
// store may do this.
func (s *Service) MarkReady(ctx context.Context, orderID, requesterID string) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	store, err := s.stores.GetStore(ctx, order.StoreID)
	if err != nil {
		return err
	}
	if store.SellerID != requesterID {
		return core.Unauthorizedf("you can only mark orders from your own stores as ready")
	}
	if !order.CanMarkReady() {
		return core.BusinessRulef("order cannot be marked ready (status: %s)", order.Status)
	}
	rec, err := eventRecord(ctx, order.ID, "OrderReady", domain.OrderReady{OrderID: order.ID, StoreID: order.StoreID})
	if err != nil {
		return err
	}
	ok, err := s.repo.TransitionStatus(ctx, order.ID, []domain.OrderStatus{domain.StatusPaid}, domain.StatusReady, rec)
	if err != nil {
		return err
	}
	if !ok {
		return core.BusinessRulef("order %s left PAID before it could be marked ready", order.ID)
	}
	s.log.Info("order marked ready", "order_id", order.ID)
	return nil
}

// ValidateQR resolves a pickup token and, when the order is deliverable,
// completes the delivery transition.
func (s *Service) ValidateQR(ctx context.Context, token string) (QRValidation, error) {
	order, err := s.repo.GetByQRToken(ctx, token)
	if err != nil {
		if core.IsNotFound(err) {
			return QRValidation{Valid: false, Message: "Invalid QR code"}, nil
		}
		return QRValidation{}, err
	}
	if !order.CanDeliver() {
		return QRValidation{
			Valid:   false,
			OrderID: order.ID,
			StoreID: order.StoreID,
			Status:  order.Status,
			Message: fmt.Sprintf("Order cannot be delivered (current status: %s)", order.Status),
		}, nil
	}
	rec, err := eventRecord(ctx, order.ID, "OrderDelivered", domain.OrderDelivered{OrderID: order.ID, StoreID: order.StoreID})
	if err != nil {
		return QRValidation{}, err
	}
	ok, err := s.repo.TransitionStatus(ctx, order.ID, []domain.OrderStatus{domain.StatusPaid, domain.StatusReady}, domain.StatusDelivered, rec)
	if err != nil {
		return QRValidation{}, err
	}
	if !ok {
		return QRValidation{
			Valid:   false,
			OrderID: order.ID,
			StoreID: order.StoreID,
			Status:  order.Status,
			Message: "Order is no longer deliverable",
		}, nil
	}
	s.log.Info("order delivered", "order_id", order.ID, "store_id", order.StoreID)
	return QRValidation{
		Valid:   true,
		OrderID: order.ID,
		StoreID: order.StoreID,
		Status:  domain.StatusDelivered,
		Message: "Order validated and marked as delivered",
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

func (s *Service) ListByStore(ctx context.Context, storeID string) ([]domain.Order, error) {
	return s.repo.ListByStore(ctx, storeID)
}

func eventRecord(ctx context.Context, orderID, eventType string, payload any) (outbox.Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return outbox.Record{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return outbox.Record{
		AggregateType: "order",
		AggregateID:   orderID,
		Type:          eventType,
		Payload:       body,
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}
