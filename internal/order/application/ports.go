package application

import (
	"context"
	"time"

	catalogdomain "github.com/ismartsell/fulfillment/internal/catalog/domain"
	"github.com/ismartsell/fulfillment/internal/order/domain"
	"github.com/ismartsell/fulfillment/pkg/outbox"
)

type OrderRepository interface {
	// Create persists the order with its items and stages the event in
	// one transaction.
	Create(ctx context.Context, o domain.Order, rec outbox.Record) error
	Get(ctx context.Context, id string) (domain.Order, error)
	GetByQRToken(ctx context.Context, token string) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Order, error)
	ExpiredReservations(ctx context.Context, now time.Time) ([]domain.Order, error)
	// TransitionStatus moves the order to the target status iff its current
	// status is one of from, staging the event in the same transaction.
	// The false return is how concurrent double-transitions lose.
	TransitionStatus(ctx context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus, rec outbox.Record) (bool, error)
}

// InventoryLedger is the stock contract consumed from the product catalog.
type InventoryLedger interface {
	Get(ctx context.Context, productID string) (catalogdomain.Product, error)
	Reserve(ctx context.Context, productID string, qty int) error
	Restore(ctx context.Context, productID string, qty int) error
}

type StoreDirectory interface {
	GetStore(ctx context.Context, id string) (catalogdomain.Store, error)
}

// ShippingPolicy prices shipping for an order before totals are fixed.
type ShippingPolicy interface {
	Quote(ctx context.Context, storeID string, items []domain.OrderItem) (int64, error)
}

// FreeShipping is the default policy: pickup orders ship for nothing.
type FreeShipping struct{}

func (FreeShipping) Quote(ctx context.Context, storeID string, items []domain.OrderItem) (int64, error) {
	return 0, nil
}
