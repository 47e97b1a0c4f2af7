package application

import (
	"context"
	"log/slog"

	"github.com/ismartsell/fulfillment/internal/catalog/domain"
	"github.com/ismartsell/fulfillment/internal/core"
)

// Service is the inventory ledger: the only path through which order
// processing reads products and moves stock.
type Service struct {
	log      *slog.Logger
	products ProductRepository
	stores   StoreRepository
}

func NewService(log *slog.Logger, products ProductRepository, stores StoreRepository) *Service {
	return &Service{log: log, products: products, stores: stores}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *Service) ListByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	return s.products.ListByStore(ctx, storeID)
}

func (s *Service) GetStore(ctx context.Context, id string) (domain.Store, error) {
	return s.stores.Get(ctx, id)
}

// Reserve decrements stock by qty iff the product currently holds at least
// qty units. On shortfall it fails without side effect.
func (s *Service) Reserve(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return core.Validationf("reserve quantity must be positive, got %d", qty)
	}
	ok, err := s.products.AdjustStock(ctx, productID, -qty)
	if err != nil {
		return err
	}
	if !ok {
		return core.BusinessRulef("insufficient stock for product %s", productID)
	}
	s.log.Debug("stock reserved", "product_id", productID, "qty", qty)
	return nil
}

// Restore credits stock back unconditionally. Callers own idempotency: the
// order status transition must have happened exactly once before restoring.
func (s *Service) Restore(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return core.Validationf("restore quantity must be positive, got %d", qty)
	}
	if _, err := s.products.AdjustStock(ctx, productID, qty); err != nil {
		return err
	}
	s.log.Debug("stock restored", "product_id", productID, "qty", qty)
	return nil
}
