package application

import (
	"context"

	"github.com/ismartsell/fulfillment/internal/catalog/domain"
)

type ProductRepository interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Product, error)
	// AdjustStock applies delta to the product's stock. When delta is
	// negative the update must be conditional on stock staying >= 0 and
	// report whether it was applied; the check-then-decrement has to be
	// atomic per product.
	AdjustStock(ctx context.Context, productID string, delta int) (bool, error)
}

type StoreRepository interface {
	Get(ctx context.Context, id string) (domain.Store, error)
}
