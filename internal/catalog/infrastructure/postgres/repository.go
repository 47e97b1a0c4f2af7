package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ismartsell/fulfillment/internal/catalog/domain"
	"github.com/ismartsell/fulfillment/internal/core"
)

type ProductRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewProductRepository(log *slog.Logger, pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{log: log, pool: pool}
}

const productColumns = `id, store_id, name, sku, description, price_cents, stock, active, created_at, updated_at`

func (r *ProductRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id).Scan(
		&p.ID, &p.StoreID, &p.Name, &p.SKU, &p.Description, &p.PriceCents, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, core.NotFoundf("product %s not found", id)
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (r *ProductRepository) ListByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE store_id=$1 ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.SKU, &p.Description, &p.PriceCents, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AdjustStock relies on the per-row lock of the conditional UPDATE: the
// check and the decrement are one atomic statement, so concurrent
// reservations of the same product serialize and cannot oversell.
func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1 AND stock + $2 >= 0`,
		productID, delta)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		// Distinguish a missing row from a shortfall.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, core.NotFoundf("product %s not found", productID)
		}
		return false, nil
	}
	return true, nil
}

type StoreRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStoreRepository(log *slog.Logger, pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{log: log, pool: pool}
}

func (r *StoreRepository) Get(ctx context.Context, id string) (domain.Store, error) {
	var s domain.Store
	err := r.pool.QueryRow(ctx, `SELECT id, seller_id, name, active, created_at FROM stores WHERE id=$1`, id).Scan(
		&s.ID, &s.SellerID, &s.Name, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Store{}, core.NotFoundf("store %s not found", id)
		}
		return domain.Store{}, err
	}
	return s, nil
}
