package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ismartsell/fulfillment/internal/core"
	"github.com/ismartsell/fulfillment/internal/order/domain"
	"github.com/ismartsell/fulfillment/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `id, buyer_id, store_id, status, subtotal_cents, shipping_cents, total_cents,
	payment_method, qr_token, reserved_until, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, o domain.Order, rec outbox.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,$11,$12)`,
		o.ID, o.BuyerID, o.StoreID, o.Status, o.SubtotalCents, o.ShippingCents, o.TotalCents,
		o.PaymentMethod, o.QRToken, o.ReservedUntil, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents, total_price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, item.ProductID, item.Quantity, item.UnitPriceCents, item.TotalPriceCents)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.getBy(ctx, `WHERE id=$1`, id)
}

func (r *Repository) GetByQRToken(ctx context.Context, token string) (domain.Order, error) {
	return r.getBy(ctx, `WHERE qr_token=$1`, token)
}

func (r *Repository) getBy(ctx context.Context, where string, arg any) (domain.Order, error) {
	var o domain.Order
	var qrToken *string
	err := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg).Scan(
		&o.ID, &o.BuyerID, &o.StoreID, &o.Status, &o.SubtotalCents, &o.ShippingCents, &o.TotalCents,
		&o.PaymentMethod, &qrToken, &o.ReservedUntil, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, core.NotFoundf("order not found")
		}
		return domain.Order{}, err
	}
	if qrToken != nil {
		o.QRToken = *qrToken
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity, unit_price_cents, total_price_cents FROM order_items WHERE order_id=$1`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(ctx, `WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
}

func (r *Repository) ListByStore(ctx context.Context, storeID string) ([]domain.Order, error) {
	return r.list(ctx, `WHERE store_id=$1 ORDER BY created_at DESC`, storeID)
}

func (r *Repository) ExpiredReservations(ctx context.Context, now time.Time) ([]domain.Order, error) {
	return r.list(ctx, `WHERE status=$1 AND reserved_until < $2`, domain.StatusReserved, now)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var qrToken *string
		if err := rows.Scan(
			&o.ID, &o.BuyerID, &o.StoreID, &o.Status, &o.SubtotalCents, &o.ShippingCents, &o.TotalCents,
			&o.PaymentMethod, &qrToken, &o.ReservedUntil, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if qrToken != nil {
			o.QRToken = *qrToken
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// TransitionStatus is a compare-and-swap on the status column; the WHERE
// clause makes racing transitions on the same order mutually exclusive.
func (r *Repository) TransitionStatus(ctx context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus, rec outbox.Record) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	fromStrs := make([]string, 0, len(from))
	for _, st := range from {
		fromStrs = append(fromStrs, string(st))
	}
	ct, err := tx.Exec(ctx, `UPDATE orders
		SET status=$2, reserved_until=CASE WHEN $2='RESERVED' THEN reserved_until ELSE NULL END, updated_at=now()
		WHERE id=$1 AND status = ANY($3)`,
		orderID, to, fromStrs)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if err := insertOutbox(ctx, tx, rec); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, rec outbox.Record) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		rec.AggregateType, rec.AggregateID, rec.Type, rec.Payload, rec.Traceparent)
	return err
}

// OutboxStore feeds the relay from the shared outbox table.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, traceparent, created_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var ev outbox.Event
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload, &ev.Traceparent, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`,
		relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}
