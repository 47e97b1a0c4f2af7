package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ismartsell/fulfillment/internal/core"
	orderdomain "github.com/ismartsell/fulfillment/internal/order/domain"
	"github.com/ismartsell/fulfillment/internal/payment/domain"
	"github.com/ismartsell/fulfillment/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const paymentColumns = `id, order_id, amount_cents, provider, provider_fee_cents, commission_cents, status, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.OrderID, p.AmountCents, p.Provider, p.ProviderFeeCents, p.CommissionCents, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Payment, error) {
	return r.getBy(ctx, `WHERE id=$1`, id)
}

func (r *Repository) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	return r.getBy(ctx, `WHERE order_id=$1`, orderID)
}

func (r *Repository) getBy(ctx context.Context, where string, arg any) (domain.Payment, error) {
	var p domain.Payment
	err := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments `+where, arg).Scan(
		&p.ID, &p.OrderID, &p.AmountCents, &p.Provider, &p.ProviderFeeCents, &p.CommissionCents, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, core.NotFoundf("payment not found")
		}
		return domain.Payment{}, err
	}
	return p, nil
}

// Complete commits the four-part completion mutation in a single
// transaction. The status guards in both UPDATEs keep a replayed call from
// re-applying any part of it.
func (r *Repository) Complete(ctx context.Context, p domain.Payment, rev domain.RevenueEntry, qrToken string, rec outbox.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE payments
		SET status=$2, commission_cents=$3, updated_at=$4
		WHERE id=$1 AND status=$5`,
		p.ID, domain.StatusCompleted, p.CommissionCents, p.UpdatedAt, domain.StatusCreated)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.Validationf("payment already processed")
	}

	_, err = tx.Exec(ctx, `INSERT INTO platform_revenue (id, payment_id, amount_cents, recorded_at)
		VALUES ($1,$2,$3,$4)`,
		rev.ID, rev.PaymentID, rev.AmountCents, rev.RecordedAt)
	if err != nil {
		return err
	}

	ct, err = tx.Exec(ctx, `UPDATE orders SET status=$2, qr_token=$3, reserved_until=NULL, updated_at=now()
		WHERE id=$1 AND status IN ($4,$5)`,
		p.OrderID, orderdomain.StatusPaid, qrToken, orderdomain.StatusPending, orderdomain.StatusReserved)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.BusinessRulef("order %s cannot transition to PAID", p.OrderID)
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		rec.AggregateType, rec.AggregateID, rec.Type, rec.Payload, rec.Traceparent)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
