package integration

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// Env holds the containers backing the integration suite: postgres for the
// repositories and redis for the idempotency store.
type Env struct {
	PG        *postgres.PostgresContainer
	Redis     *tcredis.RedisContainer
	PGURL     string
	RedisAddr string
	Cancel    context.CancelFunc
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fulfillment"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cancel()
		return nil, err
	}

	redisC, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		cancel()
		return nil, err
	}
	redisURL, err := redisC.ConnectionString(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Env{
		PG:        pgC,
		Redis:     redisC,
		PGURL:     pgURL,
		RedisAddr: strings.TrimPrefix(redisURL, "redis://"),
		Cancel:    cancel,
	}, nil
}

func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	_ = e.Redis.Terminate(ctx)
	_ = e.PG.Terminate(ctx)
}

// Migrate applies the schema to a fresh database.
func (e *Env) Migrate(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, e.PGURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS stores (
	id         TEXT PRIMARY KEY,
	seller_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	store_id    TEXT NOT NULL REFERENCES stores(id),
	name        TEXT NOT NULL,
	sku         TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	price_cents BIGINT NOT NULL,
	stock       INTEGER NOT NULL CHECK (stock >= 0),
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	buyer_id       TEXT NOT NULL,
	store_id       TEXT NOT NULL REFERENCES stores(id),
	status         TEXT NOT NULL,
	subtotal_cents BIGINT NOT NULL,
	shipping_cents BIGINT NOT NULL DEFAULT 0,
	total_cents    BIGINT NOT NULL,
	payment_method TEXT NOT NULL,
	qr_token       TEXT UNIQUE,
	reserved_until TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders (buyer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_store ON orders (store_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_expiry ON orders (reserved_until) WHERE status = 'RESERVED';

CREATE TABLE IF NOT EXISTS order_items (
	id                BIGSERIAL PRIMARY KEY,
	order_id          TEXT NOT NULL REFERENCES orders(id),
	product_id        TEXT NOT NULL REFERENCES products(id),
	quantity          INTEGER NOT NULL CHECK (quantity > 0),
	unit_price_cents  BIGINT NOT NULL,
	total_price_cents BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
	id                 TEXT PRIMARY KEY,
	order_id           TEXT NOT NULL REFERENCES orders(id),
	amount_cents       BIGINT NOT NULL,
	provider           TEXT NOT NULL DEFAULT '',
	provider_fee_cents BIGINT NOT NULL DEFAULT 0,
	commission_cents   BIGINT NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_order ON payments (order_id);

CREATE TABLE IF NOT EXISTS platform_revenue (
	id           TEXT PRIMARY KEY,
	payment_id   TEXT NOT NULL REFERENCES payments(id),
	amount_cents BIGINT NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	payload        JSONB NOT NULL,
	traceparent    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	relay_id       TEXT,
	lease_until    TIMESTAMPTZ,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (id) WHERE status = 'pending';
`
