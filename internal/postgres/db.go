package postgres

import (
	"context"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		user_id    TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		seq            BIGSERIAL UNIQUE,
		id             UUID PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES wallets(user_id),
		type           TEXT NOT NULL CHECK (type IN ('sale','withdrawal','refund')),
		amount         NUMERIC(20,2) NOT NULL CHECK (amount >= 0),
		status         TEXT NOT NULL CHECK (status IN ('pending','completed','failed')),
		payment_method TEXT NOT NULL DEFAULT '',
		bank_details   JSONB,
		reference      TEXT,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wallet_tx_user ON wallet_transactions(user_id, seq)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_tx_reference ON wallet_transactions(user_id, reference)
		WHERE reference IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS artist_sales (
		artist_id     TEXT PRIMARY KEY,
		gross_revenue NUMERIC(20,2) NOT NULL DEFAULT 0,
		revenue       NUMERIC(20,2) NOT NULL DEFAULT 0,
		commission    NUMERIC(20,2) NOT NULL DEFAULT 0,
		sales         BIGINT NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (revenue + commission = gross_revenue)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id           UUID PRIMARY KEY,
		order_id     TEXT UNIQUE NOT NULL,
		user_id      TEXT NOT NULL DEFAULT '',
		amount       NUMERIC(20,2) NOT NULL,
		commission   NUMERIC(20,2) NOT NULL,
		artist_sales JSONB NOT NULL,
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
