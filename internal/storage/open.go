// Package storage picks the ledger store named by the config.
package storage

import (
	"context"
	"fmt"
	"github.com/metalaloud/settlement/internal/config"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/postgres"
	"github.com/metalaloud/settlement/internal/sqlite"
)

// Open connects and migrates the configured store. The returned func
// releases it.
func Open(ctx context.Context, cfg config.Config) (ledger.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return &postgres.Store{DB: pool}, pool.Close, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		return sqlite.NewStore(db), func() { _ = db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
