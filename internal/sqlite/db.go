package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at dsn and ensures the schema
// exists. Pass ":memory:" for an in-memory database.
//
// The pool is pinned to a single connection: transactions serialize, which
// is the per-wallet mutual exclusion this store offers.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			user_id TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount TEXT NOT NULL,
			status TEXT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			bank_details TEXT,
			reference TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_tx_user ON wallet_transactions(user_id, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_tx_reference ON wallet_transactions(user_id, reference)
			WHERE reference IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS artist_sales (
			artist_id TEXT PRIMARY KEY,
			gross_revenue TEXT NOT NULL,
			revenue TEXT NOT NULL,
			commission TEXT NOT NULL,
			sales INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			order_id TEXT UNIQUE NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			commission TEXT NOT NULL,
			artist_sales TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}
