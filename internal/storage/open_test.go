package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/metalaloud/settlement/internal/config"
	"github.com/metalaloud/settlement/internal/ledger"
)

func TestOpenSQLite(t *testing.T) {
	cfg := config.Config{StoreDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "ledger.db")}
	s, closeFn, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	err = s.WithinTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.LockWallet(ctx, "u1")
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, _, err := Open(context.Background(), config.Config{StoreDriver: "mongo"}); err == nil {
		t.Fatal("expected error")
	}
}
