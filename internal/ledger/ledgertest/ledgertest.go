// Package ledgertest has helpers shared by store and service tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/shopspring/decimal"
)

type Published struct {
	Key       string
	EventType string
	Envelope  ledger.Envelope
}

// Recorder is an in-memory ledger.Publisher.
type Recorder struct {
	mu     sync.Mutex
	Events []Published
}

func (r *Recorder) PublishEvent(key, value []byte, eventType string) {
	var env ledger.Envelope
	_ = json.Unmarshal(value, &env)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Published{Key: string(key), EventType: eventType, Envelope: env})
}

func (r *Recorder) Of(eventType string) []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Published
	for _, e := range r.Events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func D(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// RunStoreContract exercises a ledger.Store implementation. The store must
// start empty.
func RunStoreContract(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("wallet transactions keep insertion order", func(t *testing.T) {
		user := "user-" + uuid.NewString()
		ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
		bank := &ledger.BankDetails{AccountNumber: "1", BankName: "B", SwiftCode: "S", AccountHolderName: "H", Country: "DE"}
		err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			if err := tx.LockWallet(ctx, user); err != nil {
				return err
			}
			// created_at deliberately out of order
			rows := []ledger.WalletTransaction{
				{ID: ids[0], UserID: user, Type: ledger.TxSale, Amount: D("10.50"), Status: ledger.TxCompleted, Reference: "p1", CreatedAt: at.Add(time.Hour)},
				{ID: ids[1], UserID: user, Type: ledger.TxWithdrawal, Amount: D("3"), Status: ledger.TxPending, BankDetails: bank, CreatedAt: at},
				{ID: ids[2], UserID: user, Type: ledger.TxSale, Amount: D("0.01"), Status: ledger.TxCompleted, CreatedAt: at.Add(-time.Hour)},
			}
			for _, r := range rows {
				if err := tx.InsertWalletTransaction(ctx, r); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}

		var got []ledger.WalletTransaction
		err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			var err error
			got, err = tx.ListWalletTransactions(ctx, user)
			return err
		})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d rows, want 3", len(got))
		}
		for i, id := range ids {
			if got[i].ID != id {
				t.Fatalf("row %d = %s, want %s", i, got[i].ID, id)
			}
		}
		if !got[0].Amount.Equal(D("10.50")) || got[0].Reference != "p1" || !got[0].CreatedAt.Equal(at.Add(time.Hour)) {
			t.Errorf("row 0 not round-tripped: %+v", got[0])
		}
		if got[1].BankDetails == nil || *got[1].BankDetails != *bank {
			t.Errorf("bank details not round-tripped: %+v", got[1].BankDetails)
		}
		if got[2].BankDetails != nil {
			t.Errorf("sale must not carry bank details")
		}
		if !ledger.Fold(got).Equal(D("7.51")) {
			t.Errorf("fold = %s, want 7.51", ledger.Fold(got))
		}
	})

	t.Run("lookups and status updates", func(t *testing.T) {
		user := "user-" + uuid.NewString()
		id := uuid.NewString()
		err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			if err := tx.LockWallet(ctx, user); err != nil {
				return err
			}
			if err := tx.InsertWalletTransaction(ctx, ledger.WalletTransaction{
				ID: id, UserID: user, Type: ledger.TxSale, Amount: D("1"), Status: ledger.TxCompleted, Reference: "pay-9", CreatedAt: at,
			}); err != nil {
				return err
			}
			if _, ok, err := tx.FindSaleByReference(ctx, user, "pay-9"); err != nil || !ok {
				t.Errorf("FindSaleByReference = %v, %v", ok, err)
			}
			if _, ok, err := tx.FindSaleByReference(ctx, user, "nope"); err != nil || ok {
				t.Errorf("FindSaleByReference(nope) = %v, %v", ok, err)
			}
			if err := tx.UpdateWalletTransactionStatus(ctx, id, ledger.TxFailed); err != nil {
				return err
			}
			got, err := tx.GetWalletTransaction(ctx, id)
			if err != nil {
				return err
			}
			if got.Status != ledger.TxFailed {
				t.Errorf("status = %s", got.Status)
			}
			if _, err := tx.GetWalletTransaction(ctx, uuid.NewString()); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("missing tx: %v", err)
			}
			if err := tx.UpdateWalletTransactionStatus(ctx, uuid.NewString(), ledger.TxFailed); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("missing update: %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("artist sales and payments", func(t *testing.T) {
		artist := "artist-" + uuid.NewString()
		orderID := "order-" + uuid.NewString()
		p := ledger.Payment{
			ID: uuid.NewString(), OrderID: orderID, UserID: "buyer", Amount: D("25"), Commission: D("0.75"),
			ArtistSales: map[string]ledger.ArtistSales{
				artist: {GrossRevenue: D("25"), Revenue: D("24.25"), Commission: D("0.75"), Sales: 3},
			},
			Status: ledger.PaymentCompleted, CreatedAt: at,
		}
		err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			cur, ok, err := tx.GetArtistSales(ctx, artist)
			if err != nil {
				return err
			}
			if ok || !cur.GrossRevenue.IsZero() {
				t.Errorf("fresh artist: ok=%v %+v", ok, cur)
			}
			if err := tx.PutArtistSales(ctx, artist, cur.Add(p.ArtistSales[artist])); err != nil {
				return err
			}
			return tx.InsertPayment(ctx, p)
		})
		if err != nil {
			t.Fatal(err)
		}

		err = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			cur, ok, err := tx.GetArtistSales(ctx, artist)
			if err != nil {
				return err
			}
			if !ok || !cur.Revenue.Equal(D("24.25")) || cur.Sales != 3 {
				t.Errorf("stored artist sales = %v %+v", ok, cur)
			}
			got, ok, err := tx.FindPaymentByOrder(ctx, orderID)
			if err != nil || !ok {
				t.Fatalf("FindPaymentByOrder = %v %v", ok, err)
			}
			if got.ID != p.ID || !got.Commission.Equal(D("0.75")) || !got.ArtistSales[artist].GrossRevenue.Equal(D("25")) {
				t.Errorf("payment not round-tripped: %+v", got)
			}
			if _, err := tx.GetPayment(ctx, p.ID); err != nil {
				t.Errorf("GetPayment: %v", err)
			}
			if _, err := tx.GetPayment(ctx, uuid.NewString()); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("GetPayment(missing) = %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("rollback discards everything", func(t *testing.T) {
		user := "user-" + uuid.NewString()
		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			if err := tx.LockWallet(ctx, user); err != nil {
				return err
			}
			if err := tx.InsertWalletTransaction(ctx, ledger.WalletTransaction{
				ID: uuid.NewString(), UserID: user, Type: ledger.TxSale, Amount: D("1"), Status: ledger.TxCompleted, CreatedAt: at,
			}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
		_ = s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			got, err := tx.ListWalletTransactions(ctx, user)
			if err != nil || len(got) != 0 {
				t.Errorf("after rollback: %d rows, %v", len(got), err)
			}
			return nil
		})
	})
}
