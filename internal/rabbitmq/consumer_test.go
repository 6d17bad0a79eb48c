package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/ledger/ledgertest"
	"github.com/metalaloud/settlement/internal/sqlite"
	"github.com/metalaloud/settlement/internal/wallet"
)

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestSettle(t *testing.T) {
	ok := &fakeAck{}
	settle(ok, nil)
	if !ok.acked || ok.nacked {
		t.Fatalf("nil error: %+v", ok)
	}

	drop := &fakeAck{}
	settle(drop, ErrDrop)
	if !drop.nacked || drop.requeued {
		t.Fatalf("drop: %+v", drop)
	}

	retry := &fakeAck{}
	settle(retry, errors.New("db down"))
	if !retry.nacked || !retry.requeued {
		t.Fatalf("transient: %+v", retry)
	}
}

func TestDecodePayoutResult(t *testing.T) {
	r, err := DecodePayoutResult([]byte(`{"transaction_id":"tx-1","status":"completed"}`))
	if err != nil || r.TransactionID != "tx-1" || r.Status != ledger.TxCompleted {
		t.Fatalf("got %+v, %v", r, err)
	}
	for _, body := range []string{
		`nope`,
		`{"status":"completed"}`,
		`{"transaction_id":"tx-1","status":"pending"}`,
		`{"transaction_id":"tx-1","status":"lost"}`,
	} {
		if _, err := DecodePayoutResult([]byte(body)); !errors.Is(err, ErrDrop) {
			t.Errorf("%s: err = %v, want ErrDrop", body, err)
		}
	}
}

func TestPayoutHandler(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ws := &wallet.Service{
		Store: sqlite.NewStore(db),
		Now:   func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) },
	}
	ctx := context.Background()
	if _, err := ws.RecordSale(ctx, "artist-1", ledgertest.D("100"), ledgertest.D("0")); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	wt, err := ws.RequestWithdrawal(ctx, "artist-1", ledgertest.D("30"), ledger.BankDetails{
		AccountNumber: "1", BankName: "B", SwiftCode: "S", AccountHolderName: "H", Country: "SE",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}

	h := PayoutHandler(ws)
	if err := h(ctx, []byte(`{"transaction_id":"`+wt.ID+`","status":"completed"}`)); err != nil {
		t.Fatalf("settle: %v", err)
	}
	// replaying the same result is a no-op
	if err := h(ctx, []byte(`{"transaction_id":"`+wt.ID+`","status":"completed"}`)); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if err := h(ctx, []byte(`{"transaction_id":"`+wt.ID+`","status":"failed"}`)); !errors.Is(err, ErrDrop) {
		t.Fatalf("conflicting result: err = %v, want ErrDrop", err)
	}
	if err := h(ctx, []byte(`{"transaction_id":"missing","status":"failed"}`)); !errors.Is(err, ErrDrop) {
		t.Fatalf("unknown tx: err = %v, want ErrDrop", err)
	}

	bal, err := ws.Balance(ctx, "artist-1")
	if err != nil || !bal.Equal(ledgertest.D("70")) {
		t.Fatalf("balance = %s, %v; want 70", bal, err)
	}
}
