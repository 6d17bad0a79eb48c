package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/ledger/ledgertest"
	"github.com/metalaloud/settlement/internal/sqlite"
	"github.com/shopspring/decimal"
)

var d = ledgertest.D

var bank = ledger.BankDetails{
	AccountNumber:     "DE89370400440532013000",
	BankName:          "Iron Bank",
	SwiftCode:         "COBADEFFXXX",
	AccountHolderName: "Lemmy K",
	Country:           "DE",
}

func newService(t *testing.T) (*Service, *ledgertest.Recorder) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	rec := &ledgertest.Recorder{}
	return &Service{
		Store:       sqlite.NewStore(db),
		Publisher:   rec,
		ServiceName: "wallet-test",
		Now:         func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) },
	}, rec
}

func fund(t *testing.T, s *Service, user, amount string) {
	t.Helper()
	if _, err := s.RecordSale(context.Background(), user, d(amount), decimal.Zero); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
}

func TestRecordSaleCreditsNet(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	wt, err := s.RecordSale(ctx, "artist-1", d("20"), d("0.60"))
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if wt.Type != ledger.TxSale || wt.Status != ledger.TxCompleted || !wt.Amount.Equal(d("19.40")) {
		t.Fatalf("unexpected transaction %+v", wt)
	}
	bal, err := s.Balance(ctx, "artist-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Equal(d("19.40")) {
		t.Fatalf("balance = %s, want 19.40", bal)
	}
}

func TestRecordSaleRejectsBadInput(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	cases := []struct {
		user               string
		amount, commission string
	}{
		{"", "1", "0"},
		{"u", "-1", "0"},
		{"u", "1", "-0.01"},
		{"u", "1", "2"},
		{"u", "0.004", "0"},
		{"u", "1", "0.001"},
	}
	for _, c := range cases {
		var ve *ledger.ValidationError
		if _, err := s.RecordSale(ctx, c.user, d(c.amount), d(c.commission)); !errors.As(err, &ve) {
			t.Errorf("RecordSale(%q,%s,%s) err = %v, want ValidationError", c.user, c.amount, c.commission, err)
		}
	}
}

func TestRecordSettledSaleIsIdempotent(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	first, err := s.RecordSettledSale(ctx, "pay-1", "artist-1", d("20"), d("0.60"))
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.RecordSettledSale(ctx, "pay-1", "artist-1", d("20"), d("0.60"))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay created a new transaction: %s vs %s", again.ID, first.ID)
	}
	txs, _ := s.Transactions(ctx, "artist-1")
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	if _, err := s.RecordSettledSale(ctx, "", "artist-1", d("1"), d("0")); err == nil {
		t.Fatal("empty reference must be rejected")
	}
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "100")

	before, _ := s.Transactions(ctx, "artist-1")
	_, err := s.RequestWithdrawal(ctx, "artist-1", d("150"), bank)

	var fe *ledger.InsufficientFundsError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want InsufficientFundsError", err)
	}
	if err.Error() != "Insufficient funds" {
		t.Fatalf("message = %q", err.Error())
	}
	if !fe.Balance.Equal(d("100")) || !fe.Requested.Equal(d("150")) {
		t.Fatalf("unexpected detail %+v", fe)
	}
	after, _ := s.Transactions(ctx, "artist-1")
	if len(after) != len(before) {
		t.Fatalf("ledger changed: %d -> %d", len(before), len(after))
	}
	if len(rec.Of(ledger.EventWithdrawalRequested)) != 0 {
		t.Fatal("no event expected for a rejected withdrawal")
	}
}

func TestWithdrawalPending(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "100")

	wt, err := s.RequestWithdrawal(ctx, "artist-1", d("50"), bank)
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}
	if wt.Type != ledger.TxWithdrawal || wt.Status != ledger.TxPending || !wt.Amount.Equal(d("50")) {
		t.Fatalf("unexpected transaction %+v", wt)
	}
	if wt.BankDetails == nil || *wt.BankDetails != bank {
		t.Fatalf("bank details missing: %+v", wt.BankDetails)
	}
	bal, _ := s.Balance(ctx, "artist-1")
	if !bal.Equal(d("50")) {
		t.Fatalf("balance = %s, want 50", bal)
	}

	evs := rec.Of(ledger.EventWithdrawalRequested)
	if len(evs) != 1 || evs[0].Key != "artist-1" || evs[0].Envelope.CorrelationID != wt.ID {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestWithdrawalValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "100")

	partial := bank
	partial.SwiftCode = ""
	cases := []struct {
		amount string
		bank   ledger.BankDetails
	}{
		{"0", bank},
		{"-5", bank},
		{"10", partial},
		{"0.005", bank},
	}
	for _, c := range cases {
		var ve *ledger.ValidationError
		if _, err := s.RequestWithdrawal(ctx, "artist-1", d(c.amount), c.bank); !errors.As(err, &ve) {
			t.Errorf("amount %s: err = %v, want ValidationError", c.amount, err)
		}
	}
}

// Two withdrawals that together exceed the balance: exactly one wins.
func TestConcurrentWithdrawalsCannotOverdraw(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "100")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.RequestWithdrawal(ctx, "artist-1", d("60"), bank)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		var fe *ledger.InsufficientFundsError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &fe):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d withdrawals succeeded, want 1", ok)
	}
	bal, _ := s.Balance(ctx, "artist-1")
	if !bal.Equal(d("40")) {
		t.Fatalf("balance = %s, want 40", bal)
	}
}

func TestBalanceMatchesFoldOfTransactions(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "12.34")
	fund(t, s, "artist-1", "7.66")
	if _, err := s.RequestWithdrawal(ctx, "artist-1", d("5.01"), bank); err != nil {
		t.Fatal(err)
	}
	fund(t, s, "artist-1", "0.01")

	txs, err := s.Transactions(ctx, "artist-1")
	if err != nil {
		t.Fatal(err)
	}
	sales, withdrawals := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case ledger.TxSale:
			sales = sales.Add(tx.Amount)
		case ledger.TxWithdrawal:
			withdrawals = withdrawals.Add(tx.Amount)
		}
	}
	b1, _ := s.Balance(ctx, "artist-1")
	b2, _ := s.Balance(ctx, "artist-1")
	if !b1.Equal(sales.Sub(withdrawals)) {
		t.Fatalf("balance %s != sales %s - withdrawals %s", b1, sales, withdrawals)
	}
	if !b1.Equal(b2) {
		t.Fatalf("balance not stable: %s then %s", b1, b2)
	}
	if txs[2].Type != ledger.TxWithdrawal {
		t.Fatalf("transactions not in append order: %+v", txs)
	}
}

func TestTransactionsEmpty(t *testing.T) {
	s, _ := newService(t)
	txs, err := s.Transactions(context.Background(), "nobody")
	if err != nil || txs == nil || len(txs) != 0 {
		t.Fatalf("Transactions = %v, %v", txs, err)
	}
	bal, err := s.Balance(context.Background(), "nobody")
	if err != nil || !bal.IsZero() {
		t.Fatalf("Balance = %s, %v", bal, err)
	}
}

func TestSettleWithdrawal(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "100")

	w1, _ := s.RequestWithdrawal(ctx, "artist-1", d("30"), bank)
	w2, _ := s.RequestWithdrawal(ctx, "artist-1", d("20"), bank)

	if _, err := s.SettleWithdrawal(ctx, w1.ID, ledger.TxCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := s.SettleWithdrawal(ctx, w2.ID, ledger.TxFailed)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if got.Status != ledger.TxFailed {
		t.Fatalf("status = %s", got.Status)
	}

	// failed payout returns the money
	bal, _ := s.Balance(ctx, "artist-1")
	if !bal.Equal(d("70")) {
		t.Fatalf("balance = %s, want 70", bal)
	}

	// replay is a no-op, reversal is not allowed
	if _, err := s.SettleWithdrawal(ctx, w1.ID, ledger.TxCompleted); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if _, err := s.SettleWithdrawal(ctx, w1.ID, ledger.TxFailed); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("completed -> failed: %v", err)
	}
	if _, err := s.SettleWithdrawal(ctx, "missing", ledger.TxCompleted); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
	if n := len(rec.Of(ledger.EventWithdrawalSettled)); n != 2 {
		t.Fatalf("%d settled events, want 2", n)
	}

	txs, _ := s.Transactions(ctx, "artist-1")
	if _, err := s.SettleWithdrawal(ctx, txs[0].ID, ledger.TxCompleted); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("settling a sale: %v", err)
	}
}

func TestSummary(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "100")
	w1, _ := s.RequestWithdrawal(ctx, "artist-1", d("30"), bank)
	_, _ = s.RequestWithdrawal(ctx, "artist-1", d("20"), bank)
	_, _ = s.SettleWithdrawal(ctx, w1.ID, ledger.TxCompleted)

	sum, err := s.Summary(ctx, "artist-1")
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Balance.Equal(d("50")) || !sum.TotalEarnings.Equal(d("100")) ||
		!sum.TotalWithdrawn.Equal(d("30")) || !sum.PendingWithdrawals.Equal(d("20")) || sum.Transactions != 3 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

// commitAfterRead runs a write once, right after the first read transaction
// has finished.
type commitAfterRead struct {
	ledger.Store
	once  sync.Once
	write func()
}

func (c *commitAfterRead) WithinTx(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
	err := c.Store.WithinTx(ctx, fn)
	c.once.Do(c.write)
	return err
}

func TestBalanceNeverServesStaleValue(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	fund(t, s, "artist-1", "100")

	writer := &Service{Store: s.Store, Now: s.Now}
	s.Store = &commitAfterRead{Store: s.Store, write: func() {
		if _, err := writer.RequestWithdrawal(ctx, "artist-1", d("50"), bank); err != nil {
			t.Errorf("RequestWithdrawal: %v", err)
		}
	}}

	first, err := s.Balance(ctx, "artist-1")
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(d("100")) {
		t.Fatalf("first = %s, want 100", first)
	}
	second, err := s.Balance(ctx, "artist-1")
	if err != nil {
		t.Fatal(err)
	}
	txs, err := s.Transactions(ctx, "artist-1")
	if err != nil {
		t.Fatal(err)
	}
	if fold := ledger.Fold(txs); !second.Equal(fold) || !second.Equal(d("50")) {
		t.Fatalf("balance %s, ledger fold %s", second, fold)
	}
}
