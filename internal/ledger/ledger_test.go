package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFold(t *testing.T) {
	txs := []WalletTransaction{
		{Type: TxSale, Amount: d("100"), Status: TxCompleted},
		{Type: TxWithdrawal, Amount: d("30"), Status: TxPending},
		{Type: TxWithdrawal, Amount: d("500"), Status: TxFailed},
		{Type: TxRefund, Amount: d("5.50"), Status: TxCompleted},
		{Type: TxSale, Amount: d("0.25"), Status: TxCompleted},
	}
	got := Fold(txs)
	if !got.Equal(d("64.75")) {
		t.Fatalf("Fold = %s, want 64.75", got)
	}
	if !Fold(nil).IsZero() {
		t.Fatalf("empty ledger must fold to zero")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TxStatus
		want     bool
	}{
		{TxPending, TxCompleted, true},
		{TxPending, TxFailed, true},
		{TxCompleted, TxFailed, false},
		{TxFailed, TxCompleted, false},
		{TxPending, TxPending, false},
		{"bogus", TxCompleted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s,%s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestOrderValidate(t *testing.T) {
	ok := Order{ID: "o1", Items: []OrderItem{{ArtistID: "a", Quantity: 1, PriceAtTime: d("1")}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []Order{
		{Items: ok.Items},
		{ID: "o1"},
		{ID: "o1", Items: []OrderItem{{ArtistID: "a", Quantity: 0, PriceAtTime: d("1")}}},
		{ID: "o1", Items: []OrderItem{{ArtistID: "a", Quantity: 1, PriceAtTime: d("-1")}}},
		{ID: "o1", Items: []OrderItem{{Quantity: 1, PriceAtTime: d("1")}}},
		{ID: "o1", Items: []OrderItem{{ArtistID: "a", Quantity: 1, PriceAtTime: d("0.004")}}},
		{ID: "o1", Items: ok.Items, TotalAmount: d("1.001")},
	}
	for i, o := range bad {
		var ve *ValidationError
		if err := o.Validate(); !errors.As(err, &ve) {
			t.Errorf("case %d: want ValidationError, got %v", i, err)
		}
	}
}

func TestIsCents(t *testing.T) {
	for _, c := range []struct {
		in   string
		want bool
	}{
		{"0", true}, {"19.40", true}, {"1.5", true}, {"10.000", true}, {"-3.25", true},
		{"0.004", false}, {"25.001", false},
	} {
		if got := IsCents(d(c.in)); got != c.want {
			t.Errorf("IsCents(%s) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestArtistSalesAdd(t *testing.T) {
	a := ArtistSales{GrossRevenue: d("20"), Revenue: d("19.40"), Commission: d("0.60"), Sales: 2}
	b := ArtistSales{GrossRevenue: d("5"), Revenue: d("4.85"), Commission: d("0.15"), Sales: 1}
	sum := a.Add(b)
	if !sum.GrossRevenue.Equal(d("25")) || !sum.Commission.Equal(d("0.75")) || sum.Sales != 3 {
		t.Fatalf("unexpected sum %+v", sum)
	}
	if !sum.Consistent() {
		t.Fatalf("sum must stay consistent")
	}
}

func TestPersist(t *testing.T) {
	if Persist("op", nil) != nil {
		t.Fatal("nil must stay nil")
	}
	ve := &ValidationError{Message: "Invalid CVV"}
	if Persist("op", ve) != error(ve) {
		t.Fatal("validation errors pass through")
	}
	if !errors.Is(Persist("op", fmt.Errorf("x: %w", ErrNotFound)), ErrNotFound) {
		t.Fatal("not found passes through")
	}
	raw := errors.New("disk on fire")
	var pe *PersistenceError
	if err := Persist("insert", raw); !errors.As(err, &pe) || !errors.Is(err, raw) {
		t.Fatalf("want wrapped PersistenceError, got %v", err)
	}
	if IsBusiness(pe) {
		t.Fatal("persistence error is not a business error")
	}
	if !IsBusiness(&InsufficientFundsError{}) {
		t.Fatal("insufficient funds is a business error")
	}
}
