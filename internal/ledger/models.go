package ledger

import (
	"github.com/shopspring/decimal"
	"time"
)

type OrderItem struct {
	ArtistID    string          `json:"artist_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"` // unit gross price at checkout
}

// Total is price * quantity.
func (it OrderItem) Total() decimal.Decimal {
	return it.PriceAtTime.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate rejects orders that cannot be settled.
func (o Order) Validate() error {
	if o.ID == "" {
		return &ValidationError{Field: "order.id", Message: "Invalid order"}
	}
	if len(o.Items) == 0 {
		return &ValidationError{Field: "order.items", Message: "Invalid order"}
	}
	for _, it := range o.Items {
		if it.ArtistID == "" || it.Quantity <= 0 || it.PriceAtTime.IsNegative() || !IsCents(it.PriceAtTime) {
			return &ValidationError{Field: "order.items", Message: "Invalid order"}
		}
	}
	if !IsCents(o.TotalAmount) {
		return &ValidationError{Field: "order.total_amount", Message: "Invalid order"}
	}
	return nil
}

// IsCents reports whether d has no more than two decimal places. Both
// stores keep money at cent precision.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

type BankDetails struct {
	AccountNumber     string `json:"account_number"`
	BankName          string `json:"bank_name"`
	SwiftCode         string `json:"swift_code"`
	AccountHolderName string `json:"account_holder_name"`
	Country           string `json:"country"`
}

// Complete reports whether every payout field is filled in.
func (b BankDetails) Complete() bool {
	return b.AccountNumber != "" && b.BankName != "" && b.SwiftCode != "" &&
		b.AccountHolderName != "" && b.Country != ""
}

type WalletTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Type          TxType          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Status        TxStatus        `json:"status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	BankDetails   *BankDetails    `json:"bank_details,omitempty"`
	Reference     string          `json:"reference,omitempty"` // payment id for settled sales
	CreatedAt     time.Time       `json:"created_at"`
}

// ArtistSales is the running sales snapshot of one artist.
// Revenue is always GrossRevenue - Commission.
type ArtistSales struct {
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	Revenue      decimal.Decimal `json:"revenue"`
	Commission   decimal.Decimal `json:"commission"`
	Sales        int64           `json:"sales"`
}

func (a ArtistSales) Add(b ArtistSales) ArtistSales {
	return ArtistSales{
		GrossRevenue: a.GrossRevenue.Add(b.GrossRevenue),
		Revenue:      a.Revenue.Add(b.Revenue),
		Commission:   a.Commission.Add(b.Commission),
		Sales:        a.Sales + b.Sales,
	}
}

// Consistent checks revenue + commission == gross.
func (a ArtistSales) Consistent() bool {
	return a.Revenue.Add(a.Commission).Equal(a.GrossRevenue)
}

type Payment struct {
	ID          string                 `json:"id"`
	OrderID     string                 `json:"order_id"`
	UserID      string                 `json:"user_id,omitempty"`
	Amount      decimal.Decimal        `json:"amount"`
	Commission  decimal.Decimal        `json:"commission"`
	ArtistSales map[string]ArtistSales `json:"artist_sales"`
	Status      PaymentStatus          `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
}
