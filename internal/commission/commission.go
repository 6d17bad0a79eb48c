// Package commission splits an order's gross value between the platform and
// the selling artists.
package commission

import (
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/shopspring/decimal"
	"sort"
)

// DefaultRate is the platform fee (3%).
var DefaultRate = decimal.RequireFromString("0.03")

// minor currency unit: cents
const places = 2

type Calculator struct {
	Rate decimal.Decimal
}

func New(rate decimal.Decimal) *Calculator {
	return &Calculator{Rate: rate}
}

type Breakdown struct {
	Artists         map[string]ledger.ArtistSales
	Gross           decimal.Decimal
	TotalCommission decimal.Decimal
}

// ArtistIDs returns the artists in the breakdown in a stable order.
func (b Breakdown) ArtistIDs() []string {
	ids := make([]string, 0, len(b.Artists))
	for id := range b.Artists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shares flattens the breakdown for event payloads.
func (b Breakdown) Shares() []ledger.ArtistShare {
	out := make([]ledger.ArtistShare, 0, len(b.Artists))
	for _, id := range b.ArtistIDs() {
		s := b.Artists[id]
		out = append(out, ledger.ArtistShare{
			ArtistID:     id,
			GrossRevenue: s.GrossRevenue,
			Revenue:      s.Revenue,
			Commission:   s.Commission,
			Sales:        s.Sales,
		})
	}
	return out
}

// ItemCommission is the platform's cut of one line total, rounded to cents.
func (c *Calculator) ItemCommission(itemTotal decimal.Decimal) decimal.Decimal {
	return itemTotal.Mul(c.Rate).Round(places)
}

// Split computes per-artist partial aggregates for one order. Revenue is
// derived per item as total - commission, so revenue + commission == gross.
func (c *Calculator) Split(items []ledger.OrderItem) Breakdown {
	b := Breakdown{
		Artists:         make(map[string]ledger.ArtistSales),
		Gross:           decimal.Zero,
		TotalCommission: decimal.Zero,
	}
	for _, it := range items {
		total := it.Total()
		fee := c.ItemCommission(total)

		b.Gross = b.Gross.Add(total)
		b.TotalCommission = b.TotalCommission.Add(fee)

		b.Artists[it.ArtistID] = b.Artists[it.ArtistID].Add(ledger.ArtistSales{
			GrossRevenue: total,
			Revenue:      total.Sub(fee),
			Commission:   fee,
			Sales:        int64(it.Quantity),
		})
	}
	return b
}
