package clickhouse

import (
	"context"
	"fmt"
	kafkax "github.com/metalaloud/settlement/internal/kafka"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"log"
	"time"
)

type SalesDelta struct {
	PaymentID    string
	OrderID      string
	ArtistID     string
	DateKey      uint32 // YYYYMMDD, UTC
	DeltaGross   decimal.Decimal
	DeltaRevenue decimal.Decimal
	DeltaFee     decimal.Decimal
	DeltaSold    int64
	EventID      string
	EventTime    time.Time
}

func DateKey(t time.Time) uint32 {
	t = t.UTC()
	return uint32(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// Deltas turns one settled payment into one row per artist.
func Deltas(eventID string, p ledger.PaymentSettledPayload) []SalesDelta {
	rows := make([]SalesDelta, 0, len(p.Artists))
	for _, a := range p.Artists {
		rows = append(rows, SalesDelta{
			PaymentID:    p.PaymentID,
			OrderID:      p.OrderID,
			ArtistID:     a.ArtistID,
			DateKey:      DateKey(p.SettledAt),
			DeltaGross:   a.GrossRevenue,
			DeltaRevenue: a.Revenue,
			DeltaFee:     a.Commission,
			DeltaSold:    a.Sales,
			EventID:      eventID,
			EventTime:    p.SettledAt.UTC(),
		})
	}
	return rows
}

type Inserter interface {
	InsertSalesDeltas(ctx context.Context, rows []SalesDelta) error
}

// Handler returns a payment.settled consumer that loads deltas into w.
func Handler(w Inserter) kafkax.Handler {
	return func(ctx context.Context, m kafka.Message) error {
		env, err := kafkax.DecodeEnvelope(m)
		if err != nil {
			log.Printf("salesdwh: drop %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
			return nil
		}
		if env.EventType != ledger.EventPaymentSettled {
			return nil
		}
		p, err := kafkax.UnwrapPayload[ledger.PaymentSettledPayload](env.Payload)
		if err != nil {
			log.Printf("salesdwh: drop event %s: %v", env.EventID, err)
			return nil
		}
		if err := w.InsertSalesDeltas(ctx, Deltas(env.EventID, p)); err != nil {
			return fmt.Errorf("insert deltas for %s: %w", p.PaymentID, err)
		}
		return nil
	}
}
