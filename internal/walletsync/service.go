// Package walletsync credits artist wallets from settled payments.
package walletsync

import (
	"context"
	"fmt"
	kafkax "github.com/metalaloud/settlement/internal/kafka"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/wallet"
	kafkago "github.com/segmentio/kafka-go"
	"log"
)

// Deduper remembers finished events. It only short-circuits work that has
// already been committed; the reference key on each sale is what makes
// redelivery safe.
type Deduper interface {
	Processed(ctx context.Context, eventID string) bool
	MarkProcessed(ctx context.Context, eventID string)
}

type Service struct {
	Wallet *wallet.Service
	Dedup  Deduper // optional
}

// HandlePaymentSettled is the consumer handler for payment.settled. Each
// artist share becomes one sale keyed by the payment id, so redelivery
// never credits twice.
func (s *Service) HandlePaymentSettled(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		log.Printf("walletsync: drop %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
		return nil
	}
	if env.EventType != ledger.EventPaymentSettled {
		return nil
	}
	if s.Dedup != nil && s.Dedup.Processed(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[ledger.PaymentSettledPayload](env.Payload)
	if err != nil {
		log.Printf("walletsync: drop event %s: %v", env.EventID, err)
		return nil
	}
	if err := s.credit(ctx, p); err != nil {
		return err
	}
	if s.Dedup != nil {
		s.Dedup.MarkProcessed(ctx, env.EventID)
	}
	return nil
}

func (s *Service) credit(ctx context.Context, p ledger.PaymentSettledPayload) error {
	for _, a := range p.Artists {
		if _, err := s.Wallet.RecordSettledSale(ctx, p.PaymentID, a.ArtistID, a.GrossRevenue, a.Commission); err != nil {
			return fmt.Errorf("credit %s for payment %s: %w", a.ArtistID, p.PaymentID, err)
		}
	}
	return nil
}
