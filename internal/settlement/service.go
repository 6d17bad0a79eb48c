// Package settlement charges an order, splits it between the platform and
// the artists and records the outcome.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/metalaloud/settlement/internal/card"
	"github.com/metalaloud/settlement/internal/commission"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/shopspring/decimal"
)

const msgProcessingFailed = "Payment processing failed"

// IdempotencyCache is a fast path in front of the payments table. The table
// stays the source of truth.
type IdempotencyCache interface {
	PaymentForOrder(ctx context.Context, orderID string) (string, bool)
	RememberPayment(ctx context.Context, orderID, paymentID string)
}

type Service struct {
	Store       ledger.Store
	Calculator  *commission.Calculator
	Publisher   ledger.Publisher // optional
	Cache       IdempotencyCache // optional
	Delay       time.Duration    // simulated gateway latency
	ServiceName string
	Now         func() time.Time
}

type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Idempotent    bool   `json:"idempotent,omitempty"`
	Error         string `json:"error,omitempty"`

	Err error `json:"-"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func fail(err error) Result {
	if ledger.IsBusiness(err) {
		return Result{Error: err.Error(), Err: err}
	}
	return Result{Error: msgProcessingFailed, Err: err}
}

// ProcessPayment validates the card, settles order and reports the outcome.
// It never panics and never returns an error: every failure is a Result.
// Replaying an order id returns the original payment.
func (s *Service) ProcessPayment(ctx context.Context, amount decimal.Decimal, details card.Details, order ledger.Order) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("settlement: panic for order %s: %v", order.ID, r)
			res = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := details.Validate(s.now()); err != nil {
		return fail(err)
	}
	if err := order.Validate(); err != nil {
		return fail(err)
	}
	if amount.IsNegative() || !ledger.IsCents(amount) || (!order.TotalAmount.IsZero() && !order.TotalAmount.Equal(amount)) {
		return fail(&ledger.ValidationError{Field: "amount", Message: "Invalid amount"})
	}

	if s.Cache != nil {
		if id, ok := s.Cache.PaymentForOrder(ctx, order.ID); ok {
			if p, err := s.Payment(ctx, id); err == nil {
				s.publishSettled(p)
			} else {
				log.Printf("settlement: replay of order %s: reload payment %s: %v", order.ID, id, err)
			}
			return Result{Success: true, TransactionID: id, Idempotent: true}
		}
	}

	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}

	breakdown := s.Calculator.Split(order.Items)
	payment := ledger.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      amount,
		Commission:  breakdown.TotalCommission,
		ArtistSales: breakdown.Artists,
		Status:      ledger.PaymentCompleted,
		CreatedAt:   s.now().UTC(),
	}

	existed := false
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		prev, ok, err := tx.FindPaymentByOrder(ctx, order.ID)
		if err != nil {
			return ledger.Persist("find payment", err)
		}
		if ok {
			payment, existed = prev, true
			return nil
		}

		// artists in a fixed order so concurrent settlements lock rows the same way
		for _, artistID := range breakdown.ArtistIDs() {
			cur, _, err := tx.GetArtistSales(ctx, artistID)
			if err != nil {
				return ledger.Persist("get artist sales", err)
			}
			if err := tx.PutArtistSales(ctx, artistID, cur.Add(breakdown.Artists[artistID])); err != nil {
				return ledger.Persist("put artist sales", err)
			}
		}
		return ledger.Persist("insert payment", tx.InsertPayment(ctx, payment))
	})
	if err != nil {
		log.Printf("settlement: order %s: %v", order.ID, err)
		return fail(err)
	}

	if s.Cache != nil {
		s.Cache.RememberPayment(ctx, order.ID, payment.ID)
	}
	// replays publish again: consumers apply payment.settled idempotently, and
	// a retry is how a lost first publish gets delivered
	s.publishSettled(payment)
	return Result{Success: true, TransactionID: payment.ID, Idempotent: existed}
}

func (s *Service) publishSettled(p ledger.Payment) {
	if s.Publisher == nil {
		return
	}
	ev, err := ledger.NewEnvelope(ledger.EventPaymentSettled, s.ServiceName, "", p.ID, ledger.PaymentSettledPayload{
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		UserID:     p.UserID,
		Amount:     p.Amount,
		Commission: p.Commission,
		Artists:    commission.Breakdown{Artists: p.ArtistSales}.Shares(),
		SettledAt:  p.CreatedAt,
	})
	if err != nil {
		log.Printf("settlement: encode event for %s: %v", p.ID, err)
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		log.Printf("settlement: encode envelope for %s: %v", p.ID, err)
		return
	}
	s.Publisher.PublishEvent(ledger.PartitionKey(p.ID), value, ledger.EventPaymentSettled)
}

// ArtistSales returns the artist's running aggregate; artists without sales
// get the zero aggregate.
func (s *Service) ArtistSales(ctx context.Context, artistID string) (ledger.ArtistSales, error) {
	var out ledger.ArtistSales
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		a, ok, err := tx.GetArtistSales(ctx, artistID)
		if err != nil {
			return err
		}
		if ok {
			out = a
		}
		return nil
	})
	return out, ledger.Persist("artist sales", err)
}

func (s *Service) Payment(ctx context.Context, id string) (ledger.Payment, error) {
	var out ledger.Payment
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p, err := tx.GetPayment(ctx, id)
		out = p
		return err
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return out, ledger.ErrNotFound
	}
	return out, ledger.Persist("get payment", err)
}
