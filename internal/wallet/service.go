// Package wallet is the per-user ledger of sale credits and withdrawal debits.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/shopspring/decimal"
)

type Service struct {
	Store       ledger.Store
	Publisher   ledger.Publisher // optional
	ServiceName string
	Now         func() time.Time
}

type Summary struct {
	Balance            decimal.Decimal `json:"balance"`
	TotalEarnings      decimal.Decimal `json:"total_earnings"`
	TotalWithdrawn     decimal.Decimal `json:"total_withdrawn"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	Transactions       int             `json:"transactions"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Balance folds the user's ledger. It is always read from the store, never
// memoized, so it cannot drift from Transactions.
func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.Fold(txs), nil
}

// Transactions returns the ledger in append order.
func (s *Service) Transactions(ctx context.Context, userID string) ([]ledger.WalletTransaction, error) {
	var out []ledger.WalletTransaction
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		txs, err := tx.ListWalletTransactions(ctx, userID)
		out = txs
		return err
	})
	if err != nil {
		return nil, ledger.Persist("list wallet transactions", err)
	}
	if out == nil {
		out = []ledger.WalletTransaction{}
	}
	return out, nil
}

func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		Balance:            ledger.Fold(txs),
		TotalEarnings:      decimal.Zero,
		TotalWithdrawn:     decimal.Zero,
		PendingWithdrawals: decimal.Zero,
		Transactions:       len(txs),
	}
	for _, t := range txs {
		switch {
		case t.Type == ledger.TxSale && t.Status != ledger.TxFailed:
			sum.TotalEarnings = sum.TotalEarnings.Add(t.Amount)
		case t.Type == ledger.TxWithdrawal && t.Status == ledger.TxCompleted:
			sum.TotalWithdrawn = sum.TotalWithdrawn.Add(t.Amount)
		case t.Type == ledger.TxWithdrawal && t.Status == ledger.TxPending:
			sum.PendingWithdrawals = sum.PendingWithdrawals.Add(t.Amount)
		}
	}
	return sum, nil
}

// RecordSale credits amount - commission to the user.
func (s *Service) RecordSale(ctx context.Context, userID string, amount, commission decimal.Decimal) (ledger.WalletTransaction, error) {
	return s.recordSale(ctx, "", userID, amount, commission)
}

// RecordSettledSale is RecordSale keyed by reference: replays return the
// transaction written the first time.
func (s *Service) RecordSettledSale(ctx context.Context, reference, userID string, amount, commission decimal.Decimal) (ledger.WalletTransaction, error) {
	if reference == "" {
		return ledger.WalletTransaction{}, &ledger.ValidationError{Field: "reference", Message: "Missing reference"}
	}
	return s.recordSale(ctx, reference, userID, amount, commission)
}

func (s *Service) recordSale(ctx context.Context, reference, userID string, amount, commission decimal.Decimal) (ledger.WalletTransaction, error) {
	if userID == "" {
		return ledger.WalletTransaction{}, &ledger.ValidationError{Field: "user_id", Message: "Missing user"}
	}
	net := amount.Sub(commission)
	if amount.IsNegative() || commission.IsNegative() || net.IsNegative() ||
		!ledger.IsCents(amount) || !ledger.IsCents(commission) {
		return ledger.WalletTransaction{}, &ledger.ValidationError{Field: "amount", Message: "Invalid amount"}
	}

	wt := ledger.WalletTransaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      ledger.TxSale,
		Amount:    net,
		Status:    ledger.TxCompleted,
		Reference: reference,
		CreatedAt: s.now().UTC(),
	}
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockWallet(ctx, userID); err != nil {
			return err
		}
		if reference != "" {
			prev, ok, err := tx.FindSaleByReference(ctx, userID, reference)
			if err != nil {
				return err
			}
			if ok {
				wt = prev
				return nil
			}
		}
		return tx.InsertWalletTransaction(ctx, wt)
	})
	if err != nil {
		log.Printf("wallet: record sale for %s: %v", userID, err)
		return ledger.WalletTransaction{}, ledger.Persist("record sale", err)
	}
	return wt, nil
}

// RequestWithdrawal appends a pending withdrawal when the balance covers it.
// Balance check and append happen under the wallet lock, so concurrent
// requests cannot overdraw.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, bank ledger.BankDetails) (ledger.WalletTransaction, error) {
	if userID == "" {
		return ledger.WalletTransaction{}, &ledger.ValidationError{Field: "user_id", Message: "Missing user"}
	}
	if !amount.IsPositive() || !ledger.IsCents(amount) {
		return ledger.WalletTransaction{}, &ledger.ValidationError{Field: "amount", Message: "Invalid amount"}
	}
	if !bank.Complete() {
		return ledger.WalletTransaction{}, &ledger.ValidationError{Field: "bank_details", Message: "Incomplete bank details"}
	}

	wt := ledger.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        ledger.TxWithdrawal,
		Amount:      amount,
		Status:      ledger.TxPending,
		BankDetails: &bank,
		CreatedAt:   s.now().UTC(),
	}
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockWallet(ctx, userID); err != nil {
			return err
		}
		txs, err := tx.ListWalletTransactions(ctx, userID)
		if err != nil {
			return err
		}
		if bal := ledger.Fold(txs); bal.LessThan(amount) {
			return &ledger.InsufficientFundsError{Balance: bal, Requested: amount}
		}
		return tx.InsertWalletTransaction(ctx, wt)
	})
	if err != nil {
		if !ledger.IsBusiness(err) {
			log.Printf("wallet: withdrawal for %s: %v", userID, err)
		}
		return ledger.WalletTransaction{}, ledger.Persist("request withdrawal", err)
	}

	s.publish(ledger.EventWithdrawalRequested, userID, wt.ID, ledger.WithdrawalRequestedPayload{
		TransactionID: wt.ID,
		UserID:        userID,
		Amount:        amount,
		BankDetails:   bank,
	})
	return wt, nil
}

// SettleWithdrawal applies a back-office payout outcome to a pending withdrawal.
// Replaying the same outcome is a no-op.
func (s *Service) SettleWithdrawal(ctx context.Context, txID string, status ledger.TxStatus) (ledger.WalletTransaction, error) {
	var wt ledger.WalletTransaction
	changed := false
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		cur, err := tx.GetWalletTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if err := tx.LockWallet(ctx, cur.UserID); err != nil {
			return err
		}
		// re-read under the lock
		if cur, err = tx.GetWalletTransaction(ctx, txID); err != nil {
			return err
		}
		if cur.Type != ledger.TxWithdrawal {
			return ledger.ErrInvalidTransition
		}
		wt = cur
		if cur.Status == status {
			return nil
		}
		if !ledger.CanTransition(cur.Status, status) {
			return ledger.ErrInvalidTransition
		}
		if err := tx.UpdateWalletTransactionStatus(ctx, txID, status); err != nil {
			return err
		}
		wt.Status = status
		changed = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, ledger.ErrInvalidTransition) {
			log.Printf("wallet: settle withdrawal %s: %v", txID, err)
		}
		return ledger.WalletTransaction{}, ledger.Persist("settle withdrawal", err)
	}
	if changed {
		s.publish(ledger.EventWithdrawalSettled, wt.UserID, wt.ID, ledger.WithdrawalSettledPayload{
			TransactionID: wt.ID,
			UserID:        wt.UserID,
			Status:        status,
		})
	}
	return wt, nil
}

func (s *Service) publish(eventType, userID, correlationID string, payload any) {
	if s.Publisher == nil {
		return
	}
	ev, err := ledger.NewEnvelope(eventType, s.ServiceName, "", correlationID, payload)
	if err != nil {
		log.Printf("wallet: encode %s: %v", eventType, err)
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("wallet: encode envelope %s: %v", eventType, err)
		return
	}
	s.Publisher.PublishEvent(ledger.PartitionKey(userID), b, eventType)
}
