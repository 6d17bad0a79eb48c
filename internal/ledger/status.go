package ledger

import "github.com/shopspring/decimal"

type TxType string

const (
	TxSale       TxType = "sale"
	TxWithdrawal TxType = "withdrawal"
	TxRefund     TxType = "refund"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

type PaymentStatus string

const PaymentCompleted PaymentStatus = "completed"

var validNext = map[TxStatus]map[TxStatus]bool{
	TxPending:   {TxCompleted: true, TxFailed: true},
	TxCompleted: {},
	TxFailed:    {},
}

func CanTransition(from, to TxStatus) bool {
	return validNext[from][to]
}

func (s TxStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Fold derives a balance from a transaction list: sales credit, withdrawals
// and refunds debit, failed transactions move nothing.
func Fold(txs []WalletTransaction) decimal.Decimal {
	bal := decimal.Zero
	for _, tx := range txs {
		if tx.Status == TxFailed {
			continue
		}
		switch tx.Type {
		case TxSale:
			bal = bal.Add(tx.Amount)
		case TxWithdrawal, TxRefund:
			bal = bal.Sub(tx.Amount)
		}
	}
	return bal
}
