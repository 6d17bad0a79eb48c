package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/wallet"
)

// PayoutHandler settles the withdrawal named by each payout result.
func PayoutHandler(ws *wallet.Service) Handler {
	return func(ctx context.Context, body []byte) error {
		r, err := DecodePayoutResult(body)
		if err != nil {
			return err
		}
		_, err = ws.SettleWithdrawal(ctx, r.TransactionID, r.Status)
		if errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrInvalidTransition) {
			return fmt.Errorf("%w: withdrawal %s: %v", ErrDrop, r.TransactionID, err)
		}
		return err
	}
}
