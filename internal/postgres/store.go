package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/shopspring/decimal"
	"time"
)

// Store keeps the ledger in Postgres. Wallet and artist rows are locked
// with SELECT ... FOR UPDATE for the lifetime of the transaction.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	t, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback(ctx) }()

	if err := fn(ctx, &tx{t: t}); err != nil {
		return err
	}
	return t.Commit(ctx)
}

type tx struct{ t pgx.Tx }

func (x *tx) LockWallet(ctx context.Context, userID string) error {
	if _, err := x.t.Exec(ctx, `INSERT INTO wallets(user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID); err != nil {
		return err
	}
	var id string
	return x.t.QueryRow(ctx, `SELECT user_id FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&id)
}

// amounts travel as text so NUMERIC never round-trips through float
const walletCols = `id::text, user_id, type, amount::text, status, payment_method, bank_details, COALESCE(reference, ''), created_at`

func (x *tx) ListWalletTransactions(ctx context.Context, userID string) ([]ledger.WalletTransaction, error) {
	rows, err := x.t.Query(ctx, `SELECT `+walletCols+` FROM wallet_transactions WHERE user_id=$1 ORDER BY seq`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.WalletTransaction
	for rows.Next() {
		wt, err := scanWalletTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wt)
	}
	return out, rows.Err()
}

func (x *tx) GetWalletTransaction(ctx context.Context, id string) (ledger.WalletTransaction, error) {
	wt, err := scanWalletTx(x.t.QueryRow(ctx, `SELECT `+walletCols+` FROM wallet_transactions WHERE id::text=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return wt, ledger.ErrNotFound
	}
	return wt, err
}

func (x *tx) FindSaleByReference(ctx context.Context, userID, reference string) (ledger.WalletTransaction, bool, error) {
	wt, err := scanWalletTx(x.t.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallet_transactions WHERE user_id=$1 AND reference=$2 AND type='sale'`,
		userID, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return wt, false, nil
	}
	if err != nil {
		return wt, false, err
	}
	return wt, true, nil
}

func (x *tx) InsertWalletTransaction(ctx context.Context, wt ledger.WalletTransaction) error {
	var bank []byte
	if wt.BankDetails != nil {
		b, err := json.Marshal(wt.BankDetails)
		if err != nil {
			return fmt.Errorf("encode bank details: %w", err)
		}
		bank = b
	}
	var ref *string
	if wt.Reference != "" {
		ref = &wt.Reference
	}
	_, err := x.t.Exec(ctx, `
		INSERT INTO wallet_transactions(id, user_id, type, amount, status, payment_method, bank_details, reference, created_at)
		VALUES ($1::uuid, $2, $3, $4::text::numeric, $5, $6, $7::jsonb, $8, $9)`,
		wt.ID, wt.UserID, string(wt.Type), wt.Amount.String(), string(wt.Status),
		wt.PaymentMethod, bank, ref, wt.CreatedAt,
	)
	return err
}

func (x *tx) UpdateWalletTransactionStatus(ctx context.Context, id string, status ledger.TxStatus) error {
	ct, err := x.t.Exec(ctx, `UPDATE wallet_transactions SET status=$2 WHERE id::text=$1`, id, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ledger.ErrNotFound
	}
	return nil
}

// GetArtistSales makes sure the row exists before locking it, so two first
// settlements for the same artist queue on the same row.
func (x *tx) GetArtistSales(ctx context.Context, artistID string) (ledger.ArtistSales, bool, error) {
	ct, err := x.t.Exec(ctx, `INSERT INTO artist_sales(artist_id) VALUES ($1) ON CONFLICT DO NOTHING`, artistID)
	if err != nil {
		return ledger.ArtistSales{}, false, err
	}
	existed := ct.RowsAffected() == 0

	var gross, rev, fee string
	var a ledger.ArtistSales
	err = x.t.QueryRow(ctx, `
		SELECT gross_revenue::text, revenue::text, commission::text, sales
		FROM artist_sales WHERE artist_id=$1 FOR UPDATE`, artistID,
	).Scan(&gross, &rev, &fee, &a.Sales)
	if err != nil {
		return a, false, err
	}
	if a.GrossRevenue, err = decimal.NewFromString(gross); err != nil {
		return a, false, err
	}
	if a.Revenue, err = decimal.NewFromString(rev); err != nil {
		return a, false, err
	}
	if a.Commission, err = decimal.NewFromString(fee); err != nil {
		return a, false, err
	}
	return a, existed, nil
}

func (x *tx) PutArtistSales(ctx context.Context, artistID string, a ledger.ArtistSales) error {
	_, err := x.t.Exec(ctx, `
		INSERT INTO artist_sales(artist_id, gross_revenue, revenue, commission, sales, updated_at)
		VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric, $5, now())
		ON CONFLICT (artist_id) DO UPDATE SET
			gross_revenue = EXCLUDED.gross_revenue,
			revenue       = EXCLUDED.revenue,
			commission    = EXCLUDED.commission,
			sales         = EXCLUDED.sales,
			updated_at    = EXCLUDED.updated_at`,
		artistID, a.GrossRevenue.String(), a.Revenue.String(), a.Commission.String(), a.Sales,
	)
	return err
}

const paymentCols = `id::text, order_id, user_id, amount::text, commission::text, artist_sales, status, created_at`

func (x *tx) InsertPayment(ctx context.Context, p ledger.Payment) error {
	sales, err := json.Marshal(p.ArtistSales)
	if err != nil {
		return fmt.Errorf("encode artist sales: %w", err)
	}
	_, err = x.t.Exec(ctx, `
		INSERT INTO payments(id, order_id, user_id, amount, commission, artist_sales, status, created_at)
		VALUES ($1::uuid, $2, $3, $4::text::numeric, $5::text::numeric, $6::jsonb, $7, $8)`,
		p.ID, p.OrderID, p.UserID, p.Amount.String(), p.Commission.String(), sales, string(p.Status), p.CreatedAt,
	)
	return err
}

func (x *tx) GetPayment(ctx context.Context, id string) (ledger.Payment, error) {
	p, err := scanPayment(x.t.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id::text=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ledger.ErrNotFound
	}
	return p, err
}

func (x *tx) FindPaymentByOrder(ctx context.Context, orderID string) (ledger.Payment, bool, error) {
	p, err := scanPayment(x.t.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	return p, true, nil
}

func scanWalletTx(row pgx.Row) (ledger.WalletTransaction, error) {
	var (
		wt          ledger.WalletTransaction
		typ, status string
		amount      string
		bank        []byte
		createdAt   time.Time
	)
	if err := row.Scan(&wt.ID, &wt.UserID, &typ, &amount, &status, &wt.PaymentMethod, &bank, &wt.Reference, &createdAt); err != nil {
		return wt, err
	}
	wt.Type = ledger.TxType(typ)
	wt.Status = ledger.TxStatus(status)
	wt.CreatedAt = createdAt

	var err error
	if wt.Amount, err = decimal.NewFromString(amount); err != nil {
		return wt, fmt.Errorf("parse amount: %w", err)
	}
	if bank != nil {
		var bd ledger.BankDetails
		if err := json.Unmarshal(bank, &bd); err != nil {
			return wt, fmt.Errorf("decode bank details: %w", err)
		}
		wt.BankDetails = &bd
	}
	return wt, nil
}

func scanPayment(row pgx.Row) (ledger.Payment, error) {
	var (
		p           ledger.Payment
		amount, fee string
		sales       []byte
		status      string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &amount, &fee, &sales, &status, &p.CreatedAt); err != nil {
		return p, err
	}
	p.Status = ledger.PaymentStatus(status)

	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return p, fmt.Errorf("parse amount: %w", err)
	}
	if p.Commission, err = decimal.NewFromString(fee); err != nil {
		return p, fmt.Errorf("parse commission: %w", err)
	}
	if err := json.Unmarshal(sales, &p.ArtistSales); err != nil {
		return p, fmt.Errorf("decode artist sales: %w", err)
	}
	return p, nil
}
