package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/shopspring/decimal"
)

// Store is the ledger.Store used for local runs and tests.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type tx struct {
	tx *sql.Tx
}

// LockWallet only registers the wallet; the single connection already
// serializes transactions.
func (t *tx) LockWallet(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO wallets(user_id) VALUES (?)`, userID)
	return err
}

const walletCols = `id, user_id, type, amount, status, payment_method, bank_details, reference, created_at`

func (t *tx) ListWalletTransactions(ctx context.Context, userID string) ([]ledger.WalletTransaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+walletCols+` FROM wallet_transactions WHERE user_id = ? ORDER BY seq`, userID)
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

func (t *tx) GetWalletTransaction(ctx context.Context, id string) (ledger.WalletTransaction, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallet_transactions WHERE id = ?`, id)
	wt, err := scanWalletTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wt, ledger.ErrNotFound
	}
	return wt, err
}

func (t *tx) FindSaleByReference(ctx context.Context, userID, reference string) (ledger.WalletTransaction, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+walletCols+` FROM wallet_transactions WHERE user_id = ? AND reference = ? AND type = ?`,
		userID, reference, string(ledger.TxSale))
	wt, err := scanWalletTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wt, false, nil
	}
	if err != nil {
		return wt, false, err
	}
	return wt, true, nil
}

func (t *tx) InsertWalletTransaction(ctx context.Context, wt ledger.WalletTransaction) error {
	var bank, ref any
	if wt.BankDetails != nil {
		b, err := json.Marshal(wt.BankDetails)
		if err != nil {
			return fmt.Errorf("encode bank details: %w", err)
		}
		bank = string(b)
	}
	if wt.Reference != "" {
		ref = wt.Reference
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions
		(id, user_id, type, amount, status, payment_method, bank_details, reference, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		wt.ID, wt.UserID, string(wt.Type), wt.Amount.String(), string(wt.Status),
		wt.PaymentMethod, bank, ref, wt.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (t *tx) UpdateWalletTransactionStatus(ctx context.Context, id string, status ledger.TxStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE wallet_transactions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *tx) GetArtistSales(ctx context.Context, artistID string) (ledger.ArtistSales, bool, error) {
	var gross, rev, fee string
	var a ledger.ArtistSales
	err := t.tx.QueryRowContext(ctx,
		`SELECT gross_revenue, revenue, commission, sales FROM artist_sales WHERE artist_id = ?`, artistID,
	).Scan(&gross, &rev, &fee, &a.Sales)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ArtistSales{}, false, nil
	}
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
	return a, true, nil
}

func (t *tx) PutArtistSales(ctx context.Context, artistID string, a ledger.ArtistSales) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO artist_sales (artist_id, gross_revenue, revenue, commission, sales, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(artist_id) DO UPDATE SET
			gross_revenue = excluded.gross_revenue,
			revenue = excluded.revenue,
			commission = excluded.commission,
			sales = excluded.sales,
			updated_at = excluded.updated_at`,
		artistID, a.GrossRevenue.String(), a.Revenue.String(), a.Commission.String(), a.Sales,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

const paymentCols = `id, order_id, user_id, amount, commission, artist_sales, status, created_at`

func (t *tx) InsertPayment(ctx context.Context, p ledger.Payment) error {
	sales, err := json.Marshal(p.ArtistSales)
	if err != nil {
		return fmt.Errorf("encode artist sales: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.OrderID, p.UserID, p.Amount.String(), p.Commission.String(), string(sales),
		string(p.Status), p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (t *tx) GetPayment(ctx context.Context, id string) (ledger.Payment, error) {
	p, err := scanPayment(t.tx.QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ledger.ErrNotFound
	}
	return p, err
}

func (t *tx) FindPaymentByOrder(ctx context.Context, orderID string) (ledger.Payment, bool, error) {
	p, err := scanPayment(t.tx.QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE order_id = ?`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	return p, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWalletTx(s scanner) (ledger.WalletTransaction, error) {
	var (
		wt         ledger.WalletTransaction
		typ, st    string
		amount, at string
		bank, ref  sql.NullString
	)
	if err := s.Scan(&wt.ID, &wt.UserID, &typ, &amount, &st, &wt.PaymentMethod, &bank, &ref, &at); err != nil {
		return wt, err
	}
	wt.Type = ledger.TxType(typ)
	wt.Status = ledger.TxStatus(st)
	wt.Reference = ref.String

	var err error
	if wt.Amount, err = decimal.NewFromString(amount); err != nil {
		return wt, fmt.Errorf("parse amount: %w", err)
	}
	if wt.CreatedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return wt, fmt.Errorf("parse created_at: %w", err)
	}
	if bank.Valid {
		var bd ledger.BankDetails
		if err := json.Unmarshal([]byte(bank.String), &bd); err != nil {
			return wt, fmt.Errorf("decode bank details: %w", err)
		}
		wt.BankDetails = &bd
	}
	return wt, nil
}

func scanPayment(s scanner) (ledger.Payment, error) {
	var (
		p                   ledger.Payment
		amount, fee, status string
		sales, at           string
	)
	if err := s.Scan(&p.ID, &p.OrderID, &p.UserID, &amount, &fee, &sales, &status, &at); err != nil {
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
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return p, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(sales), &p.ArtistSales); err != nil {
		return p, fmt.Errorf("decode artist sales: %w", err)
	}
	return p, nil
}
