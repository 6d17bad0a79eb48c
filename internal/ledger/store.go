package ledger

import "context"

// Store runs fn inside one transaction. fn's error rolls everything back.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside a store transaction.
// Implementations must make LockWallet and GetArtistSales exclusive until
// the transaction ends.
type Tx interface {
	LockWallet(ctx context.Context, userID string) error
	ListWalletTransactions(ctx context.Context, userID string) ([]WalletTransaction, error)
	GetWalletTransaction(ctx context.Context, id string) (WalletTransaction, error)
	FindSaleByReference(ctx context.Context, userID, reference string) (WalletTransaction, bool, error)
	InsertWalletTransaction(ctx context.Context, t WalletTransaction) error
	UpdateWalletTransactionStatus(ctx context.Context, id string, status TxStatus) error

	// GetArtistSales returns the zero aggregate and false when the artist has no record.
	GetArtistSales(ctx context.Context, artistID string) (ArtistSales, bool, error)
	PutArtistSales(ctx context.Context, artistID string, s ArtistSales) error

	InsertPayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id string) (Payment, error)
	FindPaymentByOrder(ctx context.Context, orderID string) (Payment, bool, error)
}

// Publisher sends an already encoded event.
type Publisher interface {
	PublishEvent(key, value []byte, eventType string)
}
