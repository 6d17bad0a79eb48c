package ledger

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

const (
	EventPaymentSettled      = "PaymentSettled"
	EventWithdrawalRequested = "WithdrawalRequested"
	EventWithdrawalSettled   = "WithdrawalSettled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // payment id or wallet tx id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a v1 envelope.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- payloads ----

type ArtistShare struct {
	ArtistID     string          `json:"artist_id"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	Revenue      decimal.Decimal `json:"revenue"`
	Commission   decimal.Decimal `json:"commission"`
	Sales        int64           `json:"sales"`
}

type PaymentSettledPayload struct {
	PaymentID  string          `json:"payment_id"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Commission decimal.Decimal `json:"commission"`
	Artists    []ArtistShare   `json:"artists"`
	SettledAt  time.Time       `json:"settled_at"`
}

type WithdrawalRequestedPayload struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	BankDetails   BankDetails     `json:"bank_details"`
}

type WithdrawalSettledPayload struct {
	TransactionID string   `json:"transaction_id"`
	UserID        string   `json:"user_id"`
	Status        TxStatus `json:"status"`
}
