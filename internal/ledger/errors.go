package ledger

import (
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError is a business error caught before any state mutation.
// Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type InsufficientFundsError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string { return "Insufficient funds" }

// PersistenceError wraps a store failure. Its detail is for logs only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persist wraps err as a PersistenceError unless it already is a domain error.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var fe *InsufficientFundsError
	var pe *PersistenceError
	if errors.As(err, &ve) || errors.As(err, &fe) || errors.As(err, &pe) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsBusiness reports whether err is an expected, user-facing error.
func IsBusiness(err error) bool {
	var ve *ValidationError
	var fe *InsufficientFundsError
	return errors.As(err, &ve) || errors.As(err, &fe)
}
