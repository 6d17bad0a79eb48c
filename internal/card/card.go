// Package card holds the checkout-side card field checks.
package card

import (
	"github.com/metalaloud/settlement/internal/ledger"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type Details struct {
	Number string `json:"card_number"`
	Expiry string `json:"card_expiry"` // MM/YY
	CVV    string `json:"card_cvv"`
	Name   string `json:"card_name"`
}

// Validate checks number, expiry and CVV in that order and reports the
// first failing field.
func (d Details) Validate(now time.Time) error {
	if !ValidateCardNumber(d.Number) {
		return &ledger.ValidationError{Field: "card_number", Message: "Invalid card number"}
	}
	if !ValidateExpiryDate(d.Expiry, now) {
		return &ledger.ValidationError{Field: "card_expiry", Message: "Card has expired"}
	}
	if !ValidateCVV(d.CVV) {
		return &ledger.ValidationError{Field: "card_cvv", Message: "Invalid CVV"}
	}
	return nil
}

// ValidateCardNumber runs the Luhn checksum over number with whitespace removed.
func ValidateCardNumber(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, number)
	if digits == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// ValidateExpiryDate accepts MM/YY when the first day of that month is
// strictly after now.
func ValidateExpiryDate(expiry string, now time.Time) bool {
	mm, yy, ok := strings.Cut(strings.TrimSpace(expiry), "/")
	if !ok || !allDigits(mm) || !allDigits(yy) {
		return false
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(yy)
	if err != nil {
		return false
	}
	cardDate := time.Date(2000+year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	return cardDate.After(now)
}

func ValidateCVV(cvv string) bool {
	return (len(cvv) == 3 || len(cvv) == 4) && allDigits(cvv)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
