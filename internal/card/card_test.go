package card

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/metalaloud/settlement/internal/ledger"
)

var luhnValid = []string{
	"4111111111111111",
	"4111 1111 1111 1111",
	"5555555555554444",
	"378282246310005",
	"6011111111111117",
	"79927398713",
}

func TestValidateCardNumber(t *testing.T) {
	for _, n := range luhnValid {
		if !ValidateCardNumber(n) {
			t.Errorf("ValidateCardNumber(%q) = false, want true", n)
		}
	}
	for _, n := range []string{"4111111111111112", "79927398710", "", "   ", "4111-1111-1111-1111", "abcd"} {
		if ValidateCardNumber(n) {
			t.Errorf("ValidateCardNumber(%q) = true, want false", n)
		}
	}
}

// Changing any single digit of a valid number always breaks the checksum.
func TestValidateCardNumberSingleDigitMutation(t *testing.T) {
	for _, n := range luhnValid {
		for i := 0; i < len(n); i++ {
			if n[i] == ' ' {
				continue
			}
			orig := int(n[i] - '0')
			for v := 0; v <= 9; v++ {
				if v == orig {
					continue
				}
				m := n[:i] + strconv.Itoa(v) + n[i+1:]
				if ValidateCardNumber(m) {
					t.Errorf("mutation %q of %q still valid", m, n)
				}
			}
		}
	}
}

func TestValidateExpiryDate(t *testing.T) {
	now := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want bool
	}{
		{"11/26", true},
		{"01/27", true},
		{"10/26", false}, // first of this month is already past
		{"09/26", false},
		{"12/99", true},
		{"13/30", false},
		{"00/30", false},
		{"1/30", true},
		{"ab/cd", false},
		{"1230", false},
		{"", false},
		{"12/", false},
		{"-1/30", false},
	}
	for _, c := range cases {
		if got := ValidateExpiryDate(c.in, now); got != c.want {
			t.Errorf("ValidateExpiryDate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValidateCVV(t *testing.T) {
	for _, c := range []string{"123", "0000"} {
		if !ValidateCVV(c) {
			t.Errorf("ValidateCVV(%q) = false", c)
		}
	}
	for _, c := range []string{"", "12", "12345", "12a", " 123", "١٢٣"} {
		if ValidateCVV(c) {
			t.Errorf("ValidateCVV(%q) = true", c)
		}
	}
}

func TestDetailsValidateOrder(t *testing.T) {
	now := time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)
	good := Details{Number: "4111111111111111", Expiry: "12/28", CVV: "123", Name: "J Hetfield"}
	if err := good.Validate(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		mod   func(*Details)
		field string
		msg   string
	}{
		{func(d *Details) { d.Number = "4111111111111112"; d.Expiry = "01/01" }, "card_number", "Invalid card number"},
		{func(d *Details) { d.Expiry = "01/20"; d.CVV = "x" }, "card_expiry", "Card has expired"},
		{func(d *Details) { d.CVV = "12" }, "card_cvv", "Invalid CVV"},
	}
	for _, c := range cases {
		d := good
		c.mod(&d)
		var ve *ledger.ValidationError
		err := d.Validate(now)
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %v", err)
		}
		if ve.Field != c.field || ve.Error() != c.msg {
			t.Errorf("got field=%s msg=%q, want %s %q", ve.Field, ve.Error(), c.field, c.msg)
		}
	}
}
