package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	AmountScale          = 2
	AmountMaxDigits      = 10
	IdempotencyKeyMaxLen = 255
)

// maxAmount is 99999999.99, the largest value NUMERIC(10,2) can hold.
var maxAmount = decimal.New(1, AmountMaxDigits-AmountScale).Sub(decimal.New(1, -AmountScale))

// ValidateAmount checks the digit and scale limits on the coefficient and
// exponent before comparing values, since decimals parsed from exponent
// notation like 1e20000000 are expensive to rescale.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	digits, exp := amount.NumDigits(), int(amount.Exponent())
	if digits+exp > AmountMaxDigits-AmountScale {
		return &ValidationError{Field: "amount", Reason: "must have at most 10 digits"}
	}
	// a coefficient cannot carry trailing zeros past its own length, so
	// anything this far below the cent is never a whole number of cents
	if exp < -AmountScale && -exp-AmountScale >= digits {
		return &ValidationError{Field: "amount", Reason: "must have at most 2 decimal places"}
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return &ValidationError{Field: "amount", Reason: "must have at most 2 decimal places"}
	}
	if amount.GreaterThan(maxAmount) {
		return &ValidationError{Field: "amount", Reason: "must have at most 10 digits"}
	}
	return nil
}

func ValidateIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Field: "idempotency_key", Reason: "must not be empty"}
	}
	if !utf8.ValidString(key) {
		return &ValidationError{Field: "idempotency_key", Reason: "must be valid UTF-8"}
	}
	if utf8.RuneCountInString(key) > IdempotencyKeyMaxLen {
		return &ValidationError{Field: "idempotency_key", Reason: "must be at most 255 characters"}
	}
	return nil
}

// FormatAmount renders an amount the way it is stored, with two decimals.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountScale)
}
