// Package core holds the transaction domain model.
//
// Amounts are decimal.Decimal end to end. Conversion to float happens only
// when a response is encoded.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts must fit a DynamoDB number: at most 38 significant digits and a
// magnitude between 1e-130 and 1e126. Every such value also encodes as a
// finite JSON number.
const maxSignificantDigits = 38

var (
	maxMagnitude = decimal.New(1, 126)
	minMagnitude = decimal.New(1, -130)
)

// ParseAmount converts a decimal string to an exact amount.
//
// A comma is accepted as decimal separator:
//
//	ParseAmount("12.34") -> 12.34
//	ParseAmount("12,34") -> 12.34
//	ParseAmount("abc")   -> ValidationError
func ParseAmount(s string) (decimal.Decimal, error) {
	return ParseDecimal(strings.ReplaceAll(s, ",", "."))
}

// ParseDecimal is the strict variant of ParseAmount: only a dot separates
// the fractional part.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError(ErrMissingAmount, "amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError(ErrInvalidAmount, "invalid amount %q", s)
	}
	if err := checkRange(s, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func checkRange(s string, d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	abs := d.Abs()
	if abs.GreaterThanOrEqual(maxMagnitude) || abs.LessThan(minMagnitude) {
		return NewValidationError(ErrInvalidAmount, "amount %q out of range", s)
	}
	if sig := strings.TrimRight(abs.Coefficient().String(), "0"); len(sig) > maxSignificantDigits {
		return NewValidationError(ErrInvalidAmount, "amount %q has more than %d significant digits", s, maxSignificantDigits)
	}
	return nil
}
