// Package money holds the fixed-point helpers used for every monetary value
// in splitledger. Amounts are shopspring decimals at a scale of two fractional
// digits; float64 is never used for money.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale int32 = 2

var (
	// ErrInvalidAmount is returned when a string is not a base-10 decimal.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrExcessPrecision is returned when an amount has non-zero digits past Scale.
	ErrExcessPrecision = errors.New("amount has more than 2 decimal places")
	// ErrNegativeAmount is returned by ParseNonNegative for amounts below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Zero is 0.00.
var Zero = decimal.Zero

// Parse reads an exact decimal string such as "300.00" or "33.3".
// Values that would lose information when rounded to Scale are rejected
// instead of truncated.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := CheckScale(d); err != nil {
		return decimal.Zero, err
	}

	return d.Round(Scale), nil
}

// ParseNonNegative is Parse plus a sign check.
func ParseNonNegative(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeAmount, Format(d))
	}
	return d, nil
}

// MustParse is Parse for literals in tests and defaults. It panics on error.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// CheckScale fails with ErrExcessPrecision when d has significant digits
// beyond Scale. Trailing zeros ("1.500") are fine.
func CheckScale(d decimal.Decimal) error {
	if !d.Equal(d.Round(Scale)) {
		return fmt.Errorf("%w: %s", ErrExcessPrecision, d.String())
	}
	return nil
}

// Format renders d with exactly Scale fractional digits, e.g. "250.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Sum adds the values exactly. An empty input sums to zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Equal compares two amounts at Scale.
func Equal(a, b decimal.Decimal) bool {
	return a.Round(Scale).Equal(b.Round(Scale))
}
