// Package core holds the ledger domain types: entries, summaries, periods,
// money and the error taxonomy shared by every other package.
package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer cents.
type Money struct {
	Cents int64
}

// Cents builds a Money value.
func Cents(c int64) Money { return Money{Cents: c} }

// Unsigned plain decimals only; no exponent, no thousands separator.
var plainAmount = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// MaxEntryCents caps a single amount at 100 billion units, so that month
// and day totals of realistic ledgers stay far inside int64.
const MaxEntryCents int64 = 10_000_000_000_000

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// fromDecimal rounds d half away from zero to whole cents, rejecting
// values int64 cannot hold.
func fromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// parseAmount reads a typed amount such as "12.34" or "12,34". The third
// decimal rounds half up.
func parseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if !plainAmount.MatchString(s) {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount as "12.34".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Validate rejects zero, negative and oversized amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxEntryCents {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	if s := string(b); strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return ErrInvalidAmount
		}
		parsed, err := parseAmount(unq)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalidAmount
	}
	parsed, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
