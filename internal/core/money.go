// Package core holds the ledger's domain types: money, dates, accounts,
// transactions, category metadata and the report shapes derived from them.
//
// Amounts are carried as integer cents. Parsing and formatting go through
// shopspring/decimal so that user input like "12.345" or "12,34" is rounded
// once, at the boundary, and never touches a float afterwards.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in cents.
type Money struct {
	Cents int64
}

// maxMoney bounds parsed amounts so that cents always fit in an int64 with
// headroom for sums.
var maxMoney = decimal.New(1, 15)

// NewMoney builds Money from a whole number of cents.
func NewMoney(cents int64) Money {
	return Money{Cents: cents}
}

// MoneyFromDecimal rounds d half away from zero to two places.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return Money{}, fmt.Errorf("%w: %w: %s out of range", ErrValidation, ErrInvalidAmount, d.String())
	}
	return Money{Cents: d.Round(2).Shift(2).IntPart()}, nil
}

// MoneyFromFloat converts a float, rejecting NaN and infinities.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, fmt.Errorf("%w: %w: not a finite number", ErrValidation, ErrInvalidAmount)
	}
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

// ParseMoney parses a decimal string. Both "12.34" and "12,34" are accepted.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,345") -> 1235 cents (half away from zero)
//	ParseMoney("-5")     -> -500 cents
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: %w: empty", ErrValidation, ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d)
}

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats with exactly two fraction digits, e.g. "-12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

// CheckedAdd returns m+o, or false if the sum does not fit in int64 cents.
func (m Money) CheckedAdd(o Money) (Money, bool) {
	if (o.Cents > 0 && m.Cents > math.MaxInt64-o.Cents) ||
		(o.Cents < 0 && m.Cents < math.MinInt64-o.Cents) {
		return Money{}, false
	}
	return Money{Cents: m.Cents + o.Cents}, true
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// MarshalJSON encodes money as a JSON number with two fraction digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrInvalidAmount, string(data))
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Percent returns part/whole*100 rounded to two places. A zero whole yields zero.
func Percent(part, whole Money) decimal.Decimal {
	if whole.Cents == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part.Cents).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(whole.Cents), 2)
}
