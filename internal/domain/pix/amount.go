package pix

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/shopspring/decimal"
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// ToCents converts a major-unit amount (19.9) into minor units (1990),
// rounding half away from zero. Accepts JSON numbers, Go numbers and numeric
// strings. Negative values and values whose cents do not fit in int64 are
// rejected.
func ToCents(v any) (int64, error) {
	d, err := toDecimal(v)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", domainErrors.ErrInvalidAmount, d.String())
	}
	if d.IsZero() {
		return 0, nil
	}

	// Checked on digit count first so exponents like 1e400 or 1e-400 are never
	// expanded into big integers.
	switch mag := magnitude(d); {
	case mag > 18:
		return 0, fmt.Errorf("%w: %s is too large", domainErrors.ErrInvalidAmount, d.String())
	case mag < -3:
		return 0, nil
	}

	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("%w: %s is too large", domainErrors.ErrInvalidAmount, d.String())
	}
	return cents.IntPart(), nil
}

// magnitude is the number of digits left of the decimal point; d < 10^magnitude.
func magnitude(d decimal.Decimal) int64 {
	return int64(d.NumDigits()) + int64(d.Exponent())
}

// MulCents multiplies a unit price by a quantity, failing on int64 overflow.
func MulCents(unit, qty int64) (int64, error) {
	if unit < 0 || qty < 0 {
		return 0, fmt.Errorf("%w: negative operand", domainErrors.ErrInvalidAmount)
	}
	if qty != 0 && unit > math.MaxInt64/qty {
		return 0, fmt.Errorf("%w: %d x %d overflows", domainErrors.ErrInvalidAmount, unit, qty)
	}
	return unit * qty, nil
}

// AddCents sums two non-negative cent values, failing on int64 overflow.
func AddCents(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: negative operand", domainErrors.ErrInvalidAmount)
	}
	if a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: total overflows", domainErrors.ErrInvalidAmount)
	}
	return a + b, nil
}

// FromCents is the inverse of ToCents for display purposes.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", domainErrors.ErrInvalidAmount, v)
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", domainErrors.ErrInvalidAmount, s)
	}
	return d, nil
}

// toQuantity defaults absent or non-positive quantities to 1.
func toQuantity(v any, present bool) (int64, error) {
	if !present {
		return 1, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number", domainErrors.ErrInvalidQuantity)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number", domainErrors.ErrInvalidQuantity, d.String())
	}
	if d.Sign() <= 0 {
		return 1, nil
	}
	if magnitude(d) > 19 || d.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("%w: %s is too large", domainErrors.ErrInvalidQuantity, d.String())
	}
	q := d.IntPart()
	return q, nil
}
