package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts x to cents, rounding half away from zero.
func ToMinorUnits(x decimal.Decimal) (int64, error) {
	if x.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, x.String())
	}
	return x.Mul(hundred).Round(0).IntPart(), nil
}

// FromMinorUnits converts cents back to a decimal with two places.
func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}

// FromFloat accepts a float from an untyped source (JSON numbers, flags).
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: not a finite number", ErrInvalidAmount)
	}
	if f < 0 {
		return decimal.Zero, fmt.Errorf("%w: %v is negative", ErrInvalidAmount, f)
	}
	return decimal.NewFromFloat(f), nil
}

// Parse reads a non-negative decimal string such as "100.01".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return d, nil
}

// brl groups thousands the way Brazilian Portuguese does.
var brl = message.NewPrinter(language.BrazilianPortuguese)

// Format renders cents for people, e.g. 123456 -> "R$ 1.234,56".
func Format(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, brl.Sprintf("%d", n/100), n%100)
}
