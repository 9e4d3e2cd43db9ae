package pricing

import (
	"errors"
	"fmt"
	"strings"

	"sales-service/internal/money"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDiscount = errors.New("invalid discount")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// DiscountKind selects how Discount.Value is read.
type DiscountKind string

const (
	DiscountNone    DiscountKind = "NONE"
	DiscountPercent DiscountKind = "PERCENT"
	DiscountFixed   DiscountKind = "FIXED"
)

// ParseDiscountKind accepts the stored spellings, including the legacy
// "VALUE" for fixed discounts and an empty string for none.
func ParseDiscountKind(s string) (DiscountKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return DiscountNone, nil
	case "PERCENT":
		return DiscountPercent, nil
	case "FIXED", "VALUE":
		return DiscountFixed, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidDiscount, s)
}

// LineItem is one product line of a sale.
type LineItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Discount is read as a percentage of the subtotal or as a fixed amount.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// Breakdown is the priced result, all values in minor units.
type Breakdown struct {
	Subtotal int64
	Discount int64
	Freight  int64
	Total    int64
}

// Calculate prices items with the given discount and freight.
func Calculate(items []LineItem, discount Discount, freight decimal.Decimal) (Breakdown, error) {
	var subtotal int64
	for _, item := range items {
		if item.Quantity < 1 {
			return Breakdown{}, fmt.Errorf("%w: product %s has quantity %d", ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
		unit, err := money.ToMinorUnits(item.UnitPrice)
		if err != nil {
			return Breakdown{}, fmt.Errorf("unit price of product %s: %w", item.ProductID, err)
		}
		subtotal += int64(item.Quantity) * unit
	}

	freightCents, err := money.ToMinorUnits(freight)
	if err != nil {
		return Breakdown{}, fmt.Errorf("freight: %w", err)
	}

	discountCents, err := discountAmount(discount, subtotal)
	if err != nil {
		return Breakdown{}, err
	}

	total := subtotal - discountCents + freightCents
	if total < 0 {
		total = 0
	}

	return Breakdown{
		Subtotal: subtotal,
		Discount: discountCents,
		Freight:  freightCents,
		Total:    total,
	}, nil
}

func discountAmount(d Discount, subtotal int64) (int64, error) {
	switch d.Kind {
	case DiscountNone, "":
		return 0, nil

	case DiscountPercent:
		if d.Value.IsNegative() {
			return 0, fmt.Errorf("%w: percent %s is negative", ErrInvalidDiscount, d.Value.String())
		}
		pct := decimal.Min(d.Value, decimal.NewFromInt(100))
		amount := decimal.NewFromInt(subtotal).Mul(pct).Div(decimal.NewFromInt(100)).Round(0).IntPart()
		return clamp(amount, 0, subtotal), nil

	case DiscountFixed:
		if d.Value.IsNegative() {
			return 0, nil
		}
		amount, err := money.ToMinorUnits(d.Value)
		if err != nil {
			return 0, err
		}
		return clamp(amount, 0, subtotal), nil
	}

	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidDiscount, d.Kind)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
