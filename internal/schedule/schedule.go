// Package schedule splits sale totals into installments and assigns their
// due dates.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"sales-service/internal/money"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInstallmentCount = errors.New("invalid installment count")
	ErrIncompleteSchedule      = errors.New("incomplete schedule")
)

// Split divides total cents into n parts that sum to total exactly. The first
// total%n parts carry the extra cent.
func Split(total int64, n int) ([]int64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInstallmentCount, n)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: total %d is negative", money.ErrInvalidAmount, total)
	}

	base := total / int64(n)
	rem := total % int64(n)

	parts := make([]int64, n)
	for i := range parts {
		parts[i] = base
		if int64(i) < rem {
			parts[i]++
		}
	}
	return parts, nil
}

// SplitDecimal is Split for decimal totals.
func SplitDecimal(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	cents, err := money.ToMinorUnits(total)
	if err != nil {
		return nil, err
	}
	parts, err := Split(cents, n)
	if err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, len(parts))
	for i, p := range parts {
		out[i] = money.FromMinorUnits(p)
	}
	return out, nil
}

// Day truncates t to its calendar date, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves t by k calendar months. When the target month is shorter
// than t's day, the result is the target month's last day.
func AddMonths(t time.Time, k int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(k), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// AutoFill assigns monthly due dates to the zero slots of dates, starting one
// month after today. Slots already set are kept.
func AutoFill(dates []time.Time, today time.Time) []time.Time {
	first := AddMonths(Day(today), 1)
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		if d.IsZero() {
			out[i] = AddMonths(first, i)
		} else {
			out[i] = d
		}
	}
	return out
}

// Resize returns dates grown with empty slots or truncated to n entries.
func Resize(dates []time.Time, n int) []time.Time {
	if n < 0 {
		n = 0
	}
	out := make([]time.Time, n)
	copy(out, dates)
	return out
}
