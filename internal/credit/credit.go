// Package credit applies a customer's store credit to sales.
package credit

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"sales-service/internal/money"
)

var ErrInsufficientCredit = errors.New("insufficient credit")

// Entry is one credit grant, usually created by a return. Balance is what is
// left of Amount.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Amount    int64
	Balance   int64
	ReturnID  string
}

// Usage records how much of one entry a liquidation consumed.
type Usage struct {
	EntryID string
	Amount  int64
}

func Balance(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		if e.Balance > 0 {
			total += e.Balance
		}
	}
	return total
}

// Allowed caps a requested credit use by the balance and the sale total.
func Allowed(requested, balance, total int64) int64 {
	return max(0, min(requested, balance, total))
}

// Remainder is what is left to pay after applying credit.
func Remainder(total, applied int64) int64 {
	return max(0, total-applied)
}

// Liquidate consumes amount from the oldest entries first. The input slice is
// not modified; the returned entries carry the new balances.
func Liquidate(entries []Entry, amount int64) ([]Entry, []Usage, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: liquidation of %d", money.ErrInvalidAmount, amount)
	}
	if available := Balance(entries); amount > available {
		return nil, nil, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientCredit, amount, available)
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})

	var usages []Usage
	left := amount
	for i := range out {
		if left == 0 {
			break
		}
		if out[i].Balance <= 0 {
			continue
		}
		take := min(out[i].Balance, left)
		out[i].Balance -= take
		left -= take
		usages = append(usages, Usage{EntryID: out[i].ID, Amount: take})
	}
	return out, usages, nil
}
