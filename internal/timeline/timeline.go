// Package timeline merges a customer's interactions, purchases and returns
// into one activity feed.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"sales-service/internal/domain"
)

type Kind string

const (
	KindInteraction Kind = "INTERACTION"
	KindPurchase    Kind = "PURCHASE"
	KindReturn      Kind = "RETURN"
)

type Interaction struct {
	ID    string
	Date  time.Time
	Type  string
	Notes string
}

// Purchase is a sale already enriched with its finance status.
type Purchase struct {
	ID            string
	CreatedAt     time.Time
	Total         int64
	ItemCount     int
	FinanceStatus domain.EffectiveStatus
	// DetailUnavailable is set when lines or payments could not be loaded;
	// ItemCount and FinanceStatus are then unknown.
	DetailUnavailable bool
}

type Return struct {
	ID         string
	SaleID     string
	CreatedAt  time.Time
	Resolution string
	Status     string
	Total      int64
}

// Entry is one line of the feed. Amount is nil for interactions, positive for
// purchases and negative for returns.
type Entry struct {
	Kind        Kind      `json:"kind"`
	SourceID    string    `json:"source_id"`
	Timestamp   time.Time `json:"timestamp"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Amount      *int64    `json:"amount"`
	LinkTarget  string    `json:"link_target,omitempty"`
	// Partial marks a purchase shown without its detail
	Partial bool `json:"partial,omitempty"`
}

// Build projects the three collections and sorts the result newest first.
// Entries with equal timestamps keep collection order: interactions, then
// purchases, then returns. Records without an id or timestamp are dropped.
func Build(interactions []Interaction, purchases []Purchase, returns []Return) []Entry {
	entries := make([]Entry, 0, len(interactions)+len(purchases)+len(returns))

	for _, i := range interactions {
		if i.ID == "" || i.Date.IsZero() {
			continue
		}
		entries = append(entries, Entry{
			Kind:        KindInteraction,
			SourceID:    i.ID,
			Timestamp:   i.Date,
			Title:       i.Type,
			Description: i.Notes,
		})
	}

	for _, p := range purchases {
		if p.ID == "" || p.CreatedAt.IsZero() {
			continue
		}
		amount := abs(p.Total)
		description := fmt.Sprintf("Status: %s · Itens: %d", p.FinanceStatus, p.ItemCount)
		if p.DetailUnavailable {
			description = "Detalhes indisponíveis"
		}
		entries = append(entries, Entry{
			Kind:        KindPurchase,
			SourceID:    p.ID,
			Timestamp:   p.CreatedAt,
			Title:       fmt.Sprintf("Venda #%s", short(p.ID)),
			Description: description,
			Amount:      &amount,
			LinkTarget:  receiptLink(p.ID),
			Partial:     p.DetailUnavailable,
		})
	}

	for _, r := range returns {
		if r.ID == "" || r.CreatedAt.IsZero() {
			continue
		}
		amount := -abs(r.Total)
		entries = append(entries, Entry{
			Kind:        KindReturn,
			SourceID:    r.ID,
			Timestamp:   r.CreatedAt,
			Title:       fmt.Sprintf("Devolução #%s (Venda #%s)", short(r.ID), short(r.SaleID)),
			Description: fmt.Sprintf("Resolução: %s · Status: %s", r.Resolution, r.Status),
			Amount:      &amount,
			LinkTarget:  receiptLink(r.SaleID),
		})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Timestamp.After(entries[b].Timestamp)
	})
	return entries
}

// DayGroup holds the entries of one calendar date.
type DayGroup struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
}

// GroupByDate buckets sorted entries by their calendar date in loc. Group
// order and order inside each group follow the input.
func GroupByDate(entries []Entry, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.UTC
	}

	var groups []DayGroup
	for _, e := range entries {
		key := e.Timestamp.In(loc).Format(time.DateOnly)
		if n := len(groups); n > 0 && groups[n-1].Date == key {
			groups[n-1].Entries = append(groups[n-1].Entries, e)
			continue
		}
		groups = append(groups, DayGroup{Date: key, Entries: []Entry{e}})
	}
	return groups
}

func receiptLink(saleID string) string {
	if saleID == "" {
		return ""
	}
	return "/receipt/" + saleID
}

func short(id string) string {
	r := []rune(id)
	if len(r) > 5 {
		r = r[:5]
	}
	return string(r)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
