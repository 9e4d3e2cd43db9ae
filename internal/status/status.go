// Package status derives live payment and sale statuses from what is stored.
package status

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-service/internal/domain"
)

var ErrInvalidDueDate = errors.New("invalid due date")

var dueDateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDueDate reads a stored due date. Values with an explicit offset keep
// it; values without one are taken as UTC. An empty string is no date.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDueDate, s)
}

// Classifier compares due dates against the end of the current day in
// Location.
type Classifier struct {
	Location *time.Location
}

func NewClassifier(loc *time.Location) Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return Classifier{Location: loc}
}

func (c Classifier) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Cutoff is 23:59:59 of now's calendar day in the reference zone.
func (c Classifier) Cutoff(now time.Time) time.Time {
	loc := c.location()
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

// Effective derives the live status of one payment. PAID always wins; a
// payment without a due date is never overdue.
func (c Classifier) Effective(p domain.Payment, now time.Time) domain.EffectiveStatus {
	if p.Status == domain.PaymentPaid {
		return domain.EffectivePaid
	}
	if p.DueDate.IsZero() {
		return domain.EffectivePending
	}
	if c.dueInstant(p.DueDate).Before(c.Cutoff(now)) {
		return domain.EffectiveOverdue
	}
	return domain.EffectivePending
}

// dueInstant reads a due date as the calendar day it names and places that
// day at midnight in the reference zone. A UTC-midnight value parsed from
// "2024-06-11" therefore means June 11 wherever the cutoff is computed.
func (c Classifier) dueInstant(due time.Time) time.Time {
	y, m, d := due.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// Aggregate derives a sale's finance status from its payments.
func (c Classifier) Aggregate(sale domain.TransactionStatus, payments []domain.Payment, now time.Time) domain.EffectiveStatus {
	if len(payments) == 0 {
		if sale == domain.TransactionCompleted {
			return domain.EffectivePaid
		}
		return domain.EffectivePending
	}

	allPaid := true
	overdue := false
	for _, p := range payments {
		switch c.Effective(p, now) {
		case domain.EffectiveOverdue:
			overdue = true
			allPaid = false
		case domain.EffectivePending:
			allPaid = false
		}
	}

	switch {
	case allPaid:
		return domain.EffectivePaid
	case overdue:
		return domain.EffectiveOverdue
	}
	return domain.EffectivePending
}

// Summary totals a sale's payments by live status, in minor units.
type Summary struct {
	Paid        int64 `json:"paid"`
	Pending     int64 `json:"pending"`
	Overdue     int64 `json:"overdue"`
	Outstanding int64 `json:"outstanding"`
	// NextDue is the earliest due date among unpaid payments.
	NextDue *time.Time `json:"next_due,omitempty"`
}

func (c Classifier) Summarize(payments []domain.Payment, now time.Time) Summary {
	var s Summary
	for _, p := range payments {
		switch c.Effective(p, now) {
		case domain.EffectivePaid:
			s.Paid += p.Amount
			continue
		case domain.EffectiveOverdue:
			s.Overdue += p.Amount
		default:
			s.Pending += p.Amount
		}
		if !p.DueDate.IsZero() && (s.NextDue == nil || p.DueDate.Before(*s.NextDue)) {
			due := p.DueDate
			s.NextDue = &due
		}
	}
	s.Outstanding = s.Pending + s.Overdue
	return s
}
