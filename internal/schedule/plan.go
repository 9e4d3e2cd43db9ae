package schedule

import (
	"fmt"
	"time"

	"sales-service/internal/domain"
)

// Plan describes how the remaining total of a sale will be paid.
type Plan struct {
	Method       domain.Method
	Installments int
	// Total in minor units, after any store credit already applied.
	Total int64
	// DueDates holds operator-picked dates for methods that need them.
	// Zero entries are unset slots.
	DueDates []time.Time
	// FirstDue overrides today as the first date for card installments.
	FirstDue time.Time
	Today    time.Time
}

// Build turns a plan into the payments committed with the sale. A zero total
// needs no payments.
func Build(p Plan) ([]domain.Payment, error) {
	if p.Installments < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInstallmentCount, p.Installments)
	}
	if _, err := domain.ParseMethod(string(p.Method)); err != nil {
		return nil, err
	}
	if p.Installments > 1 && !p.Method.AllowsInstallments() {
		return nil, fmt.Errorf("%w: %s does not accept installments", ErrInvalidInstallmentCount, p.Method)
	}
	if p.Total == 0 {
		return nil, nil
	}
	// every installment carries at least one cent
	if int64(p.Installments) > p.Total {
		return nil, fmt.Errorf("%w: %d installments for a total of %d", ErrInvalidInstallmentCount, p.Installments, p.Total)
	}

	amounts, err := Split(p.Total, p.Installments)
	if err != nil {
		return nil, err
	}

	dates, err := dueDates(p)
	if err != nil {
		return nil, err
	}

	status := domain.PaymentOpen
	if p.Method.PaidOnCommit() {
		status = domain.PaymentPaid
	}

	payments := make([]domain.Payment, len(amounts))
	for i, amount := range amounts {
		payments[i] = domain.Payment{
			Number:  i + 1,
			Amount:  amount,
			DueDate: dates[i],
			Status:  status,
			Method:  p.Method,
		}
	}
	return payments, nil
}

func dueDates(p Plan) ([]time.Time, error) {
	if p.Method.ManualDates() {
		dates := Resize(p.DueDates, p.Installments)
		for i, d := range dates {
			if d.IsZero() {
				return nil, fmt.Errorf("%w: installment %d has no due date", ErrIncompleteSchedule, i+1)
			}
			dates[i] = Day(d)
		}
		return dates, nil
	}

	first := p.FirstDue
	if first.IsZero() {
		first = p.Today
	}
	first = Day(first)

	dates := make([]time.Time, p.Installments)
	for i := range dates {
		dates[i] = AddMonths(first, i)
	}
	return dates, nil
}
