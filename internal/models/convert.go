package models

import (
	"time"

	"sales-service/internal/credit"
	"sales-service/internal/domain"
	"sales-service/internal/money"
	"sales-service/internal/pricing"
)

// Domain converts a stored installment for status classification.
func (p SalePayment) Domain() domain.Payment {
	var due time.Time
	if p.DueDate != nil {
		due = *p.DueDate
	}
	return domain.Payment{
		ID:      p.ID,
		Number:  p.Number,
		Amount:  p.Amount,
		DueDate: due,
		Status:  domain.PaymentStatus(p.Status),
		Method:  domain.Method(p.PaymentMethod),
	}
}

// DomainPayments converts a slice of stored installments.
func DomainPayments(payments []SalePayment) []domain.Payment {
	out := make([]domain.Payment, len(payments))
	for i, p := range payments {
		out[i] = p.Domain()
	}
	return out
}

// NewSalePayment builds the row for a scheduled payment.
func NewSalePayment(id, saleID string, p domain.Payment) SalePayment {
	row := SalePayment{
		ID:            id,
		SaleID:        saleID,
		Number:        p.Number,
		Amount:        p.Amount,
		Status:        string(p.Status),
		PaymentMethod: string(p.Method),
	}
	if !p.DueDate.IsZero() {
		due := p.DueDate
		row.DueDate = &due
	}
	return row
}

// LineItem converts a stored line for pricing.
func (i SaleItem) LineItem() pricing.LineItem {
	return pricing.LineItem{
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		Quantity:    i.Quantity,
		UnitPrice:   money.FromMinorUnits(i.UnitPrice),
	}
}

// Entry converts a stored credit grant for liquidation.
func (c CustomerCredit) Entry() credit.Entry {
	e := credit.Entry{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
		Amount:    c.Amount,
		Balance:   c.Balance,
	}
	if c.ReturnID != nil {
		e.ReturnID = *c.ReturnID
	}
	return e
}

// CreditEntries converts a customer's stored credit grants.
func CreditEntries(credits []CustomerCredit) []credit.Entry {
	out := make([]credit.Entry, len(credits))
	for i, c := range credits {
		out[i] = c.Entry()
	}
	return out
}
