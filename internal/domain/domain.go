// Package domain holds the value types shared by the pricing, scheduling,
// status and timeline packages.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransactionStatus is the lifecycle stage of a sale.
type TransactionStatus string

const (
	TransactionQuote     TransactionStatus = "QUOTE"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

// PaymentStatus is what gets stored for a payment. OPEN moves to PAID once.
type PaymentStatus string

const (
	PaymentOpen PaymentStatus = "OPEN"
	PaymentPaid PaymentStatus = "PAID"
)

// EffectiveStatus is derived on read from the stored status and due date.
type EffectiveStatus string

const (
	EffectivePending EffectiveStatus = "PENDING"
	EffectiveOverdue EffectiveStatus = "OVERDUE"
	EffectivePaid    EffectiveStatus = "PAID"
)

// Method is a payment method. Values are the codes used on the wire.
type Method string

const (
	MethodPix         Method = "PIX"
	MethodCash        Method = "DINHEIRO"
	MethodBoleto      Method = "BOLETO"
	MethodTransfer    Method = "TRANSFERENCIA"
	MethodCreditCard  Method = "CARTAO_CREDITO"
	MethodDebitCard   Method = "CARTAO_DEBITO"
	MethodStoreCredit Method = "CREDITO"
)

var ErrUnknownMethod = errors.New("unknown payment method")

var methods = []Method{
	MethodPix, MethodCash, MethodBoleto, MethodTransfer,
	MethodCreditCard, MethodDebitCard, MethodStoreCredit,
}

// ParseMethod normalizes s and checks it against the known methods.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// PaidOnCommit reports whether payments made with m are settled at the
// moment the sale is committed.
func (m Method) PaidOnCommit() bool {
	switch m {
	case MethodPix, MethodCash, MethodDebitCard, MethodStoreCredit:
		return true
	}
	return false
}

// ManualDates reports whether every installment of m needs a due date picked
// by the operator (auto-fill may help, but nothing is derived at commit).
func (m Method) ManualDates() bool {
	return m == MethodBoleto
}

// AllowsInstallments reports whether m may be split into more than one payment.
func (m Method) AllowsInstallments() bool {
	return m == MethodBoleto || m == MethodCreditCard
}

// Payment is one scheduled part of a sale total. Amount is in minor units and
// a zero DueDate means the payment has no due date.
type Payment struct {
	ID      string
	Number  int
	Amount  int64
	DueDate time.Time
	Status  PaymentStatus
	Method  Method
}
