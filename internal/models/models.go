package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale statuses
const (
	SaleStatusQuote     = "QUOTE"
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusOpen = "OPEN"
	PaymentStatusPaid = "PAID"
)

// Return resolutions and statuses
const (
	ResolutionRefund = "REEMBOLSO"
	ResolutionCredit = "CREDITO"

	ReturnStatusOpen      = "ABERTA"
	ReturnStatusDone      = "CONCLUIDA"
	ReturnStatusCancelled = "CANCELADA"
)

// Financial entry types
const (
	FinancialIncome  = "RECEITA"
	FinancialExpense = "DESPESA"
)

// Product represents a catalog item. Money columns are in cents.
type Product struct {
	ID        string    `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Brand     string    `db:"brand" json:"brand"`
	Price     int64     `db:"price" json:"price"`
	Cost      int64     `db:"cost" json:"cost"`
	MinStock  int       `db:"min_stock" json:"min_stock"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Inventory represents product stock. Reserved units belong to sales that
// are being committed.
type Inventory struct {
	ProductID string    `db:"product_id" json:"product_id"`
	Available int       `db:"available" json:"available"`
	Reserved  int       `db:"reserved" json:"reserved"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Customer represents a buyer
type Customer struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CpfCnpj   string    `db:"cpf_cnpj" json:"cpf_cnpj"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Interaction is a contact logged against a customer
type Interaction struct {
	ID         string    `db:"id" json:"id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	Type       string    `db:"type" json:"type"`
	Notes      string    `db:"notes" json:"notes"`
	Date       time.Time `db:"date" json:"date"`
}

// Sale is a quote or a completed sale
type Sale struct {
	ID             string          `db:"id" json:"id"`
	CustomerID     *string         `db:"customer_id" json:"customer_id,omitempty"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	Status         string          `db:"status" json:"status"`
	Subtotal       int64           `db:"subtotal" json:"subtotal"`
	DiscountType   string          `db:"discount_type" json:"discount_type"`
	DiscountValue  decimal.Decimal `db:"discount_value" json:"discount_value"`
	DiscountAmount int64           `db:"discount_amount" json:"discount_amount"`
	Freight        int64           `db:"freight" json:"freight"`
	Total          int64           `db:"total" json:"total"`
	PaymentMethod  *string         `db:"payment_method" json:"payment_method,omitempty"`
	Installments   int             `db:"installments" json:"installments"`
	CreditApplied  int64           `db:"credit_applied" json:"credit_applied"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// SaleItem is one line of a sale
type SaleItem struct {
	ID          string `db:"id" json:"id"`
	SaleID      string `db:"sale_id" json:"sale_id"`
	ProductID   string `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
}

// SalePayment is one installment of a completed sale
type SalePayment struct {
	ID            string     `db:"id" json:"id"`
	SaleID        string     `db:"sale_id" json:"sale_id"`
	Number        int        `db:"number" json:"number"`
	Amount        int64      `db:"amount" json:"amount"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	Status        string     `db:"status" json:"status"`
	PaymentMethod string     `db:"payment_method" json:"payment_method"`
	PaidAt        *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Return is a (partial) return of a sale
type Return struct {
	ID         string    `db:"id" json:"id"`
	SaleID     string    `db:"sale_id" json:"sale_id"`
	CustomerID *string   `db:"customer_id" json:"customer_id,omitempty"`
	Reason     string    `db:"reason" json:"reason"`
	Resolution string    `db:"resolution" json:"resolution"`
	Status     string    `db:"status" json:"status"`
	Total      int64     `db:"total" json:"total"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ReturnItem is one returned line
type ReturnItem struct {
	ID          string `db:"id" json:"id"`
	ReturnID    string `db:"return_id" json:"return_id"`
	ProductID   string `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
}

// CustomerCredit is store credit granted to a customer
type CustomerCredit struct {
	ID         string    `db:"id" json:"id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	ReturnID   *string   `db:"return_id" json:"return_id,omitempty"`
	Amount     int64     `db:"amount" json:"amount"`
	Balance    int64     `db:"balance" json:"balance"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CreditLedger is the credit view of one customer
type CreditLedger struct {
	TotalBalance int64            `json:"total_balance"`
	Entries      []CustomerCredit `json:"entries"`
}

// FinancialEntry is a receivable or payable in the cash ledger
type FinancialEntry struct {
	ID            string    `db:"id" json:"id"`
	Type          string    `db:"type" json:"type"`
	Description   string    `db:"description" json:"description"`
	Amount        int64     `db:"amount" json:"amount"`
	DueDate       time.Time `db:"due_date" json:"due_date"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	Status        string    `db:"status" json:"status"`
	PaymentID     *string   `db:"payment_id" json:"payment_id,omitempty"`
	ReturnID      *string   `db:"return_id" json:"return_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent tracks processed events for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id" json:"event_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}
