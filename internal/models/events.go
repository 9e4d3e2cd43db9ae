package models

import "time"

// Event types
const (
	EventTypeSaleCompleted = "SALE_COMPLETED"
	EventTypeSaleCancelled = "SALE_CANCELLED"
	EventTypePaymentPaid   = "PAYMENT_PAID"
	EventTypeReturnCreated = "RETURN_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent published when a sale is committed with its payments
type SaleCompletedEvent struct {
	BaseEvent
	SaleID     string        `json:"sale_id"`
	CustomerID string        `json:"customer_id,omitempty"`
	Total      int64         `json:"total"`
	Payments   []PaymentData `json:"payments"`
}

// SaleCancelledEvent published when a completed sale is cancelled
type SaleCancelledEvent struct {
	BaseEvent
	SaleID string `json:"sale_id"`
}

// PaymentPaidEvent published when an installment is settled
type PaymentPaidEvent struct {
	BaseEvent
	SaleID    string    `json:"sale_id"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paid_at"`
}

// ReturnCreatedEvent published when a return is registered
type ReturnCreatedEvent struct {
	BaseEvent
	ReturnID   string `json:"return_id"`
	SaleID     string `json:"sale_id"`
	CustomerID string `json:"customer_id,omitempty"`
	Resolution string `json:"resolution"`
	Total      int64  `json:"total"`
}

// PaymentData represents an installment in events
type PaymentData struct {
	PaymentID string     `json:"payment_id"`
	Number    int        `json:"number"`
	Amount    int64      `json:"amount"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Status    string     `json:"status"`
	Method    string     `json:"method"`
}
