package service

import (
	"context"
	"errors"
	"time"

	"sales-service/internal/credit"
	"sales-service/internal/models"
	"sales-service/internal/redisclient"
	"sales-service/internal/store"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotQuote          = errors.New("only quotes can be changed")
	ErrNotCompleted      = errors.New("only completed sales can be cancelled")
	ErrDuplicateRequest  = errors.New("request already in progress")
	ErrCreditBusy        = errors.New("customer credit is being used by another sale")
)

// SaleStore is the persistence the sale services need
type SaleStore interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	CreateSale(ctx context.Context, sale *models.Sale, items []models.SaleItem, payments []models.SalePayment, usages []credit.Usage) error
	GetSaleByID(ctx context.Context, id string) (*models.Sale, error)
	GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error)
	GetSaleItems(ctx context.Context, saleID string) ([]models.SaleItem, error)
	GetSalePayments(ctx context.Context, saleID string) ([]models.SalePayment, error)
	UpdateQuote(ctx context.Context, sale *models.Sale, items []models.SaleItem) error
	CompleteQuote(ctx context.Context, sale *models.Sale, payments []models.SalePayment, usages []credit.Usage) error
	UpdateSaleStatus(ctx context.Context, saleID, from, to string) error
	GetReturnedQuantities(ctx context.Context, saleID string) (map[string]int, error)
	GetCreditsByCustomer(ctx context.Context, customerID string) ([]models.CustomerCredit, error)
	ListSales(ctx context.Context, status string, limit int) ([]models.Sale, error)
	DeleteQuote(ctx context.Context, id string) error
}

// PaymentStore settles installments
type PaymentStore interface {
	MarkPaymentPaid(ctx context.Context, id string, paidAt time.Time) (*models.SalePayment, error)
}

// ReturnStore persists returns
type ReturnStore interface {
	GetSaleByID(ctx context.Context, id string) (*models.Sale, error)
	GetSaleItems(ctx context.Context, saleID string) ([]models.SaleItem, error)
	GetReturnedQuantities(ctx context.Context, saleID string) (map[string]int, error)
	CreateReturn(ctx context.Context, ret *models.Return, items []models.ReturnItem, grant *models.CustomerCredit) error
}

// TimelineStore reads everything a customer timeline shows
type TimelineStore interface {
	GetCustomerByID(ctx context.Context, id string) (*models.Customer, error)
	GetInteractionsByCustomer(ctx context.Context, customerID string) ([]models.Interaction, error)
	CreateInteraction(ctx context.Context, interaction *models.Interaction) error
	GetSalesByCustomer(ctx context.Context, customerID string) ([]models.Sale, error)
	GetReturnsByCustomer(ctx context.Context, customerID string) ([]models.Return, error)
	GetCreditsByCustomer(ctx context.Context, customerID string) ([]models.CustomerCredit, error)
	GetSaleItems(ctx context.Context, saleID string) ([]models.SaleItem, error)
	GetSalePayments(ctx context.Context, saleID string) ([]models.SalePayment, error)
}

// LedgerStore writes the cash ledger
type LedgerStore interface {
	CreateFinancialEntry(ctx context.Context, entry *models.FinancialEntry) error
	SettleFinancialEntry(ctx context.Context, paymentID string) error
	CancelFinancialEntries(ctx context.Context, saleID string) error
	ListFinancialEntries(ctx context.Context, filter store.FinancialFilter) ([]models.FinancialEntry, error)
	GetFinancialEntry(ctx context.Context, id string) (*models.FinancialEntry, error)
	PayFinancialEntry(ctx context.Context, id string) (*models.FinancialEntry, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Stock reserves and returns units
type Stock interface {
	ReserveStock(ctx context.Context, productID string, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, productID string, quantity int) error
	CommitStock(ctx context.Context, productID string, quantity int) error
	Restock(ctx context.Context, productID string, quantity int) error
}

// Guard provides idempotency keys and distributed locks
type Guard interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ForgetIdempotencyKey(ctx context.Context, key string) error
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*redisclient.Lock, error)
	ReleaseLock(ctx context.Context, lock *redisclient.Lock) error
}

// Publisher emits domain events
type Publisher interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	PublishSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error
	PublishPaymentPaid(ctx context.Context, event *models.PaymentPaidEvent) error
	PublishReturnCreated(ctx context.Context, event *models.ReturnCreatedEvent) error
}
