package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sales-service/internal/domain"
	"sales-service/internal/models"
	"sales-service/internal/schedule"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	ledgerStatusOpen      = "OPEN"
	ledgerStatusPaid      = "PAID"
	ledgerStatusCancelled = "CANCELLED"

	// refunds are paid out as a manual cash adjustment
	refundMethod = "AJUSTE"
)

// LedgerService keeps the cash ledger in step with sale and return events
type LedgerService struct {
	store    LedgerStore
	location *time.Location
	logger   *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store LedgerStore, loc *time.Location) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{
		store:    store,
		location: loc,
		logger:   util.GetLogger(),
	}
}

// once runs fn unless the event was handled before, then marks it handled
func (ls *LedgerService) once(ctx context.Context, event models.BaseEvent, fn func() error) error {
	processed, err := ls.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		ls.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	if err := ls.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		ls.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// HandleSaleCompleted books one receivable per installment. Store credit
// moves no cash and is skipped.
func (ls *LedgerService) HandleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerService.HandleSaleCompleted")
	defer span.End()

	return ls.once(ctx, event.BaseEvent, func() error {
		for _, p := range event.Payments {
			if p.Method == string(domain.MethodStoreCredit) {
				continue
			}

			due := schedule.Day(event.Timestamp.In(ls.location))
			if p.DueDate != nil {
				due = *p.DueDate
			}
			entryStatus := ledgerStatusOpen
			if p.Status == models.PaymentStatusPaid {
				entryStatus = ledgerStatusPaid
			}
			paymentID := p.PaymentID

			entry := &models.FinancialEntry{
				ID:            uuid.New().String(),
				Type:          models.FinancialIncome,
				Description:   fmt.Sprintf("Recebimento venda #%s (%s)", shortID(event.SaleID), p.Method),
				Amount:        p.Amount,
				DueDate:       due,
				PaymentMethod: p.Method,
				Status:        entryStatus,
				PaymentID:     &paymentID,
			}
			if err := ls.store.CreateFinancialEntry(ctx, entry); err != nil {
				return fmt.Errorf("failed to create receivable for payment %s: %w", p.PaymentID, err)
			}
			util.LedgerEntriesTotal.WithLabelValues(models.FinancialIncome).Inc()
		}

		ls.logger.Info("Receivables booked",
			zap.String("sale_id", event.SaleID),
			zap.Int("payments", len(event.Payments)))
		return nil
	})
}

// HandlePaymentPaid settles the receivable of a paid installment
func (ls *LedgerService) HandlePaymentPaid(ctx context.Context, event *models.PaymentPaidEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerService.HandlePaymentPaid")
	defer span.End()

	return ls.once(ctx, event.BaseEvent, func() error {
		if err := ls.store.SettleFinancialEntry(ctx, event.PaymentID); err != nil {
			return fmt.Errorf("failed to settle receivable: %w", err)
		}
		ls.logger.Info("Receivable settled",
			zap.String("sale_id", event.SaleID),
			zap.String("payment_id", event.PaymentID))
		return nil
	})
}

// HandleSaleCancelled voids the open receivables of a cancelled sale
func (ls *LedgerService) HandleSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerService.HandleSaleCancelled")
	defer span.End()

	return ls.once(ctx, event.BaseEvent, func() error {
		if err := ls.store.CancelFinancialEntries(ctx, event.SaleID); err != nil {
			return fmt.Errorf("failed to cancel receivables: %w", err)
		}
		ls.logger.Info("Receivables cancelled", zap.String("sale_id", event.SaleID))
		return nil
	})
}

// HandleReturnCreated books a payable for refunds. Credit returns stay inside
// the customer ledger.
func (ls *LedgerService) HandleReturnCreated(ctx context.Context, event *models.ReturnCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "LedgerService.HandleReturnCreated")
	defer span.End()

	if event.Resolution != models.ResolutionRefund {
		return nil
	}

	return ls.once(ctx, event.BaseEvent, func() error {
		returnID := event.ReturnID
		entry := &models.FinancialEntry{
			ID:            uuid.New().String(),
			Type:          models.FinancialExpense,
			Description:   fmt.Sprintf("Devolução da venda #%s", shortID(event.SaleID)),
			Amount:        event.Total,
			DueDate:       schedule.Day(event.Timestamp.In(ls.location)),
			PaymentMethod: refundMethod,
			Status:        ledgerStatusOpen,
			ReturnID:      &returnID,
		}
		if err := ls.store.CreateFinancialEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to create payable for return %s: %w", event.ReturnID, err)
		}
		util.LedgerEntriesTotal.WithLabelValues(models.FinancialExpense).Inc()

		ls.logger.Info("Refund payable booked",
			zap.String("return_id", event.ReturnID),
			zap.Int64("amount", event.Total))
		return nil
	})
}

// ListEntries lists the cash ledger by due date. entryType and entryStatus
// are optional filters.
func (ls *LedgerService) ListEntries(ctx context.Context, entryType, entryStatus string, limit int) ([]models.FinancialEntry, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ListEntries")
	defer span.End()

	filter := store.FinancialFilter{
		Type:   strings.ToUpper(strings.TrimSpace(entryType)),
		Status: strings.ToUpper(strings.TrimSpace(entryStatus)),
		Limit:  listLimit(limit),
	}
	switch filter.Type {
	case "", models.FinancialIncome, models.FinancialExpense:
	default:
		return nil, fmt.Errorf("%w: unknown entry type %q", ErrInvalidRequest, entryType)
	}
	switch filter.Status {
	case "", ledgerStatusOpen, ledgerStatusPaid, ledgerStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown entry status %q", ErrInvalidRequest, entryStatus)
	}

	entries, err := ls.store.ListFinancialEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list financial entries: %w", err)
	}
	if entries == nil {
		entries = []models.FinancialEntry{}
	}
	return entries, nil
}

// PayEntry settles a ledger entry by hand. Receivables of sale installments
// are settled through their payment so both records move together.
func (ls *LedgerService) PayEntry(ctx context.Context, entryID string) (*models.FinancialEntry, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.PayEntry", attribute.String("entry.id", entryID))
	defer span.End()

	entry, err := ls.store.GetFinancialEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.PaymentID != nil {
		return nil, fmt.Errorf("%w: entry %s belongs to payment %s, pay the payment instead",
			ErrInvalidRequest, entryID, *entry.PaymentID)
	}

	paid, err := ls.store.PayFinancialEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	ls.logger.Info("Financial entry paid",
		zap.String("entry_id", paid.ID),
		zap.String("type", paid.Type),
		zap.Int64("amount", paid.Amount))
	return paid, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
