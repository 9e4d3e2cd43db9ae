package worker

import (
	"context"
	"errors"

	"sales-service/internal/broker"
	"sales-service/internal/models"
	"sales-service/internal/util"

	"go.uber.org/zap"
)

type messageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ledger books cash entries for sale and return events
type ledger interface {
	HandleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	HandleSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error
	HandlePaymentPaid(ctx context.Context, event *models.PaymentPaidEvent) error
	HandleReturnCreated(ctx context.Context, event *models.ReturnCreatedEvent) error
}

// LedgerWorker keeps the financial ledger in step with the sale event stream
type LedgerWorker struct {
	consumer     messageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewLedgerWorker creates a new ledger worker
func NewLedgerWorker(consumer messageSource, ledger ledger) *LedgerWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnSaleCompleted(ledger.HandleSaleCompleted)
	eventHandler.OnSaleCancelled(ledger.HandleSaleCancelled)
	eventHandler.OnPaymentPaid(ledger.HandlePaymentPaid)
	eventHandler.OnReturnCreated(ledger.HandleReturnCreated)

	return &LedgerWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes until ctx is cancelled. Cancellation is a clean stop.
func (w *LedgerWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ledger worker")

	err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the worker
func (w *LedgerWorker) Stop() error {
	w.logger.Info("Stopping ledger worker")
	return w.consumer.Close()
}
