package service

import (
	"context"
	"fmt"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentService settles installments
type PaymentService struct {
	store     PaymentStore
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore, publisher Publisher) *PaymentService {
	return &PaymentService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// MarkPaid moves an OPEN installment to PAID. Paying twice fails with
// store.ErrAlreadyPaid.
func (ps *PaymentService) MarkPaid(ctx context.Context, paymentID string) (*models.SalePayment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.MarkPaid", attribute.String("payment.id", paymentID))
	defer span.End()

	payment, err := ps.store.MarkPaymentPaid(ctx, paymentID, ps.now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	util.PaymentsPaidTotal.Inc()
	ps.logger.Info("Payment settled",
		zap.String("sale_id", payment.SaleID),
		zap.String("payment_id", payment.ID),
		zap.Int64("amount", payment.Amount))

	event := &models.PaymentPaidEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentPaid),
		SaleID:    payment.SaleID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Method:    payment.PaymentMethod,
	}
	if payment.PaidAt != nil {
		event.PaidAt = *payment.PaidAt
	}

	if err := ps.publisher.PublishPaymentPaid(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentPaid event", zap.Error(err))
	}

	return payment, nil
}
