package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"sales-service/internal/models"
	"sales-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func saleKey(saleID string) string {
	return fmt.Sprintf("sale-%s", saleID)
}

// PublishSaleCompleted publishes SaleCompleted event
func (ep *EventPublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, saleKey(event.SaleID), models.EventTypeSaleCompleted, event)
}

// PublishSaleCancelled publishes SaleCancelled event
func (ep *EventPublisher) PublishSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, saleKey(event.SaleID), models.EventTypeSaleCancelled, event)
}

// PublishPaymentPaid publishes PaymentPaid event
func (ep *EventPublisher) PublishPaymentPaid(ctx context.Context, event *models.PaymentPaidEvent) error {
	return ep.producer.PublishEvent(ctx, saleKey(event.SaleID), models.EventTypePaymentPaid, event)
}

// PublishReturnCreated publishes ReturnCreated event
func (ep *EventPublisher) PublishReturnCreated(ctx context.Context, event *models.ReturnCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, saleKey(event.SaleID), models.EventTypeReturnCreated, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSaleCompleted func(context.Context, *models.SaleCompletedEvent) error
	onSaleCancelled func(context.Context, *models.SaleCancelledEvent) error
	onPaymentPaid   func(context.Context, *models.PaymentPaidEvent) error
	onReturnCreated func(context.Context, *models.ReturnCreatedEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSaleCompleted registers a handler for SaleCompleted events
func (eh *EventHandler) OnSaleCompleted(handler func(context.Context, *models.SaleCompletedEvent) error) {
	eh.onSaleCompleted = handler
}

// OnSaleCancelled registers a handler for SaleCancelled events
func (eh *EventHandler) OnSaleCancelled(handler func(context.Context, *models.SaleCancelledEvent) error) {
	eh.onSaleCancelled = handler
}

// OnPaymentPaid registers a handler for PaymentPaid events
func (eh *EventHandler) OnPaymentPaid(handler func(context.Context, *models.PaymentPaidEvent) error) {
	eh.onPaymentPaid = handler
}

// OnReturnCreated registers a handler for ReturnCreated events
func (eh *EventHandler) OnReturnCreated(handler func(context.Context, *models.ReturnCreatedEvent) error) {
	eh.onReturnCreated = handler
}

// HandleMessage routes a message by its event type header, falling back to
// the event_type field of the body for messages written without headers.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := header(msg, eventTypeHeader)
	if eventType == "" {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			return fmt.Errorf("failed to unmarshal base event: %w", err)
		}
		eventType = baseEvent.EventType
	}

	eh.logger.Debug("Handling event",
		zap.String("type", eventType),
		zap.String("key", string(msg.Key)))

	switch eventType {
	case models.EventTypeSaleCompleted:
		if eh.onSaleCompleted != nil {
			return dispatch(ctx, msg.Value, eh.onSaleCompleted)
		}

	case models.EventTypeSaleCancelled:
		if eh.onSaleCancelled != nil {
			return dispatch(ctx, msg.Value, eh.onSaleCancelled)
		}

	case models.EventTypePaymentPaid:
		if eh.onPaymentPaid != nil {
			return dispatch(ctx, msg.Value, eh.onPaymentPaid)
		}

	case models.EventTypeReturnCreated:
		if eh.onReturnCreated != nil {
			return dispatch(ctx, msg.Value, eh.onReturnCreated)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", eventType))
	}

	return nil
}

func dispatch[E any](ctx context.Context, value []byte, handler func(context.Context, *E) error) error {
	var event E
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", event, err)
	}
	return handler(ctx, &event)
}
