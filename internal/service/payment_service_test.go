package service

import (
	"context"
	"testing"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkPaid(t *testing.T) {
	st := newMemStore()
	due := day(2024, 7, 10)
	st.payments["s1"] = []models.SalePayment{
		{ID: "pay-1", SaleID: "s1", Number: 1, Amount: 3334, DueDate: &due, Status: models.PaymentStatusOpen, PaymentMethod: "BOLETO"},
	}
	publisher := &fakePublisher{}

	svc := NewPaymentService(st, publisher)
	svc.now = func() time.Time { return fixedNow }

	payment, err := svc.MarkPaid(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.PaidAt)
	assert.True(t, fixedNow.Equal(*payment.PaidAt))

	require.Len(t, publisher.paid, 1)
	event := publisher.paid[0]
	assert.Equal(t, "s1", event.SaleID)
	assert.Equal(t, "pay-1", event.PaymentID)
	assert.Equal(t, int64(3334), event.Amount)
	assert.Equal(t, "BOLETO", event.Method)
	assert.Equal(t, models.EventTypePaymentPaid, event.EventType)

	_, err = svc.MarkPaid(context.Background(), "pay-1")
	assert.ErrorIs(t, err, store.ErrAlreadyPaid)
	assert.Len(t, publisher.paid, 1)
}

func TestMarkPaidUnknownPayment(t *testing.T) {
	svc := NewPaymentService(newMemStore(), &fakePublisher{})

	_, err := svc.MarkPaid(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
