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

func saleCompleted(saleID string) *models.SaleCompletedEvent {
	later := day(2024, 7, 10)
	event := &models.SaleCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeSaleCompleted),
		SaleID:    saleID,
		Total:     10000,
		Payments: []models.PaymentData{
			{PaymentID: "pay-credit", Number: 1, Amount: 2500, Status: models.PaymentStatusPaid, Method: "CREDITO"},
			{PaymentID: "pay-boleto", Number: 2, Amount: 7500, DueDate: &later, Status: models.PaymentStatusOpen, Method: "BOLETO"},
		},
	}
	event.Timestamp = fixedNow
	return event
}

func TestLedgerBooksReceivables(t *testing.T) {
	st := newMemStore()
	ledger := NewLedgerService(st, brt)
	ctx := context.Background()

	event := saleCompleted("3f2a9c41-7d7e-4b8a-9a51-2b6f0c1e9d00")
	require.NoError(t, ledger.HandleSaleCompleted(ctx, event))

	require.Len(t, st.entries, 1, "store credit moves no cash")
	entry := st.entries[0]
	assert.Equal(t, models.FinancialIncome, entry.Type)
	assert.Equal(t, "Recebimento venda #3f2a9c41 (BOLETO)", entry.Description)
	assert.Equal(t, int64(7500), entry.Amount)
	assert.Equal(t, day(2024, 7, 10), entry.DueDate)
	assert.Equal(t, ledgerStatusOpen, entry.Status)
	require.NotNil(t, entry.PaymentID)
	assert.Equal(t, "pay-boleto", *entry.PaymentID)

	// redelivery is a no-op
	require.NoError(t, ledger.HandleSaleCompleted(ctx, event))
	assert.Len(t, st.entries, 1)
	assert.True(t, st.processed[event.EventID])
}

func TestLedgerImmediatePaymentIsBookedPaid(t *testing.T) {
	st := newMemStore()
	ledger := NewLedgerService(st, brt)

	event := &models.SaleCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeSaleCompleted),
		SaleID:    "s1",
		Payments:  []models.PaymentData{{PaymentID: "p", Amount: 900, Status: models.PaymentStatusPaid, Method: "PIX"}},
	}
	// 01:00 UTC on June 11 is still June 10 in BRT
	event.Timestamp = fixedNow.Add(10 * time.Hour)

	require.NoError(t, ledger.HandleSaleCompleted(context.Background(), event))
	require.Len(t, st.entries, 1)
	assert.Equal(t, ledgerStatusPaid, st.entries[0].Status)
	assert.Equal(t, day(2024, 6, 10), st.entries[0].DueDate)
	assert.Equal(t, "Recebimento venda #s1 (PIX)", st.entries[0].Description)
}

func TestLedgerSettlesAndCancels(t *testing.T) {
	st := newMemStore()
	ledger := NewLedgerService(st, brt)
	ctx := context.Background()

	st.payments["s1"] = []models.SalePayment{{ID: "pay-boleto", SaleID: "s1"}}
	require.NoError(t, ledger.HandleSaleCompleted(ctx, saleCompleted("s1")))

	paid := &models.PaymentPaidEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentPaid),
		SaleID:    "s1",
		PaymentID: "pay-boleto",
	}
	require.NoError(t, ledger.HandlePaymentPaid(ctx, paid))
	assert.Equal(t, ledgerStatusPaid, st.entries[0].Status)

	cancelled := &models.SaleCancelledEvent{BaseEvent: newBaseEvent(models.EventTypeSaleCancelled), SaleID: "s1"}
	require.NoError(t, ledger.HandleSaleCancelled(ctx, cancelled))
	assert.Equal(t, ledgerStatusPaid, st.entries[0].Status, "settled entries survive cancellation")
}

func TestLedgerCancelVoidsOpenReceivables(t *testing.T) {
	st := newMemStore()
	ledger := NewLedgerService(st, brt)
	ctx := context.Background()

	st.payments["s1"] = []models.SalePayment{{ID: "pay-boleto", SaleID: "s1"}}
	require.NoError(t, ledger.HandleSaleCompleted(ctx, saleCompleted("s1")))

	cancelled := &models.SaleCancelledEvent{BaseEvent: newBaseEvent(models.EventTypeSaleCancelled), SaleID: "s1"}
	require.NoError(t, ledger.HandleSaleCancelled(ctx, cancelled))
	assert.Equal(t, "CANCELLED", st.entries[0].Status)
}

func TestLedgerBooksRefundsOnly(t *testing.T) {
	st := newMemStore()
	ledger := NewLedgerService(st, brt)
	ctx := context.Background()

	credit := &models.ReturnCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeReturnCreated),
		ReturnID:   "r1",
		SaleID:     "s1",
		Resolution: models.ResolutionCredit,
		Total:      5000,
	}
	require.NoError(t, ledger.HandleReturnCreated(ctx, credit))
	assert.Empty(t, st.entries)

	refund := &models.ReturnCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeReturnCreated),
		ReturnID:   "r2",
		SaleID:     "9c0d1e2f-aaaa",
		Resolution: models.ResolutionRefund,
		Total:      5666,
	}
	refund.Timestamp = fixedNow
	require.NoError(t, ledger.HandleReturnCreated(ctx, refund))

	require.Len(t, st.entries, 1)
	entry := st.entries[0]
	assert.Equal(t, models.FinancialExpense, entry.Type)
	assert.Equal(t, "Devolução da venda #9c0d1e2f", entry.Description)
	assert.Equal(t, int64(5666), entry.Amount)
	assert.Equal(t, refundMethod, entry.PaymentMethod)
	assert.Equal(t, ledgerStatusOpen, entry.Status)
	assert.Equal(t, day(2024, 6, 10), entry.DueDate)
	require.NotNil(t, entry.ReturnID)
	assert.Equal(t, "r2", *entry.ReturnID)

	require.NoError(t, ledger.HandleReturnCreated(ctx, refund))
	assert.Len(t, st.entries, 1)
}

func TestLedgerListEntries(t *testing.T) {
	st := newMemStore()
	ledger := NewLedgerService(st, brt)
	ctx := context.Background()

	require.NoError(t, ledger.HandleSaleCompleted(ctx, saleCompleted("s1")))
	refund := &models.ReturnCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeReturnCreated),
		ReturnID:   "r1",
		SaleID:     "s1",
		Resolution: models.ResolutionRefund,
		Total:      1000,
	}
	refund.Timestamp = fixedNow
	require.NoError(t, ledger.HandleReturnCreated(ctx, refund))

	all, err := ledger.ListEntries(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.FinancialExpense, all[0].Type, "due today sorts first")
	assert.Equal(t, day(2024, 7, 10), all[1].DueDate)

	income, err := ledger.ListEntries(ctx, "receita", "open", 0)
	require.NoError(t, err)
	require.Len(t, income, 1)
	assert.Equal(t, int64(7500), income[0].Amount)

	_, err = ledger.ListEntries(ctx, "TRANSFER", "", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = ledger.ListEntries(ctx, "", "LATE", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestLedgerPayEntry(t *testing.T) {
	st := newMemStore()
	ledger := NewLedgerService(st, brt)
	ctx := context.Background()

	require.NoError(t, ledger.HandleSaleCompleted(ctx, saleCompleted("s1")))
	refund := &models.ReturnCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeReturnCreated),
		ReturnID:   "r1",
		SaleID:     "s1",
		Resolution: models.ResolutionRefund,
		Total:      1000,
	}
	require.NoError(t, ledger.HandleReturnCreated(ctx, refund))
	require.Len(t, st.entries, 2)
	receivable, payable := st.entries[0], st.entries[1]

	_, err := ledger.PayEntry(ctx, receivable.ID)
	assert.ErrorIs(t, err, ErrInvalidRequest, "installment receivables are paid through the payment")

	paid, err := ledger.PayEntry(ctx, payable.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerStatusPaid, paid.Status)
	assert.Equal(t, ledgerStatusPaid, st.entries[1].Status)

	_, err = ledger.PayEntry(ctx, payable.ID)
	assert.ErrorIs(t, err, store.ErrAlreadyPaid)

	_, err = ledger.PayEntry(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
