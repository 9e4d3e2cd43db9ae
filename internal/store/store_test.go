package store

import (
	"context"
	"os"
	"testing"
	"time"

	"sales-service/internal/credit"
	"sales-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore needs TEST_DATABASE_URL pointing at a scratch database.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestCreateSaleAndMarkPaid(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	sale := &models.Sale{
		ID:           uuid.NewString(),
		CustomerName: "Consumidor Final",
		Status:       models.SaleStatusCompleted,
		DiscountType: "NONE",
		Subtotal:     10001,
		Total:        10001,
		Installments: 2,
	}
	items := []models.SaleItem{{ID: uuid.NewString(), SaleID: sale.ID, ProductID: "p1", ProductName: "Coleira", Quantity: 1, UnitPrice: 10001}}
	payments := []models.SalePayment{
		{ID: uuid.NewString(), SaleID: sale.ID, Number: 1, Amount: 5001, DueDate: &due, Status: models.PaymentStatusOpen, PaymentMethod: "BOLETO"},
		{ID: uuid.NewString(), SaleID: sale.ID, Number: 2, Amount: 5000, DueDate: &due, Status: models.PaymentStatusOpen, PaymentMethod: "BOLETO"},
	}

	require.NoError(t, store.CreateSale(ctx, sale, items, payments, nil))
	assert.False(t, sale.CreatedAt.IsZero())

	stored, err := store.GetSalePayments(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int64(10001), stored[0].Amount+stored[1].Amount)

	paid, err := store.MarkPaymentPaid(ctx, payments[0].ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.Status)

	_, err = store.MarkPaymentPaid(ctx, payments[0].ID, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	_, err = store.MarkPaymentPaid(ctx, uuid.NewString(), time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIdempotencyKeyIsUnique(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	key := "idem-" + uuid.NewString()
	first := &models.Sale{ID: uuid.NewString(), CustomerName: "A", Status: models.SaleStatusQuote, DiscountType: "NONE", Installments: 1, IdempotencyKey: &key}
	require.NoError(t, store.CreateSale(ctx, first, nil, nil, nil))

	found, err := store.GetSaleByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	second := &models.Sale{ID: uuid.NewString(), CustomerName: "B", Status: models.SaleStatusQuote, DiscountType: "NONE", Installments: 1, IdempotencyKey: &key}
	assert.Error(t, store.CreateSale(ctx, second, nil, nil, nil))
}

func TestQuoteTransitions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sale := &models.Sale{ID: uuid.NewString(), CustomerName: "A", Status: models.SaleStatusQuote, DiscountType: "NONE", Installments: 1}
	require.NoError(t, store.CreateSale(ctx, sale, nil, nil, nil))

	method := "PIX"
	sale.PaymentMethod = &method
	require.NoError(t, store.CompleteQuote(ctx, sale, nil, nil))

	err := store.CompleteQuote(ctx, sale, nil, nil)
	assert.ErrorIs(t, err, ErrConflict)

	err = store.UpdateSaleStatus(ctx, sale.ID, models.SaleStatusQuote, models.SaleStatusCancelled)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConsumeCreditRejectsOverdraw(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sale := &models.Sale{ID: uuid.NewString(), CustomerName: "A", Status: models.SaleStatusQuote, DiscountType: "NONE", Installments: 1}
	err := store.CreateSale(ctx, sale, nil, nil, []credit.Usage{{EntryID: uuid.NewString(), Amount: 100}})
	assert.ErrorIs(t, err, credit.ErrInsufficientCredit)

	_, err = store.GetSaleByID(ctx, sale.ID)
	assert.ErrorIs(t, err, ErrNotFound, "rolled back")
}

func TestEventProcessing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	processed, err := store.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.MarkEventProcessed(ctx, id, models.EventTypeSaleCompleted))
	require.NoError(t, store.MarkEventProcessed(ctx, id, models.EventTypeSaleCompleted))

	processed, err = store.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInteractionsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	customerID := uuid.NewString()
	_, err := store.db.ExecContext(ctx,
		"INSERT INTO customers (id, name, cpf_cnpj) VALUES ($1, $2, $3)", customerID, "Maria", customerID)
	require.NoError(t, err)

	older := &models.Interaction{ID: uuid.NewString(), CustomerID: customerID, Type: "VISITA", Date: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	newer := &models.Interaction{ID: uuid.NewString(), CustomerID: customerID, Type: "WHATSAPP", Date: time.Date(2024, 6, 8, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, store.CreateInteraction(ctx, older))
	require.NoError(t, store.CreateInteraction(ctx, newer))

	got, err := store.GetInteractionsByCustomer(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}

func TestCreateReturnRechecksUnitsLeft(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sale := &models.Sale{ID: uuid.NewString(), CustomerName: "A", Status: models.SaleStatusCompleted, DiscountType: "NONE", Subtotal: 500, Total: 500, Installments: 1}
	items := []models.SaleItem{{ID: uuid.NewString(), SaleID: sale.ID, ProductID: "p1", ProductName: "Coleira", Quantity: 1, UnitPrice: 500}}
	require.NoError(t, store.CreateSale(ctx, sale, items, nil, nil))

	newReturn := func() (*models.Return, []models.ReturnItem) {
		ret := &models.Return{ID: uuid.NewString(), SaleID: sale.ID, Reason: "defeito", Resolution: models.ResolutionRefund, Status: models.ReturnStatusOpen, Total: 500}
		return ret, []models.ReturnItem{{ID: uuid.NewString(), ReturnID: ret.ID, ProductID: "p1", ProductName: "Coleira", Quantity: 1, UnitPrice: 500}}
	}

	ret, retItems := newReturn()
	require.NoError(t, store.CreateReturn(ctx, ret, retItems, nil))

	ret, retItems = newReturn()
	assert.ErrorIs(t, store.CreateReturn(ctx, ret, retItems, nil), ErrReturnExceedsSale)

	returned, err := store.GetReturnedQuantities(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, returned["p1"])
}

func TestDeleteQuoteOnlyRemovesQuotes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	quote := &models.Sale{ID: uuid.NewString(), CustomerName: "A", Status: models.SaleStatusQuote, DiscountType: "NONE", Installments: 1}
	items := []models.SaleItem{{ID: uuid.NewString(), SaleID: quote.ID, ProductID: "p1", ProductName: "Coleira", Quantity: 1, UnitPrice: 500}}
	require.NoError(t, store.CreateSale(ctx, quote, items, nil, nil))
	done := &models.Sale{ID: uuid.NewString(), CustomerName: "B", Status: models.SaleStatusCompleted, DiscountType: "NONE", Installments: 1}
	require.NoError(t, store.CreateSale(ctx, done, nil, nil, nil))

	quotes, err := store.ListSales(ctx, models.SaleStatusQuote, 500)
	require.NoError(t, err)
	for _, s := range quotes {
		assert.Equal(t, models.SaleStatusQuote, s.Status)
	}

	require.NoError(t, store.DeleteQuote(ctx, quote.ID))
	_, err = store.GetSaleByID(ctx, quote.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	left, err := store.GetSaleItems(ctx, quote.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, store.DeleteQuote(ctx, quote.ID), ErrNotFound)
	assert.ErrorIs(t, store.DeleteQuote(ctx, done.ID), ErrConflict)
}

func TestPayFinancialEntry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	returnID := uuid.NewString()
	entry := &models.FinancialEntry{
		ID:            uuid.NewString(),
		Type:          models.FinancialExpense,
		Description:   "Devolução",
		Amount:        5666,
		DueDate:       time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "AJUSTE",
		Status:        "OPEN",
		ReturnID:      &returnID,
	}
	require.NoError(t, store.CreateFinancialEntry(ctx, entry))

	open, err := store.ListFinancialEntries(ctx, FinancialFilter{Type: models.FinancialExpense, Status: "OPEN", Limit: 500})
	require.NoError(t, err)
	var found bool
	for _, e := range open {
		found = found || e.ID == entry.ID
	}
	assert.True(t, found)

	paid, err := store.PayFinancialEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)

	_, err = store.PayFinancialEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	_, err = store.PayFinancialEntry(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
