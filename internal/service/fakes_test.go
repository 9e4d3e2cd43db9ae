package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sales-service/internal/credit"
	"sales-service/internal/models"
	"sales-service/internal/redisclient"
	"sales-service/internal/store"
)

// memStore is an in-memory stand-in for store.Store
type memStore struct {
	mu           sync.Mutex
	products     map[string]models.Product
	sales        map[string]*models.Sale
	items        map[string][]models.SaleItem
	payments     map[string][]models.SalePayment
	customers    map[string]*models.Customer
	interactions map[string][]models.Interaction
	returns      []models.Return
	returnItems  map[string][]models.ReturnItem
	credits      map[string][]models.CustomerCredit
	entries      []models.FinancialEntry
	processed    map[string]bool

	failCredits  bool
	failPayments map[string]bool
	failCreate   error
}

func newMemStore() *memStore {
	return &memStore{
		products:     map[string]models.Product{},
		sales:        map[string]*models.Sale{},
		items:        map[string][]models.SaleItem{},
		payments:     map[string][]models.SalePayment{},
		customers:    map[string]*models.Customer{},
		interactions: map[string][]models.Interaction{},
		returnItems:  map[string][]models.ReturnItem{},
		credits:      map[string][]models.CustomerCredit{},
		processed:    map[string]bool{},
		failPayments: map[string]bool{},
	}
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CreateSale(_ context.Context, sale *models.Sale, items []models.SaleItem, payments []models.SalePayment, usages []credit.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	if err := m.consume(usages); err != nil {
		return err
	}
	sale.CreatedAt = time.Now()
	sale.UpdatedAt = sale.CreatedAt
	stored := *sale
	m.sales[sale.ID] = &stored
	m.items[sale.ID] = append([]models.SaleItem(nil), items...)
	m.payments[sale.ID] = append([]models.SalePayment(nil), payments...)
	return nil
}

func (m *memStore) consume(usages []credit.Usage) error {
	for _, u := range usages {
		found := false
		for cid, list := range m.credits {
			for i := range list {
				if list[i].ID == u.EntryID {
					if list[i].Balance < u.Amount {
						return credit.ErrInsufficientCredit
					}
					m.credits[cid][i].Balance -= u.Amount
					found = true
				}
			}
		}
		if !found {
			return credit.ErrInsufficientCredit
		}
	}
	return nil
}

func (m *memStore) GetSaleByID(_ context.Context, id string) (*models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale, ok := m.sales[id]
	if !ok {
		return nil, fmt.Errorf("sale %s: %w", id, store.ErrNotFound)
	}
	cp := *sale
	return &cp, nil
}

func (m *memStore) GetSaleByIdempotencyKey(_ context.Context, key string) (*models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sale := range m.sales {
		if sale.IdempotencyKey != nil && *sale.IdempotencyKey == key {
			cp := *sale
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetSalesByCustomer(_ context.Context, customerID string) ([]models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Sale
	for _, sale := range m.sales {
		if sale.CustomerID != nil && *sale.CustomerID == customerID {
			out = append(out, *sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListSales(_ context.Context, status string, limit int) ([]models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Sale
	for _, sale := range m.sales {
		if status == "" || sale.Status == status {
			out = append(out, *sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) DeleteQuote(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale, ok := m.sales[id]
	if !ok {
		return fmt.Errorf("sale %s: %w", id, store.ErrNotFound)
	}
	if sale.Status != models.SaleStatusQuote {
		return fmt.Errorf("sale %s: %w", id, store.ErrConflict)
	}
	delete(m.sales, id)
	delete(m.items, id)
	return nil
}

func (m *memStore) GetSaleItems(_ context.Context, saleID string) ([]models.SaleItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SaleItem(nil), m.items[saleID]...), nil
}

func (m *memStore) GetSalePayments(_ context.Context, saleID string) ([]models.SalePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPayments[saleID] {
		return nil, errors.New("payments unavailable")
	}
	return append([]models.SalePayment(nil), m.payments[saleID]...), nil
}

func (m *memStore) UpdateQuote(_ context.Context, sale *models.Sale, items []models.SaleItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sales[sale.ID]
	if !ok || stored.Status != models.SaleStatusQuote {
		return fmt.Errorf("sale %s: %w", sale.ID, store.ErrConflict)
	}
	cp := *sale
	m.sales[sale.ID] = &cp
	m.items[sale.ID] = append([]models.SaleItem(nil), items...)
	return nil
}

func (m *memStore) CompleteQuote(_ context.Context, sale *models.Sale, payments []models.SalePayment, usages []credit.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sales[sale.ID]
	if !ok || stored.Status != models.SaleStatusQuote {
		return fmt.Errorf("sale %s: %w", sale.ID, store.ErrConflict)
	}
	if err := m.consume(usages); err != nil {
		return err
	}
	stored.Status = models.SaleStatusCompleted
	stored.PaymentMethod = sale.PaymentMethod
	stored.Installments = sale.Installments
	stored.CreditApplied = sale.CreditApplied
	m.payments[sale.ID] = append([]models.SalePayment(nil), payments...)
	return nil
}

func (m *memStore) UpdateSaleStatus(_ context.Context, saleID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale, ok := m.sales[saleID]
	if !ok || sale.Status != from {
		return fmt.Errorf("sale %s: %w", saleID, store.ErrConflict)
	}
	sale.Status = to
	return nil
}

func (m *memStore) GetReturnedQuantities(_ context.Context, saleID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.returnedLocked(saleID), nil
}

func (m *memStore) returnedLocked(saleID string) map[string]int {
	out := map[string]int{}
	for _, r := range m.returns {
		if r.SaleID != saleID || r.Status == models.ReturnStatusCancelled {
			continue
		}
		for _, it := range m.returnItems[r.ID] {
			out[it.ProductID] += it.Quantity
		}
	}
	return out
}

func (m *memStore) CreateReturn(_ context.Context, ret *models.Return, items []models.ReturnItem, grant *models.CustomerCredit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	left := map[string]int{}
	for _, it := range m.items[ret.SaleID] {
		left[it.ProductID] += it.Quantity
	}
	for productID, n := range m.returnedLocked(ret.SaleID) {
		left[productID] -= n
	}
	for _, it := range items {
		if it.Quantity > left[it.ProductID] {
			return fmt.Errorf("product %s: %w", it.ProductID, store.ErrReturnExceedsSale)
		}
		left[it.ProductID] -= it.Quantity
	}
	ret.CreatedAt = time.Now()
	m.returns = append(m.returns, *ret)
	m.returnItems[ret.ID] = append([]models.ReturnItem(nil), items...)
	if grant != nil {
		grant.CreatedAt = ret.CreatedAt
		m.credits[grant.CustomerID] = append(m.credits[grant.CustomerID], *grant)
	}
	return nil
}

func (m *memStore) GetCustomerByID(_ context.Context, id string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
	}
	return c, nil
}

func (m *memStore) GetInteractionsByCustomer(_ context.Context, customerID string) ([]models.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interactions[customerID], nil
}

func (m *memStore) CreateInteraction(_ context.Context, interaction *models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions[interaction.CustomerID] = append(m.interactions[interaction.CustomerID], *interaction)
	return nil
}

func (m *memStore) GetReturnsByCustomer(_ context.Context, customerID string) ([]models.Return, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Return
	for _, r := range m.returns {
		if r.CustomerID != nil && *r.CustomerID == customerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetCreditsByCustomer(_ context.Context, customerID string) ([]models.CustomerCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCredits {
		return nil, errors.New("credits unavailable")
	}
	return append([]models.CustomerCredit(nil), m.credits[customerID]...), nil
}

func (m *memStore) MarkPaymentPaid(_ context.Context, id string, paidAt time.Time) (*models.SalePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for saleID, list := range m.payments {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			if list[i].Status == models.PaymentStatusPaid {
				return nil, fmt.Errorf("payment %s: %w", id, store.ErrAlreadyPaid)
			}
			m.payments[saleID][i].Status = models.PaymentStatusPaid
			m.payments[saleID][i].PaidAt = &paidAt
			cp := m.payments[saleID][i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("payment %s: %w", id, store.ErrNotFound)
}

func (m *memStore) CreateFinancialEntry(_ context.Context, entry *models.FinancialEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memStore) SettleFinancialEntry(_ context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].PaymentID != nil && *m.entries[i].PaymentID == paymentID {
			m.entries[i].Status = ledgerStatusPaid
		}
	}
	return nil
}

func (m *memStore) CancelFinancialEntries(_ context.Context, saleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[string]bool{}
	for _, p := range m.payments[saleID] {
		ids[p.ID] = true
	}
	for i := range m.entries {
		e := &m.entries[i]
		if e.PaymentID != nil && ids[*e.PaymentID] && e.Status == ledgerStatusOpen {
			e.Status = ledgerStatusCancelled
		}
	}
	return nil
}

func (m *memStore) ListFinancialEntries(_ context.Context, filter store.FinancialFilter) ([]models.FinancialEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FinancialEntry
	for _, e := range m.entries {
		if (filter.Type == "" || e.Type == filter.Type) && (filter.Status == "" || e.Status == filter.Status) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) GetFinancialEntry(_ context.Context, id string) (*models.FinancialEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("financial entry %s: %w", id, store.ErrNotFound)
}

func (m *memStore) PayFinancialEntry(_ context.Context, id string) (*models.FinancialEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		e := &m.entries[i]
		if e.ID != id {
			continue
		}
		switch e.Status {
		case ledgerStatusOpen:
			e.Status = ledgerStatusPaid
			cp := *e
			return &cp, nil
		case ledgerStatusPaid:
			return nil, fmt.Errorf("financial entry %s: %w", id, store.ErrAlreadyPaid)
		default:
			return nil, fmt.Errorf("financial entry %s: %w", id, store.ErrConflict)
		}
	}
	return nil, fmt.Errorf("financial entry %s: %w", id, store.ErrNotFound)
}

func (m *memStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[eventID], nil
}

func (m *memStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

// fakeStock counts units per product
type fakeStock struct {
	mu        sync.Mutex
	available map[string]int
	reserved  map[string]int
	err       error
}

func newFakeStock(levels map[string]int) *fakeStock {
	return &fakeStock{available: levels, reserved: map[string]int{}}
}

func (f *fakeStock) ReserveStock(_ context.Context, productID string, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.available[productID] < quantity {
		return false, nil
	}
	f.available[productID] -= quantity
	f.reserved[productID] += quantity
	return true, nil
}

func (f *fakeStock) ReleaseStock(_ context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available[productID] += quantity
	f.reserved[productID] -= quantity
	return nil
}

func (f *fakeStock) CommitStock(_ context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserved[productID] -= quantity
	return nil
}

func (f *fakeStock) Restock(_ context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available[productID] += quantity
	return nil
}

// fakeGuard keeps keys and locks in maps
type fakeGuard struct {
	mu       sync.Mutex
	keys     map[string]bool
	locks    map[string]bool
	released int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{keys: map[string]bool{}, locks: map[string]bool{}}
}

func (g *fakeGuard) ClaimIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *fakeGuard) ForgetIdempotencyKey(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

func (g *fakeGuard) AcquireLock(_ context.Context, key string, _ time.Duration) (*redisclient.Lock, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locks[key] {
		return nil, nil
	}
	g.locks[key] = true
	return &redisclient.Lock{}, nil
}

func (g *fakeGuard) ReleaseLock(_ context.Context, lock *redisclient.Lock) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if lock == nil {
		return nil
	}
	g.released++
	g.locks = map[string]bool{}
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu        sync.Mutex
	completed []*models.SaleCompletedEvent
	cancelled []*models.SaleCancelledEvent
	paid      []*models.PaymentPaidEvent
	returns   []*models.ReturnCreatedEvent
}

func (p *fakePublisher) PublishSaleCompleted(_ context.Context, e *models.SaleCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, e)
	return nil
}

func (p *fakePublisher) PublishSaleCancelled(_ context.Context, e *models.SaleCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *fakePublisher) PublishPaymentPaid(_ context.Context, e *models.PaymentPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return nil
}

func (p *fakePublisher) PublishReturnCreated(_ context.Context, e *models.ReturnCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.returns = append(p.returns, e)
	return nil
}
