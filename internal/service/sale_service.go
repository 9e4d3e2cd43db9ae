package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-service/internal/credit"
	"sales-service/internal/domain"
	"sales-service/internal/models"
	"sales-service/internal/money"
	"sales-service/internal/pricing"
	"sales-service/internal/redisclient"
	"sales-service/internal/schedule"
	"sales-service/internal/status"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultCustomerName = "Consumidor Final"

// Settings are the business knobs shared by the services
type Settings struct {
	Location       *time.Location
	IdempotencyTTL time.Duration
	LockTTL        time.Duration
}

// SaleService handles quotes and sales
type SaleService struct {
	store      SaleStore
	stock      Stock
	guard      Guard
	publisher  Publisher
	classifier status.Classifier
	settings   Settings
	now        func() time.Time
	logger     *zap.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(
	store SaleStore,
	stock Stock,
	guard Guard,
	publisher Publisher,
	settings Settings,
) *SaleService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &SaleService{
		store:      store,
		stock:      stock,
		guard:      guard,
		publisher:  publisher,
		classifier: status.NewClassifier(settings.Location),
		settings:   settings,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// ItemRequest is one requested line. UnitPrice overrides the catalog price.
type ItemRequest struct {
	ProductID string           `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// DiscountRequest carries the discount as typed by the operator
type DiscountRequest struct {
	Kind  string          `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// PaymentRequest describes how a sale will be paid
type PaymentRequest struct {
	Method       string   `json:"method" binding:"required"`
	Installments int      `json:"installments"`
	DueDates     []string `json:"due_dates,omitempty"`
	// AutoFillDates fills missing boleto dates monthly from next month
	AutoFillDates bool            `json:"auto_fill_dates"`
	FirstDueDate  string          `json:"first_due_date,omitempty"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
}

// CreateSaleRequest represents a request to create a quote or a sale
type CreateSaleRequest struct {
	CustomerID     *string         `json:"customer_id,omitempty"`
	CustomerName   string          `json:"customer_name"`
	Status         string          `json:"status"`
	Items          []ItemRequest   `json:"items" binding:"required,min=1,dive"`
	Discount       DiscountRequest `json:"discount"`
	Freight        decimal.Decimal `json:"freight"`
	Payment        *PaymentRequest `json:"payment,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// UpdateQuoteRequest replaces the editable parts of a quote
type UpdateQuoteRequest struct {
	CustomerID   *string         `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name"`
	Items        []ItemRequest   `json:"items" binding:"required,min=1,dive"`
	Discount     DiscountRequest `json:"discount"`
	Freight      decimal.Decimal `json:"freight"`
}

// PaymentView is a stored installment with its live status
type PaymentView struct {
	models.SalePayment
	EffectiveStatus domain.EffectiveStatus `json:"effective_status"`
}

// SaleDetails is a sale with its lines and payment picture
type SaleDetails struct {
	Sale          *models.Sale           `json:"sale"`
	Items         []models.SaleItem      `json:"items"`
	Payments      []PaymentView          `json:"payments"`
	FinanceStatus domain.EffectiveStatus `json:"finance_status"`
	Summary       status.Summary         `json:"summary"`
}

// CreateSale creates a quote, or a completed sale with stock and payments
func (s *SaleService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*SaleDetails, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	saleStatus := strings.ToUpper(strings.TrimSpace(req.Status))
	if saleStatus == "" {
		saleStatus = models.SaleStatusQuote
	}
	if saleStatus != models.SaleStatusQuote && saleStatus != models.SaleStatusCompleted {
		return nil, fmt.Errorf("%w: status must be QUOTE or COMPLETED", ErrInvalidRequest)
	}
	if saleStatus == models.SaleStatusCompleted && req.Payment == nil {
		return nil, fmt.Errorf("%w: a sale needs payment details", ErrInvalidRequest)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetSaleByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate sale request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("sale_id", existing.ID))
			return s.GetSale(ctx, existing.ID)
		}

		claimed, err := s.guard.ClaimIdempotencyKey(ctx, req.IdempotencyKey, s.settings.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if !claimed {
			return nil, ErrDuplicateRequest
		}
	}

	details, err := s.createSale(ctx, req, saleStatus)
	if err != nil && req.IdempotencyKey != "" {
		if ferr := s.guard.ForgetIdempotencyKey(ctx, req.IdempotencyKey); ferr != nil {
			s.logger.Warn("Failed to free idempotency key", zap.Error(ferr))
		}
	}
	return details, err
}

func (s *SaleService) createSale(ctx context.Context, req *CreateSaleRequest, saleStatus string) (*SaleDetails, error) {
	sale := &models.Sale{
		ID:           uuid.New().String(),
		CustomerID:   req.CustomerID,
		CustomerName: customerName(req.CustomerName),
		Status:       models.SaleStatusQuote,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		sale.IdempotencyKey = &key
	}

	items, err := s.priceSale(ctx, sale, req.Items, req.Discount, req.Freight)
	if err != nil {
		return nil, err
	}

	if saleStatus == models.SaleStatusQuote {
		if err := s.store.CreateSale(ctx, sale, items, nil, nil); err != nil {
			util.SalesFailedTotal.WithLabelValues("db_error").Inc()
			return nil, fmt.Errorf("failed to create quote: %w", err)
		}
		util.SalesCreatedTotal.WithLabelValues(models.SaleStatusQuote).Inc()
		s.logger.Info("Quote created", zap.String("sale_id", sale.ID), zap.Int64("total", sale.Total))
		return s.details(sale, items, nil), nil
	}

	sale.Status = models.SaleStatusCompleted
	payments, err := s.commit(ctx, sale, items, *req.Payment, func(payments []models.SalePayment, usages []credit.Usage) error {
		return s.store.CreateSale(ctx, sale, items, payments, usages)
	})
	if err != nil {
		return nil, err
	}

	util.SalesCreatedTotal.WithLabelValues(models.SaleStatusCompleted).Inc()
	s.logger.Info("Sale created",
		zap.String("sale_id", sale.ID),
		zap.Int64("total", sale.Total),
		zap.Int("payments", len(payments)))
	return s.details(sale, items, payments), nil
}

// UpdateQuote re-prices a quote with new lines
func (s *SaleService) UpdateQuote(ctx context.Context, saleID string, req *UpdateQuoteRequest) (*SaleDetails, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.UpdateQuote", attribute.String("sale.id", saleID))
	defer span.End()

	sale, err := s.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != models.SaleStatusQuote {
		return nil, fmt.Errorf("sale %s is %s: %w", saleID, sale.Status, ErrNotQuote)
	}

	sale.CustomerID = req.CustomerID
	sale.CustomerName = customerName(req.CustomerName)
	items, err := s.priceSale(ctx, sale, req.Items, req.Discount, req.Freight)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateQuote(ctx, sale, items); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("sale %s: %w", saleID, ErrNotQuote)
		}
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}

	s.logger.Info("Quote updated", zap.String("sale_id", sale.ID), zap.Int64("total", sale.Total))
	return s.details(sale, items, nil), nil
}

// ConvertQuote turns a quote into a sale: stock is taken and payments are
// scheduled
func (s *SaleService) ConvertQuote(ctx context.Context, saleID string, req *PaymentRequest) (*SaleDetails, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.ConvertQuote", attribute.String("sale.id", saleID))
	defer span.End()

	sale, err := s.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != models.SaleStatusQuote {
		return nil, fmt.Errorf("sale %s is %s: %w", saleID, sale.Status, ErrNotQuote)
	}

	items, err := s.store.GetSaleItems(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: quote %s has no items", ErrInvalidRequest, saleID)
	}

	payments, err := s.commit(ctx, sale, items, *req, func(payments []models.SalePayment, usages []credit.Usage) error {
		err := s.store.CompleteQuote(ctx, sale, payments, usages)
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("sale %s: %w", saleID, ErrNotQuote)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	sale.Status = models.SaleStatusCompleted
	util.QuotesConvertedTotal.Inc()
	s.logger.Info("Quote converted", zap.String("sale_id", sale.ID))
	return s.details(sale, items, payments), nil
}

// CancelSale cancels a completed sale and puts its unreturned units back
func (s *SaleService) CancelSale(ctx context.Context, saleID string) error {
	ctx, span := util.StartSpan(ctx, "SaleService.CancelSale", attribute.String("sale.id", saleID))
	defer span.End()

	sale, err := s.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Status != models.SaleStatusCompleted {
		return fmt.Errorf("sale %s is %s: %w", saleID, sale.Status, ErrNotCompleted)
	}

	if err := s.store.UpdateSaleStatus(ctx, saleID, models.SaleStatusCompleted, models.SaleStatusCancelled); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("sale %s: %w", saleID, ErrNotCompleted)
		}
		return fmt.Errorf("failed to cancel sale: %w", err)
	}
	util.SalesCancelledTotal.Inc()

	s.restock(ctx, saleID)

	event := &models.SaleCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeSaleCancelled),
		SaleID:    saleID,
	}
	if err := s.publisher.PublishSaleCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleCancelled event", zap.Error(err))
	}

	s.logger.Info("Sale cancelled", zap.String("sale_id", saleID))
	return nil
}

func (s *SaleService) restock(ctx context.Context, saleID string) {
	items, err := s.store.GetSaleItems(ctx, saleID)
	if err != nil {
		s.logger.Error("Failed to load items for restock", zap.String("sale_id", saleID), zap.Error(err))
		return
	}
	returned, err := s.store.GetReturnedQuantities(ctx, saleID)
	if err != nil {
		s.logger.Error("Failed to load returned quantities", zap.String("sale_id", saleID), zap.Error(err))
		return
	}

	for _, item := range items {
		qty := item.Quantity - returned[item.ProductID]
		if qty <= 0 {
			continue
		}
		if err := s.stock.Restock(ctx, item.ProductID, qty); err != nil {
			s.logger.Error("Failed to restock",
				zap.String("sale_id", saleID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

// GetSale retrieves a sale with effective payment statuses
func (s *SaleService) GetSale(ctx context.Context, saleID string) (*SaleDetails, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.GetSale", attribute.String("sale.id", saleID))
	defer span.End()

	sale, err := s.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetSaleItems(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale items: %w", err)
	}

	payments, err := s.store.GetSalePayments(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale payments: %w", err)
	}

	return s.details(sale, items, payments), nil
}

// Listing bounds
const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// listLimit clamps a requested page size, zero meaning the default
func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// ListSales lists sales newest first. status may be empty or one of QUOTE,
// COMPLETED and CANCELLED.
func (s *SaleService) ListSales(ctx context.Context, saleStatus string, limit int) ([]models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.ListSales", attribute.String("sale.status", saleStatus))
	defer span.End()

	saleStatus = strings.ToUpper(strings.TrimSpace(saleStatus))
	switch saleStatus {
	case "", models.SaleStatusQuote, models.SaleStatusCompleted, models.SaleStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown sale status %q", ErrInvalidRequest, saleStatus)
	}

	sales, err := s.store.ListSales(ctx, saleStatus, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	if sales == nil {
		sales = []models.Sale{}
	}
	return sales, nil
}

// DeleteQuote discards a quote. Completed and cancelled sales stay.
func (s *SaleService) DeleteQuote(ctx context.Context, saleID string) error {
	ctx, span := util.StartSpan(ctx, "SaleService.DeleteQuote", attribute.String("sale.id", saleID))
	defer span.End()

	if err := s.store.DeleteQuote(ctx, saleID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("sale %s: %w", saleID, ErrNotQuote)
		}
		return err
	}

	s.logger.Info("Quote deleted", zap.String("sale_id", saleID))
	return nil
}

func (s *SaleService) details(sale *models.Sale, items []models.SaleItem, payments []models.SalePayment) *SaleDetails {
	now := s.now()
	domainPayments := models.DomainPayments(payments)

	views := make([]PaymentView, len(payments))
	for i, p := range payments {
		views[i] = PaymentView{
			SalePayment:     p,
			EffectiveStatus: s.classifier.Effective(domainPayments[i], now),
		}
	}

	return &SaleDetails{
		Sale:          sale,
		Items:         items,
		Payments:      views,
		FinanceStatus: s.classifier.Aggregate(domain.TransactionStatus(sale.Status), domainPayments, now),
		Summary:       s.classifier.Summarize(domainPayments, now),
	}
}

// priceSale fills the money fields of sale from the requested lines and
// returns the rows to store
func (s *SaleService) priceSale(ctx context.Context, sale *models.Sale, reqItems []ItemRequest, discount DiscountRequest, freight decimal.Decimal) ([]models.SaleItem, error) {
	if len(reqItems) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one item", ErrInvalidRequest)
	}

	ids := make([]string, 0, len(reqItems))
	seen := make(map[string]bool, len(reqItems))
	for _, item := range reqItems {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	catalog := make(map[string]*models.Product, len(products))
	for i := range products {
		catalog[products[i].ID] = &products[i]
	}

	draft := pricing.NewDraft()
	for _, item := range reqItems {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s not found", ErrInvalidRequest, item.ProductID)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %s quantity %d", pricing.ErrInvalidQuantity, item.ProductID, item.Quantity)
		}

		price := money.FromMinorUnits(product.Price)
		if item.UnitPrice != nil {
			price = *item.UnitPrice
		}
		draft = draft.WithItem(pricing.LineItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   price,
		})
	}

	kind, err := pricing.ParseDiscountKind(discount.Kind)
	if err != nil {
		util.PricingFailuresTotal.WithLabelValues("discount").Inc()
		return nil, err
	}

	breakdown, err := draft.
		WithDiscount(pricing.Discount{Kind: kind, Value: discount.Value}).
		WithFreight(freight).
		Price()
	if err != nil {
		util.PricingFailuresTotal.WithLabelValues("pricing").Inc()
		return nil, err
	}

	lines := draft.Items()
	items := make([]models.SaleItem, len(lines))
	for i, line := range lines {
		unit, err := money.ToMinorUnits(line.UnitPrice)
		if err != nil {
			util.PricingFailuresTotal.WithLabelValues("unit_price").Inc()
			return nil, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		items[i] = models.SaleItem{
			ID:          uuid.New().String(),
			SaleID:      sale.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   unit,
		}
	}

	sale.Subtotal = breakdown.Subtotal
	sale.DiscountType = string(kind)
	sale.DiscountValue = discount.Value
	sale.DiscountAmount = breakdown.Discount
	sale.Freight = breakdown.Freight
	sale.Total = breakdown.Total
	return items, nil
}

// commit schedules payments, takes stock and runs persist. Stock is given
// back when persist fails.
func (s *SaleService) commit(
	ctx context.Context,
	sale *models.Sale,
	items []models.SaleItem,
	req PaymentRequest,
	persist func([]models.SalePayment, []credit.Usage) error,
) ([]models.SalePayment, error) {
	payments, usages, lock, err := s.planPayments(ctx, sale, req)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid_payment").Inc()
		return nil, err
	}
	defer func() {
		if err := s.guard.ReleaseLock(ctx, lock); err != nil {
			s.logger.Warn("Failed to release credit lock", zap.Error(err))
		}
	}()

	if err := s.reserveStock(ctx, sale.ID, items); err != nil {
		util.SalesFailedTotal.WithLabelValues("reservation_failed").Inc()
		return nil, err
	}

	if err := persist(payments, usages); err != nil {
		s.compensateReservations(ctx, sale.ID, items)
		util.SalesFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to store sale: %w", err)
	}

	for _, item := range items {
		if err := s.stock.CommitStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("Failed to commit stock",
				zap.String("sale_id", sale.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
		}
	}

	s.publishCompleted(ctx, sale, payments)
	return payments, nil
}

// planPayments turns the payment request into stored installments. Store
// credit, when used, becomes a paid CREDITO installment ahead of the rest and
// the customer's credit lock is returned held.
func (s *SaleService) planPayments(ctx context.Context, sale *models.Sale, req PaymentRequest) ([]models.SalePayment, []credit.Usage, *redisclient.Lock, error) {
	method, err := domain.ParseMethod(req.Method)
	if err != nil {
		return nil, nil, nil, err
	}

	installments := req.Installments
	if installments == 0 {
		installments = 1
	}

	requested, err := money.ToMinorUnits(req.CreditAmount)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("credit amount: %w", err)
	}
	if method == domain.MethodStoreCredit {
		requested = sale.Total
	}

	today := schedule.Day(s.now().In(s.settings.Location))

	var (
		applied int64
		usages  []credit.Usage
		lock    *redisclient.Lock
	)
	if requested > 0 {
		if sale.CustomerID == nil {
			return nil, nil, nil, fmt.Errorf("%w: store credit needs a customer", ErrInvalidRequest)
		}
		lock, err = s.guard.AcquireLock(ctx, "credit:"+*sale.CustomerID, s.settings.LockTTL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to lock customer credit: %w", err)
		}
		if lock == nil {
			return nil, nil, nil, ErrCreditBusy
		}

		applied, usages, err = s.liquidate(ctx, *sale.CustomerID, requested, sale.Total)
		if err == nil && method == domain.MethodStoreCredit && applied < sale.Total {
			err = fmt.Errorf("%w: balance covers %s of %s", credit.ErrInsufficientCredit,
				money.Format(applied), money.Format(sale.Total))
		}
		if err != nil {
			_ = s.guard.ReleaseLock(ctx, lock)
			return nil, nil, nil, err
		}
	}

	var planned []domain.Payment
	if applied > 0 {
		planned = append(planned, domain.Payment{
			Number:  1,
			Amount:  applied,
			DueDate: today,
			Status:  domain.PaymentPaid,
			Method:  domain.MethodStoreCredit,
		})
	}

	if method != domain.MethodStoreCredit {
		scheduled, err := s.schedule(method, installments, credit.Remainder(sale.Total, applied), req, today)
		if err != nil {
			_ = s.guard.ReleaseLock(ctx, lock)
			return nil, nil, nil, err
		}
		for _, p := range scheduled {
			p.Number += len(planned)
			planned = append(planned, p)
		}
	}

	rows := make([]models.SalePayment, len(planned))
	for i, p := range planned {
		rows[i] = models.NewSalePayment(uuid.New().String(), sale.ID, p)
		util.InstallmentsScheduledTotal.WithLabelValues(string(p.Method)).Inc()
	}

	methodName := string(method)
	sale.PaymentMethod = &methodName
	// installments counts every payment row, the credit row included
	sale.Installments = installments
	if len(rows) > 0 {
		sale.Installments = len(rows)
	}
	sale.CreditApplied = applied
	return rows, usages, lock, nil
}

func (s *SaleService) schedule(method domain.Method, installments int, total int64, req PaymentRequest, today time.Time) ([]domain.Payment, error) {
	dates := make([]time.Time, len(req.DueDates))
	for i, raw := range req.DueDates {
		d, err := status.ParseDueDate(raw)
		if err != nil {
			return nil, fmt.Errorf("due date %d: %w", i+1, err)
		}
		dates[i] = d
	}
	if method.ManualDates() && req.AutoFillDates {
		dates = schedule.AutoFill(schedule.Resize(dates, installments), today)
	}

	first, err := status.ParseDueDate(req.FirstDueDate)
	if err != nil {
		return nil, fmt.Errorf("first due date: %w", err)
	}

	payments, err := schedule.Build(schedule.Plan{
		Method:       method,
		Installments: installments,
		Total:        total,
		DueDates:     dates,
		FirstDue:     first,
		Today:        today,
	})
	if err != nil {
		util.PricingFailuresTotal.WithLabelValues("schedule").Inc()
		return nil, err
	}
	return payments, nil
}

func (s *SaleService) liquidate(ctx context.Context, customerID string, requested, total int64) (int64, []credit.Usage, error) {
	credits, err := s.store.GetCreditsByCustomer(ctx, customerID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get customer credits: %w", err)
	}
	entries := models.CreditEntries(credits)

	applied := credit.Allowed(requested, credit.Balance(entries), total)
	if applied == 0 {
		return 0, nil, nil
	}

	_, usages, err := credit.Liquidate(entries, applied)
	if err != nil {
		return 0, nil, err
	}
	return applied, usages, nil
}

// reserveStock reserves stock for every line, releasing what was taken when
// one of them fails
func (s *SaleService) reserveStock(ctx context.Context, saleID string, items []models.SaleItem) error {
	start := time.Now()
	defer func() {
		util.StockReserveLatency.Observe(time.Since(start).Seconds())
	}()

	for i, item := range items {
		success, err := s.stock.ReserveStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			util.StockReservationsFailed.WithLabelValues("error").Inc()
			s.compensateReservations(ctx, saleID, items[:i])
			return fmt.Errorf("failed to reserve stock for product %s: %w", item.ProductID, err)
		}

		if !success {
			util.StockReservationsFailed.WithLabelValues("insufficient_stock").Inc()
			s.compensateReservations(ctx, saleID, items[:i])
			return fmt.Errorf("%w: %s", ErrInsufficientStock, item.ProductName)
		}
	}

	return nil
}

// compensateReservations rolls back stock reservations
func (s *SaleService) compensateReservations(ctx context.Context, saleID string, items []models.SaleItem) {
	for _, item := range items {
		if err := s.stock.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("Failed to compensate reservation",
				zap.String("sale_id", saleID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

func (s *SaleService) publishCompleted(ctx context.Context, sale *models.Sale, payments []models.SalePayment) {
	data := make([]models.PaymentData, len(payments))
	for i, p := range payments {
		data[i] = models.PaymentData{
			PaymentID: p.ID,
			Number:    p.Number,
			Amount:    p.Amount,
			DueDate:   p.DueDate,
			Status:    p.Status,
			Method:    p.PaymentMethod,
		}
	}

	event := &models.SaleCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeSaleCompleted),
		SaleID:    sale.ID,
		Total:     sale.Total,
		Payments:  data,
	}
	if sale.CustomerID != nil {
		event.CustomerID = *sale.CustomerID
	}

	if err := s.publisher.PublishSaleCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleCompleted event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func customerName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return defaultCustomerName
	}
	return name
}
