package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sales-service/internal/credit"
	"sales-service/internal/domain"
	"sales-service/internal/models"
	"sales-service/internal/status"
	"sales-service/internal/timeline"
	"sales-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// detailFetchLimit bounds concurrent per-purchase fetches
const detailFetchLimit = 8

// TimelineService assembles a customer's activity history
type TimelineService struct {
	store      TimelineStore
	classifier status.Classifier
	location   *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// NewTimelineService creates a new timeline service
func NewTimelineService(store TimelineStore, loc *time.Location) *TimelineService {
	if loc == nil {
		loc = time.UTC
	}
	return &TimelineService{
		store:      store,
		classifier: status.NewClassifier(loc),
		location:   loc,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// CustomerTimeline is the history view of one customer
type CustomerTimeline struct {
	Customer *models.Customer    `json:"customer"`
	Entries  []timeline.Entry    `json:"entries"`
	Days     []timeline.DayGroup `json:"days,omitempty"`
	Credit   models.CreditLedger `json:"credit"`
}

type purchaseDetail struct {
	items       []models.SaleItem
	payments    []models.SalePayment
	unavailable bool
}

// CustomerTimeline fetches interactions, purchases, returns and credits in
// parallel and merges them newest first. Credit and per-purchase detail
// failures fall back to empty values; the other fetches are required.
func (ts *TimelineService) CustomerTimeline(ctx context.Context, customerID string, groupByDay bool) (*CustomerTimeline, error) {
	ctx, span := util.StartSpan(ctx, "TimelineService.CustomerTimeline", attribute.String("customer.id", customerID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.TimelineBuildLatency.Observe(time.Since(start).Seconds())
	}()

	customer, err := ts.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var (
		interactions []models.Interaction
		sales        []models.Sale
		returns      []models.Return
		ledger       = models.CreditLedger{Entries: []models.CustomerCredit{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if interactions, err = ts.store.GetInteractionsByCustomer(gctx, customerID); err != nil {
			return fmt.Errorf("failed to get interactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if sales, err = ts.store.GetSalesByCustomer(gctx, customerID); err != nil {
			return fmt.Errorf("failed to get purchases: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if returns, err = ts.store.GetReturnsByCustomer(gctx, customerID); err != nil {
			return fmt.Errorf("failed to get returns: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		credits, err := ts.store.GetCreditsByCustomer(gctx, customerID)
		if err != nil {
			ts.logger.Warn("Credit ledger unavailable, showing none",
				zap.String("customer_id", customerID),
				zap.Error(err))
			return nil
		}
		ledger = models.CreditLedger{
			TotalBalance: credit.Balance(models.CreditEntries(credits)),
			Entries:      credits,
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details := ts.purchaseDetails(ctx, sales)

	now := ts.now()
	purchases := make([]timeline.Purchase, len(sales))
	var partial []string
	for i, sale := range sales {
		d := details[i]
		purchases[i] = timeline.Purchase{
			ID:        sale.ID,
			CreatedAt: sale.CreatedAt,
			Total:     sale.Total,
		}
		if d.unavailable {
			purchases[i].DetailUnavailable = true
			partial = append(partial, sale.ID)
			continue
		}
		purchases[i].ItemCount = len(d.items)
		purchases[i].FinanceStatus = ts.classifier.Aggregate(domain.TransactionStatus(sale.Status), models.DomainPayments(d.payments), now)
	}
	if len(partial) > 0 {
		span.SetAttributes(attribute.StringSlice("timeline.partial_sales", partial))
	}

	entries := timeline.Build(toInteractions(interactions), purchases, toReturns(returns))

	result := &CustomerTimeline{
		Customer: customer,
		Entries:  entries,
		Credit:   ledger,
	}
	if groupByDay {
		result.Days = timeline.GroupByDate(entries, ts.location)
	}
	return result, nil
}

// purchaseDetails loads lines and payments of every sale. A failed fetch
// marks that sale's detail unavailable.
func (ts *TimelineService) purchaseDetails(ctx context.Context, sales []models.Sale) []purchaseDetail {
	details := make([]purchaseDetail, len(sales))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchLimit)
	for i := range sales {
		i := i
		saleID := sales[i].ID
		g.Go(func() error {
			items, err := ts.store.GetSaleItems(gctx, saleID)
			if err != nil {
				ts.logger.Warn("Purchase items unavailable", zap.String("sale_id", saleID), zap.Error(err))
				details[i].unavailable = true
				return nil
			}
			payments, err := ts.store.GetSalePayments(gctx, saleID)
			if err != nil {
				ts.logger.Warn("Purchase payments unavailable", zap.String("sale_id", saleID), zap.Error(err))
				details[i].unavailable = true
				return nil
			}
			details[i] = purchaseDetail{items: items, payments: payments}
			return nil
		})
	}
	_ = g.Wait()

	return details
}

// LogInteractionRequest records a contact with a customer. Date defaults to now.
type LogInteractionRequest struct {
	Type  string     `json:"type" binding:"required"`
	Notes string     `json:"notes"`
	Date  *time.Time `json:"date,omitempty"`
}

// LogInteraction stores a contact so it shows up in the customer's timeline
func (ts *TimelineService) LogInteraction(ctx context.Context, customerID string, req *LogInteractionRequest) (*models.Interaction, error) {
	ctx, span := util.StartSpan(ctx, "TimelineService.LogInteraction", attribute.String("customer.id", customerID))
	defer span.End()

	kind := strings.ToUpper(strings.TrimSpace(req.Type))
	if kind == "" {
		return nil, fmt.Errorf("%w: interaction type is required", ErrInvalidRequest)
	}

	if _, err := ts.store.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}

	date := ts.now()
	if req.Date != nil && !req.Date.IsZero() {
		date = *req.Date
	}

	interaction := &models.Interaction{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Type:       kind,
		Notes:      strings.TrimSpace(req.Notes),
		Date:       date,
	}
	if err := ts.store.CreateInteraction(ctx, interaction); err != nil {
		return nil, fmt.Errorf("failed to save interaction: %w", err)
	}

	ts.logger.Info("Interaction logged",
		zap.String("customer_id", customerID),
		zap.String("interaction_id", interaction.ID),
		zap.String("type", kind))
	return interaction, nil
}

func toInteractions(in []models.Interaction) []timeline.Interaction {
	out := make([]timeline.Interaction, len(in))
	for i, it := range in {
		out[i] = timeline.Interaction{ID: it.ID, Date: it.Date, Type: it.Type, Notes: it.Notes}
	}
	return out
}

func toReturns(in []models.Return) []timeline.Return {
	out := make([]timeline.Return, len(in))
	for i, r := range in {
		out[i] = timeline.Return{
			ID:         r.ID,
			SaleID:     r.SaleID,
			CreatedAt:  r.CreatedAt,
			Resolution: r.Resolution,
			Status:     r.Status,
			Total:      r.Total,
		}
	}
	return out
}
