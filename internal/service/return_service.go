package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sales-service/internal/models"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// restocker mirrors returned units into the stock cache
type restocker interface {
	Restock(ctx context.Context, productID string, quantity int) error
}

// ReturnService registers returns of completed sales
type ReturnService struct {
	store     ReturnStore
	cache     restocker
	publisher Publisher
	logger    *zap.Logger
}

// NewReturnService creates a new return service
func NewReturnService(store ReturnStore, cache restocker, publisher Publisher) *ReturnService {
	return &ReturnService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ReturnItemRequest is one returned line
type ReturnItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CreateReturnRequest represents a request to return part of a sale
type CreateReturnRequest struct {
	SaleID     string              `json:"sale_id" binding:"required"`
	Reason     string              `json:"reason" binding:"required"`
	Resolution string              `json:"resolution"`
	Items      []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateReturn validates the returned quantities against what was sold and
// not yet returned, puts the units back and settles the resolution: a refund
// stays open for the cash ledger, store credit is granted at once.
func (rs *ReturnService) CreateReturn(ctx context.Context, req *CreateReturnRequest) (*models.Return, error) {
	ctx, span := util.StartSpan(ctx, "ReturnService.CreateReturn", attribute.String("sale.id", req.SaleID))
	defer span.End()

	resolution := strings.ToUpper(strings.TrimSpace(req.Resolution))
	if resolution == "" {
		resolution = models.ResolutionRefund
	}
	if resolution != models.ResolutionRefund && resolution != models.ResolutionCredit {
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidRequest, req.Resolution)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: a return needs a reason", ErrInvalidRequest)
	}

	sale, err := rs.store.GetSaleByID(ctx, req.SaleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != models.SaleStatusCompleted {
		return nil, fmt.Errorf("%w: sale %s is %s", ErrInvalidRequest, sale.ID, sale.Status)
	}
	if resolution == models.ResolutionCredit && sale.CustomerID == nil {
		return nil, fmt.Errorf("%w: store credit needs a sale with a customer", ErrInvalidRequest)
	}

	ret := &models.Return{
		ID:         uuid.New().String(),
		SaleID:     sale.ID,
		CustomerID: sale.CustomerID,
		Reason:     strings.TrimSpace(req.Reason),
		Resolution: resolution,
		Status:     models.ReturnStatusOpen,
	}

	items, err := rs.returnItems(ctx, ret.ID, sale.ID, req.Items)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		ret.Total += item.UnitPrice * int64(item.Quantity)
	}

	var grant *models.CustomerCredit
	if resolution == models.ResolutionCredit {
		returnID := ret.ID
		grant = &models.CustomerCredit{
			ID:         uuid.New().String(),
			CustomerID: *sale.CustomerID,
			ReturnID:   &returnID,
			Amount:     ret.Total,
			Balance:    ret.Total,
		}
		ret.Status = models.ReturnStatusDone
	}

	if err := rs.store.CreateReturn(ctx, ret, items, grant); err != nil {
		if errors.Is(err, store.ErrReturnExceedsSale) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("failed to create return: %w", err)
	}
	util.ReturnsCreatedTotal.WithLabelValues(resolution).Inc()

	for _, item := range items {
		if err := rs.cache.Restock(ctx, item.ProductID, item.Quantity); err != nil {
			rs.logger.Error("Failed to restock in Redis",
				zap.String("return_id", ret.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
		}
	}

	event := &models.ReturnCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeReturnCreated),
		ReturnID:   ret.ID,
		SaleID:     ret.SaleID,
		Resolution: ret.Resolution,
		Total:      ret.Total,
	}
	if ret.CustomerID != nil {
		event.CustomerID = *ret.CustomerID
	}
	if err := rs.publisher.PublishReturnCreated(ctx, event); err != nil {
		rs.logger.Error("Failed to publish ReturnCreated event", zap.Error(err))
	}

	rs.logger.Info("Return created",
		zap.String("return_id", ret.ID),
		zap.String("sale_id", ret.SaleID),
		zap.String("resolution", resolution),
		zap.Int64("total", ret.Total))
	return ret, nil
}

// returnItems prices the returned units at what they were sold for. A product
// sold on several lines at different prices is taken line by line in sale
// order, units already returned counting against the earliest lines.
func (rs *ReturnService) returnItems(ctx context.Context, returnID, saleID string, reqItems []ReturnItemRequest) ([]models.ReturnItem, error) {
	if len(reqItems) == 0 {
		return nil, fmt.Errorf("%w: select at least one item to return", ErrInvalidRequest)
	}

	saleItems, err := rs.store.GetSaleItems(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale items: %w", err)
	}
	lines := make(map[string][]models.SaleItem, len(saleItems))
	sold := make(map[string]int, len(saleItems))
	for _, item := range saleItems {
		lines[item.ProductID] = append(lines[item.ProductID], item)
		sold[item.ProductID] += item.Quantity
	}

	returned, err := rs.store.GetReturnedQuantities(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get returned quantities: %w", err)
	}

	requested := make(map[string]int, len(reqItems))
	var order []string
	for _, item := range reqItems {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid quantity for %s", ErrInvalidRequest, item.ProductID)
		}
		if _, ok := sold[item.ProductID]; !ok {
			return nil, fmt.Errorf("%w: product %s is not part of sale %s", ErrInvalidRequest, item.ProductID, saleID)
		}
		if _, ok := requested[item.ProductID]; !ok {
			order = append(order, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}

	items := make([]models.ReturnItem, 0, len(order))
	for _, productID := range order {
		maxAllowed := sold[productID] - returned[productID]
		if requested[productID] > maxAllowed {
			return nil, fmt.Errorf("%w: quantity for %s exceeds what can be returned (max %d)",
				ErrInvalidRequest, lines[productID][0].ProductName, max(maxAllowed, 0))
		}

		skip, want := returned[productID], requested[productID]
		for _, line := range lines[productID] {
			avail := line.Quantity - min(skip, line.Quantity)
			skip -= line.Quantity - avail
			n := min(want, avail)
			if n == 0 {
				continue
			}
			want -= n
			items = append(items, models.ReturnItem{
				ID:          uuid.New().String(),
				ReturnID:    returnID,
				ProductID:   productID,
				ProductName: line.ProductName,
				Quantity:    n,
				UnitPrice:   line.UnitPrice,
			})
		}
	}
	return items, nil
}
