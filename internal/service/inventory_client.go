package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type inventoryStore interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetInventory(ctx context.Context, productID string) (*models.Inventory, error)
	ReserveStockTx(ctx context.Context, productID string, quantity int) error
	ReleaseStock(ctx context.Context, productID string, quantity int) error
	CommitStock(ctx context.Context, productID string, quantity int) error
	Restock(ctx context.Context, productID string, quantity int) error
}

type stockCache interface {
	ReserveStock(ctx context.Context, productID string, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, productID string, quantity int) error
	CommitStock(ctx context.Context, productID string, quantity int) error
	Restock(ctx context.Context, productID string, quantity int) error
	InitInventory(ctx context.Context, productID string, available, reserved int) error
}

// InventoryClient handles inventory operations. Redis is the fast path and
// PostgreSQL the source of truth.
type InventoryClient struct {
	store  inventoryStore
	redis  stockCache
	logger *zap.Logger
	// sync runs the background DB mirror of a redis reservation
	sync func(func())
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(store inventoryStore, redis stockCache) *InventoryClient {
	return &InventoryClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
		sync:   func(f func()) { go f() },
	}
}

// ReserveStock reserves stock for a product (fast path via Redis)
func (ic *InventoryClient) ReserveStock(ctx context.Context, productID string, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReserveStock",
		attribute.String("product.id", productID), attribute.Int("quantity", quantity))
	defer span.End()

	success, err := ic.redis.ReserveStock(ctx, productID, quantity)
	if err != nil {
		ic.logger.Warn("Redis reservation failed, falling back to DB",
			zap.String("product_id", productID),
			zap.Error(err))

		return ic.reserveStockDB(ctx, productID, quantity)
	}

	if !success {
		return false, nil
	}

	ic.sync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := ic.store.ReserveStockTx(ctx, productID, quantity); err != nil {
			ic.logger.Error("Failed to sync reservation to DB",
				zap.String("product_id", productID),
				zap.Error(err))
		}
	})

	return true, nil
}

// reserveStockDB reserves stock using database transaction (fallback)
func (ic *InventoryClient) reserveStockDB(ctx context.Context, productID string, quantity int) (bool, error) {
	err := ic.store.ReserveStockTx(ctx, productID, quantity)
	if errors.Is(err, store.ErrInsufficientStock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseStock releases reserved stock (compensation)
func (ic *InventoryClient) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReleaseStock",
		attribute.String("product.id", productID), attribute.Int("quantity", quantity))
	defer span.End()

	if err := ic.redis.ReleaseStock(ctx, productID, quantity); err != nil {
		ic.logger.Error("Failed to release stock in Redis",
			zap.String("product_id", productID),
			zap.Error(err))
	}

	return ic.store.ReleaseStock(ctx, productID, quantity)
}

// CommitStock commits reserved stock (final deduction)
func (ic *InventoryClient) CommitStock(ctx context.Context, productID string, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.CommitStock",
		attribute.String("product.id", productID), attribute.Int("quantity", quantity))
	defer span.End()

	if err := ic.redis.CommitStock(ctx, productID, quantity); err != nil {
		ic.logger.Error("Failed to commit stock in Redis",
			zap.String("product_id", productID),
			zap.Error(err))
	}

	return ic.store.CommitStock(ctx, productID, quantity)
}

// Restock puts sold units back, for cancelled sales
func (ic *InventoryClient) Restock(ctx context.Context, productID string, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.Restock",
		attribute.String("product.id", productID), attribute.Int("quantity", quantity))
	defer span.End()

	if err := ic.redis.Restock(ctx, productID, quantity); err != nil {
		ic.logger.Error("Failed to restock in Redis",
			zap.String("product_id", productID),
			zap.Error(err))
	}

	return ic.store.Restock(ctx, productID, quantity)
}

// SyncInventoryToRedis synchronizes database inventory to Redis
func (ic *InventoryClient) SyncInventoryToRedis(ctx context.Context) error {
	ic.logger.Info("Starting inventory sync to Redis")

	products, err := ic.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	synced := 0
	for _, product := range products {
		inv, err := ic.store.GetInventory(ctx, product.ID)
		if err != nil {
			ic.logger.Error("Failed to get inventory",
				zap.String("product_id", product.ID),
				zap.Error(err))
			continue
		}

		if err := ic.redis.InitInventory(ctx, product.ID, inv.Available, inv.Reserved); err != nil {
			ic.logger.Error("Failed to init Redis inventory",
				zap.String("product_id", product.ID),
				zap.Error(err))
			continue
		}
		synced++
	}

	ic.logger.Info("Inventory sync completed", zap.Int("count", synced))
	return nil
}
