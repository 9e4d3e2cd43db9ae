package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sales-service/internal/models"
	"sales-service/internal/redisclient"
	"sales-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInventoryStore struct {
	levels   map[string]*models.Inventory
	products []models.Product
	reserves int
}

func (f *fakeInventoryStore) GetProducts(context.Context) ([]models.Product, error) {
	return f.products, nil
}

func (f *fakeInventoryStore) GetInventory(_ context.Context, productID string) (*models.Inventory, error) {
	inv, ok := f.levels[productID]
	if !ok {
		return nil, fmt.Errorf("inventory %s: %w", productID, store.ErrNotFound)
	}
	return inv, nil
}

func (f *fakeInventoryStore) ReserveStockTx(_ context.Context, productID string, quantity int) error {
	f.reserves++
	inv := f.levels[productID]
	if inv == nil || inv.Available < quantity {
		return fmt.Errorf("product %s: %w", productID, store.ErrInsufficientStock)
	}
	inv.Available -= quantity
	inv.Reserved += quantity
	return nil
}

func (f *fakeInventoryStore) ReleaseStock(_ context.Context, productID string, quantity int) error {
	inv := f.levels[productID]
	inv.Available += quantity
	inv.Reserved -= quantity
	return nil
}

func (f *fakeInventoryStore) CommitStock(_ context.Context, productID string, quantity int) error {
	f.levels[productID].Reserved -= quantity
	return nil
}

func (f *fakeInventoryStore) Restock(_ context.Context, productID string, quantity int) error {
	f.levels[productID].Available += quantity
	return nil
}

// fakeCache wraps fakeStock with the seeding call of the redis mirror
type fakeCache struct {
	*fakeStock
	seeded map[string]int
}

func (f *fakeCache) InitInventory(_ context.Context, productID string, available, _ int) error {
	f.seeded[productID] = available
	f.available[productID] = available
	return nil
}

func newInventoryFixture() (*fakeInventoryStore, *fakeCache, *InventoryClient) {
	db := &fakeInventoryStore{
		levels: map[string]*models.Inventory{
			"p1": {ProductID: "p1", Available: 5},
			"p2": {ProductID: "p2", Available: 1},
		},
		products: []models.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}},
	}
	cache := &fakeCache{fakeStock: newFakeStock(map[string]int{}), seeded: map[string]int{}}
	client := NewInventoryClient(db, cache)
	client.sync = func(f func()) { f() }
	return db, cache, client
}

func TestInventoryReserveMirrorsToDB(t *testing.T) {
	db, cache, client := newInventoryFixture()
	cache.available["p1"] = 5

	ok, err := client.ReserveStock(context.Background(), "p1", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, cache.available["p1"])
	assert.Equal(t, 3, db.levels["p1"].Available)
	assert.Equal(t, 2, db.levels["p1"].Reserved)

	ok, err = client.ReserveStock(context.Background(), "p1", 10)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, db.reserves, "refused reservations never reach the DB")
}

func TestInventoryFallsBackToDB(t *testing.T) {
	db, cache, client := newInventoryFixture()
	cache.err = fmt.Errorf("product p2: %w", redisclient.ErrInventoryNotCached)

	ok, err := client.ReserveStock(context.Background(), "p2", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, db.levels["p2"].Available)

	ok, err = client.ReserveStock(context.Background(), "p2", 1)
	require.NoError(t, err)
	assert.False(t, ok, "insufficient stock is a refusal, not an error")

	_, err = client.ReserveStock(context.Background(), "p9", 1)
	require.NoError(t, err)

	cache.err = errors.New("connection refused")
	db.levels["p2"] = nil
	ok, err = client.ReserveStock(context.Background(), "p2", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInventoryReleaseCommitRestock(t *testing.T) {
	db, cache, client := newInventoryFixture()
	ctx := context.Background()
	cache.available["p1"] = 5

	_, err := client.ReserveStock(ctx, "p1", 4)
	require.NoError(t, err)
	require.NoError(t, client.ReleaseStock(ctx, "p1", 1))
	require.NoError(t, client.CommitStock(ctx, "p1", 3))
	require.NoError(t, client.Restock(ctx, "p1", 2))

	assert.Equal(t, 4, db.levels["p1"].Available)
	assert.Equal(t, 0, db.levels["p1"].Reserved)
	assert.Equal(t, 4, cache.available["p1"])
}

func TestSyncInventoryToRedis(t *testing.T) {
	_, cache, client := newInventoryFixture()

	require.NoError(t, client.SyncInventoryToRedis(context.Background()))
	assert.Equal(t, map[string]int{"p1": 5, "p2": 1}, cache.seeded, "products without inventory are skipped")
}
