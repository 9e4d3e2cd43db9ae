package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/commit_stock.lua
var commitStockScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

// ErrInventoryNotCached means the product has no inventory hash yet
var ErrInventoryNotCached = errors.New("inventory not cached")

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
	unlockScript  *redis.Script
}

// NewClient connects to Redis and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		commitScript:  redis.NewScript(commitStockScript),
		unlockScript:  redis.NewScript(releaseLockScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection, used by the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func inventoryKey(productID string) string {
	return fmt.Sprintf("inventory:%s", productID)
}

// ReserveStock moves quantity from available to reserved in one script call.
// It returns false when stock is short and ErrInventoryNotCached when the
// product was never synced.
func (c *Client) ReserveStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{inventoryKey(productID)}, quantity).Int64()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	switch result {
	case 1:
		return true, nil
	case -1:
		return false, fmt.Errorf("product %s: %w", productID, ErrInventoryNotCached)
	}
	return false, nil
}

// ReleaseStock returns reserved units to available (compensation)
func (c *Client) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{inventoryKey(productID)}, quantity).Err(); err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// CommitStock drops reserved units once the sale is stored
func (c *Client) CommitStock(ctx context.Context, productID string, quantity int) error {
	if err := c.commitScript.Run(ctx, c.rdb, []string{inventoryKey(productID)}, quantity).Err(); err != nil {
		return fmt.Errorf("commit stock script failed: %w", err)
	}
	return nil
}

// Restock adds returned units back to available
func (c *Client) Restock(ctx context.Context, productID string, quantity int) error {
	return c.rdb.HIncrBy(ctx, inventoryKey(productID), "available", int64(quantity)).Err()
}

// InitInventory initializes inventory counts in Redis
func (c *Client) InitInventory(ctx context.Context, productID string, available, reserved int) error {
	key := inventoryKey(productID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "available", available)
	pipe.HSet(ctx, key, "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// GetInventory retrieves current inventory counts
func (c *Client) GetInventory(ctx context.Context, productID string) (available, reserved int, err error) {
	result, err := c.rdb.HGetAll(ctx, inventoryKey(productID)).Result()
	if err != nil {
		return 0, 0, err
	}
	if len(result) == 0 {
		return 0, 0, fmt.Errorf("product %s: %w", productID, ErrInventoryNotCached)
	}

	if available, err = strconv.Atoi(result["available"]); err != nil {
		return 0, 0, fmt.Errorf("bad available count for product %s: %w", productID, err)
	}
	if reserved, err = strconv.Atoi(result["reserved"]); err != nil {
		return 0, 0, fmt.Errorf("bad reserved count for product %s: %w", productID, err)
	}
	return available, reserved, nil
}

// ClaimIdempotencyKey returns true for the first caller of key within ttl
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "pending", ttl).Result()
}

// ForgetIdempotencyKey frees a key whose request failed, so it can be retried
func (c *Client) ForgetIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// Lock is a held distributed lock
type Lock struct {
	key   string
	token string
}

// AcquireLock takes lockKey for ttl. It returns nil when someone else holds it.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{key: fmt.Sprintf("lock:%s", lockKey), token: uuid.NewString()}

	ok, err := c.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lock, nil
}

// ReleaseLock drops the lock if it is still ours
func (c *Client) ReleaseLock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	return c.unlockScript.Run(ctx, c.rdb, []string{lock.key}, lock.token).Err()
}
