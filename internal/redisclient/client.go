package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is a thin wrapper providing the read-model cache for stock
// quantities and wallet balances, plus request idempotency keys. Postgres is
// always authoritative; every cached value is dropped when the row's
// transaction commits and repopulated on the next read.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb, ttl: 10 * time.Minute}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64, variantID *int64, locationID int64) string {
	variant := int64(0)
	if variantID != nil {
		variant = *variantID
	}
	return fmt.Sprintf("stock:%d:%d:%d", productID, variant, locationID)
}

func walletKey(holderID int64, holderKind string, locationID int64) string {
	return fmt.Sprintf("wallet:%s:%d:%d", holderKind, holderID, locationID)
}

// GetStockQuantity reads a cached quantity; the bool reports a cache hit.
func (c *Client) GetStockQuantity(ctx context.Context, productID int64, variantID *int64, locationID int64) (int, bool, error) {
	val, err := c.rdb.Get(ctx, stockKey(productID, variantID, locationID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	qty, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock cache entry: %w", err)
	}
	return qty, true, nil
}

// SetStockQuantity caches a quantity read from Postgres.
func (c *Client) SetStockQuantity(ctx context.Context, productID int64, variantID *int64, locationID int64, quantity int) error {
	return c.rdb.Set(ctx, stockKey(productID, variantID, locationID), quantity, c.ttl).Err()
}

// DeleteStockQuantity invalidates a cached quantity.
func (c *Client) DeleteStockQuantity(ctx context.Context, productID int64, variantID *int64, locationID int64) error {
	return c.rdb.Del(ctx, stockKey(productID, variantID, locationID)).Err()
}

// GetWalletBalance reads a cached balance string; the bool reports a cache hit.
func (c *Client) GetWalletBalance(ctx context.Context, holderID int64, holderKind string, locationID int64) (string, bool, error) {
	val, err := c.rdb.Get(ctx, walletKey(holderID, holderKind, locationID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetWalletBalance caches a balance read from Postgres.
func (c *Client) SetWalletBalance(ctx context.Context, holderID int64, holderKind string, locationID int64, balance string) error {
	return c.rdb.Set(ctx, walletKey(holderID, holderKind, locationID), balance, c.ttl).Err()
}

// DeleteWalletBalance invalidates a cached balance.
func (c *Client) DeleteWalletBalance(ctx context.Context, holderID int64, holderKind string, locationID int64) error {
	return c.rdb.Del(ctx, walletKey(holderID, holderKind, locationID)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// GetIdempotencyKey returns the stored value for a key, "" when absent.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}
