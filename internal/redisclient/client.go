package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"sale-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/apply_stock_level.lua
var applyStockLevelScript string

type Client struct {
	rdb         *redis.Client
	applyScript *redis.Script
}

// NewClient creates a new Redis client and checks the connection
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

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing connection
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:         rdb,
		applyScript: redis.NewScript(applyStockLevelScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:sale:%s", key)
}

func processedKey(eventID string) string {
	return fmt.Sprintf("processed:event:%s", eventID)
}

func stockLevelsKey(shopID string) string {
	return fmt.Sprintf("stock-levels:%s", shopID)
}

// GetSaleID returns the sale created under an idempotency key
func (c *Client) GetSaleID(ctx context.Context, key string) (string, bool, error) {
	saleID, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get idempotency key: %w", err)
	}
	return saleID, true, nil
}

// SetSaleID stores the sale created under an idempotency key with TTL.
// An existing mapping is kept.
func (c *Client) SetSaleID(ctx context.Context, key, saleID string, ttl time.Duration) error {
	if err := c.rdb.SetNX(ctx, idempotencyKey(key), saleID, ttl).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

// MarkEventProcessed records an event id and reports whether it was new
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	fresh, err := c.rdb.SetNX(ctx, processedKey(eventID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	return fresh, nil
}

// ForgetEvent drops a processed marker so the event can be handled again
func (c *Client) ForgetEvent(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, processedKey(eventID)).Err()
}

// ApplyStockLevel stores the level of a product unless a level with the same
// or a higher version is already stored. It reports whether the level was
// written.
func (c *Client) ApplyStockLevel(ctx context.Context, shopID string, level models.StockLevel) (bool, error) {
	level.QuantitySold = 0
	payload, err := json.Marshal(level)
	if err != nil {
		return false, fmt.Errorf("marshal stock level: %w", err)
	}

	applied, err := c.applyScript.Run(ctx, c.rdb,
		[]string{stockLevelsKey(shopID)},
		level.ProductID, level.Version, string(payload)).Int()
	if err != nil {
		return false, fmt.Errorf("apply stock level: %w", err)
	}
	return applied == 1, nil
}

// ListStockAlerts returns the products of a shop whose latest level needs
// reordering, ordered by product id
func (c *Client) ListStockAlerts(ctx context.Context, shopID string) ([]models.StockLevel, error) {
	result, err := c.rdb.HGetAll(ctx, stockLevelsKey(shopID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}

	levels := make([]models.StockLevel, 0, len(result))
	for productID, raw := range result {
		var level models.StockLevel
		if err := json.Unmarshal([]byte(raw), &level); err != nil {
			return nil, fmt.Errorf("decode stock level for %s: %w", productID, err)
		}
		if models.NeedsReorder(level.Status) {
			levels = append(levels, level)
		}
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].ProductID < levels[j].ProductID })
	return levels, nil
}
