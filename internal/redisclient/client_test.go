package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"sale-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires TEST_REDIS_ADDR")
	}

	c := NewFromRedis(redis.NewClient(&redis.Options{Addr: addr}))
	require.NoError(t, c.Ping(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestIdempotencyKeyIntegration(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()
	key := uuid.New().String()

	_, found, err := c.GetSaleID(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetSaleID(ctx, key, "sale-1", time.Minute))
	require.NoError(t, c.SetSaleID(ctx, key, "sale-2", time.Minute))

	saleID, found, err := c.GetSaleID(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sale-1", saleID)
}

func TestMarkEventProcessedIntegration(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()
	eventID := uuid.New().String()

	fresh, err := c.MarkEventProcessed(ctx, eventID, time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = c.MarkEventProcessed(ctx, eventID, time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestStockAlertsIntegration(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()
	shopID := "shop-" + uuid.New().String()
	t.Cleanup(func() { c.GetClient().Del(context.Background(), stockLevelsKey(shopID)) })

	apply := func(level models.StockLevel) bool {
		applied, err := c.ApplyStockLevel(ctx, shopID, level)
		require.NoError(t, err)
		return applied
	}

	assert.True(t, apply(models.StockLevel{ProductID: "b", Remaining: 2, Status: models.StockStatusLow, Version: 1}))
	assert.True(t, apply(models.StockLevel{ProductID: "a", Remaining: 0, Status: models.StockStatusOutOfStock, Version: 4}))
	assert.True(t, apply(models.StockLevel{ProductID: "c", Remaining: 40, Status: models.StockStatusHigh}))

	levels, err := c.ListStockAlerts(ctx, shopID)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "a", levels[0].ProductID)
	assert.Equal(t, "b", levels[1].ProductID)

	// a restock of "a" followed by the late sale that preceded it
	assert.True(t, apply(models.StockLevel{ProductID: "a", Remaining: 30, Status: models.StockStatusHigh, Version: 6}))
	assert.False(t, apply(models.StockLevel{ProductID: "a", Remaining: 1, Status: models.StockStatusLow, Version: 5}))
	assert.False(t, apply(models.StockLevel{ProductID: "a", Remaining: 30, Status: models.StockStatusHigh, Version: 6}))

	levels, err = c.ListStockAlerts(ctx, shopID)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, "b", levels[0].ProductID)
}
