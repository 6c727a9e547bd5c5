package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sale-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	key   string
	event interface{}
}

type fakeWriter struct {
	events []recordedEvent
}

func (f *fakeWriter) PublishEvent(_ context.Context, key string, event interface{}) error {
	f.events = append(f.events, recordedEvent{key: key, event: event})
	return nil
}

func TestEventPublisherKeysByShop(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(w)
	ctx := context.Background()

	require.NoError(t, ep.PublishSaleCompleted(ctx, &models.SaleCompletedEvent{SaleID: "s1", ShopID: "shop-1"}))
	require.NoError(t, ep.PublishStockRestocked(ctx, &models.StockRestockedEvent{ShopID: "shop-1"}))
	require.NoError(t, ep.PublishSaleStatusChanged(ctx, &models.SaleStatusChangedEvent{SaleID: "s1", ShopID: "shop-2"}))
	require.NoError(t, ep.PublishProductCreated(ctx, &models.ProductCreatedEvent{ShopID: "shop-1"}))

	require.Len(t, w.events, 4)
	assert.Equal(t, "shop-shop-1", w.events[0].key)
	assert.Equal(t, "shop-shop-1", w.events[1].key)
	assert.Equal(t, "shop-shop-2", w.events[2].key)
	assert.Equal(t, "shop-shop-1", w.events[3].key)
}

func TestHandleMessageRoutesByType(t *testing.T) {
	sale := models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeSaleCompleted, Timestamp: time.Now()},
		SaleID:    "s1",
		ShopID:    "shop-1",
		NetAmount: decimal.NewFromInt(2000),
		Items:     []models.StockLevel{{ProductID: "P1", QuantitySold: 2, Remaining: 8, Status: models.StockStatusMedium, Version: 3}},
	}
	payload, err := json.Marshal(sale)
	require.NoError(t, err)

	var got *models.SaleCompletedEvent
	eh := NewEventHandler()
	eh.OnSaleCompleted(func(_ context.Context, e *models.SaleCompletedEvent) error {
		got = e
		return nil
	})

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SaleID)
	assert.True(t, got.NetAmount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, sale.Items, got.Items)

	status, err := json.Marshal(models.SaleStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeSaleStatusChanged},
	})
	require.NoError(t, err)
	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: status}))

	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")}))
}

func TestHandleMessageRoutesProductCreated(t *testing.T) {
	payload, err := json.Marshal(models.ProductCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: "e3", EventType: models.EventTypeProductCreated},
		ShopID:    "shop-1",
		SKU:       "OIL-1L",
		Item:      models.StockLevel{ProductID: "P2", Remaining: 0, Status: models.StockStatusOutOfStock},
	})
	require.NoError(t, err)

	var got *models.ProductCreatedEvent
	eh := NewEventHandler()
	eh.OnProductCreated(func(_ context.Context, e *models.ProductCreatedEvent) error {
		got = e
		return nil
	})

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, got)
	assert.Equal(t, "P2", got.Item.ProductID)
	assert.Equal(t, models.StockStatusOutOfStock, got.Item.Status)
}
