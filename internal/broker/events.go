package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"sale-service/internal/models"
	"sale-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter is the part of Producer the publisher needs
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events. Every event of a shop is
// keyed by the shop so stock movements are consumed in commit order.
type EventPublisher struct {
	producer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer EventWriter) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func shopKey(shopID string) string {
	return fmt.Sprintf("shop-%s", shopID)
}

// PublishSaleCompleted publishes SaleCompleted event
func (ep *EventPublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

// PublishSaleStatusChanged publishes SaleStatusChanged event
func (ep *EventPublisher) PublishSaleStatusChanged(ctx context.Context, event *models.SaleStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

// PublishStockRestocked publishes StockRestocked event
func (ep *EventPublisher) PublishStockRestocked(ctx context.Context, event *models.StockRestockedEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

// PublishProductCreated publishes ProductCreated event
func (ep *EventPublisher) PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, shopKey(event.ShopID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSaleCompleted  func(context.Context, *models.SaleCompletedEvent) error
	onStockRestocked func(context.Context, *models.StockRestockedEvent) error
	onProductCreated func(context.Context, *models.ProductCreatedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSaleCompleted registers a handler for SaleCompleted events
func (eh *EventHandler) OnSaleCompleted(handler func(context.Context, *models.SaleCompletedEvent) error) {
	eh.onSaleCompleted = handler
}

// OnStockRestocked registers a handler for StockRestocked events
func (eh *EventHandler) OnStockRestocked(handler func(context.Context, *models.StockRestockedEvent) error) {
	eh.onStockRestocked = handler
}

// OnProductCreated registers a handler for ProductCreated events
func (eh *EventHandler) OnProductCreated(handler func(context.Context, *models.ProductCreatedEvent) error) {
	eh.onProductCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSaleCompleted:
		if eh.onSaleCompleted != nil {
			var event models.SaleCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleCompleted event: %w", err)
			}
			return eh.onSaleCompleted(ctx, &event)
		}

	case models.EventTypeStockRestocked:
		if eh.onStockRestocked != nil {
			var event models.StockRestockedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockRestocked event: %w", err)
			}
			return eh.onStockRestocked(ctx, &event)
		}

	case models.EventTypeProductCreated:
		if eh.onProductCreated != nil {
			var event models.ProductCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductCreated event: %w", err)
			}
			return eh.onProductCreated(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
