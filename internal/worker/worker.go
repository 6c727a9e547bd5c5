package worker

import (
	"context"
	"fmt"
	"time"

	"sale-service/internal/broker"
	"sale-service/internal/models"
	"sale-service/internal/util"

	"go.uber.org/zap"
)

// processedTTL bounds how long event ids are remembered for deduplication
const processedTTL = 24 * time.Hour

// AlertIndex holds the latest stock level of every product per shop.
// ApplyStockLevel ignores levels older than the stored one.
type AlertIndex interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
	ApplyStockLevel(ctx context.Context, shopID string, level models.StockLevel) (bool, error)
}

// StockAlertWorker keeps the alert index in line with the stock levels
// carried by product, sale and restock events
type StockAlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	index        AlertIndex
	logger       *zap.Logger
}

// NewStockAlertWorker creates a new stock alert worker
func NewStockAlertWorker(consumer *broker.Consumer, index AlertIndex) *StockAlertWorker {
	w := &StockAlertWorker{
		consumer: consumer,
		index:    index,
		logger:   util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnSaleCompleted(w.HandleSaleCompleted)
	w.eventHandler.OnStockRestocked(w.HandleStockRestocked)
	w.eventHandler.OnProductCreated(w.HandleProductCreated)

	return w
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() error {
	w.logger.Info("Stopping stock alert worker")
	return w.consumer.Close()
}

// HandleSaleCompleted applies the post-sale stock level of every sold product
func (w *StockAlertWorker) HandleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		for _, level := range event.Items {
			if err := w.apply(ctx, event.ShopID, level); err != nil {
				return err
			}
		}
		return nil
	})
}

// HandleStockRestocked applies the stock level after a receipt
func (w *StockAlertWorker) HandleStockRestocked(ctx context.Context, event *models.StockRestockedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		return w.apply(ctx, event.ShopID, event.Item)
	})
}

// HandleProductCreated applies the opening stock of a new product
func (w *StockAlertWorker) HandleProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		return w.apply(ctx, event.ShopID, event.Item)
	})
}

func (w *StockAlertWorker) once(ctx context.Context, event models.BaseEvent, fn func() error) error {
	ctx, span := util.StartSpan(ctx, "StockAlertWorker."+event.EventType)
	defer span.End()

	fresh, err := w.index.MarkEventProcessed(ctx, event.EventID, processedTTL)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if !fresh {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := fn(); err != nil {
		util.RecordError(span, err)
		if fErr := w.index.ForgetEvent(ctx, event.EventID); fErr != nil {
			w.logger.Error("Failed to release event marker",
				zap.String("event_id", event.EventID),
				zap.Error(fErr))
		}
		return err
	}

	util.StockAlertEventsTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

func (w *StockAlertWorker) apply(ctx context.Context, shopID string, level models.StockLevel) error {
	applied, err := w.index.ApplyStockLevel(ctx, shopID, level)
	if err != nil {
		return fmt.Errorf("apply stock level for %s: %w", level.ProductID, err)
	}
	if !applied {
		w.logger.Debug("Skipping stale stock level",
			zap.String("product_id", level.ProductID),
			zap.Int64("version", level.Version))
		return nil
	}

	if models.NeedsReorder(level.Status) {
		w.logger.Info("Stock alert raised",
			zap.String("shop_id", shopID),
			zap.String("product_id", level.ProductID),
			zap.Int("remaining", level.Remaining),
			zap.String("status", level.Status))
	}
	return nil
}
