package service

import (
	"context"
	"errors"
	"time"

	"sale-service/internal/models"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrTotalMismatch       = errors.New("net amount does not match cart")
	ErrLedgerConfiguration = errors.New("ledger configuration error")
)

// EventPublisher emits domain events once a unit of work has committed
type EventPublisher interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	PublishSaleStatusChanged(ctx context.Context, event *models.SaleStatusChangedEvent) error
	PublishStockRestocked(ctx context.Context, event *models.StockRestockedEvent) error
	PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error
}

// IdempotencyStore maps client idempotency keys to the sale they created
type IdempotencyStore interface {
	GetSaleID(ctx context.Context, key string) (string, bool, error)
	SetSaleID(ctx context.Context, key, saleID string, ttl time.Duration) error
}

// StockAlertIndex lists the products of a shop that need reordering
type StockAlertIndex interface {
	ListStockAlerts(ctx context.Context, shopID string) ([]models.StockLevel, error)
}
