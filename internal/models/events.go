package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCompleted     = "SALE_COMPLETED"
	EventTypeSaleStatusChanged = "SALE_STATUS_CHANGED"
	EventTypeStockRestocked    = "STOCK_RESTOCKED"
	EventTypeProductCreated    = "PRODUCT_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent published after a sale transaction commits
type SaleCompletedEvent struct {
	BaseEvent
	SaleID        string          `json:"sale_id"`
	ShopID        string          `json:"shop_id"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	Profit        decimal.Decimal `json:"profit"`
	PaymentMethod string          `json:"payment_method"`
	Items         []StockLevel    `json:"items"`
}

// SaleStatusChangedEvent published when delivery or payment status moves
type SaleStatusChangedEvent struct {
	BaseEvent
	SaleID         string `json:"sale_id"`
	ShopID         string `json:"shop_id"`
	Status         string `json:"status"`
	DeliveryStatus string `json:"delivery_status"`
}

// StockRestockedEvent published when stock is received
type StockRestockedEvent struct {
	BaseEvent
	ShopID string     `json:"shop_id"`
	Item   StockLevel `json:"item"`
}

// ProductCreatedEvent published when a product enters the catalog with its
// opening stock
type ProductCreatedEvent struct {
	BaseEvent
	ShopID string     `json:"shop_id"`
	SKU    string     `json:"sku"`
	Item   StockLevel `json:"item"`
}

// StockLevel carries the post-mutation stock of one product. Version is the
// product's stock version after the mutation; a level never replaces one
// with a higher version.
type StockLevel struct {
	ProductID    string `json:"product_id"`
	QuantitySold int    `json:"quantity_sold,omitempty"`
	Remaining    int    `json:"remaining"`
	Status       string `json:"status"`
	Version      int64  `json:"version"`
}

// LevelOf returns the current stock level of a product
func LevelOf(p *Product) StockLevel {
	return StockLevel{
		ProductID: p.ID,
		Remaining: p.Quantity,
		Status:    StockStatusFor(p.Quantity, p.ReorderPoint),
		Version:   p.StockVersion,
	}
}
