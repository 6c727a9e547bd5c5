package store

import (
	"context"
	"errors"
	"time"

	"sale-service/internal/models"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrSaleNotFound      = errors.New("sale not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOhadaCodeNotFound = errors.New("ohada code not found")
	ErrLockTimeout       = errors.New("lock timeout")
)

// InventoryStore holds products and their stock levels
type InventoryStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, shopID string) ([]models.Product, error)
	// ApplyDecrement removes delta units in a single statement and fails with
	// ErrInsufficientStock instead of going below zero.
	ApplyDecrement(ctx context.Context, productID string, delta int) (*models.Product, error)
	ApplyIncrement(ctx context.Context, productID string, delta int) (*models.Product, error)
	UpdateStatus(ctx context.Context, productID, status string) error
}

// LedgerStore holds the chart of accounts and income entries
type LedgerStore interface {
	GetOhadaCode(ctx context.Context, code string) (*models.OhadaCode, error)
	AppendIncome(ctx context.Context, entry *models.IncomeEntry) error
	ListIncome(ctx context.Context, shopID string, from, to time.Time) ([]models.IncomeEntry, error)
}

// SalesStore holds sale headers and their order lines
type SalesStore interface {
	CreateSale(ctx context.Context, sale *models.Sale) error
	CreateOrderLine(ctx context.Context, line *models.OrderLine) error
	GetSale(ctx context.Context, id string) (*models.Sale, error)
	GetOrderLines(ctx context.Context, saleID string) ([]models.OrderLine, error)
	ListSales(ctx context.Context, shopID string, limit int) ([]models.Sale, error)
	UpdateSaleStatus(ctx context.Context, id, status, deliveryStatus string) error
	MarkLinesPaid(ctx context.Context, saleID string) error
}

// Scope groups the stores that share one connection or transaction
type Scope interface {
	Inventory() InventoryStore
	Ledger() LedgerStore
	Sales() SalesStore
}

// Repository is a Scope that can open a unit of work. Everything done through
// the Scope handed to fn commits together or not at all.
type Repository interface {
	Scope
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Scope) error) error
}
