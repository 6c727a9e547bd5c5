package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"sale-service/config"
	"sale-service/internal/models"
	"sale-service/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu            sync.Mutex
	completed     []*models.SaleCompletedEvent
	statusChanged []*models.SaleStatusChangedEvent
	restocked     []*models.StockRestockedEvent
	created       []*models.ProductCreatedEvent
	err           error
}

func (f *fakePublisher) PublishSaleCompleted(_ context.Context, event *models.SaleCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, event)
	return f.err
}

func (f *fakePublisher) PublishSaleStatusChanged(_ context.Context, event *models.SaleStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChanged = append(f.statusChanged, event)
	return f.err
}

func (f *fakePublisher) PublishStockRestocked(_ context.Context, event *models.StockRestockedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restocked = append(f.restocked, event)
	return f.err
}

func (f *fakePublisher) PublishProductCreated(_ context.Context, event *models.ProductCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return f.err
}

// stockLevels returns every published stock level
func (f *fakePublisher) stockLevels() []models.StockLevel {
	f.mu.Lock()
	defer f.mu.Unlock()

	var levels []models.StockLevel
	for _, e := range f.created {
		levels = append(levels, e.Item)
	}
	for _, e := range f.completed {
		levels = append(levels, e.Items...)
	}
	for _, e := range f.restocked {
		levels = append(levels, e.Item)
	}
	return levels
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) GetSaleID(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.keys[key]
	return id, ok, nil
}

func (f *fakeIdempotency) SetSaleID(_ context.Context, key, saleID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = saleID
	return nil
}

type fakeAlerts struct {
	levels []models.StockLevel
	err    error
}

func (f *fakeAlerts) ListStockAlerts(context.Context, string) ([]models.StockLevel, error) {
	return f.levels, f.err
}

// alertsFrom builds the index a consumer of levels would hold: the highest
// version of each product, kept when it needs reordering
func alertsFrom(levels []models.StockLevel) *fakeAlerts {
	latest := map[string]models.StockLevel{}
	for _, l := range levels {
		if cur, ok := latest[l.ProductID]; !ok || l.Version > cur.Version {
			latest[l.ProductID] = l
		}
	}

	alerts := &fakeAlerts{levels: []models.StockLevel{}}
	for _, l := range latest {
		if models.NeedsReorder(l.Status) {
			alerts.levels = append(alerts.levels, models.StockLevel{
				ProductID: l.ProductID, Remaining: l.Remaining, Status: l.Status, Version: l.Version,
			})
		}
	}
	sort.Slice(alerts.levels, func(i, j int) bool { return alerts.levels[i].ProductID < alerts.levels[j].ProductID })
	return alerts
}

var errUnavailable = errors.New("unavailable")

const testShop = "shop-1"

var testActor = models.Actor{ID: "cashier-1", Role: "cashier"}

func testBusinessConfig() config.BusinessConfig {
	return config.BusinessConfig{
		SalesRevenueCode:    models.OhadaCodeSalesRevenue,
		TxMaxRetries:        2,
		IdempotencyTTL:      time.Hour,
		RejectTotalMismatch: true,
	}
}

// addProduct stores a product priced like the reference cart: sells 1000, costs 600
func addProduct(t *testing.T, repo *memory.Store, id string, qty, reorderPoint int) {
	t.Helper()
	err := repo.Inventory().CreateProduct(context.Background(), &models.Product{
		ID:            id,
		ShopID:        testShop,
		SKU:           "SKU-" + id,
		Name:          "Product " + id,
		Quantity:      qty,
		ReorderPoint:  reorderPoint,
		PurchasePrice: decimal.NewFromInt(600),
		SellingPrice:  decimal.NewFromInt(1000),
		Status:        models.StockStatusFor(qty, reorderPoint),
	})
	require.NoError(t, err)
}

func saleRequest(items ...SaleItemRequest) *CreateSaleRequest {
	return &CreateSaleRequest{
		OrderItems:     items,
		PaymentMethod:  models.PaymentMethodCash,
		DeliveryStatus: models.DeliveryStatusPending,
		ShopID:         testShop,
		Actor:          testActor,
	}
}
