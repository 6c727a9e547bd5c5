package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"sale-service/internal/models"
	"sale-service/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore connects to TEST_DATABASE_URL and applies the migrations.
// The test is skipped when no database is configured.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires TEST_DATABASE_URL")
	}

	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = Migrate(context.Background(), db, "up")
	require.NoError(t, err)

	return New(db, DefaultTxOptions())
}

func createTestProduct(t *testing.T, s *Store, shopID string, qty, reorderPoint int) *models.Product {
	t.Helper()

	p := &models.Product{
		ID:            uuid.New().String(),
		ShopID:        shopID,
		SKU:           "SKU-" + uuid.New().String()[:8],
		Name:          "Integration product",
		Quantity:      qty,
		ReorderPoint:  reorderPoint,
		PurchasePrice: decimal.NewFromInt(600),
		SellingPrice:  decimal.NewFromInt(1000),
		Status:        models.StockStatusFor(qty, reorderPoint),
	}
	require.NoError(t, s.Inventory().CreateProduct(context.Background(), p))
	return p
}

func TestApplyDecrementIntegration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	shopID := "shop-" + uuid.New().String()

	p := createTestProduct(t, s, shopID, 10, 5)

	updated, err := s.Inventory().ApplyDecrement(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Quantity)
	assert.True(t, updated.SellingPrice.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(1), updated.StockVersion)

	restocked, err := s.Inventory().ApplyIncrement(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, restocked.Quantity)
	assert.Equal(t, int64(2), restocked.StockVersion)

	_, err = s.Inventory().ApplyDecrement(ctx, p.ID, 11)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = s.Inventory().ApplyDecrement(ctx, uuid.New().String(), 1)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestWithinTxRollbackIntegration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	shopID := "shop-" + uuid.New().String()

	p := createTestProduct(t, s, shopID, 3, 1)
	saleID := uuid.New().String()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
		err := tx.Sales().CreateSale(ctx, &models.Sale{
			ID:             saleID,
			ShopID:         shopID,
			Status:         models.SaleStatusCompleted,
			DeliveryStatus: models.DeliveryStatusPending,
			PaymentMethod:  models.PaymentMethodCash,
			CreatedBy:      "tester",
		})
		require.NoError(t, err)

		if _, err := tx.Inventory().ApplyDecrement(ctx, p.ID, 1); err != nil {
			return err
		}
		_, err = tx.Inventory().ApplyDecrement(ctx, p.ID, 5)
		return err
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = s.Sales().GetSale(ctx, saleID)
	assert.ErrorIs(t, err, store.ErrSaleNotFound)

	after, err := s.Inventory().GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Quantity)
}

func TestConcurrentDecrementIntegration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	shopID := "shop-" + uuid.New().String()

	p := createTestProduct(t, s, shopID, 1, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
				_, err := tx.Inventory().ApplyDecrement(ctx, p.ID, 1)
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			assert.ErrorIs(t, err, store.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, successCount)

	after, err := s.Inventory().GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Quantity)
}

func TestLedgerIntegration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	code, err := s.Ledger().GetOhadaCode(ctx, models.OhadaCodeSalesRevenue)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerKindIncome, code.Kind)

	_, err = s.Ledger().GetOhadaCode(ctx, "999")
	assert.ErrorIs(t, err, store.ErrOhadaCodeNotFound)
}
