package memory

import (
	"context"
	"errors"
	"testing"

	"sale-service/internal/models"
	"sale-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, id string, qty int) {
	t.Helper()
	err := s.Inventory().CreateProduct(context.Background(), &models.Product{
		ID:            id,
		ShopID:        "shop-1",
		SKU:           "SKU-" + id,
		Name:          "Product " + id,
		Quantity:      qty,
		ReorderPoint:  2,
		PurchasePrice: decimal.NewFromInt(10),
		SellingPrice:  decimal.NewFromInt(15),
		Status:        models.StockStatusFor(qty, 2),
	})
	require.NoError(t, err)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewSeeded()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
		_, err := tx.Inventory().ApplyDecrement(ctx, "p1", 3)
		require.NoError(t, err)
		require.NoError(t, tx.Sales().CreateSale(ctx, &models.Sale{ID: "s1", ShopID: "shop-1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.Inventory().GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)

	_, err = s.Sales().GetSale(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrSaleNotFound)
}

func TestWithinTxCommits(t *testing.T) {
	s := NewSeeded()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
		if err := tx.Sales().CreateSale(ctx, &models.Sale{ID: "s1", ShopID: "shop-1"}); err != nil {
			return err
		}
		return tx.Sales().CreateOrderLine(ctx, &models.OrderLine{ID: "l1", SaleID: "s1", ProductID: "p1", Quantity: 1})
	})
	require.NoError(t, err)

	lines, err := s.Sales().GetOrderLines(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestApplyDecrementFloor(t *testing.T) {
	s := New()
	seedProduct(t, s, "p1", 1)
	ctx := context.Background()

	_, err := s.Inventory().ApplyDecrement(ctx, "p1", 2)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = s.Inventory().ApplyDecrement(ctx, "missing", 1)
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	p, err := s.Inventory().ApplyDecrement(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, int64(1), p.StockVersion)

	p, err = s.Inventory().ApplyIncrement(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Quantity)
	assert.Equal(t, int64(2), p.StockVersion)
}

func TestListSalesNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Sales().CreateSale(ctx, &models.Sale{ID: id, ShopID: "shop-1"}))
	}
	require.NoError(t, s.Sales().CreateSale(ctx, &models.Sale{ID: "other", ShopID: "shop-2"}))

	sales, err := s.Sales().ListSales(ctx, "shop-1", 2)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "c", sales[0].ID)
	assert.Equal(t, "b", sales[1].ID)
}

func TestGetOhadaCode(t *testing.T) {
	ctx := context.Background()

	code, err := NewSeeded().Ledger().GetOhadaCode(ctx, models.OhadaCodeSalesRevenue)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerKindIncome, code.Kind)

	_, err = New().Ledger().GetOhadaCode(ctx, models.OhadaCodeSalesRevenue)
	assert.ErrorIs(t, err, store.ErrOhadaCodeNotFound)
}
