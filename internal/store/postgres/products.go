package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sale-service/internal/models"
	"sale-service/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const productColumns = `id, shop_id, sku, name, quantity, reorder_point, purchase_price, selling_price, status, stock_version, created_at, updated_at`

// CreateProduct inserts a product
func (s scope) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, shop_id, sku, name, quantity, reorder_point, purchase_price, selling_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING stock_version, created_at, updated_at`

	return sqlx.GetContext(ctx, s.q, product, query,
		product.ID, product.ShopID, product.SKU, product.Name, product.Quantity,
		product.ReorderPoint, product.PurchasePrice, product.SellingPrice, product.Status)
}

// GetProduct retrieves a product by ID
func (s scope) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &product, nil
}

// ListProducts retrieves the catalog of a shop
func (s scope) ListProducts(ctx context.Context, shopID string) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, s.q, &products,
		"SELECT "+productColumns+" FROM products WHERE shop_id = $1 ORDER BY name", shopID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ApplyDecrement removes stock in one statement guarded by quantity >= delta.
// Every stock mutation bumps stock_version.
func (s scope) ApplyDecrement(ctx context.Context, productID string, delta int) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, `
		UPDATE products
		SET quantity = quantity - $1, stock_version = stock_version + 1, updated_at = NOW()
		WHERE id = $2 AND quantity >= $1
		RETURNING `+productColumns,
		delta, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missingOrShort(ctx, productID)
	}
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "55P03" {
			return nil, fmt.Errorf("%w: %w", store.ErrLockTimeout, err)
		}
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	return &product, nil
}

// ApplyIncrement adds received stock
func (s scope) ApplyIncrement(ctx context.Context, productID string, delta int) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, `
		UPDATE products
		SET quantity = quantity + $1, stock_version = stock_version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+productColumns,
		delta, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("increment stock: %w", err)
	}
	return &product, nil
}

// UpdateStatus persists a recomputed stock status
func (s scope) UpdateStatus(ctx context.Context, productID, status string) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE products SET status = $1, updated_at = NOW() WHERE id = $2",
		status, productID)
	if err != nil {
		return fmt.Errorf("update product status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
	}
	return nil
}

func (s scope) missingOrShort(ctx context.Context, productID string) error {
	var exists bool
	err := sqlx.GetContext(ctx, s.q, &exists,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID)
	if err != nil {
		return fmt.Errorf("check product exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
	}
	return fmt.Errorf("%w: product %s", store.ErrInsufficientStock, productID)
}
