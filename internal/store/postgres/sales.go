package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sale-service/internal/models"
	"sale-service/internal/store"

	"github.com/jmoiron/sqlx"
)

const saleColumns = `id, shop_id, status, customer_id, delivery_status, net_amount, amount_paid,
	change_given, delivery_fee, discount, profit, payment_method, created_by, created_at, updated_at`

// CreateSale inserts a sale header
func (s scope) CreateSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (id, shop_id, status, customer_id, delivery_status, net_amount, amount_paid,
			change_given, delivery_fee, discount, profit, payment_method, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	return sqlx.GetContext(ctx, s.q, sale, query,
		sale.ID, sale.ShopID, sale.Status, sale.CustomerID, sale.DeliveryStatus, sale.NetAmount,
		sale.AmountPaid, sale.ChangeGiven, sale.DeliveryFee, sale.Discount, sale.Profit,
		sale.PaymentMethod, sale.CreatedBy)
}

// CreateOrderLine inserts one line of a sale
func (s scope) CreateOrderLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (id, sale_id, product_id, quantity, unit_price, unit_cost, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	return sqlx.GetContext(ctx, s.q, &line.CreatedAt, query,
		line.ID, line.SaleID, line.ProductID, line.Quantity, line.UnitPrice, line.UnitCost, line.PaymentStatus)
}

// GetSale retrieves a sale by ID
func (s scope) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	var sale models.Sale
	err := sqlx.GetContext(ctx, s.q, &sale, "SELECT "+saleColumns+" FROM sales WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrSaleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return &sale, nil
}

// GetOrderLines retrieves all lines for a sale, in insertion order
func (s scope) GetOrderLines(ctx context.Context, saleID string) ([]models.OrderLine, error) {
	lines := []models.OrderLine{}
	err := sqlx.SelectContext(ctx, s.q, &lines, `
		SELECT id, sale_id, product_id, quantity, unit_price, unit_cost, payment_status, created_at
		FROM order_lines
		WHERE sale_id = $1
		ORDER BY position`, saleID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	return lines, nil
}

// ListSales retrieves the latest sales of a shop
func (s scope) ListSales(ctx context.Context, shopID string, limit int) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := sqlx.SelectContext(ctx, s.q, &sales,
		"SELECT "+saleColumns+" FROM sales WHERE shop_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		shopID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// UpdateSaleStatus updates sale and delivery status
func (s scope) UpdateSaleStatus(ctx context.Context, id, status, deliveryStatus string) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE sales SET status = $1, delivery_status = $2, updated_at = NOW() WHERE id = $3",
		status, deliveryStatus, id)
	if err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrSaleNotFound, id)
	}
	return nil
}

// MarkLinesPaid flips every line of a sale to paid
func (s scope) MarkLinesPaid(ctx context.Context, saleID string) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE order_lines SET payment_status = $1 WHERE sale_id = $2",
		models.PaymentStatusPaid, saleID)
	if err != nil {
		return fmt.Errorf("mark lines paid: %w", err)
	}
	return nil
}
