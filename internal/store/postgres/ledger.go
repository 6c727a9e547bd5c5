package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sale-service/internal/models"
	"sale-service/internal/store"

	"github.com/jmoiron/sqlx"
)

// GetOhadaCode resolves an account of the chart by its code
func (s scope) GetOhadaCode(ctx context.Context, code string) (*models.OhadaCode, error) {
	var oc models.OhadaCode
	err := sqlx.GetContext(ctx, s.q, &oc,
		"SELECT id, code, label, kind FROM ohada_codes WHERE code = $1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrOhadaCodeNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("get ohada code: %w", err)
	}
	return &oc, nil
}

// AppendIncome inserts an income entry
func (s scope) AppendIncome(ctx context.Context, entry *models.IncomeEntry) error {
	query := `
		INSERT INTO income_entries (id, shop_id, entry_date, description, amount, payment_method, ohada_code_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	return sqlx.GetContext(ctx, s.q, &entry.CreatedAt, query,
		entry.ID, entry.ShopID, entry.Date, entry.Description, entry.Amount, entry.PaymentMethod, entry.OhadaCodeID)
}

// ListIncome retrieves the income entries of a shop dated in [from, to)
func (s scope) ListIncome(ctx context.Context, shopID string, from, to time.Time) ([]models.IncomeEntry, error) {
	entries := []models.IncomeEntry{}
	err := sqlx.SelectContext(ctx, s.q, &entries, `
		SELECT id, shop_id, entry_date, description, amount, payment_method, ohada_code_id, created_at
		FROM income_entries
		WHERE shop_id = $1 AND entry_date >= $2 AND entry_date < $3
		ORDER BY entry_date, id`, shopID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	return entries, nil
}
