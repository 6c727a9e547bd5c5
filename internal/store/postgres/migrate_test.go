package postgres

import (
	"context"
	"testing"
	"time"

	"sale-service/internal/models"
	"sale-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	_, err := Migrate(context.Background(), nil, "sideways")
	assert.Error(t, err)
}

func TestMigrateDownWithLedgerDataIntegration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
		code, err := tx.Ledger().GetOhadaCode(ctx, models.OhadaCodeSalesRevenue)
		if err != nil {
			return err
		}
		return tx.Ledger().AppendIncome(ctx, &models.IncomeEntry{
			ID:            uuid.New().String(),
			ShopID:        "shop-" + uuid.New().String(),
			Date:          time.Now().UTC(),
			Description:   "Vente #migrate",
			Amount:        decimal.NewFromInt(1000),
			PaymentMethod: models.PaymentMethodCash,
			OhadaCodeID:   code.ID,
		})
	})
	require.NoError(t, err)

	n, err := Migrate(ctx, s.GetDB(), "down")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Migrate(ctx, s.GetDB(), "up")
	require.NoError(t, err)

	code, err := s.Ledger().GetOhadaCode(ctx, models.OhadaCodeSalesRevenue)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerKindIncome, code.Kind)
}
