package service

import (
	"context"
	"fmt"
	"time"

	"sale-service/internal/models"
	"sale-service/internal/store"
	"sale-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService manages the product catalog and stock receipts
type InventoryService struct {
	repo      store.Repository
	publisher EventPublisher
	alerts    StockAlertIndex
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service. publisher and alerts may be nil.
func NewInventoryService(repo store.Repository, publisher EventPublisher, alerts StockAlertIndex) *InventoryService {
	return &InventoryService{
		repo:      repo,
		publisher: publisher,
		alerts:    alerts,
		logger:    util.GetLogger(),
	}
}

// CreateProductRequest represents a new catalog entry
type CreateProductRequest struct {
	ShopID        string          `json:"shop_id" binding:"required"`
	SKU           string          `json:"sku" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Quantity      int             `json:"quantity"`
	ReorderPoint  int             `json:"reorder_point"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Actor         models.Actor    `json:"-"`
}

// RestockRequest represents a stock receipt
type RestockRequest struct {
	ShopID   string       `json:"shop_id" binding:"required"`
	Quantity int          `json:"quantity" binding:"required,min=1"`
	Actor    models.Actor `json:"-"`
}

// CreateProduct validates and stores a product with its derived stock status
func (s *InventoryService) CreateProduct(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CreateProduct")
	defer span.End()

	switch {
	case req.ShopID == "" || req.SKU == "" || req.Name == "":
		return nil, fmt.Errorf("%w: shop_id, sku and name are required", ErrInvalidRequest)
	case req.Quantity < 0 || req.ReorderPoint < 0:
		return nil, fmt.Errorf("%w: quantity and reorder_point must not be negative", ErrInvalidRequest)
	case req.PurchasePrice.IsNegative() || req.SellingPrice.IsNegative():
		return nil, fmt.Errorf("%w: prices must not be negative", ErrInvalidRequest)
	}

	product := &models.Product{
		ID:            uuid.New().String(),
		ShopID:        req.ShopID,
		SKU:           req.SKU,
		Name:          req.Name,
		Quantity:      req.Quantity,
		ReorderPoint:  req.ReorderPoint,
		PurchasePrice: roundMoney(req.PurchasePrice),
		SellingPrice:  roundMoney(req.SellingPrice),
		Status:        models.StockStatusFor(req.Quantity, req.ReorderPoint),
	}
	if err := s.repo.Inventory().CreateProduct(ctx, product); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("create product: %w", err)
	}

	if product.SellingPrice.LessThan(product.PurchasePrice) {
		s.logger.Warn("Product sells below cost",
			zap.String("product_id", product.ID),
			zap.String("sku", product.SKU))
	}
	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("shop_id", product.ShopID),
		zap.String("actor_id", req.Actor.ID))

	if s.publisher != nil {
		event := &models.ProductCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeProductCreated,
				Timestamp: time.Now().UTC(),
			},
			ShopID: product.ShopID,
			SKU:    product.SKU,
			Item:   models.LevelOf(product),
		}
		if err := s.publisher.PublishProductCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish ProductCreated event", zap.Error(err))
		}
	}

	return product, nil
}

// GetProduct retrieves a product within a shop
func (s *InventoryService) GetProduct(ctx context.Context, productID, shopID string) (*models.Product, error) {
	return s.scopedProduct(ctx, s.repo, productID, shopID)
}

// ListProducts returns the catalog of a shop
func (s *InventoryService) ListProducts(ctx context.Context, shopID string) ([]models.Product, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidRequest)
	}
	return s.repo.Inventory().ListProducts(ctx, shopID)
}

// RestockProduct adds received units and recomputes the stock status
func (s *InventoryService) RestockProduct(ctx context.Context, productID string, req RestockRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.RestockProduct")
	defer span.End()

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}

	var product *models.Product
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
		if _, err := s.scopedProduct(ctx, tx, productID, req.ShopID); err != nil {
			return err
		}

		updated, err := tx.Inventory().ApplyIncrement(ctx, productID, req.Quantity)
		if err != nil {
			return err
		}
		updated.Status = models.StockStatusFor(updated.Quantity, updated.ReorderPoint)
		if err := tx.Inventory().UpdateStatus(ctx, productID, updated.Status); err != nil {
			return err
		}
		product = updated
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.StockRestocksTotal.Inc()
	s.logger.Info("Product restocked",
		zap.String("product_id", product.ID),
		zap.Int("received", req.Quantity),
		zap.Int("quantity", product.Quantity),
		zap.String("status", product.Status),
		zap.String("actor_id", req.Actor.ID))

	if s.publisher != nil {
		event := &models.StockRestockedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockRestocked,
				Timestamp: time.Now().UTC(),
			},
			ShopID: product.ShopID,
			Item:   models.LevelOf(product),
		}
		if err := s.publisher.PublishStockRestocked(ctx, event); err != nil {
			s.logger.Error("Failed to publish StockRestocked event", zap.Error(err))
		}
	}

	return product, nil
}

// StockAlerts lists the products of a shop at or below their reorder point.
// The alert index, fed by product, sale and restock events, is read first;
// the catalog is scanned when it is unavailable.
func (s *InventoryService) StockAlerts(ctx context.Context, shopID string) ([]models.StockLevel, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.StockAlerts")
	defer span.End()

	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidRequest)
	}

	if s.alerts != nil {
		levels, err := s.alerts.ListStockAlerts(ctx, shopID)
		if err == nil {
			return levels, nil
		}
		s.logger.Warn("Stock alert index unavailable, scanning catalog",
			zap.String("shop_id", shopID),
			zap.Error(err))
	}

	products, err := s.repo.Inventory().ListProducts(ctx, shopID)
	if err != nil {
		return nil, err
	}

	levels := []models.StockLevel{}
	for i := range products {
		if level := models.LevelOf(&products[i]); models.NeedsReorder(level.Status) {
			levels = append(levels, level)
		}
	}
	return levels, nil
}

func (s *InventoryService) scopedProduct(ctx context.Context, scope store.Scope, productID, shopID string) (*models.Product, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidRequest)
	}
	product, err := scope.Inventory().GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.ShopID != shopID {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
	}
	return product, nil
}
