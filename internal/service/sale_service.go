package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sale-service/config"
	"sale-service/internal/models"
	"sale-service/internal/store"
	"sale-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// moneyPlaces matches the NUMERIC(14, 2) columns amounts are stored in
	moneyPlaces = 2
)

// totalTolerance absorbs currency rounding between a caller's total and ours
var totalTolerance = decimal.New(1, -2)

// SaleService records sales together with their ledger entry and stock movements
type SaleService struct {
	repo        store.Repository
	publisher   EventPublisher
	idempotency IdempotencyStore
	cfg         config.BusinessConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewSaleService creates a new sale service. publisher and idempotency may be nil.
func NewSaleService(
	repo store.Repository,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	cfg config.BusinessConfig,
) *SaleService {
	if cfg.SalesRevenueCode == "" {
		cfg.SalesRevenueCode = models.OhadaCodeSalesRevenue
	}
	return &SaleService{
		repo:        repo,
		publisher:   publisher,
		idempotency: idempotency,
		cfg:         cfg,
		logger:      util.GetLogger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateSaleRequest represents a checkout. NetAmount is the total shown to the
// customer; it is checked against the cart, never stored.
type CreateSaleRequest struct {
	OrderItems     []SaleItemRequest `json:"order_items" binding:"required,min=1,dive"`
	Customer       *CustomerRef      `json:"customer,omitempty"`
	PaymentMethod  string            `json:"payment_method" binding:"required"`
	DeliveryStatus string            `json:"delivery_status"`
	AmountPaid     decimal.Decimal   `json:"amount_paid"`
	ChangeGiven    decimal.Decimal   `json:"change_given"`
	ShopID         string            `json:"shop_id" binding:"required"`
	Discount       decimal.Decimal   `json:"discount"`
	DeliveryFee    decimal.Decimal   `json:"delivery_fee"`
	NetAmount      *decimal.Decimal  `json:"net_amount,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Actor          models.Actor      `json:"-"`
}

// SaleItemRequest represents one cart line
type SaleItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CustomerRef links a sale to a customer; absent means walk-in
type CustomerRef struct {
	ID string `json:"id"`
}

// SaleDetail is a sale with its lines
type SaleDetail struct {
	models.Sale
	Lines []models.OrderLine `json:"lines"`
}

// SaleResult is the outcome of CreateSale. Failures never leave partial state.
type SaleResult struct {
	Success   bool        `json:"success"`
	Sale      *SaleDetail `json:"sale,omitempty"`
	Error     string      `json:"error,omitempty"`
	Duplicate bool        `json:"duplicate,omitempty"`
	Err       error       `json:"-"`
}

// CreateSale prices the cart from stored products and, in one transaction,
// writes the sale, its income entry and its lines while taking the sold units
// out of stock.
func (s *SaleService) CreateSale(ctx context.Context, req *CreateSaleRequest) SaleResult {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SaleCreateLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateCreateSale(req); err != nil {
		return s.failed(span, req, err)
	}
	if req.DeliveryStatus == "" {
		req.DeliveryStatus = models.DeliveryStatusPending
	}
	roundAmounts(req)

	if dup, ok := s.lookupIdempotent(ctx, req); ok {
		util.SalesDuplicateTotal.Inc()
		return SaleResult{Success: true, Sale: dup, Duplicate: true}
	}

	var (
		detail *SaleDetail
		levels []models.StockLevel
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
		var err error
		detail, levels, err = s.recordSale(ctx, tx, req)
		return err
	})
	if err != nil {
		return s.failed(span, req, err)
	}

	util.SalesCreatedTotal.Inc()
	util.IncomeEntriesTotal.Inc()
	s.logger.Info("Sale created",
		zap.String("sale_id", detail.ID),
		zap.String("shop_id", detail.ShopID),
		zap.String("net_amount", detail.NetAmount.StringFixed(2)),
		zap.String("created_by", detail.CreatedBy))

	s.afterCommit(ctx, req, detail, levels)

	return SaleResult{Success: true, Sale: detail}
}

// recordSale runs inside the unit of work and may be replayed on retry
func (s *SaleService) recordSale(ctx context.Context, tx store.Scope, req *CreateSaleRequest) (*SaleDetail, []models.StockLevel, error) {
	products := make([]*models.Product, len(req.OrderItems))
	total, profit := decimal.Zero, decimal.Zero

	for i, item := range req.OrderItems {
		product, err := tx.Inventory().GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if product.ShopID != req.ShopID {
			return nil, nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, item.ProductID)
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(product.SellingPrice.Mul(qty))
		profit = profit.Add(product.SellingPrice.Sub(product.PurchasePrice).Mul(qty))
		products[i] = product
	}

	netAmount := roundMoney(total.Sub(req.Discount).Add(req.DeliveryFee))
	profit = roundMoney(profit)
	if netAmount.IsNegative() {
		return nil, nil, fmt.Errorf("%w: discount %s exceeds cart total %s", ErrInvalidRequest, req.Discount, total)
	}
	if req.NetAmount != nil && req.NetAmount.Sub(netAmount).Abs().GreaterThan(totalTolerance) {
		if s.cfg.RejectTotalMismatch {
			return nil, nil, fmt.Errorf("%w: computed %s, got %s", ErrTotalMismatch, netAmount.StringFixed(2), req.NetAmount.StringFixed(2))
		}
		s.logger.Warn("Ignoring caller supplied net amount",
			zap.String("computed", netAmount.StringFixed(2)),
			zap.String("supplied", req.NetAmount.StringFixed(2)))
	}

	sale := &models.Sale{
		ID:             uuid.New().String(),
		ShopID:         req.ShopID,
		Status:         models.SaleStatusCompleted,
		DeliveryStatus: req.DeliveryStatus,
		NetAmount:      netAmount,
		AmountPaid:     req.AmountPaid,
		ChangeGiven:    req.ChangeGiven,
		DeliveryFee:    req.DeliveryFee,
		Discount:       req.Discount,
		Profit:         profit,
		PaymentMethod:  req.PaymentMethod,
		CreatedBy:      req.Actor.ID,
	}
	if req.Customer != nil && req.Customer.ID != "" {
		customerID := req.Customer.ID
		sale.CustomerID = &customerID
	}
	if err := tx.Sales().CreateSale(ctx, sale); err != nil {
		return nil, nil, fmt.Errorf("create sale: %w", err)
	}

	code, err := tx.Ledger().GetOhadaCode(ctx, s.cfg.SalesRevenueCode)
	if err != nil {
		if errors.Is(err, store.ErrOhadaCodeNotFound) {
			return nil, nil, fmt.Errorf("%w: %v", ErrLedgerConfiguration, err)
		}
		return nil, nil, fmt.Errorf("resolve sales revenue code: %w", err)
	}
	if code.Kind != models.LedgerKindIncome {
		return nil, nil, fmt.Errorf("%w: code %s is not an income account", ErrLedgerConfiguration, code.Code)
	}

	entry := &models.IncomeEntry{
		ID:            uuid.New().String(),
		ShopID:        req.ShopID,
		Date:          s.now(),
		Description:   fmt.Sprintf("Vente #%s", sale.ID),
		Amount:        netAmount,
		PaymentMethod: req.PaymentMethod,
		OhadaCodeID:   code.ID,
	}
	if err := tx.Ledger().AppendIncome(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("append income: %w", err)
	}

	lines := make([]models.OrderLine, 0, len(req.OrderItems))
	levels := make([]models.StockLevel, 0, len(req.OrderItems))
	for i, item := range req.OrderItems {
		product := products[i]
		line := &models.OrderLine{
			ID:            uuid.New().String(),
			SaleID:        sale.ID,
			ProductID:     product.ID,
			Quantity:      item.Quantity,
			UnitPrice:     product.SellingPrice,
			UnitCost:      product.PurchasePrice,
			PaymentStatus: models.PaymentStatusPaid,
		}
		if err := tx.Sales().CreateOrderLine(ctx, line); err != nil {
			return nil, nil, fmt.Errorf("create order line: %w", err)
		}

		updated, err := tx.Inventory().ApplyDecrement(ctx, product.ID, item.Quantity)
		if err != nil {
			return nil, nil, err
		}
		status := models.StockStatusFor(updated.Quantity, updated.ReorderPoint)
		if err := tx.Inventory().UpdateStatus(ctx, product.ID, status); err != nil {
			return nil, nil, fmt.Errorf("update stock status: %w", err)
		}

		level := models.LevelOf(updated)
		level.QuantitySold = item.Quantity

		lines = append(lines, *line)
		levels = append(levels, level)
	}

	return &SaleDetail{Sale: *sale, Lines: lines}, levels, nil
}

// afterCommit publishes the sale and remembers the idempotency key.
// Neither can undo the committed sale, so failures are only logged.
func (s *SaleService) afterCommit(ctx context.Context, req *CreateSaleRequest, detail *SaleDetail, levels []models.StockLevel) {
	if s.publisher != nil {
		event := &models.SaleCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSaleCompleted,
				Timestamp: s.now(),
			},
			SaleID:        detail.ID,
			ShopID:        detail.ShopID,
			NetAmount:     detail.NetAmount,
			Profit:        detail.Profit,
			PaymentMethod: detail.PaymentMethod,
			Items:         levels,
		}
		if err := s.publisher.PublishSaleCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish SaleCompleted event",
				zap.String("sale_id", detail.ID),
				zap.Error(err))
		}
	}

	if s.idempotency != nil && req.IdempotencyKey != "" {
		if err := s.idempotency.SetSaleID(ctx, req.IdempotencyKey, detail.ID, s.cfg.IdempotencyTTL); err != nil {
			s.logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}
}

func (s *SaleService) lookupIdempotent(ctx context.Context, req *CreateSaleRequest) (*SaleDetail, bool) {
	if s.idempotency == nil || req.IdempotencyKey == "" {
		return nil, false
	}

	saleID, found, err := s.idempotency.GetSaleID(ctx, req.IdempotencyKey)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	detail, err := s.GetSale(ctx, saleID, req.ShopID)
	if err != nil {
		s.logger.Warn("Idempotency key points to unreadable sale",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("sale_id", saleID),
			zap.Error(err))
		return nil, false
	}

	s.logger.Info("Duplicate sale request detected",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("sale_id", saleID))
	return detail, true
}

func (s *SaleService) failed(span trace.Span, req *CreateSaleRequest, err error) SaleResult {
	util.RecordError(span, err)
	reason := failureReason(err)
	util.SalesFailedTotal.WithLabelValues(reason).Inc()

	s.logger.Warn("Sale rejected",
		zap.String("shop_id", req.ShopID),
		zap.String("reason", reason),
		zap.Error(err))

	return SaleResult{Success: false, Error: err.Error(), Err: err}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrTotalMismatch):
		return "total_mismatch"
	case errors.Is(err, ErrLedgerConfiguration):
		return "ledger_configuration"
	case errors.Is(err, store.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "db_error"
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// roundAmounts brings caller amounts to the stored precision so the sale
// returned by CreateSale reads back unchanged
func roundAmounts(req *CreateSaleRequest) {
	req.AmountPaid = roundMoney(req.AmountPaid)
	req.ChangeGiven = roundMoney(req.ChangeGiven)
	req.Discount = roundMoney(req.Discount)
	req.DeliveryFee = roundMoney(req.DeliveryFee)
	if req.NetAmount != nil {
		net := roundMoney(*req.NetAmount)
		req.NetAmount = &net
	}
}

func validateCreateSale(req *CreateSaleRequest) error {
	switch {
	case req.ShopID == "":
		return fmt.Errorf("%w: shop_id is required", ErrInvalidRequest)
	case req.Actor.ID == "":
		return fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	case len(req.OrderItems) == 0:
		return fmt.Errorf("%w: order_items must not be empty", ErrInvalidRequest)
	case !models.IsValidPaymentMethod(req.PaymentMethod):
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, req.PaymentMethod)
	case req.DeliveryStatus != "" && !models.IsValidDeliveryStatus(req.DeliveryStatus):
		return fmt.Errorf("%w: unknown delivery status %q", ErrInvalidRequest, req.DeliveryStatus)
	}

	for _, item := range req.OrderItems {
		if item.ProductID == "" {
			return fmt.Errorf("%w: product_id is required", ErrInvalidRequest)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidRequest, item.ProductID)
		}
	}

	money := map[string]decimal.Decimal{
		"amount_paid":  req.AmountPaid,
		"change_given": req.ChangeGiven,
		"discount":     req.Discount,
		"delivery_fee": req.DeliveryFee,
	}
	for name, v := range money {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidRequest, name)
		}
	}
	return nil
}

// UpdateSaleStatusRequest moves a sale's delivery or payment state
type UpdateSaleStatusRequest struct {
	DeliveryStatus string       `json:"delivery_status"`
	PaymentStatus  string       `json:"payment_status"`
	Actor          models.Actor `json:"-"`
}

// UpdateSaleStatus sets the delivery status and, once payment is recorded as
// paid, marks every line paid and completes the sale. Stock is not touched.
func (s *SaleService) UpdateSaleStatus(ctx context.Context, saleID, shopID string, req UpdateSaleStatusRequest) (*SaleDetail, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.UpdateSaleStatus")
	defer span.End()

	switch {
	case req.DeliveryStatus == "" && req.PaymentStatus == "":
		return nil, fmt.Errorf("%w: delivery_status or payment_status is required", ErrInvalidRequest)
	case req.DeliveryStatus != "" && !models.IsValidDeliveryStatus(req.DeliveryStatus):
		return nil, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidRequest, req.DeliveryStatus)
	case req.PaymentStatus != "" && !models.IsValidPaymentStatus(req.PaymentStatus):
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidRequest, req.PaymentStatus)
	}

	var updated models.Sale
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Scope) error {
		sale, err := s.scopedSale(ctx, tx, saleID, shopID)
		if err != nil {
			return err
		}

		if req.DeliveryStatus != "" {
			sale.DeliveryStatus = req.DeliveryStatus
		}
		if req.PaymentStatus == models.PaymentStatusPaid {
			if err := tx.Sales().MarkLinesPaid(ctx, sale.ID); err != nil {
				return err
			}
			sale.Status = models.SaleStatusCompleted
		}

		if err := tx.Sales().UpdateSaleStatus(ctx, sale.ID, sale.Status, sale.DeliveryStatus); err != nil {
			return err
		}
		updated = *sale
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.SaleStatusUpdatesTotal.WithLabelValues(updated.Status).Inc()
	s.logger.Info("Sale status updated",
		zap.String("sale_id", updated.ID),
		zap.String("status", updated.Status),
		zap.String("delivery_status", updated.DeliveryStatus),
		zap.String("actor_id", req.Actor.ID))

	if s.publisher != nil {
		event := &models.SaleStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSaleStatusChanged,
				Timestamp: s.now(),
			},
			SaleID:         updated.ID,
			ShopID:         updated.ShopID,
			Status:         updated.Status,
			DeliveryStatus: updated.DeliveryStatus,
		}
		if err := s.publisher.PublishSaleStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish SaleStatusChanged event", zap.Error(err))
		}
	}

	return s.GetSale(ctx, saleID, shopID)
}

// GetSale retrieves a sale and its lines within a shop
func (s *SaleService) GetSale(ctx context.Context, saleID, shopID string) (*SaleDetail, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.GetSale")
	defer span.End()

	sale, err := s.scopedSale(ctx, s.repo, saleID, shopID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.Sales().GetOrderLines(ctx, sale.ID)
	if err != nil {
		return nil, err
	}

	return &SaleDetail{Sale: *sale, Lines: lines}, nil
}

// ListSales returns the latest sales of a shop, newest first
func (s *SaleService) ListSales(ctx context.Context, shopID string, limit int) ([]models.Sale, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.Sales().ListSales(ctx, shopID, limit)
}

// ListIncome returns the income entries of a shop dated in [from, to)
func (s *SaleService) ListIncome(ctx context.Context, shopID string, from, to time.Time) ([]models.IncomeEntry, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidRequest)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: 'to' must be after 'from'", ErrInvalidRequest)
	}
	return s.repo.Ledger().ListIncome(ctx, shopID, from, to)
}

// scopedSale hides sales of other shops behind ErrSaleNotFound
func (s *SaleService) scopedSale(ctx context.Context, scope store.Scope, saleID, shopID string) (*models.Sale, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidRequest)
	}
	sale, err := scope.Sales().GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.ShopID != shopID {
		return nil, fmt.Errorf("%w: %s", store.ErrSaleNotFound, saleID)
	}
	return sale, nil
}
