package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sale-service/internal/models"
	"sale-service/internal/service"
	"sale-service/internal/store"
	"sale-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	headerActorID        = "X-Actor-ID"
	headerActorRole      = "X-Actor-Role"
	headerIdempotencyKey = "Idempotency-Key"

	defaultIncomeWindow = 30 * 24 * time.Hour
)

// Pinger is a dependency checked by the readiness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	sales     *service.SaleService
	inventory *service.InventoryService
	checks    map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(sales *service.SaleService, inventory *service.InventoryService, checks map[string]Pinger) *Handler {
	return &Handler{
		sales:     sales,
		inventory: inventory,
		checks:    checks,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sales", h.createSale)
		v1.GET("/sales", h.listSales)
		v1.GET("/sales/:id", h.getSale)
		v1.PATCH("/sales/:id/status", h.updateSaleStatus)

		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.POST("/products/:id/restock", h.restockProduct)

		v1.GET("/income", h.listIncome)
		v1.GET("/shops/:shop_id/stock-alerts", h.stockAlerts)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createSale handles checkout
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req.Actor = actorFrom(c)
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(headerIdempotencyKey)
	}

	result := h.sales.CreateSale(c.Request.Context(), &req)
	if !result.Success {
		c.JSON(statusFor(result.Err), result)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// getSale handles get sale by ID
func (h *Handler) getSale(c *gin.Context) {
	sale, err := h.sales.GetSale(c.Request.Context(), c.Param("id"), c.Query("shop_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sale": sale})
}

// listSales handles the latest sales of a shop
func (h *Handler) listSales(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sales, err := h.sales.ListSales(c.Request.Context(), c.Query("shop_id"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sales": sales})
}

// updateSaleStatus handles delivery and payment status changes
func (h *Handler) updateSaleStatus(c *gin.Context) {
	var req service.UpdateSaleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Actor = actorFrom(c)

	sale, err := h.sales.UpdateSaleStatus(c.Request.Context(), c.Param("id"), c.Query("shop_id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sale": sale})
}

// createProduct handles catalog entries
func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Actor = actorFrom(c)

	product, err := h.inventory.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "product": product})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.inventory.GetProduct(c.Request.Context(), c.Param("id"), c.Query("shop_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.inventory.ListProducts(c.Request.Context(), c.Query("shop_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

// restockProduct handles stock receipts
func (h *Handler) restockProduct(c *gin.Context) {
	var req service.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Actor = actorFrom(c)

	product, err := h.inventory.RestockProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

// listIncome handles ledger listing. from and to accept a date or an
// RFC 3339 timestamp; a date for 'to' includes that whole day. The default
// window is the last 30 days up to the end of today.
func (h *Handler) listIncome(c *gin.Context) {
	to := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	if raw := c.Query("to"); raw != "" {
		t, dateOnly, err := parseTime(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid 'to' parameter")
			return
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		to = t
	}

	from := to.Add(-defaultIncomeWindow)
	if raw := c.Query("from"); raw != "" {
		t, _, err := parseTime(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid 'from' parameter")
			return
		}
		from = t
	}

	entries, err := h.sales.ListIncome(c.Request.Context(), c.Query("shop_id"), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "entries": entries})
}

func (h *Handler) stockAlerts(c *gin.Context) {
	alerts, err := h.inventory.StockAlerts(c.Request.Context(), c.Param("shop_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": alerts})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	respondError(c, status, err.Error())
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrTotalMismatch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrSaleNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// actorFrom reads the caller identity supplied by the gateway
func actorFrom(c *gin.Context) models.Actor {
	return models.Actor{
		ID:   c.GetHeader(headerActorID),
		Role: c.GetHeader(headerActorRole),
	}
}

func parseTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
