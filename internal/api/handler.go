package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"lojinha-service/internal/apperr"
	"lojinha-service/internal/ledger"
	"lojinha-service/internal/models"
	"lojinha-service/internal/service"
	"lojinha-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	sales   *service.SaleService
	refunds *service.RefundService
	wallets *service.WalletService
	catalog *service.CatalogService
	stock   *ledger.StockLedger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	sales *service.SaleService,
	refunds *service.RefundService,
	wallets *service.WalletService,
	catalog *service.CatalogService,
	stock *ledger.StockLedger,
) *Handler {
	return &Handler{
		sales:   sales,
		refunds: refunds,
		wallets: wallets,
		catalog: catalog,
		stock:   stock,
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
		v1.GET("/sales/:id", h.getSale)
		v1.POST("/sales/:id/refund", h.refundSale)

		v1.POST("/wallets/withdraw", h.withdraw)
		v1.POST("/wallets/spend", h.spendInStore)
		v1.GET("/wallets/balance", h.getBalance)
		v1.POST("/wallets/loyalty", h.creditLoyalty)
		v1.POST("/wallets/loyalty/convert", h.convertLoyalty)

		v1.GET("/stock", h.getQuantity)
		v1.GET("/stock/low", h.listLowStock)
		v1.POST("/stock/entries", h.recordStockMovement)

		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.POST("/products/:id/retire", h.retireProduct)
		v1.POST("/products/:id/variants", h.createVariant)

		v1.GET("/sales", h.listSales)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createSale handles sale creation
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	sale, err := h.sales.CreateSale(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sale)
}

// getSale handles get sale by ID
func (h *Handler) getSale(c *gin.Context) {
	saleID, ok := paramID(c, "id")
	if !ok {
		return
	}

	sale, items, err := h.sales.GetSale(c.Request.Context(), saleID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sale":  sale,
		"items": items,
	})
}

type refundRequest struct {
	Reason string `json:"reason" binding:"required"`
	Notes  string `json:"notes,omitempty"`
}

// refundSale handles the at-most-once sale reversal
func (h *Handler) refundSale(c *gin.Context) {
	saleID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	sale, err := h.refunds.RefundSale(c.Request.Context(), saleID, req.Reason, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sale)
}

// withdraw handles wallet withdrawals
func (h *Handler) withdraw(c *gin.Context) {
	var req service.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	balance, err := h.wallets.Withdraw(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// spendInStore handles wallet in-store spends
func (h *Handler) spendInStore(c *gin.Context) {
	var req service.SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	balance, err := h.wallets.SpendInStore(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// getBalance returns the wallet balance for a holder tuple
func (h *Handler) getBalance(c *gin.Context) {
	holderID, ok := queryID(c, "holder_id")
	if !ok {
		return
	}
	locationID, ok := queryID(c, "location_id")
	if !ok {
		return
	}
	holderKind := c.Query("holder_kind")
	if holderKind != models.HolderKindFarmer && holderKind != models.HolderKindTeacher {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holder_kind"})
		return
	}

	balance, err := h.wallets.Balance(c.Request.Context(), holderID, holderKind, locationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

type loyaltyRequest struct {
	HolderID   int64  `json:"holder_id" binding:"required"`
	HolderKind string `json:"holder_kind" binding:"required"`
	LocationID int64  `json:"location_id" binding:"required"`
	Units      int64  `json:"units" binding:"required,min=1"`
}

// creditLoyalty credits lalita units to a wallet
func (h *Handler) creditLoyalty(c *gin.Context) {
	var req loyaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	count, value, err := h.wallets.CreditLoyalty(c.Request.Context(), req.HolderID, req.HolderKind, req.LocationID, req.Units)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loyalty_units": count,
		"cash_value":    value,
	})
}

// convertLoyalty converts lalita units into cash balance
func (h *Handler) convertLoyalty(c *gin.Context) {
	var req loyaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	balance, err := h.wallets.ConvertLoyalty(c.Request.Context(), req.HolderID, req.HolderKind, req.LocationID, req.Units)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// getQuantity returns the current stock for a tuple
func (h *Handler) getQuantity(c *gin.Context) {
	productID, ok := queryID(c, "product_id")
	if !ok {
		return
	}
	locationID, ok := queryID(c, "location_id")
	if !ok {
		return
	}

	var variantID *int64
	if raw := c.Query("variant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant_id"})
			return
		}
		variantID = &id
	}

	quantity, err := h.stock.Quantity(c.Request.Context(), productID, variantID, locationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quantity": quantity})
}

// listLowStock returns tuples below their product minimum at a location
func (h *Handler) listLowStock(c *gin.Context) {
	locationID, ok := queryID(c, "location_id")
	if !ok {
		return
	}

	items, err := h.stock.ListLowStock(c.Request.Context(), locationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// recordStockMovement handles manual entries and adjustments
func (h *Handler) recordStockMovement(c *gin.Context) {
	var req service.StockEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	movement, err := h.catalog.RecordStockMovement(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, movement)
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// respondError maps the error taxonomy onto HTTP statuses, keeping the
// offending entity in the message so the dashboard can show it.
func respondError(c *gin.Context, err error) {
	var valErr *apperr.ValidationError

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrAlreadyRefunded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvalidReference), errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// listProducts returns the full catalog
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// retireProduct soft-retires a product
func (h *Handler) retireProduct(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.RetireProduct(c.Request.Context(), productID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": productID, "active": false})
}

type createVariantRequest struct {
	Name          string           `json:"name" binding:"required"`
	SKUSuffix     string           `json:"sku_suffix,omitempty"`
	PriceOverride *decimal.Decimal `json:"price_override,omitempty"`
}

// createVariant adds a variant to a product
func (h *Handler) createVariant(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	variant := &models.Variant{
		ProductID: productID,
		Name:      req.Name,
		SKUSuffix: req.SKUSuffix,
	}
	if req.PriceOverride != nil {
		variant.PriceOverride = decimal.NullDecimal{Decimal: *req.PriceOverride, Valid: true}
	}

	created, err := h.catalog.CreateVariant(c.Request.Context(), variant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// listSales returns recent sales for a location
func (h *Handler) listSales(c *gin.Context) {
	locationID, ok := queryID(c, "location_id")
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	sales, err := h.sales.ListSales(c.Request.Context(), locationID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func queryID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
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
