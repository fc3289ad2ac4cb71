package service

import (
	"context"

	"lojinha-service/config"
	"lojinha-service/internal/apperr"
	"lojinha-service/internal/ledger"
	"lojinha-service/internal/models"
	"lojinha-service/internal/store"
	"lojinha-service/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages products, variants, and manual stock movements
// (deliveries and count corrections) outside the sale path.
type CatalogService struct {
	store    *store.Store
	stock    *ledger.StockLedger
	business config.BusinessConfig
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, stock *ledger.StockLedger, business config.BusinessConfig) *CatalogService {
	return &CatalogService{
		store:    store,
		stock:    stock,
		business: business,
		logger:   util.Named("catalog-service"),
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	SKU            string           `json:"sku" binding:"required"`
	Name           string           `json:"name" binding:"required"`
	Price          decimal.Decimal  `json:"price" binding:"required"`
	Cost           decimal.Decimal  `json:"cost"`
	MinStock       int              `json:"min_stock"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty"`
}

// StockEntryRequest represents a manual stock entry or adjustment
type StockEntryRequest struct {
	ProductID  int64  `json:"product_id" binding:"required"`
	VariantID  *int64 `json:"variant_id,omitempty"`
	LocationID int64  `json:"location_id" binding:"required"`
	Delta      int    `json:"delta" binding:"required"`
	Adjustment bool   `json:"adjustment"`
	Note       string `json:"note,omitempty"`
}

// CreateProduct validates prices and the commission override before any
// write; a silently wrong rate would flow straight into the wallet ledger.
func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	if req.Price.IsNegative() {
		return nil, &apperr.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if req.Cost.IsNegative() {
		return nil, &apperr.ValidationError{Field: "cost", Reason: "must not be negative"}
	}
	if req.MinStock < 0 {
		return nil, &apperr.ValidationError{Field: "min_stock", Reason: "must not be negative"}
	}

	var rate decimal.NullDecimal
	if req.CommissionRate != nil {
		if err := config.ValidateRate(*req.CommissionRate); err != nil {
			return nil, &apperr.ValidationError{Field: "commission_rate", Reason: err.Error()}
		}
		rate = decimal.NullDecimal{Decimal: *req.CommissionRate, Valid: true}
	}

	product := &models.Product{
		SKU:            req.SKU,
		Name:           req.Name,
		Price:          req.Price,
		Cost:           req.Cost,
		MinStock:       req.MinStock,
		CommissionRate: rate,
		Active:         true,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU))
	return product, nil
}

// ListProducts returns the full catalog, retired entries included.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.GetProducts(ctx)
}

// RetireProduct soft-retires a catalog entry; stock and movement history stay.
func (s *CatalogService) RetireProduct(ctx context.Context, productID int64) error {
	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	product.Active = false
	return s.store.UpdateProduct(ctx, product)
}

// CreateVariant adds a variant to an existing product.
func (s *CatalogService) CreateVariant(ctx context.Context, v *models.Variant) (*models.Variant, error) {
	if _, err := s.store.GetProductByID(ctx, v.ProductID); err != nil {
		return nil, err
	}
	if v.PriceOverride.Valid && v.PriceOverride.Decimal.IsNegative() {
		return nil, &apperr.ValidationError{Field: "price_override", Reason: "must not be negative"}
	}
	v.Active = true
	if err := s.store.CreateVariant(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// RecordStockMovement applies a manual entry (delivery) or adjustment
// (count correction) through the stock ledger.
func (s *CatalogService) RecordStockMovement(ctx context.Context, req *StockEntryRequest) (*models.StockMovement, error) {
	if _, err := s.store.GetProductByID(ctx, req.ProductID); err != nil {
		return nil, err
	}

	kind := models.StockKindEntry
	if req.Adjustment {
		kind = models.StockKindAdjustment
	} else if req.Delta <= 0 {
		return nil, &apperr.ValidationError{Field: "delta", Reason: "entries must add stock; use an adjustment for corrections"}
	}

	var movement *models.StockMovement
	err := s.store.WithTx(ctx, s.business.TxRetryAttempts, func(tx *sqlx.Tx) error {
		var err error
		movement, err = s.stock.ApplyMovement(ctx, tx, ledger.StockMovementParams{
			ProductID:  req.ProductID,
			VariantID:  req.VariantID,
			LocationID: req.LocationID,
			Kind:       kind,
			Delta:      req.Delta,
			Note:       req.Note,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.stock.InvalidateQuantity(ctx, req.ProductID, req.VariantID, req.LocationID)

	s.logger.Info("Stock movement recorded",
		zap.Int64("product_id", req.ProductID),
		zap.String("kind", kind),
		zap.Int("delta", req.Delta),
		zap.Int("balance", movement.BalanceAfter))
	return movement, nil
}
