package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"lojinha-service/config"
	"lojinha-service/internal/apperr"
	"lojinha-service/internal/broker"
	"lojinha-service/internal/ledger"
	"lojinha-service/internal/models"
	"lojinha-service/internal/redisclient"
	"lojinha-service/internal/store"
	"lojinha-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleService orchestrates sale creation across the stock and wallet ledgers.
type SaleService struct {
	store          *store.Store
	stock          *ledger.StockLedger
	wallets        *ledger.WalletLedger
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(
	store *store.Store,
	stock *ledger.StockLedger,
	wallets *ledger.WalletLedger,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	business config.BusinessConfig,
) *SaleService {
	return &SaleService{
		store:          store,
		stock:          stock,
		wallets:        wallets,
		redis:          redis,
		eventPublisher: eventPublisher,
		business:       business,
		logger:         util.Named("sale-service"),
	}
}

// SaleLineItemRequest represents one line of a sale request
type SaleLineItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CreateSaleRequest represents a request to create a sale
type CreateSaleRequest struct {
	LocationID      int64                 `json:"location_id" binding:"required"`
	BuyerKind       string                `json:"buyer_kind" binding:"required"`
	BuyerName       string                `json:"buyer_name" binding:"required"`
	SellerID        int64                 `json:"seller_id" binding:"required"`
	ReferrerID      *int64                `json:"referrer_id,omitempty"`
	Items           []SaleLineItemRequest `json:"items" binding:"required,min=1"`
	PaymentMethod   string                `json:"payment_method" binding:"required"`
	Installments    int                   `json:"installments"`
	Discount        decimal.Decimal       `json:"discount"`
	DiscountPercent bool                  `json:"discount_percent"`
	IdempotencyKey  string                `json:"idempotency_key,omitempty"`
}

// saleRef is the reference tag commission movements carry so a refund can
// find everything a sale credited.
func saleRef(saleID int64) string {
	return fmt.Sprintf("sale:%d", saleID)
}

// CreateSale validates the request, then runs the sale header, line items,
// stock decrements, and commission credits as one transaction. Either the
// full set commits or nothing is retained.
func (s *SaleService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SaleProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateSaleRequest(req); err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if existing, err := s.redis.GetIdempotencyKey(ctx, req.IdempotencyKey); err == nil && existing != "" {
			if saleID, perr := strconv.ParseInt(existing, 10, 64); perr == nil {
				s.logger.Info("Duplicate sale request detected",
					zap.String("idempotency_key", req.IdempotencyKey),
					zap.Int64("sale_id", saleID))
				return s.store.GetSaleByID(ctx, saleID)
			}
		}
	}

	products, err := s.resolveProducts(ctx, req.Items)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	subtotal := decimal.Zero
	unitPrices := make(map[int]decimal.Decimal, len(req.Items))
	for i, item := range req.Items {
		price, err := s.resolveUnitPrice(ctx, products[item.ProductID], item.VariantID)
		if err != nil {
			util.SalesFailedTotal.WithLabelValues("invalid_items").Inc()
			return nil, err
		}
		unitPrices[i] = price
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	discount, err := resolveDiscount(subtotal, req.Discount, req.DiscountPercent)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}
	total := subtotal.Sub(discount)

	sale := &models.Sale{
		LocationID:    req.LocationID,
		BuyerKind:     req.BuyerKind,
		BuyerName:     req.BuyerName,
		SellerID:      req.SellerID,
		ReferrerID:    req.ReferrerID,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Installments:  req.Installments,
		Status:        models.SaleStatusCompleted,
	}

	var stockMovements []*models.StockMovement
	err = s.store.WithTx(ctx, s.business.TxRetryAttempts, func(tx *sqlx.Tx) error {
		stockMovements = stockMovements[:0]

		if err := s.store.InsertSaleTx(ctx, tx, sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		sellerCommission := decimal.Zero
		for i, item := range req.Items {
			lineSubtotal := unitPrices[i].Mul(decimal.NewFromInt(int64(item.Quantity)))
			lineItem := &models.SaleLineItem{
				SaleID:    sale.ID,
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				UnitPrice: unitPrices[i],
				Subtotal:  lineSubtotal,
			}
			if err := s.store.InsertSaleLineItemTx(ctx, tx, lineItem); err != nil {
				return fmt.Errorf("failed to create line item: %w", err)
			}

			movement, err := s.stock.ApplyMovement(ctx, tx, ledger.StockMovementParams{
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				LocationID: req.LocationID,
				Kind:       models.StockKindSale,
				Delta:      -item.Quantity,
				SaleRef:    &sale.ID,
				Note:       fmt.Sprintf("sale to %s", req.BuyerName),
			})
			if err != nil {
				return err
			}
			stockMovements = append(stockMovements, movement)

			rate := s.commissionRate(products[item.ProductID])
			sellerCommission = sellerCommission.Add(commissionFor(lineSubtotal, rate))
		}

		if sellerCommission.IsPositive() {
			_, err := s.wallets.ApplyMovement(ctx, tx, ledger.WalletMovementParams{
				HolderID:    req.SellerID,
				HolderKind:  models.HolderKindFarmer,
				LocationID:  req.LocationID,
				Kind:        models.WalletKindSaleCommission,
				Delta:       sellerCommission,
				Reference:   saleRef(sale.ID),
				Description: fmt.Sprintf("commission on sale %d", sale.ID),
			})
			if err != nil {
				return err
			}
		}

		if req.ReferrerID != nil {
			referral := commissionFor(subtotal, s.business.ReferralRate)
			if referral.IsPositive() {
				_, err := s.wallets.ApplyMovement(ctx, tx, ledger.WalletMovementParams{
					HolderID:    *req.ReferrerID,
					HolderKind:  models.HolderKindTeacher,
					LocationID:  req.LocationID,
					Kind:        models.WalletKindReferralCommission,
					Delta:       referral,
					Reference:   saleRef(sale.ID),
					Description: fmt.Sprintf("referral on sale %d", sale.ID),
				})
				if err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		util.SalesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.SalesCreatedTotal.Inc()
	s.logger.Info("Sale completed",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("location_id", sale.LocationID),
		zap.String("total", sale.Total.StringFixed(2)))

	s.afterSaleCommit(ctx, sale, req, products, unitPrices, stockMovements)
	return sale, nil
}

// eventLineItems mirrors the persisted line items for the outgoing event,
// carrying the resolved unit price rather than the base product price.
func eventLineItems(req *CreateSaleRequest, unitPrices map[int]decimal.Decimal) []models.SaleLineItemData {
	items := make([]models.SaleLineItemData, 0, len(req.Items))
	for i, item := range req.Items {
		items = append(items, models.SaleLineItemData{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrices[i],
		})
	}
	return items
}

// afterSaleCommit handles everything that must not roll the sale back:
// cache invalidation, events, low stock alerts. Failures are logged only.
func (s *SaleService) afterSaleCommit(ctx context.Context, sale *models.Sale, req *CreateSaleRequest, products map[int64]*models.Product, unitPrices map[int]decimal.Decimal, stockMovements []*models.StockMovement) {
	for _, item := range req.Items {
		s.stock.InvalidateQuantity(ctx, item.ProductID, item.VariantID, req.LocationID)
	}
	s.wallets.InvalidateBalance(ctx, req.SellerID, models.HolderKindFarmer, req.LocationID)
	if req.ReferrerID != nil {
		s.wallets.InvalidateBalance(ctx, *req.ReferrerID, models.HolderKindTeacher, req.LocationID)
	}

	if req.IdempotencyKey != "" {
		if err := s.redis.SetIdempotencyKey(ctx, req.IdempotencyKey, sale.ID, 24*time.Hour); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	items := eventLineItems(req, unitPrices)

	event := &models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleCompleted,
			Timestamp: time.Now(),
		},
		SaleID:     sale.ID,
		LocationID: sale.LocationID,
		BuyerKind:  sale.BuyerKind,
		BuyerName:  sale.BuyerName,
		SellerID:   sale.SellerID,
		Total:      sale.Total,
		Items:      items,
	}
	if err := s.eventPublisher.PublishSaleCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleCompleted event", zap.Error(err))
	}

	for _, m := range stockMovements {
		product := products[m.ProductID]
		if product == nil || m.BalanceAfter >= product.MinStock {
			continue
		}
		util.LowStockAlertsTotal.Inc()
		lowEvent := &models.StockLowEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockLow,
				Timestamp: time.Now(),
			},
			ProductID:  m.ProductID,
			VariantID:  m.VariantID,
			LocationID: m.LocationID,
			Quantity:   m.BalanceAfter,
			MinStock:   product.MinStock,
		}
		if err := s.eventPublisher.PublishStockLow(ctx, lowEvent); err != nil {
			s.logger.Error("Failed to publish StockLow event",
				zap.Int64("product_id", m.ProductID), zap.Error(err))
		}
	}
}

// commissionRate resolves the product override, falling back to the default.
func (s *SaleService) commissionRate(product *models.Product) decimal.Decimal {
	if product != nil && product.CommissionRate.Valid {
		return product.CommissionRate.Decimal
	}
	return s.business.DefaultCommissionRate
}

// commissionFor computes amount * rate% rounded to cents.
func commissionFor(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// resolveDiscount turns a flat or percentage discount into a flat amount and
// rejects values that would make the total negative.
func resolveDiscount(subtotal, discount decimal.Decimal, percent bool) (decimal.Decimal, error) {
	if discount.IsNegative() {
		return decimal.Zero, &apperr.ValidationError{Field: "discount", Reason: "must not be negative"}
	}
	flat := discount
	if percent {
		if discount.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, &apperr.ValidationError{Field: "discount", Reason: "percentage above 100"}
		}
		flat = subtotal.Mul(discount).Div(decimal.NewFromInt(100)).Round(2)
	}
	if flat.GreaterThan(subtotal) {
		return decimal.Zero, &apperr.ValidationError{Field: "discount", Reason: "exceeds subtotal"}
	}
	return flat, nil
}

func validateSaleRequest(req *CreateSaleRequest) error {
	if len(req.Items) == 0 {
		return &apperr.ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return &apperr.ValidationError{Field: "quantity", Reason: "must be positive"}
		}
	}
	switch req.BuyerKind {
	case models.BuyerKindStudent, models.BuyerKindStaff, models.BuyerKindWalkIn:
	default:
		return &apperr.ValidationError{Field: "buyer_kind", Reason: fmt.Sprintf("unknown kind %q", req.BuyerKind)}
	}
	if req.Installments < 0 {
		return &apperr.ValidationError{Field: "installments", Reason: "must not be negative"}
	}
	if req.Installments == 0 {
		req.Installments = 1
	}
	return nil
}

// resolveProducts loads and checks every product referenced by the request.
func (s *SaleService) resolveProducts(ctx context.Context, items []SaleLineItemRequest) (map[int64]*models.Product, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	for _, id := range ids {
		product, ok := productMap[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d does not exist", apperr.ErrInvalidReference, id)
		}
		if !product.Active {
			return nil, &apperr.ValidationError{Field: "product_id", Reason: fmt.Sprintf("product %d is retired", id)}
		}
	}
	return productMap, nil
}

// resolveUnitPrice applies the variant price override when present.
func (s *SaleService) resolveUnitPrice(ctx context.Context, product *models.Product, variantID *int64) (decimal.Decimal, error) {
	if variantID == nil {
		return product.Price, nil
	}
	variant, err := s.store.GetVariantByID(ctx, *variantID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: variant %d", apperr.ErrInvalidReference, *variantID)
	}
	if variant.ProductID != product.ID {
		return decimal.Zero, fmt.Errorf("%w: variant %d does not belong to product %d", apperr.ErrInvalidReference, *variantID, product.ID)
	}
	if variant.PriceOverride.Valid {
		return variant.PriceOverride.Decimal, nil
	}
	return product.Price, nil
}

// ListSales returns the most recent sales for a location.
func (s *SaleService) ListSales(ctx context.Context, locationID int64, limit int) ([]models.Sale, error) {
	return s.store.GetSalesByLocation(ctx, locationID, limit)
}

// GetSale retrieves a sale with its line items.
func (s *SaleService) GetSale(ctx context.Context, saleID int64) (*models.Sale, []models.SaleLineItem, error) {
	sale, err := s.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.GetSaleLineItems(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	return sale, items, nil
}
