// Package ledger holds the two append-only ledgers at the heart of the
// lojinha: physical stock per (product, variant, location) and the carteira
// digital per (holder, kind, location). Both follow the same discipline:
// the current balance is mutated only through ApplyMovement, every movement
// snapshots the resulting balance, and rows are never updated or deleted.
// Corrections are opposite-sign movements, not edits.
package ledger

import (
	"context"
	"fmt"

	"lojinha-service/internal/apperr"
	"lojinha-service/internal/models"
	"lojinha-service/internal/redisclient"
	"lojinha-service/internal/store"
	"lojinha-service/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// StockLedger tracks per-location product quantities.
type StockLedger struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

// NewStockLedger creates a new stock ledger
func NewStockLedger(store *store.Store, cache *redisclient.Client) *StockLedger {
	return &StockLedger{
		store:  store,
		cache:  cache,
		logger: util.Named("stock-ledger"),
	}
}

// StockMovementParams describes one requested ledger movement.
type StockMovementParams struct {
	ProductID  int64
	VariantID  *int64
	LocationID int64
	Kind       string
	Delta      int
	SaleRef    *int64
	Note       string
}

func validStockKind(kind string) bool {
	switch kind {
	case models.StockKindEntry, models.StockKindSale, models.StockKindRefund, models.StockKindAdjustment:
		return true
	}
	return false
}

// ApplyMovement performs the read-modify-write for one stock tuple inside the
// caller's transaction. The record row is locked FOR UPDATE, so concurrent
// movements on the same tuple serialize; a sale that would drive the quantity
// negative fails without appending anything.
func (l *StockLedger) ApplyMovement(ctx context.Context, tx *sqlx.Tx, p StockMovementParams) (*models.StockMovement, error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.ApplyMovement")
	defer span.End()

	if p.Delta == 0 {
		return nil, &apperr.ValidationError{Field: "delta", Reason: "must be nonzero"}
	}
	if !validStockKind(p.Kind) {
		return nil, &apperr.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown stock movement kind %q", p.Kind)}
	}
	if (p.Kind == models.StockKindSale || p.Kind == models.StockKindRefund) && p.SaleRef == nil {
		return nil, fmt.Errorf("%w: %s movement requires a sale reference", apperr.ErrInvalidReference, p.Kind)
	}

	record, err := l.store.LockStockRecordTx(ctx, tx, p.ProductID, p.VariantID, p.LocationID)
	if err != nil {
		return nil, err
	}

	newBalance := record.Quantity + p.Delta
	if newBalance < 0 {
		if p.Kind == models.StockKindSale {
			return nil, &apperr.InsufficientStockError{
				ProductID: p.ProductID,
				VariantID: p.VariantID,
				Requested: -p.Delta,
				Available: record.Quantity,
			}
		}
		return nil, &apperr.ValidationError{Field: "delta", Reason: fmt.Sprintf("movement would drive stock to %d", newBalance)}
	}

	if err := l.store.UpdateStockQuantityTx(ctx, tx, record.ID, newBalance); err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		ProductID:    p.ProductID,
		VariantID:    p.VariantID,
		LocationID:   p.LocationID,
		Kind:         p.Kind,
		Delta:        p.Delta,
		BalanceAfter: newBalance,
		SaleRef:      p.SaleRef,
		Note:         p.Note,
	}
	if err := l.store.InsertStockMovementTx(ctx, tx, movement); err != nil {
		return nil, err
	}

	util.StockMovementsTotal.WithLabelValues(p.Kind).Inc()
	return movement, nil
}

// Quantity returns the current balance for a tuple, 0 when the record does
// not exist. Reads go through the Redis cache; Postgres stays authoritative.
func (l *StockLedger) Quantity(ctx context.Context, productID int64, variantID *int64, locationID int64) (int, error) {
	if qty, ok, err := l.cache.GetStockQuantity(ctx, productID, variantID, locationID); err == nil && ok {
		return qty, nil
	} else if err != nil {
		l.logger.Warn("stock cache read failed, falling back to database",
			zap.Int64("product_id", productID), zap.Error(err))
	}

	qty, err := l.store.GetStockQuantity(ctx, productID, variantID, locationID)
	if err != nil {
		return 0, err
	}

	if err := l.cache.SetStockQuantity(ctx, productID, variantID, locationID, qty); err != nil {
		l.logger.Warn("stock cache write failed", zap.Error(err))
	}
	return qty, nil
}

// InvalidateQuantity drops the cached balance. Called after a transaction
// touching the tuple commits; the next read repopulates from Postgres.
func (l *StockLedger) InvalidateQuantity(ctx context.Context, productID int64, variantID *int64, locationID int64) {
	if err := l.cache.DeleteStockQuantity(ctx, productID, variantID, locationID); err != nil {
		l.logger.Warn("stock cache invalidation failed",
			zap.Int64("product_id", productID), zap.Error(err))
	}
}

// ListLowStock returns tuples sitting below their product's minimum.
func (l *StockLedger) ListLowStock(ctx context.Context, locationID int64) ([]models.LowStockItem, error) {
	return l.store.ListLowStock(ctx, locationID)
}

// Audit replays the movement log for one tuple and compares the sum of
// deltas against the stored quantity. A mismatch means ledger corruption.
func (l *StockLedger) Audit(ctx context.Context, productID int64, variantID *int64, locationID int64) error {
	movements, err := l.store.ListStockMovements(ctx, productID, variantID, locationID)
	if err != nil {
		return err
	}
	stored, err := l.store.GetStockQuantity(ctx, productID, variantID, locationID)
	if err != nil {
		return err
	}

	replayed := ReplayStock(movements)
	if replayed != stored {
		return fmt.Errorf("stock ledger mismatch for product %d at location %d: replayed %d, stored %d",
			productID, locationID, replayed, stored)
	}
	return nil
}

// ReplayStock sums movement deltas in log order. Given the full log of a
// tuple this must equal the stored quantity, and every intermediate
// balance_after must match the running sum.
func ReplayStock(movements []models.StockMovement) int {
	total := 0
	for _, m := range movements {
		total += m.Delta
	}
	return total
}
