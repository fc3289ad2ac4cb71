package store

import (
	"context"
	"database/sql"

	"lojinha-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// LockStockRecordTx returns the stock record for the tuple, creating it lazily
// with quantity 0, and holds a FOR UPDATE lock until the transaction ends.
// Two concurrent sales of the last unit serialize on this lock.
func (s *Store) LockStockRecordTx(ctx context.Context, tx *sqlx.Tx, productID int64, variantID *int64, locationID int64) (*models.StockRecord, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_records (product_id, variant_id, location_id, quantity)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (product_id, COALESCE(variant_id, 0), location_id) DO NOTHING`,
		productID, variantID, locationID)
	if err != nil {
		return nil, classify(err)
	}

	var record models.StockRecord
	err = tx.GetContext(ctx, &record, `
		SELECT * FROM stock_records
		WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2 AND location_id = $3
		FOR UPDATE`,
		productID, variantID, locationID)
	if err != nil {
		return nil, classify(err)
	}
	return &record, nil
}

// UpdateStockQuantityTx writes the new quantity for a locked record.
func (s *Store) UpdateStockQuantityTx(ctx context.Context, tx *sqlx.Tx, recordID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE stock_records SET quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, recordID)
	return classify(err)
}

// InsertStockMovementTx appends one row to the stock ledger.
func (s *Store) InsertStockMovementTx(ctx context.Context, tx *sqlx.Tx, m *models.StockMovement) error {
	query := `
		INSERT INTO stock_movements (product_id, variant_id, location_id, kind, delta, balance_after, sale_ref, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := tx.GetContext(ctx, m, query,
		m.ProductID, m.VariantID, m.LocationID, m.Kind, m.Delta, m.BalanceAfter, m.SaleRef, m.Note)
	return classify(err)
}

// GetStockQuantity returns the current quantity, 0 when no record exists.
func (s *Store) GetStockQuantity(ctx context.Context, productID int64, variantID *int64, locationID int64) (int, error) {
	var quantity int
	err := s.db.GetContext(ctx, &quantity, `
		SELECT quantity FROM stock_records
		WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2 AND location_id = $3`,
		productID, variantID, locationID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return quantity, nil
}

// ListLowStock returns records sitting below their product's minimum at a location.
func (s *Store) ListLowStock(ctx context.Context, locationID int64) ([]models.LowStockItem, error) {
	var items []models.LowStockItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT sr.product_id, sr.variant_id, p.name AS product_name, sr.quantity, p.min_stock
		FROM stock_records sr
		JOIN products p ON p.id = sr.product_id
		WHERE sr.location_id = $1 AND p.active AND sr.quantity < p.min_stock
		ORDER BY sr.quantity ASC`,
		locationID)
	return items, classify(err)
}

// GetStockMovementsBySale returns the ledger rows a sale produced.
func (s *Store) GetStockMovementsBySale(ctx context.Context, saleID int64) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM stock_movements WHERE sale_ref = $1 ORDER BY id", saleID)
	return movements, classify(err)
}

// ListStockMovements returns the full ledger for one tuple, chronologically.
func (s *Store) ListStockMovements(ctx context.Context, productID int64, variantID *int64, locationID int64) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := s.db.SelectContext(ctx, &movements, `
		SELECT * FROM stock_movements
		WHERE product_id = $1 AND variant_id IS NOT DISTINCT FROM $2 AND location_id = $3
		ORDER BY created_at, id`,
		productID, variantID, locationID)
	return movements, classify(err)
}
