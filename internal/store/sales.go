package store

import (
	"context"
	"database/sql"
	"time"

	"lojinha-service/internal/apperr"
	"lojinha-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertSaleTx creates the sale header inside the orchestration transaction.
func (s *Store) InsertSaleTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale) error {
	query := `
		INSERT INTO sales (location_id, buyer_kind, buyer_name, seller_id, referrer_id,
			subtotal, discount, total, payment_method, installments, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := tx.GetContext(ctx, sale, query,
		sale.LocationID, sale.BuyerKind, sale.BuyerName, sale.SellerID, sale.ReferrerID,
		sale.Subtotal, sale.Discount, sale.Total, sale.PaymentMethod, sale.Installments, sale.Status)
	return classify(err)
}

// InsertSaleLineItemTx creates one line item inside the orchestration transaction.
func (s *Store) InsertSaleLineItemTx(ctx context.Context, tx *sqlx.Tx, item *models.SaleLineItem) error {
	query := `
		INSERT INTO sale_line_items (sale_id, product_id, variant_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := tx.GetContext(ctx, &item.ID, query,
		item.SaleID, item.ProductID, item.VariantID, item.Quantity, item.UnitPrice, item.Subtotal)
	return classify(err)
}

// GetSaleByID retrieves a sale by ID
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "sale", ID: id}
	}
	if err != nil {
		return nil, classify(err)
	}
	return &sale, nil
}

// LockSaleTx loads a sale FOR UPDATE so two concurrent refunds of the same
// sale serialize and the loser sees the flipped status.
func (s *Store) LockSaleTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := tx.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "sale", ID: id}
	}
	if err != nil {
		return nil, classify(err)
	}
	return &sale, nil
}

// MarkSaleRefundedTx flips the sale to REFUNDED with refund metadata.
func (s *Store) MarkSaleRefundedTx(ctx context.Context, tx *sqlx.Tx, saleID int64, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sales SET status = $1, refunded_at = $2, refund_reason = $3 WHERE id = $4`,
		models.SaleStatusRefunded, at, reason, saleID)
	return classify(err)
}

// GetSaleLineItems retrieves all line items for a sale
func (s *Store) GetSaleLineItems(ctx context.Context, saleID int64) ([]models.SaleLineItem, error) {
	var items []models.SaleLineItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM sale_line_items WHERE sale_id = $1 ORDER BY id", saleID)
	return items, classify(err)
}

// GetSaleLineItemsTx is the in-transaction variant used during refunds.
func (s *Store) GetSaleLineItemsTx(ctx context.Context, tx *sqlx.Tx, saleID int64) ([]models.SaleLineItem, error) {
	var items []models.SaleLineItem
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM sale_line_items WHERE sale_id = $1 ORDER BY id", saleID)
	return items, classify(err)
}

// GetSalesByLocation retrieves recent sales for a location
func (s *Store) GetSalesByLocation(ctx context.Context, locationID int64, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := s.db.SelectContext(ctx, &sales,
		"SELECT * FROM sales WHERE location_id = $1 ORDER BY created_at DESC LIMIT $2",
		locationID, limit)
	return sales, classify(err)
}
