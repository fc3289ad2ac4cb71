package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"lojinha-service/internal/apperr"
	"lojinha-service/internal/models"
	"lojinha-service/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a transaction, retrying on serialization conflicts
// up to maxRetries times. Sale and refund orchestration run entirely through
// this so ledger writes are all-or-nothing.
func (s *Store) WithTx(ctx context.Context, maxRetries int, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			util.TxRetriesTotal.Inc()
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return classify(err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			err = classify(err)
			if errors.Is(err, apperr.ErrConcurrencyConflict) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			err = classify(err)
			if errors.Is(err, apperr.ErrConcurrencyConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// classify maps driver-level failures onto the error taxonomy. Serialization
// and deadlock failures are retryable; transport failures are not.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", apperr.ErrConcurrencyConflict, err)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %v", apperr.ErrInvalidReference, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return nil, classify(err)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, classify(err)
}

// GetProducts retrieves all active products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products WHERE active ORDER BY id")
	return products, classify(err)
}

// CreateProduct inserts a catalog entry
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (sku, name, price, cost, min_stock, commission_rate, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, p, query,
		p.SKU, p.Name, p.Price, p.Cost, p.MinStock, p.CommissionRate, p.Active)
	return classify(err)
}

// UpdateProduct updates the mutable catalog fields
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, price = $2, cost = $3, min_stock = $4, commission_rate = $5, active = $6, updated_at = NOW()
		WHERE id = $7`,
		p.Name, p.Price, p.Cost, p.MinStock, p.CommissionRate, p.Active, p.ID)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &apperr.NotFoundError{Entity: "product", ID: p.ID}
	}
	return nil
}

// GetVariantByID retrieves a variant by ID
func (s *Store) GetVariantByID(ctx context.Context, id int64) (*models.Variant, error) {
	var variant models.Variant
	err := s.db.GetContext(ctx, &variant, "SELECT * FROM product_variants WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "variant", ID: id}
	}
	if err != nil {
		return nil, classify(err)
	}
	return &variant, nil
}

// CreateVariant inserts a product variant
func (s *Store) CreateVariant(ctx context.Context, v *models.Variant) error {
	query := `
		INSERT INTO product_variants (product_id, name, sku_suffix, price_override, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, v, query,
		v.ProductID, v.Name, v.SKUSuffix, v.PriceOverride, v.Active)
	return classify(err)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, classify(err)
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return classify(err)
}
