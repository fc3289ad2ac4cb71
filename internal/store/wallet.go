package store

import (
	"context"
	"database/sql"

	"lojinha-service/internal/apperr"
	"lojinha-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// LockWalletTx returns the wallet for (holder, kind, location), creating it
// lazily with a zero balance, and holds a FOR UPDATE lock. A withdrawal and a
// commission credit racing on the same wallet serialize here.
func (s *Store) LockWalletTx(ctx context.Context, tx *sqlx.Tx, holderID int64, holderKind string, locationID int64) (*models.Wallet, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (holder_id, holder_kind, location_id, balance, loyalty_units)
		VALUES ($1, $2, $3, 0, 0)
		ON CONFLICT (holder_id, holder_kind, location_id) DO NOTHING`,
		holderID, holderKind, locationID)
	if err != nil {
		return nil, classify(err)
	}

	var wallet models.Wallet
	err = tx.GetContext(ctx, &wallet, `
		SELECT * FROM wallets
		WHERE holder_id = $1 AND holder_kind = $2 AND location_id = $3
		FOR UPDATE`,
		holderID, holderKind, locationID)
	if err != nil {
		return nil, classify(err)
	}
	return &wallet, nil
}

// LockWalletByIDTx locks an existing wallet row by primary key.
func (s *Store) LockWalletByIDTx(ctx context.Context, tx *sqlx.Tx, walletID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.GetContext(ctx, &wallet,
		"SELECT * FROM wallets WHERE id = $1 FOR UPDATE", walletID)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "wallet", ID: walletID}
	}
	if err != nil {
		return nil, classify(err)
	}
	return &wallet, nil
}

// UpdateWalletBalanceTx writes the new balance for a locked wallet.
func (s *Store) UpdateWalletBalanceTx(ctx context.Context, tx *sqlx.Tx, walletID int64, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2",
		balance, walletID)
	return classify(err)
}

// UpdateWalletLoyaltyTx writes the new loyalty counter for a locked wallet.
func (s *Store) UpdateWalletLoyaltyTx(ctx context.Context, tx *sqlx.Tx, walletID int64, units int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE wallets SET loyalty_units = $1, updated_at = NOW() WHERE id = $2",
		units, walletID)
	return classify(err)
}

// InsertWalletMovementTx appends one row to the wallet ledger.
func (s *Store) InsertWalletMovementTx(ctx context.Context, tx *sqlx.Tx, m *models.WalletMovement) error {
	query := `
		INSERT INTO wallet_movements (wallet_id, kind, delta, balance_after, reference, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := tx.GetContext(ctx, m, query,
		m.WalletID, m.Kind, m.Delta, m.BalanceAfter, m.Reference, m.Description)
	return classify(err)
}

// GetWallet returns the wallet for (holder, kind, location), nil when absent.
func (s *Store) GetWallet(ctx context.Context, holderID int64, holderKind string, locationID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.GetContext(ctx, &wallet, `
		SELECT * FROM wallets
		WHERE holder_id = $1 AND holder_kind = $2 AND location_id = $3`,
		holderID, holderKind, locationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &wallet, nil
}

// GetWalletByID retrieves a wallet by primary key.
func (s *Store) GetWalletByID(ctx context.Context, walletID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.GetContext(ctx, &wallet, "SELECT * FROM wallets WHERE id = $1", walletID)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "wallet", ID: walletID}
	}
	if err != nil {
		return nil, classify(err)
	}
	return &wallet, nil
}

// GetWalletMovementsByReference returns movements tagged with a reference,
// used by the refund orchestrator to find a sale's commission credits.
func (s *Store) GetWalletMovementsByReference(ctx context.Context, reference string) ([]models.WalletMovement, error) {
	var movements []models.WalletMovement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM wallet_movements WHERE reference = $1 ORDER BY id", reference)
	return movements, classify(err)
}

// GetWalletMovementsByReferenceTx is the in-transaction variant used during refunds.
func (s *Store) GetWalletMovementsByReferenceTx(ctx context.Context, tx *sqlx.Tx, reference string) ([]models.WalletMovement, error) {
	var movements []models.WalletMovement
	err := tx.SelectContext(ctx, &movements,
		"SELECT * FROM wallet_movements WHERE reference = $1 ORDER BY id", reference)
	return movements, classify(err)
}

// ListWalletMovements returns the full ledger for one wallet, chronologically.
func (s *Store) ListWalletMovements(ctx context.Context, walletID int64) ([]models.WalletMovement, error) {
	var movements []models.WalletMovement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM wallet_movements WHERE wallet_id = $1 ORDER BY created_at, id", walletID)
	return movements, classify(err)
}
