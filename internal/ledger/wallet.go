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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletLedger tracks carteira digital balances and their movement log.
type WalletLedger struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

// NewWalletLedger creates a new wallet ledger
func NewWalletLedger(store *store.Store, cache *redisclient.Client) *WalletLedger {
	return &WalletLedger{
		store:  store,
		cache:  cache,
		logger: util.Named("wallet-ledger"),
	}
}

// WalletMovementParams describes one requested wallet movement, addressed
// either by wallet ID (withdraw/spend paths) or by holder tuple (credits,
// which create the wallet lazily).
type WalletMovementParams struct {
	WalletID    int64 // 0 when addressing by holder
	HolderID    int64
	HolderKind  string
	LocationID  int64
	Kind        string
	Delta       decimal.Decimal
	Reference   string
	Description string
}

func validWalletKind(kind string) bool {
	switch kind {
	case models.WalletKindSaleCommission, models.WalletKindReferralCommission,
		models.WalletKindLoyaltyCredit, models.WalletKindWithdrawal,
		models.WalletKindInStoreSpend, models.WalletKindCommissionReversal,
		models.WalletKindManualAdjustment:
		return true
	}
	return false
}

// debitKind reports whether a kind must never overdraw the wallet.
func debitKind(kind string) bool {
	return kind == models.WalletKindWithdrawal || kind == models.WalletKindInStoreSpend
}

// ApplyMovement performs the read-modify-write on one wallet inside the
// caller's transaction. The wallet row is locked FOR UPDATE; withdrawal and
// in-store spend fail when the delta magnitude exceeds the balance, leaving
// the ledger untouched.
func (l *WalletLedger) ApplyMovement(ctx context.Context, tx *sqlx.Tx, p WalletMovementParams) (*models.WalletMovement, error) {
	ctx, span := util.StartSpan(ctx, "WalletLedger.ApplyMovement")
	defer span.End()

	if p.Delta.IsZero() {
		return nil, &apperr.ValidationError{Field: "delta", Reason: "must be nonzero"}
	}
	if !validWalletKind(p.Kind) {
		return nil, &apperr.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown wallet movement kind %q", p.Kind)}
	}

	var wallet *models.Wallet
	var err error
	if p.WalletID != 0 {
		wallet, err = l.store.LockWalletByIDTx(ctx, tx, p.WalletID)
	} else {
		wallet, err = l.store.LockWalletTx(ctx, tx, p.HolderID, p.HolderKind, p.LocationID)
	}
	if err != nil {
		return nil, err
	}

	newBalance := wallet.Balance.Add(p.Delta)
	if debitKind(p.Kind) && newBalance.IsNegative() {
		return nil, &apperr.InsufficientBalanceError{
			WalletID:  wallet.ID,
			Requested: p.Delta.Neg().StringFixed(2),
			Available: wallet.Balance.StringFixed(2),
		}
	}

	if err := l.store.UpdateWalletBalanceTx(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, err
	}

	movement := &models.WalletMovement{
		WalletID:     wallet.ID,
		Kind:         p.Kind,
		Delta:        p.Delta,
		BalanceAfter: newBalance,
		Reference:    p.Reference,
		Description:  p.Description,
	}
	if err := l.store.InsertWalletMovementTx(ctx, tx, movement); err != nil {
		return nil, err
	}

	util.WalletMovementsTotal.WithLabelValues(p.Kind).Inc()
	return movement, nil
}

// Balance returns the wallet balance for a holder tuple, zero when absent.
func (l *WalletLedger) Balance(ctx context.Context, holderID int64, holderKind string, locationID int64) (decimal.Decimal, error) {
	if raw, ok, err := l.cache.GetWalletBalance(ctx, holderID, holderKind, locationID); err == nil && ok {
		if balance, perr := decimal.NewFromString(raw); perr == nil {
			return balance, nil
		}
	} else if err != nil {
		l.logger.Warn("wallet cache read failed, falling back to database",
			zap.Int64("holder_id", holderID), zap.Error(err))
	}

	wallet, err := l.store.GetWallet(ctx, holderID, holderKind, locationID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	if wallet != nil {
		balance = wallet.Balance
	}
	if err := l.cache.SetWalletBalance(ctx, holderID, holderKind, locationID, balance.String()); err != nil {
		l.logger.Warn("wallet cache write failed", zap.Error(err))
	}
	return balance, nil
}

// InvalidateBalance drops the cached balance after a committed movement.
func (l *WalletLedger) InvalidateBalance(ctx context.Context, holderID int64, holderKind string, locationID int64) {
	if err := l.cache.DeleteWalletBalance(ctx, holderID, holderKind, locationID); err != nil {
		l.logger.Warn("wallet cache invalidation failed",
			zap.Int64("holder_id", holderID), zap.Error(err))
	}
}

// CreditLoyalty adds lalita units to a wallet's separate loyalty counter.
// Units are not cash; they convert to a display value at the configured rate
// and are spendable only after explicit conversion.
func (l *WalletLedger) CreditLoyalty(ctx context.Context, retries int, holderID int64, holderKind string, locationID, units int64) (int, error) {
	ctx, span := util.StartSpan(ctx, "WalletLedger.CreditLoyalty")
	defer span.End()

	if units <= 0 {
		return 0, &apperr.ValidationError{Field: "units", Reason: "must be positive"}
	}

	var newCount int
	err := l.store.WithTx(ctx, retries, func(tx *sqlx.Tx) error {
		wallet, err := l.store.LockWalletTx(ctx, tx, holderID, holderKind, locationID)
		if err != nil {
			return err
		}
		newCount = wallet.LoyaltyUnits + int(units)
		return l.store.UpdateWalletLoyaltyTx(ctx, tx, wallet.ID, newCount)
	})
	if err != nil {
		return 0, err
	}

	util.LoyaltyUnitsCreditedTotal.Add(float64(units))
	return newCount, nil
}

// DebitLoyaltyTx removes lalita units inside an existing transaction and
// returns the wallet ID so the caller can credit the cash counterpart.
func (l *WalletLedger) DebitLoyaltyTx(ctx context.Context, tx *sqlx.Tx, holderID int64, holderKind string, locationID int64, units int) (int64, error) {
	wallet, err := l.store.LockWalletTx(ctx, tx, holderID, holderKind, locationID)
	if err != nil {
		return 0, err
	}
	if wallet.LoyaltyUnits < units {
		return 0, &apperr.InsufficientBalanceError{
			WalletID:  wallet.ID,
			Requested: fmt.Sprintf("%d lalitas", units),
			Available: fmt.Sprintf("%d lalitas", wallet.LoyaltyUnits),
		}
	}
	if err := l.store.UpdateWalletLoyaltyTx(ctx, tx, wallet.ID, wallet.LoyaltyUnits-units); err != nil {
		return 0, err
	}
	return wallet.ID, nil
}

// Audit replays the movement log for one wallet against the stored balance.
func (l *WalletLedger) Audit(ctx context.Context, walletID int64) error {
	wallet, err := l.store.GetWalletByID(ctx, walletID)
	if err != nil {
		return err
	}
	movements, err := l.store.ListWalletMovements(ctx, walletID)
	if err != nil {
		return err
	}

	replayed := ReplayWallet(movements)
	if !replayed.Equal(wallet.Balance) {
		return fmt.Errorf("wallet ledger mismatch for wallet %d: replayed %s, stored %s",
			walletID, replayed, wallet.Balance)
	}
	return nil
}

// ReplayWallet sums movement deltas in log order.
func ReplayWallet(movements []models.WalletMovement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Delta)
	}
	return total
}
