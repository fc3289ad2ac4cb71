package service

import (
	"context"
	"fmt"
	"time"

	"lojinha-service/config"
	"lojinha-service/internal/apperr"
	"lojinha-service/internal/broker"
	"lojinha-service/internal/ledger"
	"lojinha-service/internal/models"
	"lojinha-service/internal/store"
	"lojinha-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletService exposes the leaf wallet operations: withdrawal against an
// external settlement, and in-store spend against the catalog.
type WalletService struct {
	store          *store.Store
	wallets        *ledger.WalletLedger
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(
	store *store.Store,
	wallets *ledger.WalletLedger,
	eventPublisher *broker.EventPublisher,
	business config.BusinessConfig,
) *WalletService {
	return &WalletService{
		store:          store,
		wallets:        wallets,
		eventPublisher: eventPublisher,
		business:       business,
		logger:         util.Named("wallet-service"),
	}
}

// WithdrawRequest represents a request to withdraw from a wallet
type WithdrawRequest struct {
	WalletID         int64           `json:"wallet_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	SettlementMethod string          `json:"settlement_method" binding:"required"`
	Notes            string          `json:"notes,omitempty"`
}

// SpendRequest represents a request to spend wallet balance in store
type SpendRequest struct {
	WalletID    int64           `json:"wallet_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description,omitempty"`
}

func validSettlement(method string) bool {
	switch method {
	case models.SettlementPayroll, models.SettlementTransfer, models.SettlementCash:
		return true
	}
	return false
}

// Withdraw debits the wallet, tagging the movement with the settlement
// method and a reference for downstream reconciliation. Fails without
// recording anything when the amount exceeds the balance.
func (s *WalletService) Withdraw(ctx context.Context, req *WithdrawRequest) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.Withdraw")
	defer span.End()

	if !req.Amount.IsPositive() {
		return decimal.Zero, &apperr.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !validSettlement(req.SettlementMethod) {
		return decimal.Zero, &apperr.ValidationError{Field: "settlement_method", Reason: fmt.Sprintf("unknown method %q", req.SettlementMethod)}
	}

	settlementRef := fmt.Sprintf("%s:%s", req.SettlementMethod, uuid.New().String()[:8])
	movement, err := s.debit(ctx, req.WalletID, models.WalletKindWithdrawal, req.Amount, settlementRef, req.Notes)
	if err != nil {
		util.WalletOperationsFailed.WithLabelValues(failureReason(err)).Inc()
		return decimal.Zero, err
	}

	s.logger.Info("Withdrawal applied",
		zap.Int64("wallet_id", req.WalletID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("settlement", settlementRef))

	s.afterDebit(ctx, movement, req.SettlementMethod)
	return movement.BalanceAfter, nil
}

// SpendInStore debits the wallet for a purchase at the lojinha counter.
func (s *WalletService) SpendInStore(ctx context.Context, req *SpendRequest) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.SpendInStore")
	defer span.End()

	if !req.Amount.IsPositive() {
		return decimal.Zero, &apperr.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	movement, err := s.debit(ctx, req.WalletID, models.WalletKindInStoreSpend, req.Amount, "", req.Description)
	if err != nil {
		util.WalletOperationsFailed.WithLabelValues(failureReason(err)).Inc()
		return decimal.Zero, err
	}

	s.logger.Info("In-store spend applied",
		zap.Int64("wallet_id", req.WalletID),
		zap.String("amount", req.Amount.StringFixed(2)))

	s.afterDebit(ctx, movement, "")
	return movement.BalanceAfter, nil
}

// debit runs a single negative movement in its own transaction.
func (s *WalletService) debit(ctx context.Context, walletID int64, kind string, amount decimal.Decimal, reference, description string) (*models.WalletMovement, error) {
	var movement *models.WalletMovement
	err := s.store.WithTx(ctx, s.business.TxRetryAttempts, func(tx *sqlx.Tx) error {
		var err error
		movement, err = s.wallets.ApplyMovement(ctx, tx, ledger.WalletMovementParams{
			WalletID:    walletID,
			Kind:        kind,
			Delta:       amount.Neg(),
			Reference:   reference,
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *WalletService) afterDebit(ctx context.Context, movement *models.WalletMovement, settlement string) {
	wallet, err := s.store.GetWalletByID(ctx, movement.WalletID)
	if err == nil {
		s.wallets.InvalidateBalance(ctx, wallet.HolderID, wallet.HolderKind, wallet.LocationID)
	}

	event := &models.WalletDebitedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeWalletDebited,
			Timestamp: time.Now(),
		},
		WalletID:   movement.WalletID,
		Kind:       movement.Kind,
		Amount:     movement.Delta.Neg(),
		Settlement: settlement,
	}
	if err := s.eventPublisher.PublishWalletDebited(ctx, event); err != nil {
		s.logger.Error("Failed to publish WalletDebited event", zap.Error(err))
	}
}

// Balance returns the cash balance for a holder tuple.
func (s *WalletService) Balance(ctx context.Context, holderID int64, holderKind string, locationID int64) (decimal.Decimal, error) {
	return s.wallets.Balance(ctx, holderID, holderKind, locationID)
}

// CreditLoyalty adds lalita units and returns the new count plus its cash
// display value at the configured conversion rate.
func (s *WalletService) CreditLoyalty(ctx context.Context, holderID int64, holderKind string, locationID, units int64) (int, decimal.Decimal, error) {
	count, err := s.wallets.CreditLoyalty(ctx, s.business.TxRetryAttempts, holderID, holderKind, locationID, units)
	if err != nil {
		return 0, decimal.Zero, err
	}
	value := s.business.LoyaltyUnitValue.Mul(decimal.NewFromInt(int64(count)))
	return count, value, nil
}

// ConvertLoyalty turns lalita units into cash balance at the configured
// rate: the counter is decremented and a LOYALTY_CREDIT movement credits
// the wallet, both in one transaction.
func (s *WalletService) ConvertLoyalty(ctx context.Context, holderID int64, holderKind string, locationID, units int64) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.ConvertLoyalty")
	defer span.End()

	if units <= 0 {
		return decimal.Zero, &apperr.ValidationError{Field: "units", Reason: "must be positive"}
	}
	cash := s.business.LoyaltyUnitValue.Mul(decimal.NewFromInt(units))

	var movement *models.WalletMovement
	err := s.store.WithTx(ctx, s.business.TxRetryAttempts, func(tx *sqlx.Tx) error {
		debited, err := s.wallets.DebitLoyaltyTx(ctx, tx, holderID, holderKind, locationID, int(units))
		if err != nil {
			return err
		}
		movement, err = s.wallets.ApplyMovement(ctx, tx, ledger.WalletMovementParams{
			WalletID:    debited,
			Kind:        models.WalletKindLoyaltyCredit,
			Delta:       cash,
			Reference:   fmt.Sprintf("loyalty:%d", units),
			Description: fmt.Sprintf("conversion of %d lalitas", units),
		})
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.wallets.InvalidateBalance(ctx, holderID, holderKind, locationID)
	s.logger.Info("Loyalty converted",
		zap.Int64("holder_id", holderID),
		zap.Int64("units", units),
		zap.String("cash", cash.StringFixed(2)))
	return movement.BalanceAfter, nil
}
