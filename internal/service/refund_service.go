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
	"go.uber.org/zap"
)

// RefundService reverses a completed sale: stock back in, commissions
// reversed, status flipped, all in one transaction.
type RefundService struct {
	store          *store.Store
	stock          *ledger.StockLedger
	wallets        *ledger.WalletLedger
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewRefundService creates a new refund service
func NewRefundService(
	store *store.Store,
	stock *ledger.StockLedger,
	wallets *ledger.WalletLedger,
	eventPublisher *broker.EventPublisher,
	business config.BusinessConfig,
) *RefundService {
	return &RefundService{
		store:          store,
		stock:          stock,
		wallets:        wallets,
		eventPublisher: eventPublisher,
		business:       business,
		logger:         util.Named("refund-service"),
	}
}

// reversibleKind reports whether a wallet movement created by a sale must
// be reversed on refund.
func reversibleKind(kind string) bool {
	return kind == models.WalletKindSaleCommission || kind == models.WalletKindReferralCommission
}

// RefundSale performs the at-most-once reversal of a completed sale. The
// sale row is locked FOR UPDATE so a racing second refund sees the flipped
// status and fails with AlreadyRefunded without writing anything.
func (s *RefundService) RefundSale(ctx context.Context, saleID int64, reason, notes string) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.RefundSale")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RefundProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	var sale *models.Sale
	var items []models.SaleLineItem
	var reversed []models.WalletMovement

	err := s.store.WithTx(ctx, s.business.TxRetryAttempts, func(tx *sqlx.Tx) error {
		reversed = reversed[:0]

		var err error
		sale, err = s.store.LockSaleTx(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != models.SaleStatusCompleted {
			return &apperr.AlreadyRefundedError{SaleID: saleID}
		}

		items, err = s.store.GetSaleLineItemsTx(ctx, tx, saleID)
		if err != nil {
			return err
		}

		for _, item := range items {
			_, err := s.stock.ApplyMovement(ctx, tx, ledger.StockMovementParams{
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				LocationID: sale.LocationID,
				Kind:       models.StockKindRefund,
				Delta:      item.Quantity,
				SaleRef:    &saleID,
				Note:       notes,
			})
			if err != nil {
				return err
			}
		}

		movements, err := s.store.GetWalletMovementsByReferenceTx(ctx, tx, saleRef(saleID))
		if err != nil {
			return err
		}
		for _, m := range movements {
			if !reversibleKind(m.Kind) {
				continue
			}
			_, err := s.wallets.ApplyMovement(ctx, tx, ledger.WalletMovementParams{
				WalletID:    m.WalletID,
				Kind:        models.WalletKindCommissionReversal,
				Delta:       m.Delta.Neg(),
				Reference:   fmt.Sprintf("movement:%d", m.ID),
				Description: fmt.Sprintf("reversal of %s on sale %d", m.Kind, saleID),
			})
			if err != nil {
				return err
			}
			reversed = append(reversed, m)
		}

		if err := s.store.MarkSaleRefundedTx(ctx, tx, saleID, reason, time.Now()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.SalesRefundedTotal.Inc()
	s.logger.Info("Sale refunded",
		zap.Int64("sale_id", saleID),
		zap.String("reason", reason))

	s.afterRefundCommit(ctx, sale, items, reversed, reason)

	return s.store.GetSaleByID(ctx, saleID)
}

// afterRefundCommit invalidates caches and publishes the refund event.
// Failures here are logged, never surfaced.
func (s *RefundService) afterRefundCommit(ctx context.Context, sale *models.Sale, items []models.SaleLineItem, reversed []models.WalletMovement, reason string) {
	for _, item := range items {
		s.stock.InvalidateQuantity(ctx, item.ProductID, item.VariantID, sale.LocationID)
	}
	for _, m := range reversed {
		wallet, err := s.store.GetWalletByID(ctx, m.WalletID)
		if err != nil {
			s.logger.Warn("Failed to resolve wallet for cache invalidation",
				zap.Int64("wallet_id", m.WalletID), zap.Error(err))
			continue
		}
		s.wallets.InvalidateBalance(ctx, wallet.HolderID, wallet.HolderKind, wallet.LocationID)
	}

	event := &models.SaleRefundedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleRefunded,
			Timestamp: time.Now(),
		},
		SaleID:     sale.ID,
		LocationID: sale.LocationID,
		Total:      sale.Total,
		Reason:     reason,
	}
	if err := s.eventPublisher.PublishSaleRefunded(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleRefunded event", zap.Error(err))
	}
}
