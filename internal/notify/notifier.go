// Package notify is the boundary to the school's messaging gateway. The
// core treats delivery as best-effort: a failed receipt or alert is logged
// and counted, never rolled back into the sale or refund that triggered it.
package notify

import (
	"context"
	"fmt"

	"lojinha-service/internal/models"
	"lojinha-service/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers templated messages to a destination.
type Notifier interface {
	SendReceipt(ctx context.Context, event *models.SaleCompletedEvent) error
	SendRefundNotice(ctx context.Context, event *models.SaleRefundedEvent) error
	SendLowStockAlert(ctx context.Context, event *models.StockLowEvent) error
}

// GatewayNotifier formats messages for the WhatsApp gateway used by the
// dashboard. Delivery itself happens out of process; this implementation
// logs the rendered payloads.
type GatewayNotifier struct {
	logger *zap.Logger
}

// NewGatewayNotifier creates a new gateway notifier
func NewGatewayNotifier() *GatewayNotifier {
	return &GatewayNotifier{logger: util.Named("notifier")}
}

func (n *GatewayNotifier) SendReceipt(ctx context.Context, event *models.SaleCompletedEvent) error {
	message := fmt.Sprintf("Obrigado pela compra, %s! Total: R$ %s", event.BuyerName, event.Total.StringFixed(2))
	n.logger.Info("Receipt dispatched",
		zap.Int64("sale_id", event.SaleID),
		zap.String("message", message))
	return nil
}

func (n *GatewayNotifier) SendRefundNotice(ctx context.Context, event *models.SaleRefundedEvent) error {
	message := fmt.Sprintf("Estorno da venda %d processado: R$ %s", event.SaleID, event.Total.StringFixed(2))
	n.logger.Info("Refund notice dispatched",
		zap.Int64("sale_id", event.SaleID),
		zap.String("message", message))
	return nil
}

func (n *GatewayNotifier) SendLowStockAlert(ctx context.Context, event *models.StockLowEvent) error {
	message := fmt.Sprintf("Estoque baixo: produto %d na unidade %d com %d unidades (minimo %d)",
		event.ProductID, event.LocationID, event.Quantity, event.MinStock)
	n.logger.Warn("Low stock alert dispatched",
		zap.Int64("product_id", event.ProductID),
		zap.String("message", message))
	return nil
}
