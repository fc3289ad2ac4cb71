package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCompleted = "SALE_COMPLETED"
	EventTypeSaleRefunded  = "SALE_REFUNDED"
	EventTypeStockLow      = "STOCK_LOW"
	EventTypeWalletDebited = "WALLET_DEBITED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent published after a sale commits; drives the receipt
// notification and reporting read models.
type SaleCompletedEvent struct {
	BaseEvent
	SaleID     int64              `json:"sale_id"`
	LocationID int64              `json:"location_id"`
	BuyerKind  string             `json:"buyer_kind"`
	BuyerName  string             `json:"buyer_name"`
	SellerID   int64              `json:"seller_id"`
	Total      decimal.Decimal    `json:"total"`
	Items      []SaleLineItemData `json:"items"`
}

// SaleRefundedEvent published after a refund commits.
type SaleRefundedEvent struct {
	BaseEvent
	SaleID     int64           `json:"sale_id"`
	LocationID int64           `json:"location_id"`
	Total      decimal.Decimal `json:"total"`
	Reason     string          `json:"reason"`
}

// StockLowEvent published when a sale leaves a product below its minimum.
type StockLowEvent struct {
	BaseEvent
	ProductID  int64  `json:"product_id"`
	VariantID  *int64 `json:"variant_id,omitempty"`
	LocationID int64  `json:"location_id"`
	Quantity   int    `json:"quantity"`
	MinStock   int    `json:"min_stock"`
}

// WalletDebitedEvent published after a withdrawal or in-store spend, used by
// settlement reconciliation downstream.
type WalletDebitedEvent struct {
	BaseEvent
	WalletID   int64           `json:"wallet_id"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Settlement string          `json:"settlement,omitempty"`
}

// SaleLineItemData represents line item data in events
type SaleLineItemData struct {
	ProductID int64           `json:"product_id"`
	VariantID *int64          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
