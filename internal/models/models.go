package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry sold through the lojinha
type Product struct {
	ID             int64               `db:"id" json:"id"`
	SKU            string              `db:"sku" json:"sku"`
	Name           string              `db:"name" json:"name"`
	Price          decimal.Decimal     `db:"price" json:"price"`
	Cost           decimal.Decimal     `db:"cost" json:"cost"`
	MinStock       int                 `db:"min_stock" json:"min_stock"`
	CommissionRate decimal.NullDecimal `db:"commission_rate" json:"commission_rate,omitempty"`
	Active         bool                `db:"active" json:"active"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// Variant is an optional sub-unit of a product (size, color)
type Variant struct {
	ID            int64               `db:"id" json:"id"`
	ProductID     int64               `db:"product_id" json:"product_id"`
	Name          string              `db:"name" json:"name"`
	SKUSuffix     string              `db:"sku_suffix" json:"sku_suffix,omitempty"`
	PriceOverride decimal.NullDecimal `db:"price_override" json:"price_override,omitempty"`
	Active        bool                `db:"active" json:"active"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

// StockRecord is the current quantity for one (product, variant, location) tuple.
// Created lazily on the first movement; mutated only through stock movements.
type StockRecord struct {
	ID         int64     `db:"id" json:"id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	VariantID  *int64    `db:"variant_id" json:"variant_id,omitempty"`
	LocationID int64     `db:"location_id" json:"location_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Stock movement kinds
const (
	StockKindEntry      = "ENTRY"
	StockKindSale       = "SALE"
	StockKindRefund     = "REFUND"
	StockKindAdjustment = "ADJUSTMENT"
)

// StockMovement is one immutable row of the stock ledger. The balance after
// the delta is snapshotted so point-in-time stock is a single row lookup.
type StockMovement struct {
	ID           int64     `db:"id" json:"id"`
	ProductID    int64     `db:"product_id" json:"product_id"`
	VariantID    *int64    `db:"variant_id" json:"variant_id,omitempty"`
	LocationID   int64     `db:"location_id" json:"location_id"`
	Kind         string    `db:"kind" json:"kind"`
	Delta        int       `db:"delta" json:"delta"`
	BalanceAfter int       `db:"balance_after" json:"balance_after"`
	SaleRef      *int64    `db:"sale_ref" json:"sale_ref,omitempty"`
	Note         string    `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Wallet holder kinds
const (
	HolderKindFarmer  = "FARMER"
	HolderKindTeacher = "TEACHER"
)

// Wallet is the carteira digital of one staff member at one location.
// LoyaltyUnits is a separate non-cash counter, convertible at a configured rate.
type Wallet struct {
	ID           int64           `db:"id" json:"id"`
	HolderID     int64           `db:"holder_id" json:"holder_id"`
	HolderKind   string          `db:"holder_kind" json:"holder_kind"`
	LocationID   int64           `db:"location_id" json:"location_id"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	LoyaltyUnits int             `db:"loyalty_units" json:"loyalty_units"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Wallet movement kinds
const (
	WalletKindSaleCommission     = "SALE_COMMISSION"
	WalletKindReferralCommission = "REFERRAL_COMMISSION"
	WalletKindLoyaltyCredit      = "LOYALTY_CREDIT"
	WalletKindWithdrawal         = "WITHDRAWAL"
	WalletKindInStoreSpend       = "IN_STORE_SPEND"
	WalletKindCommissionReversal = "COMMISSION_REVERSAL"
	WalletKindManualAdjustment   = "MANUAL_ADJUSTMENT"
)

// WalletMovement is one immutable row of the wallet ledger.
type WalletMovement struct {
	ID           int64           `db:"id" json:"id"`
	WalletID     int64           `db:"wallet_id" json:"wallet_id"`
	Kind         string          `db:"kind" json:"kind"`
	Delta        decimal.Decimal `db:"delta" json:"delta"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Reference    string          `db:"reference" json:"reference,omitempty"`
	Description  string          `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Buyer kinds
const (
	BuyerKindStudent = "STUDENT"
	BuyerKindStaff   = "STAFF"
	BuyerKindWalkIn  = "WALK_IN"
)

// Sale statuses
const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusRefunded  = "REFUNDED"
)

// Settlement methods for wallet withdrawals
const (
	SettlementPayroll  = "PAYROLL_DEDUCTION"
	SettlementTransfer = "INSTANT_TRANSFER"
	SettlementCash     = "CASH"
)

// Sale is one lojinha transaction. Created in COMPLETED status; the only
// later mutation is the one-way transition to REFUNDED.
type Sale struct {
	ID            int64           `db:"id" json:"id"`
	LocationID    int64           `db:"location_id" json:"location_id"`
	BuyerKind     string          `db:"buyer_kind" json:"buyer_kind"`
	BuyerName     string          `db:"buyer_name" json:"buyer_name"`
	SellerID      int64           `db:"seller_id" json:"seller_id"`
	ReferrerID    *int64          `db:"referrer_id" json:"referrer_id,omitempty"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	Total         decimal.Decimal `db:"total" json:"total"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Installments  int             `db:"installments" json:"installments"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	RefundedAt    *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
	RefundReason  *string         `db:"refund_reason" json:"refund_reason,omitempty"`
}

// SaleLineItem is immutable and owned by exactly one sale.
type SaleLineItem struct {
	ID        int64           `db:"id" json:"id"`
	SaleID    int64           `db:"sale_id" json:"sale_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	VariantID *int64          `db:"variant_id" json:"variant_id,omitempty"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// LowStockItem is one row of the low-stock report consumed by alerting.
type LowStockItem struct {
	ProductID   int64  `db:"product_id" json:"product_id"`
	VariantID   *int64 `db:"variant_id" json:"variant_id,omitempty"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	MinStock    int    `db:"min_stock" json:"min_stock"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
