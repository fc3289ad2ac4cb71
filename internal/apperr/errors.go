package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger and orchestration layers. Callers branch
// with errors.Is; the typed wrappers below carry the offending entity so
// handlers can render an actionable message.
var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyRefunded     = errors.New("sale already refunded")
	ErrInvalidReference    = errors.New("invalid reference")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// InsufficientStockError reports which product could not cover a sale and
// how many units were actually available.
type InsufficientStockError struct {
	ProductID int64
	VariantID *int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientBalanceError reports an overdraft attempt on a wallet.
type InsufficientBalanceError struct {
	WalletID  int64
	Requested string
	Available string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on wallet %d: requested %s, available %s",
		e.WalletID, e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// NotFoundError identifies the missing entity by kind and id.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyRefundedError guards the at-most-once refund transition.
type AlreadyRefundedError struct {
	SaleID int64
}

func (e *AlreadyRefundedError) Error() string {
	return fmt.Sprintf("sale %d already refunded", e.SaleID)
}

func (e *AlreadyRefundedError) Unwrap() error { return ErrAlreadyRefunded }

// ValidationError rejects a request before any write begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
