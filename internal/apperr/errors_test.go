package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockErrorUnwraps(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: 12, Requested: 2, Available: 1}

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Contains(t, err.Error(), "product 12")
	assert.Contains(t, err.Error(), "available 1")

	wrapped := fmt.Errorf("line item 3: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInsufficientStock))

	var stockErr *InsufficientStockError
	require.True(t, errors.As(wrapped, &stockErr))
	assert.Equal(t, int64(12), stockErr.ProductID)
}

func TestInsufficientBalanceErrorUnwraps(t *testing.T) {
	var err error = &InsufficientBalanceError{WalletID: 7, Requested: "25.00", Available: "20.00"}

	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Contains(t, err.Error(), "wallet 7")
}

func TestAlreadyRefundedErrorUnwraps(t *testing.T) {
	var err error = &AlreadyRefundedError{SaleID: 99}

	assert.True(t, errors.Is(err, ErrAlreadyRefunded))
	assert.Contains(t, err.Error(), "99")
}

func TestNotFoundErrorUnwraps(t *testing.T) {
	var err error = &NotFoundError{Entity: "sale", ID: 5}

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "sale not found: 5", err.Error())
}
