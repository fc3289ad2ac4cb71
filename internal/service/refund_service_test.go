package service

import (
	"testing"

	"lojinha-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestReversibleKind(t *testing.T) {
	assert.True(t, reversibleKind(models.WalletKindSaleCommission))
	assert.True(t, reversibleKind(models.WalletKindReferralCommission))

	// debits and prior reversals are never reversed again
	assert.False(t, reversibleKind(models.WalletKindWithdrawal))
	assert.False(t, reversibleKind(models.WalletKindInStoreSpend))
	assert.False(t, reversibleKind(models.WalletKindCommissionReversal))
	assert.False(t, reversibleKind(models.WalletKindManualAdjustment))
}

func TestSaleRef(t *testing.T) {
	assert.Equal(t, "sale:42", saleRef(42))
}
