package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRate(t *testing.T) {
	assert.NoError(t, ValidateRate(decimal.Zero))
	assert.NoError(t, ValidateRate(decimal.RequireFromString("5")))
	assert.NoError(t, ValidateRate(decimal.RequireFromString("100")))

	assert.Error(t, ValidateRate(decimal.RequireFromString("-0.01")))
	assert.Error(t, ValidateRate(decimal.RequireFromString("100.5")))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, decimal.RequireFromString("5").Equal(cfg.Business.DefaultCommissionRate))
	assert.True(t, decimal.RequireFromString("2").Equal(cfg.Business.ReferralRate))
	assert.True(t, decimal.RequireFromString("0.50").Equal(cfg.Business.LoyaltyUnitValue))
	assert.Equal(t, 3, cfg.Business.TxRetryAttempts)
}

func TestLoadRejectsBadRate(t *testing.T) {
	t.Setenv("DEFAULT_COMMISSION_RATE", "150")

	_, err := Load()
	assert.Error(t, err)
}
