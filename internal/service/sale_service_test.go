package service

import (
	"errors"
	"testing"

	"lojinha-service/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCommissionFor(t *testing.T) {
	// R$100.00 at 5% credits exactly R$5.00
	got := commissionFor(d("100.00"), d("5"))
	assert.True(t, d("5.00").Equal(got), "got %s", got)

	// rounding to cents
	got = commissionFor(d("33.33"), d("5"))
	assert.True(t, d("1.67").Equal(got), "got %s", got)

	// zero rate yields zero commission
	got = commissionFor(d("100.00"), decimal.Zero)
	assert.True(t, got.IsZero())
}

func TestEventLineItemsUseResolvedPrices(t *testing.T) {
	variantID := int64(3)
	req := &CreateSaleRequest{Items: []SaleLineItemRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 1, VariantID: &variantID, Quantity: 1},
	}}
	prices := map[int]decimal.Decimal{
		0: d("49.90"),
		1: d("59.90"), // variant override
	}

	items := eventLineItems(req, prices)
	require.Len(t, items, 2)
	assert.True(t, d("49.90").Equal(items[0].UnitPrice))
	// the event must carry the variant price, not the base product price
	assert.True(t, d("59.90").Equal(items[1].UnitPrice))
	assert.Equal(t, &variantID, items[1].VariantID)
}

func TestCommissionRatePrecedence(t *testing.T) {
	svc := &SaleService{}
	svc.business.DefaultCommissionRate = d("5")

	// no override falls back to the default
	product := productWithRate(nil)
	assert.True(t, d("5").Equal(svc.commissionRate(product)))

	// product override wins
	override := d("12.5")
	product = productWithRate(&override)
	assert.True(t, d("12.5").Equal(svc.commissionRate(product)))
}

func TestResolveDiscount(t *testing.T) {
	subtotal := d("200.00")

	flat, err := resolveDiscount(subtotal, d("20.00"), false)
	require.NoError(t, err)
	assert.True(t, d("20.00").Equal(flat))

	// 10% of 200.00 = 20.00
	flat, err = resolveDiscount(subtotal, d("10"), true)
	require.NoError(t, err)
	assert.True(t, d("20.00").Equal(flat))

	_, err = resolveDiscount(subtotal, d("-1"), false)
	assert.Error(t, err)

	_, err = resolveDiscount(subtotal, d("101"), true)
	assert.Error(t, err)

	// flat discount above subtotal would make the total negative
	_, err = resolveDiscount(subtotal, d("250.00"), false)
	assert.Error(t, err)
}

func TestValidateSaleRequest(t *testing.T) {
	req := validSaleRequest()
	require.NoError(t, validateSaleRequest(req))
	assert.Equal(t, 1, req.Installments, "zero installments defaults to 1")

	empty := validSaleRequest()
	empty.Items = nil
	assert.Error(t, validateSaleRequest(empty))

	badQty := validSaleRequest()
	badQty.Items[0].Quantity = 0
	assert.Error(t, validateSaleRequest(badQty))

	badBuyer := validSaleRequest()
	badBuyer.BuyerKind = "ALIEN"
	assert.Error(t, validateSaleRequest(badBuyer))
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "insufficient_stock", failureReason(&apperr.InsufficientStockError{ProductID: 1, Requested: 2, Available: 1}))
	assert.Equal(t, "insufficient_balance", failureReason(&apperr.InsufficientBalanceError{WalletID: 1}))
	assert.Equal(t, "concurrency_conflict", failureReason(apperr.ErrConcurrencyConflict))
	assert.Equal(t, "db_error", failureReason(errors.New("boom")))
}
