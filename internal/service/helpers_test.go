package service

import (
	"lojinha-service/internal/models"

	"github.com/shopspring/decimal"
)

func productWithRate(rate *decimal.Decimal) *models.Product {
	p := &models.Product{
		ID:    1,
		SKU:   "CAMISETA-P",
		Name:  "Camiseta da escola",
		Price: decimal.RequireFromString("49.90"),
	}
	if rate != nil {
		p.CommissionRate = decimal.NullDecimal{Decimal: *rate, Valid: true}
	}
	return p
}

func validSaleRequest() *CreateSaleRequest {
	return &CreateSaleRequest{
		LocationID:    1,
		BuyerKind:     models.BuyerKindStudent,
		BuyerName:     "Ana",
		SellerID:      7,
		Items:         []SaleLineItemRequest{{ProductID: 1, Quantity: 2}},
		PaymentMethod: "PIX",
	}
}
