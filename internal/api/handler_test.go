package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lojinha-service/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func statusFor(t *testing.T, err error) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	respondError(c, err)
	return recorder.Code
}

func TestRespondErrorMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(t, &apperr.NotFoundError{Entity: "sale", ID: 1}))
	assert.Equal(t, http.StatusConflict, statusFor(t, &apperr.InsufficientStockError{ProductID: 1, Requested: 2, Available: 0}))
	assert.Equal(t, http.StatusConflict, statusFor(t, &apperr.AlreadyRefundedError{SaleID: 1}))
	assert.Equal(t, http.StatusConflict, statusFor(t, apperr.ErrConcurrencyConflict))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(t, &apperr.InsufficientBalanceError{WalletID: 1}))
	assert.Equal(t, http.StatusBadRequest, statusFor(t, apperr.ErrInvalidReference))
	assert.Equal(t, http.StatusBadRequest, statusFor(t, &apperr.ValidationError{Field: "discount", Reason: "negative"}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(t, apperr.ErrStoreUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(t, errors.New("boom")))
}
