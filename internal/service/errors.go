package service

import (
	"errors"

	"lojinha-service/internal/apperr"
)

// failureReason maps an orchestration error onto a metric label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, apperr.ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, apperr.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "db_error"
	}
}
