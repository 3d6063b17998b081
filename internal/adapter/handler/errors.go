package handler

import (
	"errors"
	"net/http"

	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
)

const (
	codeInvalidRequest     = "invalid_request"
	codeOutOfStock         = "out_of_stock"
	codeUnauthorized       = "unauthorized"
	codeOverflow           = "overflow"
	codeNotInitialized     = "not_initialized"
	codeAlreadyInitialized = "already_initialized"
	codeInternal           = "internal"
)

// classify maps a ledger error to an HTTP status, a stable code and a
// message that is safe to return to callers.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidIdentity),
		errors.Is(err, domain.ErrUnknownItem):
		return http.StatusBadRequest, codeInvalidRequest, err.Error()
	case errors.Is(err, service.ErrOutOfStock):
		return http.StatusGone, codeOutOfStock, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized, err.Error()
	case errors.Is(err, service.ErrOverflow):
		return http.StatusUnprocessableEntity, codeOverflow, err.Error()
	case errors.Is(err, service.ErrNotInitialized):
		return http.StatusConflict, codeNotInitialized, err.Error()
	case errors.Is(err, service.ErrAlreadyInitialized):
		return http.StatusConflict, codeAlreadyInitialized, err.Error()
	default:
		return http.StatusInternalServerError, codeInternal, "internal error"
	}
}
