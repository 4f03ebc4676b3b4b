package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Error kinds shared by the wallet, ledger and gateway packages. Callers wrap
// them with fmt.Errorf("...: %w", kind) and the HTTP layer maps them back with
// errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("balance invariant violation")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrGateway            = errors.New("payment gateway error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
)

// Status returns the HTTP status code and a stable machine readable code for err.
func Status(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, ErrInvariantViolation):
		return http.StatusConflict, "invariant_violation"
	case errors.Is(err, ErrGateway):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, "gateway_timeout"
		}
		return http.StatusBadGateway, "gateway_error"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// Public reports whether the message of err can be shown to API callers.
// Invariant violations, gateway failures and unknown errors are logged
// server side and replaced with a generic message.
func Public(err error) bool {
	switch {
	case errors.Is(err, ErrInvariantViolation), errors.Is(err, ErrGateway):
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden), errors.Is(err, ErrConflict):
		return true
	default:
		return false
	}
}
