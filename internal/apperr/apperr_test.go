package apperr

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		public bool
	}{
		{fmt.Errorf("amount: %w", ErrValidation), http.StatusUnprocessableEntity, true},
		{fmt.Errorf("wallet: %w", ErrNotFound), http.StatusNotFound, true},
		{ErrInsufficientFunds, http.StatusConflict, true},
		{ErrInvalidTransition, http.StatusConflict, true},
		{ErrInvariantViolation, http.StatusConflict, false},
		{fmt.Errorf("exchange: %w", ErrGateway), http.StatusBadGateway, false},
		{fmt.Errorf("exchange: %w: %w", ErrGateway, context.DeadlineExceeded), http.StatusGatewayTimeout, false},
		{ErrUnauthorized, http.StatusUnauthorized, true},
		{fmt.Errorf("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		status, _ := Status(tc.err)
		if status != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, status)
		}
		if Public(tc.err) != tc.public {
			t.Fatalf("%v: expected public=%v", tc.err, tc.public)
		}
	}
}
