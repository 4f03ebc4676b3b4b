package wallet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

const maxUserIDLength = 128

// DeltaFor returns the adjustment for a settled credit or debit of amount.
// Credits and debits move the spendable portion only; blocked funds are
// untouched.
func DeltaFor(credit bool, amount decimal.Decimal) Delta {
	if !credit {
		amount = amount.Neg()
	}
	return Delta{Balance: amount, Available: amount, Blocked: decimal.Zero}
}

// Apply returns w adjusted by d, or ErrInvariantViolation if the result would
// have a negative field or break current = available + blocked.
func Apply(w Wallet, d Delta) (Wallet, error) {
	next := w
	next.CurrentBalance = w.CurrentBalance.Add(d.Balance)
	next.AvailableForWithdrawal = w.AvailableForWithdrawal.Add(d.Available)
	next.BlockedAmount = w.BlockedAmount.Add(d.Blocked)

	switch {
	case next.CurrentBalance.IsNegative():
		return w, fmt.Errorf("wallet %s: current balance would be negative: %w", w.ID, apperr.ErrInvariantViolation)
	case next.AvailableForWithdrawal.IsNegative():
		return w, fmt.Errorf("wallet %s: available balance would be negative: %w", w.ID, apperr.ErrInvariantViolation)
	case next.BlockedAmount.IsNegative():
		return w, fmt.Errorf("wallet %s: blocked amount would be negative: %w", w.ID, apperr.ErrInvariantViolation)
	case !next.CurrentBalance.Equal(next.AvailableForWithdrawal.Add(next.BlockedAmount)):
		return w, fmt.Errorf("wallet %s: current != available + blocked: %w", w.ID, apperr.ErrInvariantViolation)
	}
	return next, nil
}

// CanWithdraw reports whether amount can be debited from the spendable portion.
func CanWithdraw(w Wallet, amount decimal.Decimal) bool {
	return w.AvailableForWithdrawal.GreaterThanOrEqual(amount)
}

// normalizeUserID returns the trimmed id every store keys wallets by.
func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user id is required: %w", apperr.ErrValidation)
	}
	if len(userID) > maxUserIDLength {
		return "", fmt.Errorf("user id too long: %w", apperr.ErrValidation)
	}
	return userID, nil
}
