package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

var (
	// ErrInvalidAmount occurs when an amount is zero, negative or too precise.
	ErrInvalidAmount = fmt.Errorf("invalid amount: %w", apperr.ErrValidation)

	// ErrDuplicateTransaction indicates a transaction with the same external
	// reference already exists for the wallet and type. The existing
	// transaction is returned alongside it.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

// Ledger defines the contract implemented by ledger backends (in-memory, Postgres).
//
// Transition to COMPLETED applies the matching wallet delta in the same atomic
// unit as the status change. When a debit finds insufficient available funds
// the transaction is moved to FAILED instead and apperr.ErrInsufficientFunds
// is returned together with the failed transaction.
type Ledger interface {
	Record(ctx context.Context, in RecordInput) (Transaction, error)
	Transition(ctx context.Context, id string, to Status) (Transaction, error)
	Get(ctx context.Context, id string) (Transaction, error)
	ListByWallet(ctx context.Context, walletID string) ([]Transaction, error)
}
