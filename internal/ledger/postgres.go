package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/wallet"
)

const txColumns = `id, wallet_id, user_id, type, amount::text, description, status,
        COALESCE(external_reference, ''), metadata, processed_at, created_at`

// PostgresLedger persists wallet transactions in PostgreSQL and applies
// balance deltas to the wallets table within the same database transaction.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Record inserts a PENDING transaction after checking that the wallet exists
// and belongs to the user.
func (l *PostgresLedger) Record(ctx context.Context, in RecordInput) (Transaction, error) {
	in, err := in.Normalize()
	if err != nil {
		return Transaction{}, err
	}
	walletID, err := uuid.Parse(in.WalletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("wallet %s: %w", in.WalletID, apperr.ErrNotFound)
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var owner string
	if err := tx.QueryRow(ctx, `SELECT user_id FROM wallets WHERE id = $1`, walletID).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("wallet %s: %w", in.WalletID, apperr.ErrNotFound)
		}
		return Transaction{}, err
	}
	if owner != in.UserID {
		return Transaction{}, fmt.Errorf("wallet %s does not belong to user %s: %w", in.WalletID, in.UserID, apperr.ErrValidation)
	}

	var metadata []byte
	if len(in.Metadata) > 0 {
		if metadata, err = json.Marshal(in.Metadata); err != nil {
			return Transaction{}, fmt.Errorf("encode metadata: %w", err)
		}
	}
	var reference *string
	if in.Reference != "" {
		reference = &in.Reference
	}

	txID := uuid.New()
	cmd, err := tx.Exec(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, user_id, type, amount, description, status, external_reference, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
        ON CONFLICT (wallet_id, type, external_reference) WHERE external_reference IS NOT NULL DO NOTHING`,
		txID, walletID, in.UserID, string(in.Type), in.Amount.String(), in.Description,
		string(StatusPending), reference, metadata, time.Now().UTC())
	if err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	if cmd.RowsAffected() == 0 {
		row := tx.QueryRow(ctx, `SELECT `+txColumns+` FROM wallet_transactions
            WHERE wallet_id = $1 AND type = $2 AND external_reference = $3`, walletID, string(in.Type), *reference)
		existing, err := scanTransaction(row)
		if err != nil {
			return Transaction{}, err
		}
		return existing, ErrDuplicateTransaction
	}

	row := tx.QueryRow(ctx, `SELECT `+txColumns+` FROM wallet_transactions WHERE id = $1`, txID)
	created, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return created, nil
}

// Transition moves a PENDING transaction to a terminal status. Completing a
// transaction locks the wallet row, checks available funds for debits and
// writes the new balances before the status change is committed.
func (l *PostgresLedger) Transition(ctx context.Context, id string, to Status) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+txColumns+` FROM wallet_transactions WHERE id = $1 FOR UPDATE`, txID)
	current, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
		}
		return Transaction{}, err
	}
	if err := checkTransition(current, to); err != nil {
		return current, err
	}

	final := to
	var outcome error
	if to == StatusCompleted {
		w, err := wallet.LockByID(ctx, tx, current.WalletID)
		if err != nil {
			return Transaction{}, err
		}
		if !current.Type.Credit() && !wallet.CanWithdraw(w, current.Amount) {
			final = StatusFailed
			outcome = fmt.Errorf("transaction %s: %w", id, apperr.ErrInsufficientFunds)
		} else {
			next, err := wallet.Apply(w, wallet.DeltaFor(current.Type.Credit(), current.Amount))
			if err != nil {
				return Transaction{}, err
			}
			if err := wallet.UpdateBalances(ctx, tx, next); err != nil {
				return Transaction{}, err
			}
		}
	}

	processedAt := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE wallet_transactions SET status = $2, processed_at = $3
        WHERE id = $1 AND status = $4`, txID, string(final), processedAt, string(StatusPending)); err != nil {
		return Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	current.Status = final
	current.ProcessedAt = &processedAt
	return current, outcome
}

// Get fetches a transaction by identifier.
func (l *PostgresLedger) Get(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
	}
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM wallet_transactions WHERE id = $1`, txID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
		}
		return Transaction{}, err
	}
	return t, nil
}

// ListByWallet returns the wallet's transactions in creation order.
func (l *PostgresLedger) ListByWallet(ctx context.Context, walletID string) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", walletID, apperr.ErrNotFound)
	}
	rows, err := l.db.Query(ctx, `SELECT `+txColumns+` FROM wallet_transactions
        WHERE wallet_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t            Transaction
		id, walletID uuid.UUID
		kind, status string
		amount       string
		metadata     []byte
		processedAt  *time.Time
	)
	if err := row.Scan(&id, &walletID, &t.UserID, &kind, &amount, &t.Description, &status,
		&t.ExternalReference, &metadata, &processedAt, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return Transaction{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if processedAt != nil {
		utc := processedAt.UTC()
		processedAt = &utc
	}
	t.ID = id.String()
	t.WalletID = walletID.String()
	t.Type = Type(kind)
	t.Status = Status(status)
	t.Amount = value
	t.ProcessedAt = processedAt
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
