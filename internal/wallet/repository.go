package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

// Store persists wallets. Balances change only through the ledger, which
// holds the wallet lock while it settles a transaction (LockByID and
// UpdateBalances here, MemoryRepository.Update in memory).
type Store interface {
	GetOrCreate(ctx context.Context, userID string) (Wallet, bool, error)
	Get(ctx context.Context, userID string) (Wallet, error)
	GetByID(ctx context.Context, id string) (Wallet, error)
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectColumns = `id, user_id, current_balance::text, available_for_withdrawal::text, blocked_amount::text, created_at, updated_at`

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate fetches the user's wallet, inserting a zeroed one first if none
// exists. The unique constraint on user_id makes concurrent first access
// converge on a single row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, userID string) (Wallet, bool, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return Wallet{}, false, err
	}
	now := time.Now().UTC()
	cmd, err := r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, current_balance, available_for_withdrawal, blocked_amount, created_at, updated_at)
        VALUES ($1, $2, 0, 0, 0, $3, $3)
        ON CONFLICT (user_id) DO NOTHING`, uuid.New(), userID, now)
	if err != nil {
		return Wallet{}, false, fmt.Errorf("insert wallet: %w", err)
	}
	w, err := r.Get(ctx, userID)
	if err != nil {
		return Wallet{}, false, err
	}
	return w, cmd.RowsAffected() == 1, nil
}

// Get returns the wallet owned by userID.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (Wallet, error) {
	userID = strings.TrimSpace(userID)
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM wallets WHERE user_id = $1`, userID)
	w, err := scanWallet(row)
	if err != nil {
		return Wallet{}, notFound(err, "wallet for user "+userID)
	}
	return w, nil
}

// GetByID returns the wallet with the given identifier.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, apperr.ErrNotFound)
	}
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM wallets WHERE id = $1`, walletID)
	w, err := scanWallet(row)
	if err != nil {
		return Wallet{}, notFound(err, "wallet "+id)
	}
	return w, nil
}

// LockByID selects a wallet FOR UPDATE inside the caller's transaction.
func LockByID(ctx context.Context, q Querier, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, apperr.ErrNotFound)
	}
	row := q.QueryRow(ctx, `SELECT `+selectColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	w, err := scanWallet(row)
	if err != nil {
		return Wallet{}, notFound(err, "wallet "+id)
	}
	return w, nil
}

// UpdateBalances writes the balance fields of w and stamps UpdatedAt.
func UpdateBalances(ctx context.Context, q Querier, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	cmd, err := q.Exec(ctx, `UPDATE wallets
        SET current_balance = $2::numeric, available_for_withdrawal = $3::numeric, blocked_amount = $4::numeric, updated_at = $5
        WHERE id = $1`,
		walletID, w.CurrentBalance.String(), w.AvailableForWithdrawal.String(), w.BlockedAmount.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update wallet %s: %w", w.ID, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s: %w", w.ID, apperr.ErrNotFound)
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w                          Wallet
		id                         uuid.UUID
		current, available, locked string
	)
	if err := row.Scan(&id, &w.UserID, &current, &available, &locked, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	var err error
	if w.CurrentBalance, err = decimal.NewFromString(current); err != nil {
		return Wallet{}, err
	}
	if w.AvailableForWithdrawal, err = decimal.NewFromString(available); err != nil {
		return Wallet{}, err
	}
	if w.BlockedAmount, err = decimal.NewFromString(locked); err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return err
}
