package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

// ConnectedAccount is the server-side record of a linked gateway account.
// Tokens are stored sealed.
type ConnectedAccount struct {
	UserID             string
	AccountID          string
	Scope              string
	LiveMode           bool
	SealedAccessToken  []byte
	SealedRefreshToken []byte
	ConnectedAt        time.Time
}

// Vault persists connected accounts, one per user.
type Vault interface {
	Save(ctx context.Context, account ConnectedAccount) error
	Get(ctx context.Context, userID string) (ConnectedAccount, error)
}

type memoryVault struct {
	mu       sync.RWMutex
	accounts map[string]ConnectedAccount
}

// NewMemoryVault constructs an in-memory vault for tests and development.
func NewMemoryVault() Vault {
	return &memoryVault{accounts: make(map[string]ConnectedAccount)}
}

func (v *memoryVault) Save(_ context.Context, account ConnectedAccount) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[account.UserID] = account
	return nil
}

func (v *memoryVault) Get(_ context.Context, userID string) (ConnectedAccount, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	account, ok := v.accounts[userID]
	if !ok {
		return ConnectedAccount{}, fmt.Errorf("connected account for user %s: %w", userID, apperr.ErrNotFound)
	}
	return account, nil
}

// PostgresVault stores connected accounts in PostgreSQL.
type PostgresVault struct {
	db *pgxpool.Pool
}

// NewPostgresVault builds a Postgres-backed vault.
func NewPostgresVault(db *pgxpool.Pool) *PostgresVault {
	return &PostgresVault{db: db}
}

// Save upserts the user's connected account.
func (v *PostgresVault) Save(ctx context.Context, a ConnectedAccount) error {
	_, err := v.db.Exec(ctx, `INSERT INTO connected_accounts
        (user_id, account_id, scope, livemode, access_token_sealed, refresh_token_sealed, connected_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id) DO UPDATE SET
            account_id = EXCLUDED.account_id,
            scope = EXCLUDED.scope,
            livemode = EXCLUDED.livemode,
            access_token_sealed = EXCLUDED.access_token_sealed,
            refresh_token_sealed = EXCLUDED.refresh_token_sealed,
            connected_at = EXCLUDED.connected_at`,
		a.UserID, a.AccountID, a.Scope, a.LiveMode, a.SealedAccessToken, a.SealedRefreshToken, a.ConnectedAt.UTC())
	if err != nil {
		return fmt.Errorf("save connected account: %w", err)
	}
	return nil
}

// Get returns the user's connected account.
func (v *PostgresVault) Get(ctx context.Context, userID string) (ConnectedAccount, error) {
	row := v.db.QueryRow(ctx, `SELECT user_id, account_id, scope, livemode, access_token_sealed, refresh_token_sealed, connected_at
        FROM connected_accounts WHERE user_id = $1`, userID)
	var a ConnectedAccount
	if err := row.Scan(&a.UserID, &a.AccountID, &a.Scope, &a.LiveMode, &a.SealedAccessToken, &a.SealedRefreshToken, &a.ConnectedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConnectedAccount{}, fmt.Errorf("connected account for user %s: %w", userID, apperr.ErrNotFound)
		}
		return ConnectedAccount{}, err
	}
	a.ConnectedAt = a.ConnectedAt.UTC()
	return a, nil
}
