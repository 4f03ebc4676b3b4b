package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

// MemoryRepository is a concurrency-safe in-memory Store used in development
// and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	byUser map[string]Wallet
	byID   map[string]string
}

// NewMemoryRepository constructs an in-memory wallet store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byUser: make(map[string]Wallet), byID: make(map[string]string)}
}

func (r *MemoryRepository) GetOrCreate(_ context.Context, userID string) (Wallet, bool, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return Wallet{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.byUser[userID]; ok {
		return w, false, nil
	}
	now := time.Now().UTC()
	w := Wallet{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		CurrentBalance:         decimal.Zero,
		AvailableForWithdrawal: decimal.Zero,
		BlockedAmount:          decimal.Zero,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	r.byUser[userID] = w
	r.byID[w.ID] = userID
	return w, true, nil
}

func (r *MemoryRepository) Get(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byUser[strings.TrimSpace(userID)]
	if !ok {
		return Wallet{}, fmt.Errorf("wallet for user %s: %w", userID, apperr.ErrNotFound)
	}
	return w, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byID[id]
	if !ok {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, apperr.ErrNotFound)
	}
	return r.byUser[userID], nil
}

// Update runs fn against the wallet with the given id while holding the store
// lock and persists the returned wallet. fn must return the wallet unchanged
// (or an error) when nothing should be written.
func (r *MemoryRepository) Update(id string, fn func(Wallet) (Wallet, error)) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byID[id]
	if !ok {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, apperr.ErrNotFound)
	}
	next, err := fn(r.byUser[userID])
	if err != nil {
		return Wallet{}, err
	}
	next.UpdatedAt = time.Now().UTC()
	r.byUser[userID] = next
	return next, nil
}
