package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/wallet"
)

type inMemoryLedger struct {
	mu       sync.Mutex
	wallets  *wallet.MemoryRepository
	txs      map[string]Transaction
	byWallet map[string][]string
	refs     map[string]string
	now      func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger over the given
// wallet store. Balance changes happen while the ledger lock is held, so a
// transition and its delta are observed together.
func NewInMemory(wallets *wallet.MemoryRepository) Ledger {
	return &inMemoryLedger{
		wallets:  wallets,
		txs:      make(map[string]Transaction),
		byWallet: make(map[string][]string),
		refs:     make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) Record(ctx context.Context, in RecordInput) (Transaction, error) {
	in, err := in.Normalize()
	if err != nil {
		return Transaction{}, err
	}
	w, err := l.wallets.GetByID(ctx, in.WalletID)
	if err != nil {
		return Transaction{}, err
	}
	if w.UserID != in.UserID {
		return Transaction{}, fmt.Errorf("wallet %s does not belong to user %s: %w", in.WalletID, in.UserID, apperr.ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	reference := in.Reference
	refKey := in.WalletID + ":" + string(in.Type) + ":" + reference
	if reference != "" {
		if existingID, ok := l.refs[refKey]; ok {
			return l.txs[existingID].detached(), ErrDuplicateTransaction
		}
	}

	tx := Transaction{
		ID:                uuid.NewString(),
		WalletID:          in.WalletID,
		UserID:            in.UserID,
		Type:              in.Type,
		Amount:            in.Amount,
		Description:       in.Description,
		Status:            StatusPending,
		ExternalReference: reference,
		Metadata:          in.Metadata,
		CreatedAt:         l.now(),
	}
	l.txs[tx.ID] = tx
	l.byWallet[tx.WalletID] = append(l.byWallet[tx.WalletID], tx.ID)
	if reference != "" {
		l.refs[refKey] = tx.ID
	}
	return tx.detached(), nil
}

func (l *inMemoryLedger) Transition(_ context.Context, id string, to Status) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
	}
	if err := checkTransition(tx, to); err != nil {
		return tx.detached(), err
	}

	if to == StatusCompleted {
		_, err := l.wallets.Update(tx.WalletID, func(w wallet.Wallet) (wallet.Wallet, error) {
			if !tx.Type.Credit() && !wallet.CanWithdraw(w, tx.Amount) {
				return w, apperr.ErrInsufficientFunds
			}
			return wallet.Apply(w, wallet.DeltaFor(tx.Type.Credit(), tx.Amount))
		})
		if errors.Is(err, apperr.ErrInsufficientFunds) {
			tx = l.finish(tx, StatusFailed)
			return tx.detached(), fmt.Errorf("transaction %s: %w", id, apperr.ErrInsufficientFunds)
		}
		if err != nil {
			return Transaction{}, err
		}
	}

	return l.finish(tx, to).detached(), nil
}

func (l *inMemoryLedger) finish(tx Transaction, to Status) Transaction {
	processedAt := l.now()
	tx.Status = to
	tx.ProcessedAt = &processedAt
	l.txs[tx.ID] = tx
	return tx
}

func (l *inMemoryLedger) Get(_ context.Context, id string) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
	}
	return tx.detached(), nil
}

func (l *inMemoryLedger) ListByWallet(_ context.Context, walletID string) ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.byWallet[walletID]
	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.txs[id].detached())
	}
	return out, nil
}

// detached returns a copy that shares no mutable state with the stored entry.
func (t Transaction) detached() Transaction {
	t.Metadata = maps.Clone(t.Metadata)
	if t.ProcessedAt != nil {
		at := *t.ProcessedAt
		t.ProcessedAt = &at
	}
	return t
}
