package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

func TestMemoryRepositoryGetOrCreateIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, created, err := repo.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if !created {
		t.Fatal("expected first call to create the wallet")
	}
	if !first.CurrentBalance.IsZero() || !first.AvailableForWithdrawal.IsZero() || !first.BlockedAmount.IsZero() {
		t.Fatalf("expected zero balances, got %+v", first)
	}

	second, created, err := repo.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected the same wallet %s, got %s (created=%v)", first.ID, second.ID, created)
	}
}

func TestMemoryRepositoryConcurrentFirstAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	const workers = 32
	ids := make([]string, workers)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, created, err := repo.GetOrCreate(ctx, "racer")
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[i] = w.ID
			if created {
				createdCount++
			}
		}(i)
	}
	wg.Wait()

	if createdCount != 1 {
		t.Fatalf("expected exactly one creation, got %d", createdCount)
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d saw wallet %s, expected %s", i, ids[i], ids[0])
		}
	}
}

func TestMemoryRepositoryUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	w, _, _ := repo.GetOrCreate(ctx, "user-1")

	credit := func(cur Wallet) (Wallet, error) { return Apply(cur, DeltaFor(true, dec("25.00"))) }
	if _, err := repo.Update(w.ID, credit); err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	debit := func(cur Wallet) (Wallet, error) { return Apply(cur, DeltaFor(false, dec("30.00"))) }
	if _, err := repo.Update(w.ID, debit); !errors.Is(err, apperr.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}

	got, err := repo.GetByID(ctx, w.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if !got.CurrentBalance.Equal(dec("25")) {
		t.Fatalf("expected balance 25 after rejected debit, got %s", got.CurrentBalance)
	}

	if _, err := repo.Update("missing", credit); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.Get(ctx, "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := repo.GetOrCreate(ctx, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for blank user, got %v", err)
	}
}

func TestMemoryRepositoryTrimsUserID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	padded, created, err := repo.GetOrCreate(ctx, " u1 ")
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	if padded.UserID != "u1" {
		t.Fatalf("expected stored user id u1, got %q", padded.UserID)
	}
	plain, created, err := repo.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created || plain.ID != padded.ID {
		t.Fatalf("expected one wallet per trimmed id, got %s and %s", padded.ID, plain.ID)
	}
	if got, err := repo.Get(ctx, "u1 "); err != nil || got.ID != padded.ID {
		t.Fatalf("expected lookup by padded id to find the wallet, got %v", err)
	}
}
