package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/wallet"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (Ledger, *wallet.MemoryRepository, wallet.Wallet) {
	t.Helper()
	wallets := wallet.NewMemoryRepository()
	w, _, err := wallets.GetOrCreate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return NewInMemory(wallets), wallets, w
}

func record(t *testing.T, l Ledger, w wallet.Wallet, kind Type, amount string) Transaction {
	t.Helper()
	tx, err := l.Record(context.Background(), RecordInput{
		WalletID:    w.ID,
		UserID:      w.UserID,
		Type:        kind,
		Amount:      dec(amount),
		Description: "test " + string(kind),
	})
	if err != nil {
		t.Fatalf("record %s: %v", kind, err)
	}
	return tx
}

func TestInMemoryLedger_RecordStartsPending(t *testing.T) {
	l, _, w := setup(t)
	tx := record(t, l, w, TypePixDeposit, "100.00")

	if tx.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", tx.Status)
	}
	if tx.ProcessedAt != nil {
		t.Fatal("pending transaction must not have processedAt")
	}
}

func TestInMemoryLedger_RecordValidation(t *testing.T) {
	l, _, w := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   RecordInput
		want error
	}{
		{"zero amount", RecordInput{WalletID: w.ID, UserID: w.UserID, Type: TypeDeposit, Amount: decimal.Zero, Description: "x"}, ErrInvalidAmount},
		{"negative amount", RecordInput{WalletID: w.ID, UserID: w.UserID, Type: TypeDeposit, Amount: dec("-1"), Description: "x"}, ErrInvalidAmount},
		{"sub-cent amount", RecordInput{WalletID: w.ID, UserID: w.UserID, Type: TypeDeposit, Amount: dec("0.001"), Description: "x"}, ErrInvalidAmount},
		{"unknown type", RecordInput{WalletID: w.ID, UserID: w.UserID, Type: "GIFT", Amount: dec("1"), Description: "x"}, apperr.ErrValidation},
		{"missing description", RecordInput{WalletID: w.ID, UserID: w.UserID, Type: TypeDeposit, Amount: dec("1")}, apperr.ErrValidation},
		{"foreign wallet", RecordInput{WalletID: w.ID, UserID: "someone-else", Type: TypeDeposit, Amount: dec("1"), Description: "x"}, apperr.ErrValidation},
		{"unknown wallet", RecordInput{WalletID: "missing", UserID: w.UserID, Type: TypeDeposit, Amount: dec("1"), Description: "x"}, apperr.ErrNotFound},
		{"bad metadata", RecordInput{WalletID: w.ID, UserID: w.UserID, Type: TypeDeposit, Amount: dec("1"), Description: "x", Metadata: Metadata{"bad key!": "v"}}, apperr.ErrValidation},
	}
	for _, tc := range cases {
		if _, err := l.Record(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestInMemoryLedger_DuplicateReference(t *testing.T) {
	l, _, w := setup(t)
	ctx := context.Background()
	in := RecordInput{WalletID: w.ID, UserID: w.UserID, Type: TypePixDeposit, Amount: dec("10"), Description: "pix", Reference: "E2E-1"}

	first, err := l.Record(ctx, in)
	if err != nil {
		t.Fatalf("initial record: %v", err)
	}
	dup, err := l.Record(ctx, in)
	if err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if dup.ID != first.ID {
		t.Fatalf("expected existing transaction %s, got %s", first.ID, dup.ID)
	}

	in.Type = TypePixWithdrawal
	if _, err := l.Record(ctx, in); err != nil {
		t.Fatalf("same reference on another type should be accepted: %v", err)
	}
}

func TestInMemoryLedger_CompleteDepositAppliesDelta(t *testing.T) {
	l, wallets, w := setup(t)
	ctx := context.Background()
	tx := record(t, l, w, TypePixDeposit, "100.00")

	done, err := l.Transition(ctx, tx.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || done.ProcessedAt == nil {
		t.Fatalf("expected COMPLETED with processedAt, got %+v", done)
	}

	got, _ := wallets.Get(ctx, w.UserID)
	if !got.CurrentBalance.Equal(dec("100")) || !got.AvailableForWithdrawal.Equal(dec("100")) || !got.BlockedAmount.IsZero() {
		t.Fatalf("expected (100,100,0), got (%s,%s,%s)", got.CurrentBalance, got.AvailableForWithdrawal, got.BlockedAmount)
	}
}

func TestInMemoryLedger_InsufficientFundsFailsTransaction(t *testing.T) {
	l, wallets, w := setup(t)
	ctx := context.Background()
	deposit := record(t, l, w, TypeDeposit, "50.00")
	if _, err := l.Transition(ctx, deposit.ID, StatusCompleted); err != nil {
		t.Fatalf("complete deposit: %v", err)
	}

	withdrawal := record(t, l, w, TypeWithdrawal, "80.00")
	res, err := l.Transition(ctx, withdrawal.ID, StatusCompleted)
	if !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if res.Status != StatusFailed || res.ProcessedAt == nil {
		t.Fatalf("expected FAILED with processedAt, got %+v", res)
	}

	stored, _ := l.Get(ctx, withdrawal.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("expected stored status FAILED, got %s", stored.Status)
	}
	got, _ := wallets.Get(ctx, w.UserID)
	if !got.CurrentBalance.Equal(dec("50")) || !got.AvailableForWithdrawal.Equal(dec("50")) {
		t.Fatalf("balance changed on failed withdrawal: %+v", got)
	}
}

func TestInMemoryLedger_TerminalTransitionsAreRejected(t *testing.T) {
	l, wallets, w := setup(t)
	ctx := context.Background()
	tx := record(t, l, w, TypeDeposit, "10.00")
	if _, err := l.Transition(ctx, tx.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	for _, to := range []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusPending} {
		if _, err := l.Transition(ctx, tx.ID, to); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("transition to %s: expected invalid transition, got %v", to, err)
		}
	}
	got, _ := wallets.Get(ctx, w.UserID)
	if !got.CurrentBalance.Equal(dec("10")) {
		t.Fatalf("expected balance to stay at 10, got %s", got.CurrentBalance)
	}

	pending := record(t, l, w, TypeDeposit, "1.00")
	if _, err := l.Transition(ctx, pending.ID, StatusPending); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("PENDING -> PENDING: expected invalid transition, got %v", err)
	}
	if _, err := l.Transition(ctx, "missing", StatusCompleted); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryLedger_ProcessedAtMatchesTerminalState(t *testing.T) {
	l, _, w := setup(t)
	ctx := context.Background()

	targets := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, to := range targets {
		tx := record(t, l, w, TypeDeposit, "5.00")
		if _, err := l.Transition(ctx, tx.ID, to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	record(t, l, w, TypeDeposit, "5.00")

	txs, err := l.ListByWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(txs))
	}
	for _, tx := range txs {
		if (tx.ProcessedAt != nil) != tx.Status.Terminal() {
			t.Fatalf("transaction %s: status %s with processedAt=%v", tx.ID, tx.Status, tx.ProcessedAt)
		}
	}
}

func TestInMemoryLedger_ConcurrentWithdrawals(t *testing.T) {
	l, wallets, w := setup(t)
	ctx := context.Background()
	deposit := record(t, l, w, TypeDeposit, "100.00")
	if _, err := l.Transition(ctx, deposit.ID, StatusCompleted); err != nil {
		t.Fatalf("complete deposit: %v", err)
	}

	first := record(t, l, w, TypeWithdrawal, "60.00")
	second := record(t, l, w, TypeWithdrawal, "60.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = l.Transition(ctx, id, StatusCompleted)
		}(i, id)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one insufficient funds, got %d/%d", succeeded, insufficient)
	}
	got, _ := wallets.Get(ctx, w.UserID)
	if !got.AvailableForWithdrawal.Equal(dec("40")) {
		t.Fatalf("expected 40.00 available, got %s", got.AvailableForWithdrawal)
	}
}

func TestInMemoryLedger_CompletedSumsMatchBalance(t *testing.T) {
	l, wallets, w := setup(t)
	ctx := context.Background()

	steps := []struct {
		kind   Type
		amount string
		to     Status
	}{
		{TypeDeposit, "200.00", StatusCompleted},
		{TypeInvestment, "75.25", StatusCompleted},
		{TypeReturn, "80.10", StatusCompleted},
		{TypePixWithdrawal, "500.00", StatusCompleted}, // fails: insufficient funds
		{TypePixDeposit, "30.00", StatusCancelled},
		{TypeWithdrawal, "4.85", StatusCompleted},
	}
	for _, s := range steps {
		tx := record(t, l, w, s.kind, s.amount)
		_, _ = l.Transition(ctx, tx.ID, s.to)
	}

	txs, _ := l.ListByWallet(ctx, w.ID)
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Status != StatusCompleted {
			continue
		}
		if tx.Type.Credit() {
			sum = sum.Add(tx.Amount)
		} else {
			sum = sum.Sub(tx.Amount)
		}
	}
	got, _ := wallets.Get(ctx, w.UserID)
	if !got.CurrentBalance.Equal(sum) {
		t.Fatalf("ledger sum %s does not match balance %s", sum, got.CurrentBalance)
	}
	if !got.CurrentBalance.Equal(dec("200.00")) {
		t.Fatalf("expected 200.00, got %s", got.CurrentBalance)
	}
}

func TestInMemoryLedger_RecordNormalizesType(t *testing.T) {
	l, wallets, w := setup(t)
	ctx := context.Background()

	tx := record(t, l, w, Type(" deposit "), "100.00")
	if tx.Type != TypeDeposit {
		t.Fatalf("expected stored type %s, got %q", TypeDeposit, tx.Type)
	}
	done, err := l.Transition(ctx, tx.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.Status)
	}
	got, err := wallets.Get(ctx, w.UserID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !got.CurrentBalance.Equal(dec("100")) {
		t.Fatalf("lowercase deposit must credit, balance %s", got.CurrentBalance)
	}
}

func TestInMemoryLedger_EntriesDoNotShareMetadata(t *testing.T) {
	l, _, w := setup(t)
	ctx := context.Background()

	meta := Metadata{"origin": "app"}
	tx, err := l.Record(ctx, RecordInput{
		WalletID:    w.ID,
		UserID:      w.UserID,
		Type:        TypeDeposit,
		Amount:      dec("10.00"),
		Description: "with metadata",
		Metadata:    meta,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	meta["origin"] = "tampered"
	tx.Metadata["origin"] = "tampered"

	if _, err := l.Transition(ctx, tx.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := l.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Metadata["origin"] = "tampered"
	got.ProcessedAt = nil

	again, err := l.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Metadata["origin"] != "app" {
		t.Fatalf("stored metadata changed to %q", again.Metadata["origin"])
	}
	if again.ProcessedAt == nil {
		t.Fatal("stored processedAt must survive caller changes")
	}
}
