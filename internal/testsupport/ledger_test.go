package testsupport

import (
	"context"
	"errors"
	"testing"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
)

func TestLedgerHoldDebitRelease(t *testing.T) {
	ctx := context.Background()
	lg := NewMemoryLedger()
	lg.SetBalance("acct-1", 100)

	holdID, err := lg.Hold(ctx, "acct-1", "job-1", 10, []string{"es", "fr"})
	if err != nil {
		t.Fatalf("Hold failed: %v", err)
	}

	// The full amount leaves the balance at hold time.
	balance, _ := lg.Balance(ctx, "acct-1")
	if balance != 80 {
		t.Errorf("balance after hold = %d, want 80", balance)
	}

	if err := lg.Debit(ctx, holdID, "es"); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if err := lg.Release(ctx, holdID, "fr"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Only the released share returns.
	balance, _ = lg.Balance(ctx, "acct-1")
	if balance != 90 {
		t.Errorf("balance after settle = %d, want 90", balance)
	}

	entries, _ := lg.Entries(ctx, "acct-1")
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Kind != ledger.EntryHold || entries[0].Amount != 20 {
		t.Errorf("first entry = %v %d, want hold 20", entries[0].Kind, entries[0].Amount)
	}
}

func TestLedgerFinalizeIdempotent(t *testing.T) {
	ctx := context.Background()
	lg := NewMemoryLedger()
	lg.SetBalance("acct-1", 50)

	holdID, err := lg.Hold(ctx, "acct-1", "job-1", 10, []string{"es"})
	if err != nil {
		t.Fatalf("Hold failed: %v", err)
	}

	if err := lg.Debit(ctx, holdID, "es"); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	// Replays leave the books untouched.
	if err := lg.Debit(ctx, holdID, "es"); !errors.Is(err, ledger.ErrAlreadyFinalized) {
		t.Errorf("second Debit = %v, want ErrAlreadyFinalized", err)
	}
	if err := lg.Release(ctx, holdID, "es"); !errors.Is(err, ledger.ErrAlreadyFinalized) {
		t.Errorf("Release after Debit = %v, want ErrAlreadyFinalized", err)
	}

	balance, _ := lg.Balance(ctx, "acct-1")
	if balance != 40 {
		t.Errorf("balance = %d, want 40", balance)
	}
	entries, _ := lg.Entries(ctx, "acct-1")
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2 (hold + debit)", len(entries))
	}
}

func TestLedgerInsufficientCredits(t *testing.T) {
	ctx := context.Background()
	lg := NewMemoryLedger()
	lg.SetBalance("acct-1", 15)

	_, err := lg.Hold(ctx, "acct-1", "job-1", 10, []string{"es", "fr"})
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("Hold = %v, want ErrInsufficientCredits", err)
	}

	// Nothing was written.
	balance, _ := lg.Balance(ctx, "acct-1")
	if balance != 15 {
		t.Errorf("balance = %d, want 15", balance)
	}
	entries, _ := lg.Entries(ctx, "acct-1")
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestLedgerUnknownHoldAndLanguage(t *testing.T) {
	ctx := context.Background()
	lg := NewMemoryLedger()
	lg.SetBalance("acct-1", 50)

	if err := lg.Debit(ctx, "missing", "es"); !errors.Is(err, ledger.ErrHoldNotFound) {
		t.Errorf("Debit on missing hold = %v, want ErrHoldNotFound", err)
	}

	holdID, err := lg.Hold(ctx, "acct-1", "job-1", 10, []string{"es"})
	if err != nil {
		t.Fatalf("Hold failed: %v", err)
	}
	if err := lg.Debit(ctx, holdID, "de"); !errors.Is(err, ledger.ErrUnknownLanguage) {
		t.Errorf("Debit uncovered language = %v, want ErrUnknownLanguage", err)
	}
}

func TestLedgerReleaseReplayKeepsRefundOnce(t *testing.T) {
	ctx := context.Background()
	lg := NewMemoryLedger()
	lg.SetBalance("acct-1", 50)

	holdID, err := lg.Hold(ctx, "acct-1", "job-1", 10, []string{"es"})
	if err != nil {
		t.Fatalf("Hold failed: %v", err)
	}

	if err := lg.Release(ctx, holdID, "es"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	// A crash-replayed release must see the refund already applied.
	if err := lg.Release(ctx, holdID, "es"); !errors.Is(err, ledger.ErrAlreadyFinalized) {
		t.Errorf("replayed Release = %v, want ErrAlreadyFinalized", err)
	}

	balance, _ := lg.Balance(ctx, "acct-1")
	if balance != 50 {
		t.Errorf("balance = %d, want 50 (refund applied exactly once)", balance)
	}
	entries, _ := lg.Entries(ctx, "acct-1")
	var releases int64
	for _, e := range entries {
		if e.Kind == ledger.EntryRelease {
			releases += e.Amount
		}
	}
	if releases != 10 {
		t.Errorf("released total = %d, want 10", releases)
	}
}

func TestLedgerGrant(t *testing.T) {
	ctx := context.Background()
	lg := NewMemoryLedger()

	if err := lg.Grant(ctx, "acct-1", 250, "pay_123", "purchase:pay_123"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	balance, _ := lg.Balance(ctx, "acct-1")
	if balance != 250 {
		t.Errorf("balance = %d, want 250", balance)
	}
	entries, _ := lg.Entries(ctx, "acct-1")
	if len(entries) != 1 || entries[0].Kind != ledger.EntryGrant || entries[0].Reason != "purchase:pay_123" {
		t.Errorf("unexpected grant entry: %+v", entries)
	}
}

func TestLedgerGrantIdempotent(t *testing.T) {
	ctx := context.Background()
	lg := NewMemoryLedger()

	if err := lg.Grant(ctx, "acct-1", 250, "pay_123", "purchase:pay_123"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if err := lg.Grant(ctx, "acct-1", 250, "pay_123", "purchase:pay_123"); !errors.Is(err, ledger.ErrDuplicateGrant) {
		t.Errorf("replayed Grant = %v, want ErrDuplicateGrant", err)
	}

	balance, _ := lg.Balance(ctx, "acct-1")
	if balance != 250 {
		t.Errorf("balance = %d, want 250 (granted once)", balance)
	}
	entries, _ := lg.Entries(ctx, "acct-1")
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}
