package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
)

type memoryHold struct {
	accountID   string
	jobID       string
	perLanguage int64
	languages   []string
	finalized   map[string]ledger.EntryKind
}

func (h *memoryHold) covers(language string) bool {
	for _, l := range h.languages {
		if l == language {
			return true
		}
	}
	return false
}

// MemoryLedger is a map-backed ledger.Ledger with the same finalization
// semantics as the Redis implementation: Debit and Release are
// idempotent keyed by (holdID, language).
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  map[string][]ledger.Entry
	holds    map[string]*memoryHold
	grants   map[string]bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int64),
		entries:  make(map[string][]ledger.Entry),
		holds:    make(map[string]*memoryHold),
		grants:   make(map[string]bool),
	}
}

// SetBalance seeds an account for a test.
func (l *MemoryLedger) SetBalance(accountID string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountID] = amount
}

func (l *MemoryLedger) append(accountID string, e ledger.Entry) {
	e.ID = uuid.New().String()
	e.AccountID = accountID
	e.CreatedAt = time.Now().UTC()
	l.entries[accountID] = append(l.entries[accountID], e)
}

func (l *MemoryLedger) Hold(ctx context.Context, accountID, jobID string, perLanguage int64, languages []string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := perLanguage * int64(len(languages))
	if l.balances[accountID] < total {
		return "", ledger.ErrInsufficientCredits
	}

	holdID := uuid.New().String()
	l.balances[accountID] -= total
	l.holds[holdID] = &memoryHold{
		accountID:   accountID,
		jobID:       jobID,
		perLanguage: perLanguage,
		languages:   append([]string(nil), languages...),
		finalized:   make(map[string]ledger.EntryKind),
	}
	l.append(accountID, ledger.Entry{
		JobID:  jobID,
		HoldID: holdID,
		Kind:   ledger.EntryHold,
		Amount: total,
	})
	return holdID, nil
}

func (l *MemoryLedger) finalize(holdID, language string, kind ledger.EntryKind) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hold, ok := l.holds[holdID]
	if !ok {
		return ledger.ErrHoldNotFound
	}
	if !hold.covers(language) {
		return ledger.ErrUnknownLanguage
	}
	if _, done := hold.finalized[language]; done {
		return ledger.ErrAlreadyFinalized
	}

	hold.finalized[language] = kind
	if kind == ledger.EntryRelease {
		l.balances[hold.accountID] += hold.perLanguage
	}
	l.append(hold.accountID, ledger.Entry{
		JobID:    hold.jobID,
		HoldID:   holdID,
		Kind:     kind,
		Language: language,
		Amount:   hold.perLanguage,
	})
	return nil
}

func (l *MemoryLedger) Debit(ctx context.Context, holdID, language string) error {
	return l.finalize(holdID, language, ledger.EntryDebit)
}

func (l *MemoryLedger) Release(ctx context.Context, holdID, language string) error {
	return l.finalize(holdID, language, ledger.EntryRelease)
}

func (l *MemoryLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID], nil
}

func (l *MemoryLedger) Grant(ctx context.Context, accountID string, amount int64, key, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.grants[key] {
		return ledger.ErrDuplicateGrant
	}
	l.grants[key] = true
	l.balances[accountID] += amount
	l.append(accountID, ledger.Entry{
		Kind:   ledger.EntryGrant,
		Amount: amount,
		Reason: reason,
	})
	return nil
}

func (l *MemoryLedger) Entries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.Entry(nil), l.entries[accountID]...), nil
}
