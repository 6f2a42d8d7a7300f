package ledger

import (
	"context"
	"errors"
	"time"
)

// Entry kinds. Entries are append-only; the list per account is the
// audit trail and is never rewritten.
type EntryKind string

const (
	EntryHold    EntryKind = "hold"
	EntryDebit   EntryKind = "debit"
	EntryRelease EntryKind = "release"
	EntryGrant   EntryKind = "grant"
)

// Entry is one immutable ledger record.
type Entry struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	JobID     string    `json:"jobId,omitempty"`
	HoldID    string    `json:"holdId,omitempty"`
	Kind      EntryKind `json:"kind"`
	Language  string    `json:"language,omitempty"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAlreadyFinalized    = errors.New("hold already finalized for language")
	ErrHoldNotFound        = errors.New("hold not found")
	ErrUnknownLanguage     = errors.New("language not covered by hold")
	ErrDuplicateGrant      = errors.New("grant key already used")
)

// Ledger is the credit accounting contract. Debit and Release are
// idempotent keyed by (holdID, language): a replay returns
// ErrAlreadyFinalized and leaves the books untouched, which callers
// treat as success.
type Ledger interface {
	// Hold reserves perLanguage credits for every requested language,
	// atomically against the account balance. No partial holds.
	Hold(ctx context.Context, accountID, jobID string, perLanguage int64, languages []string) (string, error)

	// Debit converts one language's share of a hold into a permanent
	// charge. The credits were removed from the balance at hold time.
	Debit(ctx context.Context, holdID, language string) error

	// Release returns one language's share of a hold to the balance.
	Release(ctx context.Context, holdID, language string) error

	// Balance returns the account's current spendable credits.
	Balance(ctx context.Context, accountID string) (int64, error)

	// Grant adds purchased credits to an account, at most once per key.
	// A replay returns ErrDuplicateGrant with the books untouched.
	Grant(ctx context.Context, accountID string, amount int64, key, reason string) error

	// Entries returns the account's full audit trail, oldest first.
	Entries(ctx context.Context, accountID string) ([]Entry, error)
}

// holdRecord is the persisted shape of a credit hold. Finalization state
// lives in a separate per-hold hash so it can be written with a single
// atomic set-if-absent.
type holdRecord struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	JobID       string    `json:"jobId"`
	PerLanguage int64     `json:"perLanguage"`
	Languages   []string  `json:"languages"`
	CreatedAt   time.Time `json:"createdAt"`
}

// covers reports whether the hold reserved credits for the language.
func (h *holdRecord) covers(language string) bool {
	for _, l := range h.Languages {
		if l == language {
			return true
		}
	}
	return false
}

// total is the full amount reserved at hold time.
func (h *holdRecord) total() int64 {
	return h.PerLanguage * int64(len(h.Languages))
}
